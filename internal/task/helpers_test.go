package task

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/phrazzld/mediajobs/internal/domain"
	"github.com/phrazzld/mediajobs/internal/events"
	"github.com/phrazzld/mediajobs/internal/store"
	"github.com/stretchr/testify/require"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

// recordingEmitter keeps every emitted event type in order.
type recordingEmitter struct {
	mu     sync.Mutex
	events []string
}

func (e *recordingEmitter) EmitEvent(ctx context.Context, event *events.JobEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event.Type)
	return nil
}

func (e *recordingEmitter) Types() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.events...)
}

// waitForTerminal polls the store until the job reaches a terminal state.
func waitForTerminal(t *testing.T, s store.JobStore, id string) domain.JobStatus {
	t.Helper()

	var status domain.JobStatus
	require.Eventually(t, func() bool {
		var err error
		status, err = s.GetStatus(context.Background(), id)
		return err == nil && status.State.IsTerminal()
	}, 2*time.Second, 5*time.Millisecond, "job %s did not finish", id)
	return status
}

func staticTask(result string, err error) *FuncTask {
	return NewFuncTask("test", func(ctx context.Context) (string, error) {
		return result, err
	})
}
