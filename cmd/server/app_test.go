package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/phrazzld/mediajobs/internal/config"
	"github.com/phrazzld/mediajobs/internal/domain"
	"github.com/phrazzld/mediajobs/internal/events"
	"github.com/phrazzld/mediajobs/internal/platform/migrate"
	"github.com/phrazzld/mediajobs/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewApplication_LocksWorkDir(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	logger := setupTestLogger()

	first, err := newApplication(context.Background(), cfg, logger)
	require.NoError(t, err)

	_, err = newApplication(context.Background(), cfg, logger)
	require.ErrorIs(t, err, errWorkDirInUse)

	first.cleanup()

	third, err := newApplication(context.Background(), cfg, logger)
	require.NoError(t, err)
	third.cleanup()
}

func TestNewApplication_CreatesWorkDir(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Server.WorkDir = filepath.Join(cfg.Server.WorkDir, "nested", "work")

	app := newTestApplication(t, cfg)

	_, err := os.Stat(filepath.Join(cfg.Server.WorkDir, lockFileName))
	require.NoError(t, err)
	assert.Nil(t, app.storage.db)
}

func TestNewApplication_UnknownDefaultProvider(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Transcription.DefaultProvider = "gemini"

	_, err := newApplication(context.Background(), cfg, setupTestLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gemini")

	// The failed build released the lock.
	app, err := newApplication(context.Background(), cfg, setupTestLogger())
	require.NoError(t, err)
	app.cleanup()
}

func TestApplication_RunStopsOnCancel(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	app, err := newApplication(context.Background(), cfg, setupTestLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	next, err := newApplication(context.Background(), cfg, setupTestLogger())
	require.NoError(t, err, "Run should release the work directory on exit")
	next.cleanup()
}

func TestApplication_RunFailsInterruptedJobs(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Database = config.DatabaseConfig{
		Driver: "sqlite",
		URL:    filepath.Join(t.TempDir(), "jobs.db"),
	}
	require.NoError(t, runMigrations(ctx, cfg, migrate.CommandUp, setupTestLogger()))

	previous, err := newApplication(ctx, cfg, setupTestLogger())
	require.NoError(t, err)
	job, err := domain.NewJob(domain.JobTypeBulkDownload)
	require.NoError(t, err)
	require.NoError(t, previous.storage.jobs.CreateJob(ctx, job))
	require.NoError(t, previous.storage.jobs.MarkRunning(ctx, job.ID))
	previous.cleanup()

	app, err := newApplication(ctx, cfg, setupTestLogger())
	require.NoError(t, err)

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- app.Run(runCtx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	s, err := openStorage(ctx, cfg.Database, setupTestLogger())
	require.NoError(t, err)
	defer func() { assert.NoError(t, s.Close()) }()

	status, err := s.jobs.GetStatus(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatus{
		State: domain.JobStateFailed,
		Error: task.ErrJobInterrupted.Error(),
	}, status)
}

func TestJobEventLogger(t *testing.T) {
	t.Parallel()

	handler := jobEventLogger(setupTestLogger())

	for _, eventType := range []string{events.JobSubmitted, events.JobStarted, events.JobSucceeded, events.JobFailed} {
		event := events.NewJobEvent(eventType, "job-1", "transcription", "Bearer secret-token")
		assert.NoError(t, handler.HandleEvent(context.Background(), event), eventType)
	}
}
