package task

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/phrazzld/mediajobs/internal/store"
)

// RetentionSweeper periodically deletes finished jobs older than the
// retention window so the store does not grow without bound.
type RetentionSweeper struct {
	store     store.JobStore
	retention time.Duration
	interval  time.Duration
	logger    *slog.Logger
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRetentionSweeper creates a sweeper. A zero retention disables sweeping.
func NewRetentionSweeper(jobStore store.JobStore, retention, interval time.Duration, logger *slog.Logger) *RetentionSweeper {
	ctx, cancel := context.WithCancel(context.Background())
	return &RetentionSweeper{
		store:     jobStore,
		retention: retention,
		interval:  interval,
		logger:    logger.With("component", "retention_sweeper"),
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start launches the sweep loop.
func (s *RetentionSweeper) Start() {
	if s.retention <= 0 || s.interval <= 0 {
		s.logger.Info("job retention sweeping disabled")
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.SweepOnce(s.ctx)
			}
		}
	}()
}

// SweepOnce deletes finished jobs older than the retention window.
func (s *RetentionSweeper) SweepOnce(ctx context.Context) int64 {
	cutoff := s.now().UTC().Add(-s.retention)
	removed, err := s.store.DeleteFinishedBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error("failed to sweep finished jobs", "error", err)
		return 0
	}
	if removed > 0 {
		s.logger.Info("swept finished jobs", "count", removed, "cutoff", cutoff)
	}
	return removed
}

// Stop ends the sweep loop and waits for it to exit.
func (s *RetentionSweeper) Stop() {
	s.cancel()
	s.wg.Wait()
}
