package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/phrazzld/mediajobs/internal/domain"
	"github.com/phrazzld/mediajobs/internal/events"
	"github.com/phrazzld/mediajobs/internal/platform/logger"
	"github.com/phrazzld/mediajobs/internal/store"
)

// ErrRunnerStopped is recorded for tasks still queued when the runner stops.
var ErrRunnerStopped = errors.New("task runner stopped before the job started")

// ErrJobInterrupted is recorded by Recover for jobs left unfinished by a
// previous process.
var ErrJobInterrupted = errors.New("job interrupted by server restart")

// TaskRunnerConfig holds configuration for the task runner
type TaskRunnerConfig struct {
	// WorkerCount determines how many concurrent workers process tasks
	WorkerCount int

	// QueueSize determines the buffer size for the in-memory task queue
	QueueSize int
}

// DefaultTaskRunnerConfig returns a TaskRunnerConfig with reasonable defaults
func DefaultTaskRunnerConfig() TaskRunnerConfig {
	return TaskRunnerConfig{
		WorkerCount: 2,
		QueueSize:   100,
	}
}

// TaskRunner accepts tasks, records them in the job store and executes each
// one exactly once on the worker pool.
type TaskRunner struct {
	store      store.JobStore
	emitter    events.EventEmitter
	queue      *TaskQueue
	pool       *WorkerPool
	logger     *slog.Logger
	errHandler func(task Task, err error)

	startOnce sync.Once
	stopOnce  sync.Once
}

// NewTaskRunner creates a new TaskRunner. A nil emitter discards events.
func NewTaskRunner(
	jobStore store.JobStore,
	emitter events.EventEmitter,
	config TaskRunnerConfig,
	logger *slog.Logger,
) *TaskRunner {
	if emitter == nil {
		emitter = events.NopEmitter{}
	}
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultTaskRunnerConfig().QueueSize
	}

	queue := NewTaskQueue(config.QueueSize, logger)

	return &TaskRunner{
		store:   jobStore,
		emitter: emitter,
		queue:   queue,
		pool:    NewWorkerPool(queue, WorkerPoolConfig{WorkerCount: config.WorkerCount}, logger),
		logger:  logger,
		errHandler: func(task Task, err error) {
			logger.Error("task execution failed",
				"job_id", task.ID(),
				"job_type", task.Type(),
				"error", err)
		},
	}
}

// SetErrorHandler allows setting a custom error handler function. It is
// called after a failed outcome has been recorded.
func (r *TaskRunner) SetErrorHandler(handler func(task Task, err error)) {
	r.errHandler = handler
}

// Submit records a pending job for task and enqueues it. It never waits for
// the task to run. If the queue cannot take the task, the job is marked
// failed and its handle is returned with an error wrapping ErrQueueFull or
// ErrQueueClosed.
func (r *TaskRunner) Submit(ctx context.Context, task Task) (string, error) {
	now := time.Now().UTC()
	job := &domain.Job{
		ID:        task.ID(),
		Type:      task.Type(),
		State:     domain.JobStatePending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := r.store.CreateJob(ctx, job); err != nil {
		return "", fmt.Errorf("failed to save task: %w", err)
	}

	if err := r.queue.Enqueue(task); err != nil {
		if _, setErr := r.store.SetError(ctx, job.ID, err.Error()); setErr != nil {
			r.logger.Error("failed to mark rejected task as failed",
				"job_id", job.ID,
				"error", setErr)
		}
		return job.ID, fmt.Errorf("failed to enqueue task: %w", err)
	}

	r.emit(ctx, events.NewJobEvent(events.JobSubmitted, job.ID, job.Type, ""))
	return job.ID, nil
}

// Recover fails every job a previous process left Pending or Running. The
// queue is in-memory, so such jobs can never run. Call it before Start.
func (r *TaskRunner) Recover(ctx context.Context) error {
	count, err := r.store.FailUnfinished(ctx, ErrJobInterrupted.Error())
	if err != nil {
		return fmt.Errorf("failed to recover unfinished jobs: %w", err)
	}
	if count > 0 {
		r.logger.Warn("failed jobs interrupted by restart", "count", count)
	}
	return nil
}

// Start begins processing queued tasks.
func (r *TaskRunner) Start() {
	r.startOnce.Do(func() {
		r.pool.Start(r.processTask)
	})
}

// Stop closes the queue, waits for running tasks to finish and marks tasks
// that never started as failed.
func (r *TaskRunner) Stop() {
	r.stopOnce.Do(func() {
		r.queue.Close()
		r.pool.Stop()

		ctx := context.Background()
		drained := 0
		for task := range r.queue.GetChannel() {
			drained++
			r.fail(ctx, task, ErrRunnerStopped, r.logger.With("job_id", task.ID()))
		}
		if drained > 0 {
			r.logger.Warn("failed queued tasks on shutdown", "count", drained)
		}
	})
}

// processTask handles execution of a single task
func (r *TaskRunner) processTask(task Task, workerID int) {
	log := r.logger.With(
		"job_id", task.ID(),
		"job_type", task.Type(),
		"worker_id", workerID,
	)
	ctx := WithJobID(logger.WithContext(context.Background(), log), task.ID())

	if err := r.store.MarkRunning(ctx, task.ID()); err != nil {
		if errors.Is(err, store.ErrJobNotFound) {
			log.Error("job record missing, skipping task")
			return
		}
		log.Error("failed to update job state to running", "error", err)
	}
	r.emit(ctx, events.NewJobEvent(events.JobStarted, task.ID(), task.Type(), ""))

	log.Info("processing task")
	start := time.Now()

	result, err := r.execute(ctx, task)
	if err == nil && strings.TrimSpace(result) == "" {
		err = domain.ErrEmptyResult
	}

	if err != nil {
		r.fail(ctx, task, err, log)
		r.errHandler(task, err)
		return
	}

	applied, err := r.store.SetResult(ctx, task.ID(), result)
	if err != nil {
		log.Error("failed to record task result", "error", err)
		return
	}
	if !applied {
		log.Warn("job already finished, result discarded")
		return
	}

	log.Info("task completed successfully", "duration_ms", time.Since(start).Milliseconds())
	r.emit(ctx, events.NewJobEvent(events.JobSucceeded, task.ID(), task.Type(), ""))
}

// execute runs the task, converting a panic into an error.
func (r *TaskRunner) execute(ctx context.Context, task Task) (result string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.FromContext(ctx).Error("task panicked",
				"panic", rec,
				"stack", string(debug.Stack()))
			result = ""
			err = fmt.Errorf("task panicked: %v", rec)
		}
	}()
	return task.Execute(ctx)
}

func (r *TaskRunner) fail(ctx context.Context, task Task, cause error, log *slog.Logger) {
	applied, err := r.store.SetError(ctx, task.ID(), cause.Error())
	if err != nil {
		log.Error("failed to record task failure", "error", err, "cause", cause)
		return
	}
	if !applied {
		log.Warn("job already finished, failure discarded", "cause", cause)
		return
	}
	r.emit(ctx, events.NewJobEvent(events.JobFailed, task.ID(), task.Type(), cause.Error()))
}

func (r *TaskRunner) emit(ctx context.Context, event *events.JobEvent) {
	if err := r.emitter.EmitEvent(ctx, event); err != nil {
		r.logger.Warn("failed to emit job event",
			"event_type", event.Type,
			"job_id", event.JobID,
			"error", err)
	}
}
