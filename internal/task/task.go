package task

import (
	"context"

	"github.com/google/uuid"
)

// Task represents a unit of background work to be processed
type Task interface {
	// ID returns the job handle the outcome is recorded under
	ID() string

	// Type returns the job type identifier
	Type() string

	// Execute runs the task logic and returns its textual result
	Execute(ctx context.Context) (string, error)
}

// TaskQueueReader provides read-only access to the task channel
// allowing workers to consume tasks without the ability to enqueue
type TaskQueueReader interface {
	// GetChannel returns a read-only channel for consuming tasks
	GetChannel() <-chan Task
}

// TaskQueueWriter provides write access to the task queue
type TaskQueueWriter interface {
	// Enqueue adds a task to the queue for processing
	// Returns an error if the queue is full or closed
	Enqueue(task Task) error

	// Close closes the task queue, preventing further task submission
	Close()
}

// WorkFunc is the body of a FuncTask.
type WorkFunc func(ctx context.Context) (string, error)

// FuncTask wraps a closure as a Task with a freshly generated handle.
type FuncTask struct {
	id       string
	taskType string
	fn       WorkFunc
}

// NewFuncTask creates a task of the given type that runs fn.
func NewFuncTask(taskType string, fn WorkFunc) *FuncTask {
	return &FuncTask{
		id:       uuid.NewString(),
		taskType: taskType,
		fn:       fn,
	}
}

// ID returns the task's handle.
func (t *FuncTask) ID() string { return t.id }

// Type returns the task type.
func (t *FuncTask) Type() string { return t.taskType }

// Execute runs the wrapped closure.
func (t *FuncTask) Execute(ctx context.Context) (string, error) {
	return t.fn(ctx)
}
