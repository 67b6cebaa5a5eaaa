package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/phrazzld/mediajobs/internal/domain"
)

// DBTX is implemented by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// JobStore maps job handles to their status triple.
//
// SetResult and SetError are first-wins: only the first call that moves a job
// into a terminal state is applied. Later calls return applied=false and a nil
// error. Both return ErrJobNotFound for unknown handles.
type JobStore interface {
	// CreateJob persists a new job. The job must be in the Pending state.
	CreateJob(ctx context.Context, job *domain.Job) error

	// MarkRunning moves a Pending job to Running. Jobs in any other state
	// are left untouched.
	MarkRunning(ctx context.Context, id string) error

	// SetResult moves a non-terminal job to Succeeded with the given result.
	SetResult(ctx context.Context, id string, result string) (bool, error)

	// SetError moves a non-terminal job to Failed with the given message.
	SetError(ctx context.Context, id string, message string) (bool, error)

	// GetStatus returns the status triple read atomically.
	GetStatus(ctx context.Context, id string) (domain.JobStatus, error)

	// DeleteFinishedBefore removes terminal jobs last updated before cutoff
	// and returns the number of removed jobs.
	DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// FailUnfinished moves every Pending or Running job to Failed with the
	// given message and returns the number of affected jobs.
	FailUnfinished(ctx context.Context, message string) (int64, error)
}
