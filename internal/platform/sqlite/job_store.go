package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/phrazzld/mediajobs/internal/domain"
	"github.com/phrazzld/mediajobs/internal/store"
)

// Migrations holds the goose migrations for the jobs schema.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// SQLiteJobStore implements store.JobStore on SQLite. Timestamps are stored
// as UTC unix nanoseconds.
type SQLiteJobStore struct {
	db store.DBTX
}

var _ store.JobStore = (*SQLiteJobStore)(nil)

// NewSQLiteJobStore creates a new SQLiteJobStore.
func NewSQLiteJobStore(db store.DBTX) *SQLiteJobStore {
	return &SQLiteJobStore{db: db}
}

// CreateJob inserts a pending job.
func (s *SQLiteJobStore) CreateJob(ctx context.Context, job *domain.Job) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO jobs (id, type, state, result, error_message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		job.ID,
		job.Type,
		string(job.State),
		job.Result,
		job.Error,
		job.CreatedAt.UTC().UnixNano(),
		job.UpdatedAt.UTC().UnixNano(),
	)
	if err != nil {
		return store.NewStoreError("job", "create", "failed to insert job", mapError(err))
	}
	return nil
}

// MarkRunning moves a pending job to running.
func (s *SQLiteJobStore) MarkRunning(ctx context.Context, id string) error {
	query := `UPDATE jobs SET state = ?, updated_at = ? WHERE id = ? AND state = ?`

	res, err := s.db.ExecContext(ctx, query,
		string(domain.JobStateRunning), nowNanos(), id, string(domain.JobStatePending))
	if err != nil {
		return store.NewStoreError("job", "mark_running", "failed to update job", mapError(err))
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return s.ensureExists(ctx, id)
	}
	return nil
}

// SetResult records a successful outcome if the job is not yet terminal.
func (s *SQLiteJobStore) SetResult(ctx context.Context, id string, result string) (bool, error) {
	return s.finish(ctx, id, domain.JobStateSucceeded, result, "")
}

// SetError records a failed outcome if the job is not yet terminal.
func (s *SQLiteJobStore) SetError(ctx context.Context, id string, message string) (bool, error) {
	return s.finish(ctx, id, domain.JobStateFailed, "", message)
}

func (s *SQLiteJobStore) finish(
	ctx context.Context,
	id string,
	state domain.JobState,
	result, message string,
) (bool, error) {
	query := `
		UPDATE jobs
		SET state = ?, result = ?, error_message = ?, updated_at = ?
		WHERE id = ? AND state NOT IN (?, ?)
	`
	res, err := s.db.ExecContext(ctx, query,
		string(state), result, message, nowNanos(), id,
		string(domain.JobStateSucceeded), string(domain.JobStateFailed))
	if err != nil {
		return false, store.NewStoreError("job", "finish", "failed to update job", mapError(err))
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return false, s.ensureExists(ctx, id)
	}
	return true, nil
}

// GetStatus reads the status triple in a single row fetch.
func (s *SQLiteJobStore) GetStatus(ctx context.Context, id string) (domain.JobStatus, error) {
	var (
		state  string
		status domain.JobStatus
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT state, result, error_message FROM jobs WHERE id = ?`, id,
	).Scan(&state, &status.Result, &status.Error)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.JobStatus{}, store.ErrJobNotFound
	}
	if err != nil {
		return domain.JobStatus{}, store.NewStoreError("job", "get_status", "failed to query job", mapError(err))
	}
	status.State = domain.JobState(state)
	return status, nil
}

// DeleteFinishedBefore removes terminal jobs last updated before cutoff.
func (s *SQLiteJobStore) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM jobs WHERE state IN (?, ?) AND updated_at < ?`,
		string(domain.JobStateSucceeded), string(domain.JobStateFailed), cutoff.UTC().UnixNano())
	if err != nil {
		return 0, store.NewStoreError("job", "delete", "failed to delete finished jobs", mapError(err))
	}
	return res.RowsAffected()
}

// FailUnfinished fails every job that has not reached a terminal state.
func (s *SQLiteJobStore) FailUnfinished(ctx context.Context, message string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs
		SET state = ?, result = '', error_message = ?, updated_at = ?
		WHERE state NOT IN (?, ?)
	`,
		string(domain.JobStateFailed), message, nowNanos(),
		string(domain.JobStateSucceeded), string(domain.JobStateFailed))
	if err != nil {
		return 0, store.NewStoreError("job", "fail_unfinished", "failed to fail unfinished jobs", mapError(err))
	}
	return res.RowsAffected()
}

func (s *SQLiteJobStore) ensureExists(ctx context.Context, id string) error {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM jobs WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrJobNotFound
	}
	if err != nil {
		return store.NewStoreError("job", "lookup", "failed to query job", mapError(err))
	}
	return nil
}

// mapError translates SQLite constraint failures into store errors. The
// driver reports them as text, e.g. "constraint failed: UNIQUE constraint
// failed: jobs.id (1555)".
func mapError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return fmt.Errorf("%w: %v", store.ErrDuplicate, err)
	case strings.Contains(msg, "CHECK constraint failed"),
		strings.Contains(msg, "NOT NULL constraint failed"):
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}
	return err
}

func nowNanos() int64 {
	return time.Now().UTC().UnixNano()
}
