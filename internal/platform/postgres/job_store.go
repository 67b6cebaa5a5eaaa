package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	// Registers the "pgx" database/sql driver.
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/phrazzld/mediajobs/internal/domain"
	"github.com/phrazzld/mediajobs/internal/platform/logger"
	"github.com/phrazzld/mediajobs/internal/store"
)

// DriverName is the database/sql driver used for PostgreSQL connections.
const DriverName = "pgx"

// Dialect is the goose dialect for this store's migrations.
const Dialect = "postgres"

// Migrations holds the goose migrations for the jobs schema.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// PostgresJobStore implements store.JobStore using PostgreSQL.
type PostgresJobStore struct {
	db store.DBTX
}

var _ store.JobStore = (*PostgresJobStore)(nil)

// NewPostgresJobStore creates a new PostgresJobStore.
func NewPostgresJobStore(db store.DBTX) *PostgresJobStore {
	return &PostgresJobStore{db: db}
}

// CreateJob inserts a pending job.
func (s *PostgresJobStore) CreateJob(ctx context.Context, job *domain.Job) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO jobs (id, type, state, result, error_message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(ctx, query,
		job.ID,
		job.Type,
		job.State,
		job.Result,
		job.Error,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		logger.FromContext(ctx).Error("failed to insert job",
			"job_id", job.ID,
			"job_type", job.Type,
			"error", err)
		return store.NewStoreError("job", "create", "failed to insert job", MapError(err))
	}

	return nil
}

// MarkRunning moves a pending job to running.
func (s *PostgresJobStore) MarkRunning(ctx context.Context, id string) error {
	query := `
		UPDATE jobs
		SET state = $1, updated_at = $2
		WHERE id = $3 AND state = $4
	`
	result, err := s.db.ExecContext(ctx, query,
		domain.JobStateRunning, time.Now().UTC(), id, domain.JobStatePending)
	if err != nil {
		return store.NewStoreError("job", "mark_running", "failed to update job", MapError(err))
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return s.ensureExists(ctx, id)
	}
	return nil
}

// SetResult records a successful outcome if the job is not yet terminal.
func (s *PostgresJobStore) SetResult(ctx context.Context, id string, result string) (bool, error) {
	return s.finish(ctx, id, domain.JobStateSucceeded, result, "")
}

// SetError records a failed outcome if the job is not yet terminal.
func (s *PostgresJobStore) SetError(ctx context.Context, id string, message string) (bool, error) {
	return s.finish(ctx, id, domain.JobStateFailed, "", message)
}

func (s *PostgresJobStore) finish(
	ctx context.Context,
	id string,
	state domain.JobState,
	result, message string,
) (bool, error) {
	query := `
		UPDATE jobs
		SET state = $1, result = $2, error_message = $3, updated_at = $4
		WHERE id = $5 AND state NOT IN ($6, $7)
	`
	res, err := s.db.ExecContext(ctx, query,
		state, result, message, time.Now().UTC(), id,
		domain.JobStateSucceeded, domain.JobStateFailed)
	if err != nil {
		return false, store.NewStoreError("job", "finish", "failed to update job", MapError(err))
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
func (s *PostgresJobStore) GetStatus(ctx context.Context, id string) (domain.JobStatus, error) {
	query := `SELECT state, result, error_message FROM jobs WHERE id = $1`

	var status domain.JobStatus
	err := s.db.QueryRowContext(ctx, query, id).Scan(&status.State, &status.Result, &status.Error)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.JobStatus{}, store.ErrJobNotFound
	}
	if err != nil {
		return domain.JobStatus{}, store.NewStoreError("job", "get_status", "failed to query job", MapError(err))
	}
	return status, nil
}

// DeleteFinishedBefore removes terminal jobs last updated before cutoff.
func (s *PostgresJobStore) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM jobs WHERE state IN ($1, $2) AND updated_at < $3`

	res, err := s.db.ExecContext(ctx, query, domain.JobStateSucceeded, domain.JobStateFailed, cutoff)
	if err != nil {
		return 0, store.NewStoreError("job", "delete", "failed to delete finished jobs", MapError(err))
	}
	return res.RowsAffected()
}

// FailUnfinished fails every job that has not reached a terminal state.
func (s *PostgresJobStore) FailUnfinished(ctx context.Context, message string) (int64, error) {
	query := `
		UPDATE jobs
		SET state = $1, result = '', error_message = $2, updated_at = $3
		WHERE state NOT IN ($4, $5)
	`
	res, err := s.db.ExecContext(ctx, query,
		domain.JobStateFailed, message, time.Now().UTC(),
		domain.JobStateSucceeded, domain.JobStateFailed)
	if err != nil {
		return 0, store.NewStoreError("job", "fail_unfinished", "failed to fail unfinished jobs", MapError(err))
	}
	return res.RowsAffected()
}

func (s *PostgresJobStore) ensureExists(ctx context.Context, id string) error {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM jobs WHERE id = $1`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrJobNotFound
	}
	if err != nil {
		return store.NewStoreError("job", "lookup", "failed to query job", MapError(err))
	}
	return nil
}
