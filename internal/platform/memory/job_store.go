package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/phrazzld/mediajobs/internal/domain"
	"github.com/phrazzld/mediajobs/internal/store"
)

// JobStore implements store.JobStore with a mutex-guarded map.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]domain.Job
	now  func() time.Time
}

var _ store.JobStore = (*JobStore)(nil)

// NewJobStore creates an empty JobStore.
func NewJobStore() *JobStore {
	return &JobStore{
		jobs: make(map[string]domain.Job),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// CreateJob stores a copy of job.
func (s *JobStore) CreateJob(ctx context.Context, job *domain.Job) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}
	if job.State != domain.JobStatePending {
		return fmt.Errorf("%w: new job must be pending, got %s", store.ErrInvalidEntity, job.State)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("%w: job %s", store.ErrDuplicate, job.ID)
	}
	s.jobs[job.ID] = *job
	return nil
}

// MarkRunning moves a pending job to running.
func (s *JobStore) MarkRunning(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return store.ErrJobNotFound
	}
	if job.State != domain.JobStatePending {
		return nil
	}
	job.State = domain.JobStateRunning
	job.UpdatedAt = s.now()
	s.jobs[id] = job
	return nil
}

// SetResult records a successful outcome if the job is not yet terminal.
func (s *JobStore) SetResult(ctx context.Context, id string, result string) (bool, error) {
	return s.finish(id, domain.JobStateSucceeded, result, "")
}

// SetError records a failed outcome if the job is not yet terminal.
func (s *JobStore) SetError(ctx context.Context, id string, message string) (bool, error) {
	return s.finish(id, domain.JobStateFailed, "", message)
}

func (s *JobStore) finish(id string, state domain.JobState, result, message string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return false, store.ErrJobNotFound
	}
	if job.State.IsTerminal() {
		return false, nil
	}
	job.State = state
	job.Result = result
	job.Error = message
	job.UpdatedAt = s.now()
	s.jobs[id] = job
	return true, nil
}

// GetStatus returns the status triple of a job.
func (s *JobStore) GetStatus(ctx context.Context, id string) (domain.JobStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return domain.JobStatus{}, store.ErrJobNotFound
	}
	return job.Status(), nil
}

// DeleteFinishedBefore removes terminal jobs last updated before cutoff.
func (s *JobStore) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for id, job := range s.jobs {
		if job.State.IsTerminal() && job.UpdatedAt.Before(cutoff) {
			delete(s.jobs, id)
			removed++
		}
	}
	return removed, nil
}

// FailUnfinished fails every job that has not reached a terminal state.
func (s *JobStore) FailUnfinished(ctx context.Context, message string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var failed int64
	now := s.now()
	for id, job := range s.jobs {
		if job.State.IsTerminal() {
			continue
		}
		job.State = domain.JobStateFailed
		job.Result = ""
		job.Error = message
		job.UpdatedAt = now
		s.jobs[id] = job
		failed++
	}
	return failed, nil
}
