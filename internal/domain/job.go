package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// JobState represents the lifecycle state of a job
type JobState string

// Possible job states
const (
	JobStatePending   JobState = "Pending"
	JobStateRunning   JobState = "Running"
	JobStateSucceeded JobState = "Succeeded"
	JobStateFailed    JobState = "Failed"
)

// Job type identifiers
const (
	JobTypeTranscription    = "transcription"
	JobTypeTranslation      = "translation"
	JobTypePlaylistDownload = "playlist_download"
	JobTypeBulkDownload     = "bulk_download"
)

// Validation errors for Job
var (
	ErrEmptyJobID      = errors.New("job ID cannot be empty")
	ErrEmptyJobType    = errors.New("job type cannot be empty")
	ErrInvalidJobState = errors.New("invalid job state")
)

// IsTerminal reports whether no further transitions are permitted from s.
func (s JobState) IsTerminal() bool {
	return s == JobStateSucceeded || s == JobStateFailed
}

// Valid reports whether s is one of the known states.
func (s JobState) Valid() bool {
	switch s {
	case JobStatePending, JobStateRunning, JobStateSucceeded, JobStateFailed:
		return true
	default:
		return false
	}
}

// Job is a unit of background work tracked by its handle. Result is set only
// on success, Error only on failure, and neither changes once a terminal
// state is reached.
type Job struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	State     JobState  `json:"state"`
	Result    string    `json:"result,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// JobStatus is the triple observed by pollers.
type JobStatus struct {
	State  JobState `json:"status"`
	Result string   `json:"result"`
	Error  string   `json:"error"`
}

// NewJob creates a pending job of the given type with a fresh handle.
func NewJob(jobType string) (*Job, error) {
	now := time.Now().UTC()
	job := &Job{
		ID:        uuid.NewString(),
		Type:      jobType,
		State:     JobStatePending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := job.Validate(); err != nil {
		return nil, err
	}

	return job, nil
}

// Validate checks if the Job has valid data.
func (j *Job) Validate() error {
	if j.ID == "" {
		return ErrEmptyJobID
	}

	if j.Type == "" {
		return ErrEmptyJobType
	}

	if !j.State.Valid() {
		return ErrInvalidJobState
	}

	return nil
}

// Status returns the status triple of the job.
func (j *Job) Status() JobStatus {
	return JobStatus{
		State:  j.State,
		Result: j.Result,
		Error:  j.Error,
	}
}
