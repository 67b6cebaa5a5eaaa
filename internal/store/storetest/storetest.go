// Package storetest holds a behavioural test suite shared by every
// store.JobStore implementation.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/phrazzld/mediajobs/internal/domain"
	"github.com/phrazzld/mediajobs/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunJobStoreTests exercises the store.JobStore contract against stores
// produced by newStore. Each subtest gets a fresh store.
func RunJobStoreTests(t *testing.T, newStore func(t *testing.T) store.JobStore) {
	t.Helper()

	newJob := func(t *testing.T, s store.JobStore) *domain.Job {
		t.Helper()
		job, err := domain.NewJob(domain.JobTypeTranscription)
		require.NoError(t, err)
		require.NoError(t, s.CreateJob(context.Background(), job))
		return job
	}

	t.Run("new job is pending", func(t *testing.T) {
		s := newStore(t)
		job := newJob(t, s)

		status, err := s.GetStatus(context.Background(), job.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatus{State: domain.JobStatePending}, status)
	})

	t.Run("duplicate create rejected", func(t *testing.T) {
		s := newStore(t)
		job := newJob(t, s)

		err := s.CreateJob(context.Background(), job)
		assert.ErrorIs(t, err, store.ErrDuplicate)
	})

	t.Run("unknown handle", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.GetStatus(ctx, "does-not-exist")
		assert.ErrorIs(t, err, store.ErrJobNotFound)

		_, err = s.SetResult(ctx, "does-not-exist", "x")
		assert.ErrorIs(t, err, store.ErrJobNotFound)

		_, err = s.SetError(ctx, "does-not-exist", "x")
		assert.ErrorIs(t, err, store.ErrJobNotFound)

		err = s.MarkRunning(ctx, "does-not-exist")
		assert.ErrorIs(t, err, store.ErrJobNotFound)
	})

	t.Run("running then succeeded", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		job := newJob(t, s)

		require.NoError(t, s.MarkRunning(ctx, job.ID))
		status, err := s.GetStatus(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStateRunning, status.State)

		applied, err := s.SetResult(ctx, job.ID, "transcript")
		require.NoError(t, err)
		assert.True(t, applied)

		status, err = s.GetStatus(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatus{State: domain.JobStateSucceeded, Result: "transcript"}, status)
	})

	t.Run("first terminal write wins", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		job := newJob(t, s)

		applied, err := s.SetError(ctx, job.ID, "encoding result was unsuccessful")
		require.NoError(t, err)
		assert.True(t, applied)

		applied, err = s.SetResult(ctx, job.ID, "late result")
		require.NoError(t, err)
		assert.False(t, applied)

		applied, err = s.SetError(ctx, job.ID, "second error")
		require.NoError(t, err)
		assert.False(t, applied)

		require.NoError(t, s.MarkRunning(ctx, job.ID))

		for i := 0; i < 3; i++ {
			status, err := s.GetStatus(ctx, job.ID)
			require.NoError(t, err)
			assert.Equal(t, domain.JobStatus{
				State: domain.JobStateFailed,
				Error: "encoding result was unsuccessful",
			}, status)
		}
	})

	t.Run("delete finished before cutoff", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		done := newJob(t, s)
		pending := newJob(t, s)

		_, err := s.SetResult(ctx, done.ID, "ok")
		require.NoError(t, err)

		removed, err := s.DeleteFinishedBefore(ctx, time.Now().UTC().Add(time.Minute))
		require.NoError(t, err)
		assert.Equal(t, int64(1), removed)

		_, err = s.GetStatus(ctx, done.ID)
		assert.ErrorIs(t, err, store.ErrJobNotFound)
		_, err = s.GetStatus(ctx, pending.ID)
		assert.NoError(t, err)
	})

	t.Run("fail unfinished leaves terminal jobs alone", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		pending := newJob(t, s)
		running := newJob(t, s)
		succeeded := newJob(t, s)
		failed := newJob(t, s)

		require.NoError(t, s.MarkRunning(ctx, running.ID))
		_, err := s.SetResult(ctx, succeeded.ID, "ok")
		require.NoError(t, err)
		_, err = s.SetError(ctx, failed.ID, "boom")
		require.NoError(t, err)

		count, err := s.FailUnfinished(ctx, "interrupted")
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)

		for _, id := range []string{pending.ID, running.ID} {
			status, err := s.GetStatus(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, domain.JobStatus{State: domain.JobStateFailed, Error: "interrupted"}, status)

			applied, err := s.SetResult(ctx, id, "late")
			require.NoError(t, err)
			assert.False(t, applied)
		}

		status, err := s.GetStatus(ctx, succeeded.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatus{State: domain.JobStateSucceeded, Result: "ok"}, status)
		status, err = s.GetStatus(ctx, failed.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatus{State: domain.JobStateFailed, Error: "boom"}, status)

		count, err = s.FailUnfinished(ctx, "interrupted")
		require.NoError(t, err)
		assert.Equal(t, int64(0), count)
	})
}
