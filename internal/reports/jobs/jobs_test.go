package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ai-opportunities/report-portal/report-portal-backend/internal/apierror"
)

func waitFor(t *testing.T, store *Store, id string, status Status) Job {
	t.Helper()
	var job Job
	require.Eventually(t, func() bool {
		var err error
		job, err = store.Get(id)
		return err == nil && job.Status == status
	}, 2*time.Second, 5*time.Millisecond)
	return job
}

func TestStore_Lifecycle(t *testing.T) {
	store := NewStore(time.Hour, zap.NewNop())
	job := store.Create("Acme")
	assert.Equal(t, StatusPending, job.Status)

	_, err := store.Transition(job.ID, StatusCompleted, nil)
	assert.Error(t, err, "pending cannot complete directly")

	_, err = store.Transition(job.ID, StatusProcessing, nil)
	require.NoError(t, err)
	done, err := store.Transition(job.ID, StatusCompleted, func(j *Job) { j.ReportID = "r-1" })
	require.NoError(t, err)
	assert.Equal(t, "r-1", done.ReportID)
	assert.NotNil(t, done.CompletedAt)
	assert.True(t, done.Terminal())

	_, err = store.Transition(job.ID, StatusFailed, nil)
	assert.Error(t, err, "completed is terminal")

	_, err = store.Get("missing")
	assert.ErrorIs(t, err, apierror.ErrNotFound)
}

func TestStore_Reap(t *testing.T) {
	store := NewStore(time.Minute, zap.NewNop())
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	finished := store.Create("A")
	_, _ = store.Transition(finished.ID, StatusFailed, nil)
	pending := store.Create("B")

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 1, store.Reap())

	_, err := store.Get(finished.ID)
	assert.ErrorIs(t, err, apierror.ErrNotFound)
	_, err = store.Get(pending.ID)
	assert.NoError(t, err)
}

func TestStore_StartRejectsBadSchedule(t *testing.T) {
	store := NewStore(time.Minute, zap.NewNop())
	assert.Error(t, store.Start("not a schedule"))

	require.NoError(t, store.Start("*/1 * * * * *"))
	store.Stop()
}

func TestWorker_CompletesAndFails(t *testing.T) {
	store := NewStore(time.Hour, zap.NewNop())
	w := NewWorker(store, WorkerConfig{MaxConcurrent: 2, QueueSize: 4, JobTimeout: time.Second}, zap.NewNop())

	ok, err := w.Submit("Acme", func(ctx context.Context, job Job) (Result, error) {
		return Result{ReportID: "r-1", DownloadURL: "https://files.example/r-1.pdf"}, nil
	})
	require.NoError(t, err)
	bad, err := w.Submit("Broken", func(ctx context.Context, job Job) (Result, error) {
		return Result{}, errors.New("llm unavailable")
	})
	require.NoError(t, err)

	got := waitFor(t, store, ok.ID, StatusCompleted)
	assert.Equal(t, "r-1", got.ReportID)
	assert.Equal(t, "https://files.example/r-1.pdf", got.DownloadURL)

	failed := waitFor(t, store, bad.ID, StatusFailed)
	assert.Equal(t, "llm unavailable", failed.Error)

	require.NoError(t, w.Shutdown(context.Background()))
}

func TestWorker_TimeoutAndPanic(t *testing.T) {
	store := NewStore(time.Hour, zap.NewNop())
	w := NewWorker(store, WorkerConfig{MaxConcurrent: 1, QueueSize: 4, JobTimeout: 20 * time.Millisecond}, zap.NewNop())

	slow, _ := w.Submit("Slow", func(ctx context.Context, job Job) (Result, error) {
		<-ctx.Done()
		return Result{}, ctx.Err()
	})
	boom, _ := w.Submit("Boom", func(ctx context.Context, job Job) (Result, error) {
		panic("nil map")
	})

	assert.Contains(t, waitFor(t, store, slow.ID, StatusFailed).Error, "deadline exceeded")
	assert.Contains(t, waitFor(t, store, boom.ID, StatusFailed).Error, "panicked")
	require.NoError(t, w.Shutdown(context.Background()))
}

func TestWorker_Busy(t *testing.T) {
	store := NewStore(time.Hour, zap.NewNop())
	w := NewWorker(store, WorkerConfig{MaxConcurrent: 1, QueueSize: 1, JobTimeout: time.Second}, zap.NewNop())

	release := make(chan struct{})
	block := func(ctx context.Context, job Job) (Result, error) {
		<-release
		return Result{}, nil
	}

	// one running, one parked on the semaphore, one queued
	first, err := w.Submit("1", block)
	require.NoError(t, err)
	waitFor(t, store, first.ID, StatusProcessing)
	_, err = w.Submit("2", block)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(w.queue) == 0 }, time.Second, time.Millisecond)
	_, err = w.Submit("3", block)
	require.NoError(t, err)

	_, err = w.Submit("4", block)
	assert.ErrorIs(t, err, apierror.ErrBusy)
	assert.Equal(t, 3, store.Len())

	close(release)
	require.NoError(t, w.Shutdown(context.Background()))

	_, err = w.Submit("late", block)
	assert.ErrorIs(t, err, apierror.ErrBusy)
}
