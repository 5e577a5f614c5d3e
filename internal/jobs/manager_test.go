package jobs

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"tabforest/internal/errors"
)

func TestSubmitCompletes(t *testing.T) {
	m := NewManager(zaptest.NewLogger(t).Sugar())

	job := m.Submit(context.Background(), "train", "fit a forest", func(ctx context.Context, job *Job) (any, error) {
		job.SetProgress(0.5)
		job.AddLog("halfway")
		return 42, nil
	})
	require.NoError(t, job.Wait(context.Background()))

	assert.Equal(t, JobCompleted, job.GetStatus())
	assert.Equal(t, 1.0, job.GetProgress())
	result, err := job.GetResult()
	require.NoError(t, err)
	assert.Equal(t, 42, result)
	require.Len(t, job.GetLogs(), 1)
	assert.Contains(t, job.GetLogs()[0], "halfway")

	got, ok := m.GetJob(job.ID)
	require.True(t, ok)
	assert.Same(t, job, got)
}

func TestSubmitRecordsFailure(t *testing.T) {
	m := NewManager(nil)
	job := m.Submit(context.Background(), "train", "", func(context.Context, *Job) (any, error) {
		return nil, fmt.Errorf("boom")
	})
	require.NoError(t, job.Wait(context.Background()))

	assert.Equal(t, JobFailed, job.GetStatus())
	_, err := job.GetResult()
	assert.EqualError(t, err, "boom")
	assert.NotNil(t, job.EndTime)
}

func TestCancelJob(t *testing.T) {
	m := NewManager(nil)
	started := make(chan struct{})
	job := m.Submit(context.Background(), "train", "", func(ctx context.Context, _ *Job) (any, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})

	<-started
	require.NoError(t, m.CancelJob(job.ID))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, job.Wait(ctx))
	assert.Equal(t, JobCancelled, job.GetStatus())

	assert.Error(t, m.CancelJob(job.ID))
	assert.True(t, errors.Is(m.CancelJob("missing"), errors.CodeNotFound))
}

func TestPublishSkippedAfterCancel(t *testing.T) {
	m := NewManager(nil)
	cancelled := make(chan struct{})
	published := false
	job := m.Submit(context.Background(), "train", "", func(ctx context.Context, job *Job) (any, error) {
		<-cancelled
		if !job.Publish(func() { published = true }) {
			return nil, context.Canceled
		}
		return "committed", nil
	})

	require.NoError(t, m.CancelJob(job.ID))
	close(cancelled)
	require.NoError(t, job.Wait(context.Background()))

	assert.False(t, published)
	assert.Equal(t, JobCancelled, job.GetStatus())
	result, _ := job.GetResult()
	assert.Nil(t, result)

	running := m.Submit(context.Background(), "train", "", func(ctx context.Context, job *Job) (any, error) {
		return job.Publish(func() {}), nil
	})
	require.NoError(t, running.Wait(context.Background()))
	result, err := running.GetResult()
	require.NoError(t, err)
	assert.Equal(t, true, result)
}

func TestListJobsOldestFirst(t *testing.T) {
	m := NewManager(nil)
	first := m.CreateJob("a", "")
	time.Sleep(time.Millisecond)
	second := m.CreateJob("b", "")

	jobs := m.ListJobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, first.ID, jobs[0].ID)
	assert.Equal(t, second.ID, jobs[1].ID)
	assert.NotEqual(t, first.ID, second.ID)
}
