package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPool_ProcessesJobs(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]bool{}

	wp := NewWorkerPool(3, 10, func(ctx context.Context, job Job) {
		mu.Lock()
		seen[job.SubjectID] = true
		mu.Unlock()
	})
	wp.Start()

	for _, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, wp.Submit(context.Background(), Job{SubjectID: id}))
	}

	require.NoError(t, wp.Stop(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, seen, 4)
}

func TestWorkerPool_SubmitAfterStop(t *testing.T) {
	wp := NewWorkerPool(1, 1, func(ctx context.Context, job Job) {})
	wp.Start()
	require.NoError(t, wp.Stop(context.Background()))

	err := wp.Submit(context.Background(), Job{SubjectID: "late"})
	assert.ErrorIs(t, err, ErrPoolStopped)
}

func TestWorkerPool_StopDrainsQueue(t *testing.T) {
	var processed atomic.Int32
	release := make(chan struct{})

	wp := NewWorkerPool(1, 5, func(ctx context.Context, job Job) {
		<-release
		processed.Add(1)
	})
	wp.Start()

	for i := 0; i < 3; i++ {
		require.NoError(t, wp.Submit(context.Background(), Job{SubjectID: "x"}))
	}
	close(release)

	require.NoError(t, wp.Stop(context.Background()))
	assert.Equal(t, int32(3), processed.Load())
}

func TestWorkerPool_StopTimeout(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	wp := NewWorkerPool(1, 1, func(ctx context.Context, job Job) {
		select {
		case <-block:
		case <-ctx.Done():
		}
	})
	wp.Start()
	require.NoError(t, wp.Submit(context.Background(), Job{SubjectID: "slow"}))

	// Give the worker a moment to pick the job up
	require.Eventually(t, func() bool { return wp.GetJobQueueLength() == 0 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, wp.Stop(ctx), context.DeadlineExceeded)
}

func TestWorkerPool_RecoversPanics(t *testing.T) {
	var processed atomic.Int32
	wp := NewWorkerPool(1, 2, func(ctx context.Context, job Job) {
		if job.SubjectID == "bad" {
			panic("boom")
		}
		processed.Add(1)
	})
	wp.Start()

	require.NoError(t, wp.Submit(context.Background(), Job{SubjectID: "bad"}))
	require.NoError(t, wp.Submit(context.Background(), Job{SubjectID: "good"}))
	require.NoError(t, wp.Stop(context.Background()))

	assert.Equal(t, int32(1), processed.Load())
}
