package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrPoolStopped is returned by Submit once Stop has been called
var ErrPoolStopped = errors.New("worker pool stopped")

// HandlerFunc processes a single job
type HandlerFunc func(ctx context.Context, job Job)

// WorkerPool runs jobs on a fixed number of goroutines
type WorkerPool struct {
	workers int
	jobs    chan Job
	handler HandlerFunc
	wg      sync.WaitGroup

	// ctx is handed to handlers; cancelled only when Stop gives up waiting
	ctx    context.Context
	cancel context.CancelFunc

	quit     chan struct{}
	stopOnce sync.Once
	started  bool
	mu       sync.Mutex
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool(workers int, jobQueueSize int, handler HandlerFunc) *WorkerPool {
	if workers <= 0 {
		workers = 1
	}
	if jobQueueSize < 0 {
		jobQueueSize = 0
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		workers: workers,
		jobs:    make(chan Job, jobQueueSize),
		handler: handler,
		ctx:     ctx,
		cancel:  cancel,
		quit:    make(chan struct{}),
	}
}

// Start starts the worker goroutines; calling it more than once has no effect
func (wp *WorkerPool) Start() {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	if wp.started {
		return
	}
	wp.started = true

	slog.Info("Starting worker pool", "workers", wp.workers)

	for i := 0; i < wp.workers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop stops accepting jobs, lets workers drain the queue and waits for them until ctx is done
func (wp *WorkerPool) Stop(ctx context.Context) error {
	wp.stopOnce.Do(func() {
		slog.Info("Stopping worker pool", "queued", len(wp.jobs))
		close(wp.quit)
	})

	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		wp.cancel()
		slog.Info("Worker pool stopped")
		return nil
	case <-ctx.Done():
		wp.cancel()
		slog.Warn("Timeout waiting for worker pool to drain")
		return ctx.Err()
	}
}

// Submit queues a job, blocking while the queue is full
func (wp *WorkerPool) Submit(ctx context.Context, job Job) error {
	select {
	case <-wp.quit:
		return ErrPoolStopped
	default:
	}

	select {
	case wp.jobs <- job:
		slog.Debug("Job submitted to worker pool",
			"subject_id", job.SubjectID,
			"generation", job.Generation,
			"correlation_id", job.CorrelationID,
		)
		return nil
	case <-wp.quit:
		return ErrPoolStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GetJobQueueLength returns the current number of jobs in the queue
func (wp *WorkerPool) GetJobQueueLength() int {
	return len(wp.jobs)
}

// worker is the worker goroutine that processes jobs
func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	slog.Debug("Worker started", "worker_id", id)

	for {
		select {
		case job := <-wp.jobs:
			wp.run(id, job)
		case <-wp.quit:
			// Drain whatever was queued before Stop
			for {
				select {
				case job := <-wp.jobs:
					wp.run(id, job)
				default:
					slog.Debug("Worker stopped", "worker_id", id)
					return
				}
			}
		}
	}
}

func (wp *WorkerPool) run(id int, job Job) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Worker recovered from panic",
				"worker_id", id,
				"subject_id", job.SubjectID,
				"correlation_id", job.CorrelationID,
				"error", r,
			)
		}
	}()

	slog.Debug("Worker processing job",
		"worker_id", id,
		"subject_id", job.SubjectID,
		"correlation_id", job.CorrelationID,
	)

	wp.handler(wp.ctx, job)
}
