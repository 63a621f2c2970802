package async

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/scrape-jobs/internal/common"
)

type ProcessorQueue struct {
	proc    Runner
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch     chan Job
	wg     sync.WaitGroup
	once   sync.Once
	base   context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

// WithProcessTimeout bounds a single run. Zero keeps the default.
func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewProcessorQueue(proc Runner, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		proc:    proc,
		logger:  logger,
		workers: 4,
		timeout: 3 * time.Minute,
		ch:      make(chan Job, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.base, q.cancel = context.WithCancel(context.Background())
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Debug("worker started", "worker_id", workerID)

				for job := range q.ch {
					q.run(workerID, job)
				}

				q.logger.Debug("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *ProcessorQueue) run(workerID int, job Job) {
	ctx := common.WithJobID(q.base, job.JobID)
	if job.TraceID != "" {
		ctx = common.WithRequestID(ctx, job.TraceID)
	}
	ctx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("worker panic", "worker_id", workerID, "job_id", job.JobID, "panic", r)
		}
	}()

	if err := q.proc.ProcessJob(ctx, job.JobID); err != nil {
		q.logger.Error("processing failed", "worker_id", workerID, "job_id", job.JobID, "error", err)
		return
	}
	q.logger.Info("processed job",
		"worker_id", workerID,
		"job_id", job.JobID,
		"queued_ms", time.Since(job.SubmittedAt).Milliseconds(),
	)
}

// Enqueue returns ErrQueueFull instead of blocking the submitter, and ErrQueueClosed
// once Shutdown has started.
func (q *ProcessorQueue) Enqueue(_ context.Context, job Job) error {
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("cannot enqueue: queue is shutting down", "job_id", job.JobID)
		return common.ErrQueueClosed
	}
	select {
	case q.ch <- job:
		q.logger.Debug("queued job for processing", "job_id", job.JobID, "depth", len(q.ch))
		return nil
	default:
		q.logger.Warn("queue full, rejecting job", "job_id", job.JobID, "capacity", cap(q.ch))
		return common.ErrQueueFull
	}
}

// Depth is the number of jobs waiting for a worker.
func (q *ProcessorQueue) Depth() int { return len(q.ch) }

// Shutdown stops intake and waits for queued and running jobs. When ctx ends first,
// running jobs are cancelled so they can record a terminal state.
func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context, cancelling running jobs")
		q.cancel()
		<-done
	case <-done:
		q.logger.Info("queue drained, shutdown complete")
	}
	q.cancel()
}
