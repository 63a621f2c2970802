package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/scrape-jobs/constants"
	"github.com/joseph-ayodele/scrape-jobs/internal/common"
	"github.com/joseph-ayodele/scrape-jobs/internal/entity"
	"github.com/joseph-ayodele/scrape-jobs/internal/export"
	"github.com/joseph-ayodele/scrape-jobs/internal/extract"
	"github.com/joseph-ayodele/scrape-jobs/internal/repository"
)

// ErrMaxRunExceeded is the cancellation cause when a run outlives its budget.
var ErrMaxRunExceeded = errors.New("exceeded maximum run duration")

// ErrRunPanicked marks a run that ended in a recovered panic.
var ErrRunPanicked = errors.New("scrape run panicked")

const reasonInternal = "internal error during scraping"

const defaultFinalizeTimeout = 10 * time.Second

// Processor drives one scrape job from pending to a terminal state, appending items
// to the store and publishing progress as it goes.
type Processor struct {
	logger          *slog.Logger
	jobs            repository.JobRepository
	producer        extract.Producer
	events          *emitter
	maxRun          time.Duration
	finalizeTimeout time.Duration
}

type ProcessorOption func(*Processor)

// WithMaxRunDuration fails runs that take longer than d. Zero disables the limit.
func WithMaxRunDuration(d time.Duration) ProcessorOption {
	return func(p *Processor) { p.maxRun = d }
}

// WithFinalizeTimeout bounds the terminal store write after the run context ended.
func WithFinalizeTimeout(d time.Duration) ProcessorOption {
	return func(p *Processor) {
		if d > 0 {
			p.finalizeTimeout = d
		}
	}
}

func NewProcessor(
	logger *slog.Logger,
	jobs repository.JobRepository,
	producer extract.Producer,
	pub Publisher,
	opts ...ProcessorOption,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Processor{
		logger:          logger,
		jobs:            jobs,
		producer:        producer,
		events:          newEmitter(pub),
		maxRun:          3 * time.Minute,
		finalizeTimeout: defaultFinalizeTimeout,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// ProcessJob runs the job. Producer failures are recorded on the job and are not
// returned; the error is only non-nil when the store itself could not be updated.
func (p *Processor) ProcessJob(ctx context.Context, jobID uuid.UUID) error {
	log := common.LoggerFrom(common.WithJobID(ctx, jobID), p.logger)
	start := time.Now()

	job, err := p.jobs.MarkRunning(ctx, jobID, constants.MessageStarting)
	if err != nil {
		if errors.Is(err, common.ErrTerminal) || errors.Is(err, common.ErrInvalidInput) || errors.Is(err, common.ErrNotFound) {
			log.Warn("executor.run.skipped", "error", err)
			return nil
		}
		return fmt.Errorf("mark running: %w", err)
	}

	stream := p.events.open(jobID)
	defer p.events.release(jobID)
	stream.emit(entity.EventFromJob(*job, constants.MessageStarting))
	log.Info("executor.run.start", "max_results", job.MaxResults)

	runCtx, cancel := ctx, context.CancelFunc(func() {})
	if p.maxRun > 0 {
		runCtx, cancel = context.WithTimeoutCause(ctx, p.maxRun, fmt.Errorf("%w (%s)", ErrMaxRunExceeded, p.maxRun))
	}
	defer cancel()

	count, runErr := p.safeCollect(runCtx, stream, job)
	if errors.Is(runErr, common.ErrTerminal) {
		// someone else (the reaper) already settled the job and announced it
		log.Warn("executor.run.preempted", "results_count", count)
		return nil
	}

	// the terminal write must happen even if the run context is already done
	fctx, fcancel := context.WithTimeout(context.WithoutCancel(ctx), p.finalizeTimeout)
	defer fcancel()

	if runErr != nil {
		reason := failureReason(runCtx, runErr)
		log.Warn("executor.run.failed", "error", runErr, "results_count", count, "elapsed_ms", time.Since(start).Milliseconds())
		return p.settle(fctx, log, stream, func() (*entity.Job, error) {
			return p.jobs.MarkFailed(fctx, jobID, reason)
		})
	}

	msg := fmt.Sprintf("Successfully extracted %d items!", count)
	file := export.Filename(jobID, job.Query, constants.ExportCSV)
	if err := p.settle(fctx, log, stream, func() (*entity.Job, error) {
		return p.jobs.MarkCompleted(fctx, jobID, msg, file)
	}); err != nil {
		return err
	}
	log.Info("executor.run.ok", "results_count", count, "elapsed_ms", time.Since(start).Milliseconds())
	return nil
}

// safeCollect turns a panic in the producer or the collect loop into a run error
// so the job still settles.
func (p *Processor) safeCollect(ctx context.Context, stream *jobStream, job *entity.Job) (count int, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("executor.run.panic", "job_id", job.ID, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("%w: %v", ErrRunPanicked, r)
			if snap, gerr := p.jobs.Get(context.WithoutCancel(ctx), job.ID); gerr == nil {
				count = snap.ResultsCount
			}
		}
	}()
	return p.collect(ctx, stream, job)
}

// collect pulls items until the producer is exhausted, the cap is reached, or an error.
func (p *Processor) collect(ctx context.Context, stream *jobStream, job *entity.Job) (int, error) {
	count := 0
	if job.MaxResults <= 0 {
		return 0, nil
	}
	for item, err := range p.producer.Produce(ctx, job.Query, job.MaxResults) {
		if err != nil {
			return count, err
		}
		snap, err := p.jobs.AppendItem(ctx, job.ID, item)
		if err != nil {
			return count, err
		}
		count = snap.ResultsCount

		msg := fmt.Sprintf("Extracted %d of %d items", count, job.MaxResults)
		snap, err = p.jobs.UpdateProgress(ctx, job.ID, ProgressFor(count, job.MaxResults), msg)
		if err != nil {
			return count, err
		}
		stream.emit(entity.EventFromJob(*snap, msg))

		if count >= job.MaxResults {
			break
		}
	}
	if err := ctx.Err(); err != nil {
		return count, err
	}
	return count, nil
}

// settle performs the terminal store write and publishes its event exactly once.
func (p *Processor) settle(ctx context.Context, log *slog.Logger, stream *jobStream, mark func() (*entity.Job, error)) error {
	job, err := mark()
	if err != nil {
		if errors.Is(err, common.ErrTerminal) {
			log.Warn("executor.run.preempted", "error", err)
			return nil
		}
		log.Error("executor.finalize.error", "error", err)
		return fmt.Errorf("finalize job: %w", err)
	}
	stream.emit(entity.EventFromJob(*job, job.Message))
	return nil
}

// ProgressFor is round(100*count/max) capped at 99; only completion reports 100.
func ProgressFor(count, max int) int {
	if max <= 0 || count <= 0 {
		return 0
	}
	pct := int(math.Round(100 * float64(count) / float64(max)))
	return min(pct, 99)
}

func failureReason(runCtx context.Context, err error) string {
	if errors.Is(err, ErrRunPanicked) {
		return reasonInternal
	}
	if cause := context.Cause(runCtx); cause != nil {
		if errors.Is(cause, ErrMaxRunExceeded) {
			return cause.Error()
		}
		if errors.Is(cause, context.Canceled) {
			return "scraping interrupted: executor shutting down"
		}
	}
	return extract.UserMessage(err)
}
