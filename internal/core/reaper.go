package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/joseph-ayodele/scrape-jobs/constants"
	"github.com/joseph-ayodele/scrape-jobs/internal/async"
	"github.com/joseph-ayodele/scrape-jobs/internal/common"
	"github.com/joseph-ayodele/scrape-jobs/internal/entity"
	"github.com/joseph-ayodele/scrape-jobs/internal/repository"
)

const (
	reasonRestart    = "scraping interrupted by server restart"
	reasonNotStarted = "job was not started within %s"
)

// ReaperConfig controls how long jobs may sit in each non-terminal state.
type ReaperConfig struct {
	Schedule   string
	MaxRun     time.Duration
	Grace      time.Duration
	PendingTTL time.Duration
}

// Reaper fails jobs whose worker is gone: running past their budget, or pending
// forever. It also re-schedules work left over from a previous process.
type Reaper struct {
	config ReaperConfig
	jobs   repository.JobRepository
	events *emitter
	cron   *cron.Cron
	logger *slog.Logger
	now    func() time.Time
}

// NewReaper shares the processor's event stream so a reaped job announces its
// terminal state at most once.
func NewReaper(config ReaperConfig, p *Processor, logger *slog.Logger) *Reaper {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Schedule == "" {
		config.Schedule = "@every 1m"
	}
	return &Reaper{
		config: config,
		jobs:   p.jobs,
		events: p.events,
		cron:   cron.New(),
		logger: logger,
		now:    time.Now,
	}
}

// Start schedules periodic sweeps.
func (r *Reaper) Start() error {
	_, err := r.cron.AddFunc(r.config.Schedule, func() {
		if _, err := r.Run(context.Background()); err != nil {
			r.logger.Error("reaper.sweep.error", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("register reaper schedule: %w", err)
	}
	r.cron.Start()
	r.logger.Info("reaper.start", "schedule", r.config.Schedule)
	return nil
}

// Stop halts the schedule and waits for a sweep in progress.
func (r *Reaper) Stop() {
	<-r.cron.Stop().Done()
	r.logger.Info("reaper.stop")
}

// Run performs one sweep and returns how many jobs it failed.
func (r *Reaper) Run(ctx context.Context) (int, error) {
	now := r.now()
	reaped := 0

	if r.config.MaxRun > 0 {
		running, err := r.jobs.List(ctx, repository.ListOptions{Statuses: []constants.JobStatus{constants.JobStatusRunning}})
		if err != nil {
			return reaped, fmt.Errorf("list running jobs: %w", err)
		}
		limit := r.config.MaxRun + r.config.Grace
		reason := fmt.Sprintf("%s (%s)", ErrMaxRunExceeded, r.config.MaxRun)
		for _, j := range running {
			if j.StartedAt == nil || now.Sub(*j.StartedAt) <= limit {
				continue
			}
			if r.fail(ctx, j.ID, reason) {
				reaped++
			}
		}
	}

	if r.config.PendingTTL > 0 {
		pending, err := r.jobs.List(ctx, repository.ListOptions{Statuses: []constants.JobStatus{constants.JobStatusPending}})
		if err != nil {
			return reaped, fmt.Errorf("list pending jobs: %w", err)
		}
		reason := fmt.Sprintf(reasonNotStarted, r.config.PendingTTL)
		for _, j := range pending {
			if now.Sub(j.CreatedAt) <= r.config.PendingTTL {
				continue
			}
			if r.fail(ctx, j.ID, reason) {
				reaped++
			}
		}
	}

	if reaped > 0 {
		r.logger.Warn("reaper.sweep.ok", "reaped", reaped)
	} else {
		r.logger.Debug("reaper.sweep.ok", "reaped", 0)
	}
	return reaped, nil
}

// Recover runs at startup against a persistent store: running jobs lost their worker
// with the previous process and are failed; pending jobs are queued again.
func (r *Reaper) Recover(ctx context.Context, q async.Queue) (failed, requeued int, err error) {
	running, err := r.jobs.List(ctx, repository.ListOptions{Statuses: []constants.JobStatus{constants.JobStatusRunning}})
	if err != nil {
		return 0, 0, fmt.Errorf("list running jobs: %w", err)
	}
	for _, j := range running {
		if r.fail(ctx, j.ID, reasonRestart) {
			failed++
		}
	}

	pending, err := r.jobs.List(ctx, repository.ListOptions{Statuses: []constants.JobStatus{constants.JobStatusPending}})
	if err != nil {
		return failed, 0, fmt.Errorf("list pending jobs: %w", err)
	}
	// oldest first so the original submission order is kept
	for i := len(pending) - 1; i >= 0; i-- {
		j := pending[i]
		qerr := q.Enqueue(ctx, async.Job{JobID: j.ID, SubmittedAt: j.CreatedAt, TraceID: common.NewRequestID()})
		if qerr != nil {
			r.logger.Warn("reaper.recover.enqueue_failed", "job_id", j.ID, "error", qerr)
			if r.fail(ctx, j.ID, async.UnscheduledReason(qerr)) {
				failed++
			}
			continue
		}
		requeued++
	}
	r.logger.Info("reaper.recover.ok", "failed", failed, "requeued", requeued)
	return failed, requeued, nil
}

// fail marks the job failed and publishes the terminal event if this call won.
func (r *Reaper) fail(ctx context.Context, id uuid.UUID, reason string) bool {
	job, err := r.jobs.MarkFailed(ctx, id, reason)
	if err != nil {
		if !errors.Is(err, common.ErrTerminal) {
			r.logger.Error("reaper.fail.error", "job_id", id, "error", err)
		}
		return false
	}
	r.logger.Warn("reaper.fail.ok", "job_id", id, "reason", reason)
	r.events.terminal(entity.EventFromJob(*job, job.Message))
	return true
}
