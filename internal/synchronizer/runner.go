package synchronizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/scrape-jobs/internal/client"
	"github.com/joseph-ayodele/scrape-jobs/internal/entity"
)

// Subscription is an open push channel for one job.
type Subscription interface {
	Events() <-chan entity.ProgressEvent
	Err() error
	Close()
}

// API is the gateway surface the runner needs.
type API interface {
	Submit(ctx context.Context, req client.SubmitRequest) (*entity.Job, error)
	Get(ctx context.Context, id uuid.UUID) (*entity.Job, error)
	Subscribe(ctx context.Context, id uuid.UUID) (Subscription, error)
}

type clientAPI struct{ c *client.Client }

// FromClient adapts the HTTP client to API.
func FromClient(c *client.Client) API { return clientAPI{c: c} }

func (a clientAPI) Submit(ctx context.Context, req client.SubmitRequest) (*entity.Job, error) {
	return a.c.Submit(ctx, req)
}

func (a clientAPI) Get(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	return a.c.Get(ctx, id)
}

func (a clientAPI) Subscribe(ctx context.Context, id uuid.UUID) (Subscription, error) {
	return a.c.Subscribe(ctx, id)
}

var (
	// ErrJobFailed is returned when the tracked job ends failed.
	ErrJobFailed = errors.New("job failed")
	// ErrSubmitRejected is returned when the gateway refused the submission.
	ErrSubmitRejected = errors.New("submission rejected")
)

// Runner drives a Machine against the gateway: it performs the machine's effects
// and feeds their results back as events.
type Runner struct {
	api            API
	reconcileAfter time.Duration
	logger         *slog.Logger
}

type RunnerOption func(*Runner)

// WithReconcileAfter sets how long to wait without a pushed event before asking the
// gateway for the job directly.
func WithReconcileAfter(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d > 0 {
			r.reconcileAfter = d
		}
	}
}

func NewRunner(api API, logger *slog.Logger, opts ...RunnerOption) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runner{api: api, reconcileAfter: 10 * time.Second, logger: logger}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Submit creates a job and follows it to a terminal state.
func (r *Runner) Submit(ctx context.Context, req client.SubmitRequest, updates chan<- Machine) (Machine, error) {
	return r.run(ctx, SubmitRequested{Query: req.Query, MaxResults: req.MaxResults}, updates)
}

// Track follows an existing job to a terminal state.
func (r *Runner) Track(ctx context.Context, id uuid.UUID, updates chan<- Machine) (Machine, error) {
	return r.run(ctx, TrackRequested{JobID: id}, updates)
}

// loop holds the per-run state the effects act upon.
type loop struct {
	*Runner
	m       Machine
	pending []Event
	sub     Subscription
	events  <-chan entity.ProgressEvent
	updates chan<- Machine
}

// run ends when the machine settles, a submission is rejected, or ctx ends.
// Every state change is sent on updates when it is non-nil.
func (r *Runner) run(ctx context.Context, start Event, updates chan<- Machine) (Machine, error) {
	l := &loop{Runner: r, updates: updates}
	defer l.closeSubscription()

	timer := time.NewTimer(r.reconcileAfter)
	defer timer.Stop()

	l.pending = append(l.pending, start)
	for {
		if err := l.drain(ctx); err != nil {
			return l.m, err
		}
		switch {
		case l.m.State == Completed:
			return l.m, nil
		case l.m.State == Failed:
			return l.m, ErrJobFailed
		case l.m.State == Idle:
			return l.m, fmt.Errorf("%w: %s", ErrSubmitRejected, l.m.Error)
		}

		select {
		case <-ctx.Done():
			l.pending = append(l.pending, Discarded{})
			_ = l.drain(context.WithoutCancel(ctx))
			return l.m, ctx.Err()
		case evt, ok := <-l.events:
			if !ok {
				reason := "stream closed"
				if err := l.sub.Err(); err != nil {
					reason = err.Error()
				}
				l.sub, l.events = nil, nil
				l.pending = append(l.pending, SubscriptionLost{Message: reason})
				continue
			}
			l.pending = append(l.pending, ProgressReceived{Event: evt})
			resetTimer(timer, r.reconcileAfter)
		case <-timer.C:
			l.pending = append(l.pending, ReconcileDue{})
			timer.Reset(r.reconcileAfter)
		}
	}
}

// drain applies queued events and performs the resulting effects.
func (l *loop) drain(ctx context.Context) error {
	for len(l.pending) > 0 {
		evt := l.pending[0]
		l.pending = l.pending[1:]

		prev := l.m
		var effects []Effect
		l.m, effects = l.m.Apply(evt)
		if l.m != prev {
			if err := l.publish(ctx); err != nil {
				return err
			}
		}
		for _, eff := range effects {
			l.perform(ctx, eff)
		}
	}
	return nil
}

func (l *loop) publish(ctx context.Context) error {
	if l.updates == nil {
		return nil
	}
	select {
	case l.updates <- l.m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *loop) perform(ctx context.Context, eff Effect) {
	switch e := eff.(type) {
	case DoSubmit:
		job, err := l.api.Submit(ctx, client.SubmitRequest{Query: e.Query, MaxResults: e.MaxResults})
		if err != nil {
			l.pending = append(l.pending, SubmitFailed{Message: errorMessage(err)})
			return
		}
		l.pending = append(l.pending, SubmitSucceeded{Job: *job})

	case OpenSubscription:
		l.closeSubscription()
		sub, err := l.api.Subscribe(ctx, e.JobID)
		if err != nil {
			l.logger.Debug("subscribe failed", "job_id", e.JobID, "error", err)
			l.pending = append(l.pending, SubscriptionLost{Message: errorMessage(err)})
			return
		}
		l.sub, l.events = sub, sub.Events()

	case CloseSubscription:
		l.closeSubscription()

	case FetchJob:
		job, err := l.api.Get(ctx, e.JobID)
		if err != nil {
			l.pending = append(l.pending, FetchFailed{Message: errorMessage(err), NotFound: client.IsNotFound(err)})
			return
		}
		l.pending = append(l.pending, Reconciled{Job: *job})

	case NavigateToDetail:
		if l.m.Detail != nil {
			return
		}
		job, err := l.api.Get(ctx, e.JobID)
		if err != nil {
			l.logger.Warn("failed to load job detail", "job_id", e.JobID, "error", err)
			return
		}
		l.pending = append(l.pending, DetailLoaded{Job: *job})

	case ShowError:
		l.logger.Debug("job error", "job_id", l.m.JobID, "message", e.Message)
	}
}

func (l *loop) closeSubscription() {
	if l.sub != nil {
		l.sub.Close()
	}
	l.sub, l.events = nil, nil
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}

func errorMessage(err error) string {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}
