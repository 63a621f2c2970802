package synchronizer

import (
	"github.com/google/uuid"

	"github.com/joseph-ayodele/scrape-jobs/constants"
	"github.com/joseph-ayodele/scrape-jobs/internal/entity"
)

// State is where the client is in following one job.
type State int

const (
	Idle State = iota
	Submitting
	AwaitingProgress
	Completed
	Failed
)

var stateNames = map[State]string{
	Idle:             "idle",
	Submitting:       "submitting",
	AwaitingProgress: "awaiting-progress",
	Completed:        "completed",
	Failed:           "failed",
}

func (s State) String() string { return stateNames[s] }

// Terminal reports whether the tracked job has settled.
func (s State) Terminal() bool { return s == Completed || s == Failed }

// Event drives the machine.
type Event interface{ event() }

// SubmitRequested starts a new job.
type SubmitRequested struct {
	Query      string
	MaxResults int
}

// TrackRequested follows a job that already exists.
type TrackRequested struct {
	JobID uuid.UUID
}

type SubmitSucceeded struct {
	Job entity.Job
}

type SubmitFailed struct {
	Message string
}

// ProgressReceived is a pushed event. Advisory only.
type ProgressReceived struct {
	Event entity.ProgressEvent
}

// SubscriptionLost means the push channel ended or could not be opened.
type SubscriptionLost struct {
	Message string
}

// ReconcileDue fires when no event arrived for a while.
type ReconcileDue struct{}

// Reconciled carries the store's view of the job. It wins over any event.
type Reconciled struct {
	Job entity.Job
}

// FetchFailed reports a failed Get. NotFound settles the job as failed.
type FetchFailed struct {
	Message  string
	NotFound bool
}

// DetailLoaded carries the job shown after completion.
type DetailLoaded struct {
	Job entity.Job
}

// Discarded means the observer went away.
type Discarded struct{}

func (SubmitRequested) event()  {}
func (TrackRequested) event()   {}
func (SubmitSucceeded) event()  {}
func (SubmitFailed) event()     {}
func (ProgressReceived) event() {}
func (SubscriptionLost) event() {}
func (ReconcileDue) event()     {}
func (Reconciled) event()       {}
func (FetchFailed) event()      {}
func (DetailLoaded) event()     {}
func (Discarded) event()        {}

// Effect is work the machine asks its driver to do.
type Effect interface{ effect() }

type DoSubmit struct {
	Query      string
	MaxResults int
}

type OpenSubscription struct {
	JobID uuid.UUID
}

type CloseSubscription struct{}

type NavigateToDetail struct {
	JobID uuid.UUID
}

type ShowError struct {
	Message string
}

type FetchJob struct {
	JobID uuid.UUID
}

func (DoSubmit) effect()          {}
func (OpenSubscription) effect()  {}
func (CloseSubscription) effect() {}
func (NavigateToDetail) effect()  {}
func (ShowError) effect()         {}
func (FetchJob) effect()          {}

// Machine is the client's local view of one job. It is a value; Apply returns the
// next value and never performs I/O.
type Machine struct {
	State      State
	JobID      uuid.UUID
	Status     constants.JobStatus
	Progress   int
	Message    string
	Error      string
	Subscribed bool
	Detail     *entity.Job
}

// Apply transitions on evt. Events that do not fit the current state are ignored.
func (m Machine) Apply(evt Event) (Machine, []Effect) {
	switch e := evt.(type) {
	case SubmitRequested:
		if m.State != Idle && !m.State.Terminal() {
			return m, nil
		}
		next := Machine{State: Submitting}
		return next, []Effect{DoSubmit{Query: e.Query, MaxResults: e.MaxResults}}

	case TrackRequested:
		if m.State != Idle && !m.State.Terminal() {
			return m, nil
		}
		next := Machine{State: AwaitingProgress, JobID: e.JobID, Subscribed: true}
		return next, []Effect{OpenSubscription{JobID: e.JobID}, FetchJob{JobID: e.JobID}}

	case SubmitFailed:
		if m.State != Submitting {
			return m, nil
		}
		return Machine{State: Idle, Error: e.Message}, []Effect{ShowError{Message: e.Message}}

	case SubmitSucceeded:
		if m.State != Submitting {
			return m, nil
		}
		m.State = AwaitingProgress
		m.JobID = e.Job.ID
		m.Subscribed = true
		m.observe(e.Job.Status, e.Job.Progress, e.Job.Message)
		if e.Job.Status.IsTerminal() {
			return m.settleFromJob(e.Job)
		}
		// a fast job may settle before the subscription is live
		return m, []Effect{OpenSubscription{JobID: e.Job.ID}, FetchJob{JobID: e.Job.ID}}

	case ProgressReceived:
		if m.State != AwaitingProgress || e.Event.JobID != m.JobID {
			return m, nil
		}
		m.observe(e.Event.Status, e.Event.Progress, e.Event.Message)
		switch e.Event.Status {
		case constants.JobStatusCompleted:
			return m.complete()
		case constants.JobStatusFailed:
			return m.fail(e.Event.Message)
		}
		return m, nil

	case SubscriptionLost:
		if m.State != AwaitingProgress {
			return m, nil
		}
		m.Subscribed = false
		return m, []Effect{FetchJob{JobID: m.JobID}}

	case ReconcileDue:
		if m.State != AwaitingProgress {
			return m, nil
		}
		effects := []Effect{FetchJob{JobID: m.JobID}}
		if !m.Subscribed {
			m.Subscribed = true
			effects = append(effects, OpenSubscription{JobID: m.JobID})
		}
		return m, effects

	case Reconciled:
		if m.State != AwaitingProgress || e.Job.ID != m.JobID {
			return m, nil
		}
		m.observe(e.Job.Status, e.Job.Progress, e.Job.Message)
		if e.Job.Status.IsTerminal() {
			return m.settleFromJob(e.Job)
		}
		return m, nil

	case FetchFailed:
		if m.State != AwaitingProgress {
			return m, nil
		}
		if e.NotFound {
			return m.fail(e.Message)
		}
		m.Error = e.Message
		return m, []Effect{ShowError{Message: e.Message}}

	case DetailLoaded:
		if m.State != Completed || e.Job.ID != m.JobID {
			return m, nil
		}
		job := e.Job
		m.Detail = &job
		return m, nil

	case Discarded:
		if m.State.Terminal() || !m.Subscribed {
			return m, nil
		}
		m.Subscribed = false
		return m, []Effect{CloseSubscription{}}
	}
	return m, nil
}

// observe folds a snapshot in; progress never goes backwards locally.
func (m *Machine) observe(status constants.JobStatus, progress int, message string) {
	if status != "" {
		m.Status = status
	}
	if progress > m.Progress {
		m.Progress = progress
	}
	if message != "" {
		m.Message = message
	}
}

func (m Machine) settleFromJob(job entity.Job) (Machine, []Effect) {
	if job.Status == constants.JobStatusCompleted {
		next, effects := m.complete()
		j := job
		next.Detail = &j
		return next, effects
	}
	msg := job.Message
	if job.ErrorMessage != nil {
		msg = *job.ErrorMessage
	}
	return m.fail(msg)
}

func (m Machine) complete() (Machine, []Effect) {
	m.State = Completed
	m.Status = constants.JobStatusCompleted
	m.Progress = 100
	m.Error = ""
	effects := m.closeIfOpen()
	return m, append(effects, NavigateToDetail{JobID: m.JobID})
}

func (m Machine) fail(message string) (Machine, []Effect) {
	m.State = Failed
	m.Status = constants.JobStatusFailed
	m.Error = message
	effects := m.closeIfOpen()
	return m, append(effects, ShowError{Message: message})
}

func (m *Machine) closeIfOpen() []Effect {
	if !m.Subscribed {
		return nil
	}
	m.Subscribed = false
	return []Effect{CloseSubscription{}}
}
