package constants

// JobStatus is the canonical status for rows in scrape_jobs.
type JobStatus string

// Stable values (store these exact strings in DB).
const (
	JobStatusPending   JobStatus = "pending"   // created, waiting for a worker
	JobStatusRunning   JobStatus = "running"   // producer in progress
	JobStatusCompleted JobStatus = "completed" // terminal success
	JobStatusFailed    JobStatus = "failed"    // terminal failure
)

var allowedTransitions = map[JobStatus]map[JobStatus]struct{}{
	JobStatusPending: {
		JobStatusRunning: {},
		JobStatusFailed:  {},
	},
	JobStatusRunning: {
		JobStatusCompleted: {},
		JobStatusFailed:    {},
	},
}

// CanTransition reports whether a job may move from one status to another.
func CanTransition(from, to JobStatus) bool {
	next, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	_, ok = next[to]
	return ok
}

// IsTerminal reports whether no further transitions are possible.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Valid reports whether s is one of the known statuses.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusRunning, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}

func (s JobStatus) String() string { return string(s) }

// Progress messages pushed to subscribers.
const (
	MessageQueued     = "Job queued"
	MessageStarting   = "Starting web scraping..."
	MessageExtracting = "Extracting data..."
)

// Failure reasons for jobs that never reached a worker.
const (
	ReasonQueueFull   = "executor queue is full, job could not be scheduled"
	ReasonQueueClosed = "executor is shutting down, job could not be scheduled"
)

// JobStatuses lists every status in lifecycle order.
func JobStatuses() []JobStatus {
	return []JobStatus{JobStatusPending, JobStatusRunning, JobStatusCompleted, JobStatusFailed}
}
