package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/scrape-jobs/constants"
)

// ProgressEvent is an advisory snapshot pushed to subscribers. The job row stays authoritative.
type ProgressEvent struct {
	JobID     uuid.UUID           `json:"job_id"`
	Status    constants.JobStatus `json:"status"`
	Progress  int                 `json:"progress"`
	Message   string              `json:"message"`
	Timestamp time.Time           `json:"timestamp"`
}

// Terminal reports whether the event announces completed or failed.
func (e ProgressEvent) Terminal() bool {
	return e.Status.IsTerminal()
}

// EventFromJob snapshots a job into an event.
func EventFromJob(j Job, message string) ProgressEvent {
	return ProgressEvent{
		JobID:     j.ID,
		Status:    j.Status,
		Progress:  j.Progress,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
}
