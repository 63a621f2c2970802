package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/scrape-jobs/constants"
)

// Job represents a scrape job for data transfer between layers.
type Job struct {
	ID           uuid.UUID           `json:"id"`
	Query        string              `json:"query"`
	MaxResults   int                 `json:"max_results"`
	Status       constants.JobStatus `json:"status"`
	Progress     int                 `json:"progress"`
	Message      string              `json:"message,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	StartedAt    *time.Time          `json:"started_at,omitempty"`
	CompletedAt  *time.Time          `json:"completed_at"`
	ErrorMessage *string             `json:"error_message"`
	ResultsCount int                 `json:"results_count"`
	ResultsFile  *string             `json:"results_file"`
	Items        []ResultItem        `json:"scraped_items"`
}

// JobSummary is the list-view projection of a Job; items are omitted unless requested.
type JobSummary struct {
	Job
	Items []ResultItem `json:"scraped_items,omitempty"`
}

// Summary drops the attached items.
func (j Job) Summary() JobSummary {
	j.Items = nil
	return JobSummary{Job: j}
}

// WithItems keeps the attached items in the list view.
func (j Job) WithItems() JobSummary {
	return JobSummary{Job: j, Items: j.Items}
}

// Terminal reports whether the job reached completed or failed.
func (j Job) Terminal() bool {
	return j.Status.IsTerminal()
}

// Clone returns a deep copy so callers never share mutable state with a store.
func (j Job) Clone() Job {
	out := j
	out.StartedAt = cloneTime(j.StartedAt)
	out.CompletedAt = cloneTime(j.CompletedAt)
	out.ErrorMessage = cloneString(j.ErrorMessage)
	out.ResultsFile = cloneString(j.ResultsFile)
	if j.Items != nil {
		out.Items = make([]ResultItem, len(j.Items))
		for i, it := range j.Items {
			out.Items[i] = it.Clone()
		}
	}
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
