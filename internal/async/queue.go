package async

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/scrape-jobs/constants"
	"github.com/joseph-ayodele/scrape-jobs/internal/common"
)

// Job is one unit of queued work: run the scrape job with this id.
type Job struct {
	JobID       uuid.UUID
	SubmittedAt time.Time
	TraceID     string
}

// Queue hands jobs to background workers. Enqueue never waits for a free worker.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}

// Runner executes one job to a terminal state.
type Runner interface {
	ProcessJob(ctx context.Context, jobID uuid.UUID) error
}

// UnscheduledReason is the failure message recorded for a job Enqueue refused.
func UnscheduledReason(err error) string {
	if errors.Is(err, common.ErrQueueClosed) {
		return constants.ReasonQueueClosed
	}
	return constants.ReasonQueueFull
}
