package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/scrape-jobs/constants"
	"github.com/joseph-ayodele/scrape-jobs/internal/common"
	"github.com/joseph-ayodele/scrape-jobs/internal/entity"
)

// JobRepository is the single source of truth for job state. Every mutation is atomic
// per job id. Mutating a terminal job returns an error wrapping common.ErrTerminal and
// leaves the row untouched.
type JobRepository interface {
	Create(ctx context.Context, query string, maxResults int) (*entity.Job, error)
	// Get returns the job with its items in append order.
	Get(ctx context.Context, id uuid.UUID) (*entity.Job, error)
	// List returns jobs newest first.
	List(ctx context.Context, opts ListOptions) ([]*entity.Job, error)

	MarkRunning(ctx context.Context, id uuid.UUID, message string) (*entity.Job, error)
	// AppendItem attaches item and bumps results_count in the same step.
	AppendItem(ctx context.Context, id uuid.UUID, item entity.ResultItem) (*entity.Job, error)
	// UpdateProgress never lowers progress and never reaches 100 before completion.
	UpdateProgress(ctx context.Context, id uuid.UUID, progress int, message string) (*entity.Job, error)
	MarkCompleted(ctx context.Context, id uuid.UUID, message, resultsFile string) (*entity.Job, error)
	MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) (*entity.Job, error)

	Ping(ctx context.Context) error
	Close() error
}

// ListOptions narrows List.
type ListOptions struct {
	Statuses     []constants.JobStatus
	IncludeItems bool
	Limit        int
}

func (o ListOptions) matches(s constants.JobStatus) bool {
	if len(o.Statuses) == 0 {
		return true
	}
	for _, want := range o.Statuses {
		if want == s {
			return true
		}
	}
	return false
}

// maxRunningProgress is the ceiling while a job has not completed.
const maxRunningProgress = 99

func now() time.Time {
	// microsecond precision matches TIMESTAMPTZ so values round-trip exactly
	return time.Now().UTC().Truncate(time.Microsecond)
}

func checkTransition(id uuid.UUID, from, to constants.JobStatus) error {
	if from.IsTerminal() {
		return fmt.Errorf("job %s is %s: %w", id, from, common.ErrTerminal)
	}
	if !constants.CanTransition(from, to) {
		return common.NewAppError(common.CodeValidation,
			fmt.Sprintf("job %s cannot move from %s to %s", id, from, to), common.ErrInvalidInput)
	}
	return nil
}

func checkRunning(id uuid.UUID, status constants.JobStatus) error {
	if status.IsTerminal() {
		return fmt.Errorf("job %s is %s: %w", id, status, common.ErrTerminal)
	}
	if status != constants.JobStatusRunning {
		return common.NewAppError(common.CodeValidation,
			fmt.Sprintf("job %s is %s, not running", id, status), common.ErrInvalidInput)
	}
	return nil
}

func checkActive(id uuid.UUID, status constants.JobStatus) error {
	if status.IsTerminal() {
		return fmt.Errorf("job %s is %s: %w", id, status, common.ErrTerminal)
	}
	return nil
}

// nextProgress clamps to [current, 99].
func nextProgress(current, requested int) int {
	if requested > maxRunningProgress {
		requested = maxRunningProgress
	}
	if requested < current {
		return current
	}
	return requested
}

func failureMessage(errorMessage string) string {
	return "Error: " + errorMessage
}

func errorText(s string) string {
	if strings.TrimSpace(s) == "" {
		return "unknown error"
	}
	return s
}
