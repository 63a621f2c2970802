package repository

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/scrape-jobs/constants"
	"github.com/joseph-ayodele/scrape-jobs/internal/common"
	"github.com/joseph-ayodele/scrape-jobs/internal/entity"
)

// MemoryJobRepository keeps jobs in process memory. Each job has its own lock; the
// index lock is only held to find or register a job.
type MemoryJobRepository struct {
	mu    sync.RWMutex
	jobs  map[uuid.UUID]*memJob
	order []uuid.UUID
	log   *slog.Logger
}

type memJob struct {
	mu  sync.RWMutex
	job entity.Job
}

func NewMemoryJobRepository(log *slog.Logger) *MemoryJobRepository {
	if log == nil {
		log = slog.Default()
	}
	return &MemoryJobRepository{
		jobs: make(map[uuid.UUID]*memJob),
		log:  log,
	}
}

func (r *MemoryJobRepository) Create(_ context.Context, query string, maxResults int) (*entity.Job, error) {
	job := entity.Job{
		ID:         uuid.New(),
		Query:      query,
		MaxResults: maxResults,
		Status:     constants.JobStatusPending,
		Message:    constants.MessageQueued,
		CreatedAt:  now(),
		Items:      []entity.ResultItem{},
	}

	r.mu.Lock()
	r.jobs[job.ID] = &memJob{job: job}
	r.order = append(r.order, job.ID)
	r.mu.Unlock()

	r.log.Info("scrape_job created", "job_id", job.ID, "max_results", maxResults)
	out := job.Clone()
	return &out, nil
}

func (r *MemoryJobRepository) lookup(id uuid.UUID) (*memJob, error) {
	r.mu.RLock()
	mj, ok := r.jobs[id]
	r.mu.RUnlock()
	if !ok {
		return nil, common.NotFoundError("job", id.String())
	}
	return mj, nil
}

func (r *MemoryJobRepository) Get(_ context.Context, id uuid.UUID) (*entity.Job, error) {
	mj, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	mj.mu.RLock()
	out := mj.job.Clone()
	mj.mu.RUnlock()
	return &out, nil
}

func (r *MemoryJobRepository) List(_ context.Context, opts ListOptions) ([]*entity.Job, error) {
	r.mu.RLock()
	ids := make([]uuid.UUID, len(r.order))
	copy(ids, r.order)
	handles := make([]*memJob, len(ids))
	for i, id := range ids {
		handles[i] = r.jobs[id]
	}
	r.mu.RUnlock()

	out := make([]*entity.Job, 0, len(handles))
	for i := len(handles) - 1; i >= 0; i-- {
		mj := handles[i]
		mj.mu.RLock()
		if !opts.matches(mj.job.Status) {
			mj.mu.RUnlock()
			continue
		}
		var snap entity.Job
		if opts.IncludeItems {
			snap = mj.job.Clone()
		} else {
			snap = withoutItems(mj.job)
		}
		mj.mu.RUnlock()

		out = append(out, &snap)
		if opts.Limit > 0 && len(out) >= opts.Limit {
			break
		}
	}
	return out, nil
}

// mutate runs fn under the job's write lock and returns a snapshot without items.
func (r *MemoryJobRepository) mutate(id uuid.UUID, fn func(j *entity.Job) error) (*entity.Job, error) {
	mj, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	mj.mu.Lock()
	defer mj.mu.Unlock()
	if err := fn(&mj.job); err != nil {
		return nil, err
	}
	out := withoutItems(mj.job)
	return &out, nil
}

func (r *MemoryJobRepository) MarkRunning(_ context.Context, id uuid.UUID, message string) (*entity.Job, error) {
	return r.mutate(id, func(j *entity.Job) error {
		if err := checkTransition(id, j.Status, constants.JobStatusRunning); err != nil {
			return err
		}
		started := now()
		j.Status = constants.JobStatusRunning
		j.StartedAt = &started
		j.Message = message
		return nil
	})
}

func (r *MemoryJobRepository) AppendItem(_ context.Context, id uuid.UUID, item entity.ResultItem) (*entity.Job, error) {
	return r.mutate(id, func(j *entity.Job) error {
		if err := checkRunning(id, j.Status); err != nil {
			return err
		}
		it := item.Clone()
		it.ID = j.ResultsCount + 1
		it.JobID = id
		j.Items = append(j.Items, it)
		j.ResultsCount = len(j.Items)
		return nil
	})
}

func (r *MemoryJobRepository) UpdateProgress(_ context.Context, id uuid.UUID, progress int, message string) (*entity.Job, error) {
	return r.mutate(id, func(j *entity.Job) error {
		if err := checkActive(id, j.Status); err != nil {
			return err
		}
		j.Progress = nextProgress(j.Progress, progress)
		if message != "" {
			j.Message = message
		}
		return nil
	})
}

func (r *MemoryJobRepository) MarkCompleted(_ context.Context, id uuid.UUID, message, resultsFile string) (*entity.Job, error) {
	job, err := r.mutate(id, func(j *entity.Job) error {
		if err := checkTransition(id, j.Status, constants.JobStatusCompleted); err != nil {
			return err
		}
		done := now()
		j.Status = constants.JobStatusCompleted
		j.Progress = 100
		j.CompletedAt = &done
		j.Message = message
		j.ResultsFile = entity.StringPtr(resultsFile)
		return nil
	})
	if err == nil {
		r.log.Info("scrape_job completed", "job_id", id, "results_count", job.ResultsCount)
	}
	return job, err
}

func (r *MemoryJobRepository) MarkFailed(_ context.Context, id uuid.UUID, errorMessage string) (*entity.Job, error) {
	job, err := r.mutate(id, func(j *entity.Job) error {
		if err := checkTransition(id, j.Status, constants.JobStatusFailed); err != nil {
			return err
		}
		done := now()
		msg := errorText(errorMessage)
		j.Status = constants.JobStatusFailed
		j.CompletedAt = &done
		j.ErrorMessage = &msg
		j.Message = failureMessage(msg)
		return nil
	})
	if err == nil {
		r.log.Warn("scrape_job failed", "job_id", id, "error", errorMessage)
	}
	return job, err
}

func (r *MemoryJobRepository) Ping(context.Context) error { return nil }

func (r *MemoryJobRepository) Close() error { return nil }

func withoutItems(j entity.Job) entity.Job {
	j.Items = nil
	return j.Clone()
}
