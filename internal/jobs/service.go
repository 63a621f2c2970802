package jobs

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/scrape-jobs/constants"
	"github.com/joseph-ayodele/scrape-jobs/internal/async"
	"github.com/joseph-ayodele/scrape-jobs/internal/common"
	"github.com/joseph-ayodele/scrape-jobs/internal/core"
	"github.com/joseph-ayodele/scrape-jobs/internal/entity"
	"github.com/joseph-ayodele/scrape-jobs/internal/export"
	"github.com/joseph-ayodele/scrape-jobs/internal/repository"
)

// Service handles job submission and retrieval.
type Service struct {
	jobRepo  repository.JobRepository
	queue    async.Queue
	exporter *export.Service
	events   core.Publisher
	rules    common.JobsConfig
	logger   *slog.Logger
}

type Option func(*Service)

// WithPublisher announces jobs that fail before reaching a worker.
func WithPublisher(p core.Publisher) Option {
	return func(s *Service) { s.events = p }
}

func WithExporter(e *export.Service) Option {
	return func(s *Service) { s.exporter = e }
}

// NewService creates a new job service.
func NewService(jobRepo repository.JobRepository, queue async.Queue, rules common.JobsConfig, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		jobRepo: jobRepo,
		queue:   queue,
		rules:   withDefaults(rules),
		logger:  logger,
	}
	for _, o := range opts {
		o(s)
	}
	if s.exporter == nil {
		s.exporter = export.NewService(logger)
	}
	return s
}

// SubmitRequest represents a new scrape request.
type SubmitRequest struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

// Submit validates the request, creates a pending job and hands it to the executor.
// It never waits for the run.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*entity.Job, error) {
	log := common.LoggerFrom(ctx, s.logger)
	query := strings.TrimSpace(req.Query)
	maxResults := req.MaxResults
	if maxResults == 0 {
		maxResults = s.rules.DefaultResults
	}

	v := common.NewValidator().
		Field("query", query, common.Required, common.MaxLength(s.rules.MaxQueryLength)).
		Field("max_results", maxResults, common.IntRange(s.rules.MinResults, s.rules.MaxResults))
	if err := common.ValidateAndReturnError(v); err != nil {
		log.Warn("submit rejected", "error", v.ErrorMessage())
		return nil, err
	}

	job, err := s.jobRepo.Create(ctx, query, maxResults)
	if err != nil {
		log.Error("failed to create job", "error", err)
		return nil, err
	}

	qerr := s.queue.Enqueue(ctx, async.Job{
		JobID:       job.ID,
		SubmittedAt: job.CreatedAt,
		TraceID:     common.RequestIDFromContext(ctx),
	})
	if qerr != nil {
		log.Warn("failed to enqueue job", "job_id", job.ID, "error", qerr)
		s.abandon(ctx, job.ID, async.UnscheduledReason(qerr))
		if errors.Is(qerr, common.ErrQueueClosed) {
			return nil, common.NewAppError(common.CodeUnavailable, "scraper is shutting down, try again later", qerr)
		}
		return nil, common.NewAppError(common.CodeUnavailable, "scraper is busy, try again later", qerr)
	}

	log.Info("job submitted", "job_id", job.ID, "max_results", maxResults)
	return job, nil
}

// abandon fails a job that no worker will ever pick up.
func (s *Service) abandon(ctx context.Context, id uuid.UUID, reason string) {
	failed, err := s.jobRepo.MarkFailed(context.WithoutCancel(ctx), id, reason)
	if err != nil {
		s.logger.Error("failed to fail unscheduled job", "job_id", id, "error", err)
		return
	}
	if s.events != nil {
		s.events.Publish(entity.EventFromJob(*failed, failed.Message))
	}
}

// Get returns the job with its items. Malformed ids are reported as not found.
func (s *Service) Get(ctx context.Context, id string) (*entity.Job, error) {
	jobID, err := parseJobID(id)
	if err != nil {
		return nil, err
	}
	job, err := s.jobRepo.Get(ctx, jobID)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			common.LoggerFrom(ctx, s.logger).Error("failed to get job", "job_id", jobID, "error", err)
		}
		return nil, err
	}
	return job, nil
}

// ListRequest represents job listing parameters.
type ListRequest struct {
	Status       string
	IncludeItems bool
	Limit        int
}

// List returns jobs newest first. Items are omitted unless requested.
func (s *Service) List(ctx context.Context, req ListRequest) ([]*entity.Job, error) {
	opts := repository.ListOptions{IncludeItems: req.IncludeItems, Limit: req.Limit}
	if st := strings.TrimSpace(req.Status); st != "" {
		status := constants.JobStatus(strings.ToLower(st))
		if !status.Valid() {
			v := common.NewValidator().Field("status", st, func(field string, value interface{}) *common.ValidationError {
				return &common.ValidationError{Field: field, Value: value, Message: "must be one of pending, running, completed, failed"}
			})
			return nil, common.ValidateAndReturnError(v)
		}
		opts.Statuses = []constants.JobStatus{status}
	}
	if opts.Limit < 0 {
		opts.Limit = 0
	}

	jobs, err := s.jobRepo.List(ctx, opts)
	if err != nil {
		common.LoggerFrom(ctx, s.logger).Error("failed to list jobs", "error", err)
		return nil, err
	}
	return jobs, nil
}

// ExportResult is a rendered export ready to be served as a download.
type ExportResult struct {
	Data        []byte
	Filename    string
	ContentType string
}

// Export renders the job's current items, partial results included.
func (s *Service) Export(ctx context.Context, id, format string) (*ExportResult, error) {
	f, ok := constants.ParseExportFormat(format)
	if !ok {
		return nil, common.NewAppError(common.CodeValidation, "format must be csv or excel", common.ErrInvalidInput)
	}
	job, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	data, err := s.exporter.Export(ctx, job, f)
	if err != nil {
		common.LoggerFrom(ctx, s.logger).Error("export failed", "job_id", job.ID, "format", f, "error", err)
		return nil, err
	}
	return &ExportResult{
		Data:        data,
		Filename:    export.Filename(job.ID, job.Query, f),
		ContentType: f.ContentType(),
	}, nil
}

func withDefaults(r common.JobsConfig) common.JobsConfig {
	if r.MinResults <= 0 {
		r.MinResults = 1
	}
	if r.MaxResults < r.MinResults {
		r.MaxResults = 50
	}
	if r.DefaultResults <= 0 {
		r.DefaultResults = 15
	}
	if r.MaxQueryLength <= 0 {
		r.MaxQueryLength = 500
	}
	return r
}

func parseJobID(id string) (uuid.UUID, error) {
	jobID, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return uuid.Nil, common.NotFoundError("job", id)
	}
	return jobID, nil
}
