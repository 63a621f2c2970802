package jobs

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/scrape-jobs/constants"
	"github.com/joseph-ayodele/scrape-jobs/internal/async"
	"github.com/joseph-ayodele/scrape-jobs/internal/common"
	"github.com/joseph-ayodele/scrape-jobs/internal/core"
	"github.com/joseph-ayodele/scrape-jobs/internal/entity"
	"github.com/joseph-ayodele/scrape-jobs/internal/extract"
	"github.com/joseph-ayodele/scrape-jobs/internal/notify"
	"github.com/joseph-ayodele/scrape-jobs/internal/repository"
)

var rules = common.JobsConfig{MinResults: 5, MaxResults: 50, DefaultResults: 15, MaxQueryLength: 500}

type stubQueue struct {
	mu   sync.Mutex
	jobs []async.Job
	err  error
}

func (q *stubQueue) Enqueue(_ context.Context, job async.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *stubQueue) Shutdown(context.Context) {}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSubmitCreatesPendingJob(t *testing.T) {
	ctx := common.WithRequestID(context.Background(), "req-1")
	repo := repository.NewMemoryJobRepository(discard())
	q := &stubQueue{}
	svc := NewService(repo, q, rules, discard())

	job, err := svc.Submit(ctx, SubmitRequest{Query: "  best laptops under $1000 ", MaxResults: 15})
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusPending, job.Status)
	assert.Equal(t, 0, job.Progress)
	assert.Equal(t, "best laptops under $1000", job.Query)

	require.Len(t, q.jobs, 1)
	assert.Equal(t, job.ID, q.jobs[0].JobID)
	assert.Equal(t, "req-1", q.jobs[0].TraceID)

	got, err := svc.Get(ctx, job.ID.String())
	require.NoError(t, err)
	assert.Contains(t, []constants.JobStatus{constants.JobStatusPending, constants.JobStatusRunning}, got.Status)
}

func TestSubmitDefaultsMaxResults(t *testing.T) {
	svc := NewService(repository.NewMemoryJobRepository(discard()), &stubQueue{}, rules, discard())
	job, err := svc.Submit(context.Background(), SubmitRequest{Query: "iphone"})
	require.NoError(t, err)
	assert.Equal(t, 15, job.MaxResults)
}

func TestSubmitValidation(t *testing.T) {
	tests := []struct {
		name  string
		req   SubmitRequest
		field string
	}{
		{"empty query", SubmitRequest{Query: "", MaxResults: 10}, "query"},
		{"blank query", SubmitRequest{Query: "   ", MaxResults: 10}, "query"},
		{"query too long", SubmitRequest{Query: strings.Repeat("x", 501), MaxResults: 10}, "query"},
		{"below range", SubmitRequest{Query: "q", MaxResults: 4}, "max_results"},
		{"above range", SubmitRequest{Query: "q", MaxResults: 51}, "max_results"},
		{"negative", SubmitRequest{Query: "q", MaxResults: -5}, "max_results"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := repository.NewMemoryJobRepository(discard())
			q := &stubQueue{}
			svc := NewService(repo, q, rules, discard())

			_, err := svc.Submit(context.Background(), tt.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrValidation)
			assert.Equal(t, 400, common.HTTPStatus(err))

			var appErr *common.AppError
			require.ErrorAs(t, err, &appErr)
			require.Len(t, appErr.Fields, 1)
			assert.Equal(t, tt.field, appErr.Fields[0].Field)

			all, _ := svc.List(context.Background(), ListRequest{})
			assert.Empty(t, all, "no job is created")
			assert.Empty(t, q.jobs)
		})
	}
}

func TestSubmitQueueFullFailsJob(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryJobRepository(discard())
	hub := notify.NewHub()
	defer hub.Close()
	sub := hub.Subscribe()

	svc := NewService(repo, &stubQueue{err: common.ErrQueueFull}, rules, discard(), WithPublisher(hub))
	_, err := svc.Submit(ctx, SubmitRequest{Query: "q", MaxResults: 5})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrQueueFull)
	assert.Equal(t, 503, common.HTTPStatus(err))

	all, err := svc.List(ctx, ListRequest{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, constants.JobStatusFailed, all[0].Status)
	require.NotNil(t, all[0].ErrorMessage)
	assert.Equal(t, constants.ReasonQueueFull, *all[0].ErrorMessage)

	waitCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	evt, err := sub.Next(waitCtx)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusFailed, evt.Status)
}

func TestSubmitDuringShutdownRecordsReason(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryJobRepository(discard())
	svc := NewService(repo, &stubQueue{err: common.ErrQueueClosed}, rules, discard())

	_, err := svc.Submit(ctx, SubmitRequest{Query: "q", MaxResults: 5})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrQueueClosed)
	assert.Equal(t, 503, common.HTTPStatus(err))
	assert.Equal(t, "scraper is shutting down, try again later", common.PublicMessage(err))

	all, err := svc.List(ctx, ListRequest{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.NotNil(t, all[0].ErrorMessage)
	assert.Equal(t, constants.ReasonQueueClosed, *all[0].ErrorMessage)
}

func TestGetUnknownAndMalformed(t *testing.T) {
	svc := NewService(repository.NewMemoryJobRepository(discard()), &stubQueue{}, rules, discard())

	_, err := svc.Get(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, err = svc.Get(context.Background(), "5b0c1d8e-9f55-4a8e-9d52-0d4b9a7c2f11")
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.Equal(t, 404, common.HTTPStatus(err))
}

func TestListFilters(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryJobRepository(discard())
	svc := NewService(repo, &stubQueue{}, rules, discard())

	a, _ := svc.Submit(ctx, SubmitRequest{Query: "a", MaxResults: 5})
	b, _ := svc.Submit(ctx, SubmitRequest{Query: "b", MaxResults: 5})
	_, _ = repo.MarkRunning(ctx, a.ID, "")

	all, err := svc.List(ctx, ListRequest{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, b.ID, all[0].ID)

	running, err := svc.List(ctx, ListRequest{Status: "RUNNING"})
	require.NoError(t, err)
	require.Len(t, running, 1)
	assert.Equal(t, a.ID, running[0].ID)

	_, err = svc.List(ctx, ListRequest{Status: "stuck"})
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestExport(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryJobRepository(discard())
	svc := NewService(repo, &stubQueue{}, rules, discard())

	job, err := svc.Submit(ctx, SubmitRequest{Query: "iphone 15", MaxResults: 5})
	require.NoError(t, err)

	empty, err := svc.Export(ctx, job.ID.String(), "csv")
	require.NoError(t, err)
	rows, err := csv.NewReader(bytes.NewReader(empty.Data)).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 1, "header only")
	assert.Equal(t, "scraping_job_"+job.ID.String()+"_iphone_15.csv", empty.Filename)
	assert.Equal(t, constants.ExportCSV.ContentType(), empty.ContentType)

	_, _ = repo.MarkRunning(ctx, job.ID, "")
	for _, title := range []string{"one", "two", "three"} {
		_, err := repo.AppendItem(ctx, job.ID, entity.ResultItem{Title: entity.StringPtr(title)})
		require.NoError(t, err)
	}

	partial, err := svc.Export(ctx, job.ID.String(), "csv")
	require.NoError(t, err)
	rows, err = csv.NewReader(bytes.NewReader(partial.Data)).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 4, "partial results are exportable")

	xlsx, err := svc.Export(ctx, job.ID.String(), "excel")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(xlsx.Filename, ".xlsx"))
	assert.NotEmpty(t, xlsx.Data)

	_, err = svc.Export(ctx, job.ID.String(), "pdf")
	assert.ErrorIs(t, err, common.ErrInvalidInput)
	_, err = svc.Export(ctx, "5b0c1d8e-9f55-4a8e-9d52-0d4b9a7c2f11", "csv")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

// Submit through the real executor and wait for the terminal state.
func TestSubmitRunsToCompletion(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryJobRepository(discard())
	hub := notify.NewHub()
	defer hub.Close()

	proc := core.NewProcessor(discard(), repo, extract.NewSampleProducer(), hub)
	queue := async.NewProcessorQueue(proc, discard(), async.WithWorkers(2))
	defer queue.Shutdown(ctx)

	svc := NewService(repo, queue, rules, discard(), WithPublisher(hub))
	job, err := svc.Submit(ctx, SubmitRequest{Query: "iphone 15", MaxResults: 5})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, err := svc.Get(ctx, job.ID.String())
		return err == nil && got.Status.IsTerminal()
	}, 5*time.Second, 10*time.Millisecond)

	got, err := svc.Get(ctx, job.ID.String())
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusCompleted, got.Status)
	assert.Equal(t, 100, got.Progress)
	assert.Equal(t, got.ResultsCount, len(got.Items))
	assert.Equal(t, 5, got.ResultsCount)
}
