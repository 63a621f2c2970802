package repository

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/scrape-jobs/constants"
	"github.com/joseph-ayodele/scrape-jobs/internal/common"
	"github.com/joseph-ayodele/scrape-jobs/internal/entity"
)

// runContract exercises the JobRepository guarantees against any backend.
func runContract(t *testing.T, newRepo func(t *testing.T) JobRepository) {
	ctx := context.Background()

	item := func(title string) entity.ResultItem {
		return entity.ResultItem{
			Title: entity.StringPtr(title),
			URL:   entity.StringPtr("https://example.com/" + title),
			AdditionalData: entity.NewAdditionalData(
				entity.Field{Key: "storage", Value: entity.StringValue("128GB")},
				entity.Field{Key: "color", Value: entity.StringValue("Blue")},
			),
		}
	}

	t.Run("create starts pending", func(t *testing.T) {
		repo := newRepo(t)
		job, err := repo.Create(ctx, "best laptops under $1000", 15)
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, job.ID)
		assert.Equal(t, constants.JobStatusPending, job.Status)
		assert.Equal(t, 0, job.Progress)
		assert.Nil(t, job.CompletedAt)
		assert.Nil(t, job.ErrorMessage)

		got, err := repo.Get(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, job.Query, got.Query)
		assert.Equal(t, 15, got.MaxResults)
		assert.True(t, job.CreatedAt.Equal(got.CreatedAt))
		assert.Empty(t, got.Items)
	})

	t.Run("get unknown is not found", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.Get(ctx, uuid.New())
		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("full lifecycle", func(t *testing.T) {
		repo := newRepo(t)
		job, err := repo.Create(ctx, "iphone 15", 5)
		require.NoError(t, err)

		_, err = repo.AppendItem(ctx, job.ID, item("early"))
		assert.ErrorIs(t, err, common.ErrInvalidInput, "append before running")

		running, err := repo.MarkRunning(ctx, job.ID, constants.MessageStarting)
		require.NoError(t, err)
		assert.Equal(t, constants.JobStatusRunning, running.Status)
		require.NotNil(t, running.StartedAt)

		for i, title := range []string{"a", "b", "c"} {
			snap, err := repo.AppendItem(ctx, job.ID, item(title))
			require.NoError(t, err)
			assert.Equal(t, i+1, snap.ResultsCount)
		}

		p, err := repo.UpdateProgress(ctx, job.ID, 60, "3 items")
		require.NoError(t, err)
		assert.Equal(t, 60, p.Progress)

		p, err = repo.UpdateProgress(ctx, job.ID, 20, "")
		require.NoError(t, err)
		assert.Equal(t, 60, p.Progress, "progress never decreases")
		assert.Equal(t, "3 items", p.Message)

		p, err = repo.UpdateProgress(ctx, job.ID, 100, "")
		require.NoError(t, err)
		assert.Equal(t, 99, p.Progress, "100 is reserved for completion")

		done, err := repo.MarkCompleted(ctx, job.ID, "Successfully extracted 3 items!", "scraping_job_x.csv")
		require.NoError(t, err)
		assert.Equal(t, constants.JobStatusCompleted, done.Status)
		assert.Equal(t, 100, done.Progress)
		require.NotNil(t, done.CompletedAt)
		require.NotNil(t, done.ResultsFile)

		got, err := repo.Get(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, got.ResultsCount)
		require.Len(t, got.Items, 3)
		assert.Equal(t, 1, got.Items[0].ID)
		assert.Equal(t, "a", *got.Items[0].Title)
		assert.Equal(t, "c", *got.Items[2].Title)
		assert.Nil(t, got.Items[0].Price)
		assert.Equal(t, []string{"storage", "color"}, got.Items[0].AdditionalData.Keys())
		assert.Nil(t, got.ErrorMessage)
	})

	t.Run("terminal state is never overwritten", func(t *testing.T) {
		repo := newRepo(t)
		job, err := repo.Create(ctx, "q", 5)
		require.NoError(t, err)
		_, err = repo.MarkRunning(ctx, job.ID, "")
		require.NoError(t, err)
		_, err = repo.MarkFailed(ctx, job.ID, "producer exploded")
		require.NoError(t, err)

		_, err = repo.MarkCompleted(ctx, job.ID, "", "")
		assert.ErrorIs(t, err, common.ErrTerminal)
		_, err = repo.MarkFailed(ctx, job.ID, "again")
		assert.ErrorIs(t, err, common.ErrTerminal)
		_, err = repo.AppendItem(ctx, job.ID, item("late"))
		assert.ErrorIs(t, err, common.ErrTerminal)
		_, err = repo.UpdateProgress(ctx, job.ID, 50, "")
		assert.ErrorIs(t, err, common.ErrTerminal)

		got, err := repo.Get(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, constants.JobStatusFailed, got.Status)
		require.NotNil(t, got.ErrorMessage)
		assert.Equal(t, "producer exploded", *got.ErrorMessage)
		assert.Equal(t, "Error: producer exploded", got.Message)
		assert.Equal(t, 0, got.ResultsCount)
	})

	t.Run("failure keeps partial items and progress", func(t *testing.T) {
		repo := newRepo(t)
		job, _ := repo.Create(ctx, "q", 10)
		_, _ = repo.MarkRunning(ctx, job.ID, "")
		for _, title := range []string{"a", "b", "c"} {
			_, err := repo.AppendItem(ctx, job.ID, item(title))
			require.NoError(t, err)
		}
		_, _ = repo.UpdateProgress(ctx, job.ID, 30, "")
		failed, err := repo.MarkFailed(ctx, job.ID, "boom")
		require.NoError(t, err)
		assert.Equal(t, 30, failed.Progress)

		got, err := repo.Get(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, got.ResultsCount)
		assert.Len(t, got.Items, 3)
	})

	t.Run("pending job can be failed but not completed", func(t *testing.T) {
		repo := newRepo(t)
		job, _ := repo.Create(ctx, "q", 5)
		_, err := repo.MarkCompleted(ctx, job.ID, "", "")
		assert.ErrorIs(t, err, common.ErrInvalidInput)
		_, err = repo.MarkFailed(ctx, job.ID, "queue full")
		assert.NoError(t, err)
	})

	t.Run("list newest first with filters", func(t *testing.T) {
		repo := newRepo(t)
		first, _ := repo.Create(ctx, "first", 5)
		second, _ := repo.Create(ctx, "second", 5)
		third, _ := repo.Create(ctx, "third", 5)
		_, _ = repo.MarkRunning(ctx, second.ID, "")
		_, _ = repo.AppendItem(ctx, second.ID, item("x"))

		all, err := repo.List(ctx, ListOptions{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, third.ID, all[0].ID)
		assert.Equal(t, first.ID, all[2].ID)
		for _, j := range all {
			assert.Empty(t, j.Items)
		}

		running, err := repo.List(ctx, ListOptions{Statuses: []constants.JobStatus{constants.JobStatusRunning}, IncludeItems: true})
		require.NoError(t, err)
		require.Len(t, running, 1)
		assert.Equal(t, second.ID, running[0].ID)
		assert.Len(t, running[0].Items, 1)

		limited, err := repo.List(ctx, ListOptions{Limit: 2})
		require.NoError(t, err)
		assert.Len(t, limited, 2)
	})

	t.Run("concurrent appends stay consistent", func(t *testing.T) {
		repo := newRepo(t)
		job, _ := repo.Create(ctx, "q", 50)
		_, _ = repo.MarkRunning(ctx, job.ID, "")

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := repo.AppendItem(ctx, job.ID, item("x"))
				assert.NoError(t, err)
			}()
		}
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				got, err := repo.Get(ctx, job.ID)
				if assert.NoError(t, err) {
					assert.Equal(t, got.ResultsCount, len(got.Items))
				}
			}()
		}
		wg.Wait()

		got, err := repo.Get(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, 20, got.ResultsCount)
		require.Len(t, got.Items, 20)
		for i, it := range got.Items {
			assert.Equal(t, i+1, it.ID)
		}
	})
}
