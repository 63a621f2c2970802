package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/scrape-jobs/internal/entity"
)

func TestMemoryJobRepository(t *testing.T) {
	runContract(t, func(t *testing.T) JobRepository {
		return NewMemoryJobRepository(nil)
	})
}

func TestMemoryJobRepositoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryJobRepository(nil)
	job, err := repo.Create(ctx, "q", 5)
	require.NoError(t, err)
	_, err = repo.MarkRunning(ctx, job.ID, "")
	require.NoError(t, err)
	_, err = repo.AppendItem(ctx, job.ID, entity.ResultItem{Title: entity.StringPtr("original")})
	require.NoError(t, err)

	got, err := repo.Get(ctx, job.ID)
	require.NoError(t, err)
	*got.Items[0].Title = "mutated"
	got.Items = append(got.Items, entity.ResultItem{})

	again, err := repo.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Len(t, again.Items, 1)
	assert.Equal(t, "original", *again.Items[0].Title)
}

func TestOpenDefaultsToMemory(t *testing.T) {
	repo, err := Open(context.Background(), Config{}, nil)
	require.NoError(t, err)
	assert.IsType(t, &MemoryJobRepository{}, repo)
	assert.NoError(t, HealthCheck(context.Background(), repo, 0, nopLogger()))
}
