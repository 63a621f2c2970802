package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/scrape-jobs/constants"
	"github.com/joseph-ayodele/scrape-jobs/internal/common"
	"github.com/joseph-ayodele/scrape-jobs/internal/entity"
)

func sampleJob(n int) *entity.Job {
	job := &entity.Job{
		ID:         uuid.MustParse("3f1c2e44-7a8b-4d0e-9f11-2b3c4d5e6f70"),
		Query:      "iPhone 15 prices",
		MaxResults: 15,
		Status:     constants.JobStatusRunning,
		CreatedAt:  time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	for i := 0; i < n; i++ {
		it := entity.ResultItem{
			ID:    i + 1,
			Title: entity.StringPtr("Item, with comma"),
			URL:   entity.StringPtr("https://example.com"),
		}
		if i == 0 {
			it.AdditionalData = entity.NewAdditionalData(
				entity.Field{Key: "color", Value: entity.StringValue("Blue")},
				entity.Field{Key: "title", Value: entity.StringValue("dup")},
			)
		} else {
			it.AdditionalData = entity.NewAdditionalData(
				entity.Field{Key: "stock", Value: entity.NumberValue(12)},
				entity.Field{Key: "color", Value: entity.StringValue("Red")},
			)
		}
		job.Items = append(job.Items, it)
	}
	job.ResultsCount = n
	return job
}

func TestBuildTable(t *testing.T) {
	table := BuildTable(sampleJob(2).Items)
	assert.Equal(t,
		[]string{"Title", "Description", "URL", "Price", "Rating", "Date", "color", "additional_title", "stock"},
		table.Headers)
	require.Len(t, table.Rows, 2)
	assert.False(t, table.Rows[0][1].IsValid(), "absent description stays empty")
	assert.Equal(t, "dup", table.Rows[0][7].String())
	assert.Equal(t, "Red", table.Rows[1][6].String())
	assert.Equal(t, "12", table.Rows[1][8].String())
}

func TestCSVExport(t *testing.T) {
	svc := NewService(nil)
	for _, n := range []int{0, 1, 3} {
		out, err := svc.Export(context.Background(), sampleJob(n), constants.ExportCSV)
		require.NoError(t, err)

		records, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
		require.NoError(t, err)
		require.Len(t, records, n+1, "header plus one row per item")
		assert.Equal(t, "Title", records[0][0])
		if n > 0 {
			assert.Equal(t, "Item, with comma", records[1][0])
			assert.Equal(t, "", records[1][1])
		}
	}
}

func TestXLSXExport(t *testing.T) {
	svc := NewService(nil)
	job := sampleJob(3)
	msg := "producer exploded"
	job.Status = constants.JobStatusFailed
	job.ErrorMessage = &msg

	out, err := svc.Export(context.Background(), job, constants.ExportExcel)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Scraped Data", "Job Info"}, f.GetSheetList())

	rows, err := f.GetRows("Scraped Data")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "Item, with comma", rows[1][0])
	stock, err := f.GetCellValue("Scraped Data", "I3")
	require.NoError(t, err)
	assert.Equal(t, "12", stock)

	info, err := f.GetRows("Job Info")
	require.NoError(t, err)
	require.Len(t, info, 2)
	assert.Equal(t, "Job ID", info[0][0])
	assert.Equal(t, job.ID.String(), info[1][0])
	assert.Equal(t, "failed", info[1][2])
	assert.Equal(t, "producer exploded", info[1][7])
}

func TestXLSXExportEmpty(t *testing.T) {
	out, err := NewService(nil).XLSX(sampleJob(0))
	require.NoError(t, err)
	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Scraped Data")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestExportUnknownFormat(t *testing.T) {
	_, err := NewService(nil).Export(context.Background(), sampleJob(1), constants.ExportFormat("pdf"))
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestFilename(t *testing.T) {
	id := uuid.MustParse("3f1c2e44-7a8b-4d0e-9f11-2b3c4d5e6f70")
	tests := []struct {
		query  string
		format constants.ExportFormat
		want   string
	}{
		{"best laptops under $1000", constants.ExportCSV, "scraping_job_" + id.String() + "_best_laptops_under_1000.csv"},
		{"iPhone 15", constants.ExportExcel, "scraping_job_" + id.String() + "_iPhone_15.xlsx"},
		{"../../etc/passwd", constants.ExportCSV, "scraping_job_" + id.String() + "_etc_passwd.csv"},
		{"???", constants.ExportCSV, "scraping_job_" + id.String() + ".csv"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, Filename(id, tt.query, tt.format))
		})
	}

	long := Filename(id, string(bytes.Repeat([]byte("a"), 200)), constants.ExportCSV)
	assert.Len(t, long, len("scraping_job_")+36+1+maxQuerySlug+len(".csv"))
}
