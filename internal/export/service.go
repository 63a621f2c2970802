package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/scrape-jobs/constants"
	"github.com/joseph-ayodele/scrape-jobs/internal/common"
	"github.com/joseph-ayodele/scrape-jobs/internal/entity"
)

const (
	dataSheet = "Scraped Data"
	infoSheet = "Job Info"
)

// Service renders a job snapshot into downloadable documents.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// Export serializes the job's current items. Zero items yields a header-only document.
func (s *Service) Export(ctx context.Context, job *entity.Job, format constants.ExportFormat) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch format {
	case constants.ExportCSV:
		return s.CSV(job)
	case constants.ExportExcel:
		return s.XLSX(job)
	}
	return nil, common.NewAppError(common.CodeValidation, fmt.Sprintf("unsupported export format %q", format), common.ErrInvalidInput)
}

// CSV writes a header row plus one row per item.
func (s *Service) CSV(job *entity.Job) ([]byte, error) {
	start := time.Now()
	table := BuildTable(job.Items)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(table.Headers); err != nil {
		return nil, fmt.Errorf("csv write: %w", err)
	}
	record := make([]string, len(table.Headers))
	for _, row := range table.Rows {
		for i, v := range row {
			record[i] = v.String()
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("csv write: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("csv flush: %w", err)
	}

	s.logger.Info("export.csv.ok",
		"job_id", job.ID.String(),
		"rows", len(table.Rows),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// XLSX returns a workbook with the items on "Scraped Data" and the job row on "Job Info".
func (s *Service) XLSX(job *entity.Job) ([]byte, error) {
	start := time.Now()
	table := BuildTable(job.Items)

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	// rename the default sheet instead of leaving an empty "Sheet1"
	if err := f.SetSheetName(f.GetSheetName(0), dataSheet); err != nil {
		return nil, fmt.Errorf("xlsx sheet: %w", err)
	}
	if _, err := f.NewSheet(infoSheet); err != nil {
		return nil, fmt.Errorf("xlsx sheet: %w", err)
	}
	dataIndex, _ := f.GetSheetIndex(dataSheet)
	f.SetActiveSheet(dataIndex)

	for i, h := range table.Headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(dataSheet, cell, h)
	}
	for r, row := range table.Rows {
		for c, v := range row {
			if !v.IsValid() {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			// numbers and booleans stay typed in the sheet
			_ = f.SetCellValue(dataSheet, cell, v.Interface())
		}
	}

	// Widen a few columns
	_ = f.SetColWidth(dataSheet, "A", "A", 40) // title
	_ = f.SetColWidth(dataSheet, "B", "B", 60) // description
	_ = f.SetColWidth(dataSheet, "C", "C", 40) // url
	_ = f.SetColWidth(dataSheet, "D", "F", 16) // price, rating, date

	if err := writeJobInfo(f, job); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"job_id", job.ID.String(),
		"rows", len(table.Rows),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

var jobInfoHeaders = []string{
	"Job ID", "Query", "Status", "Max Results", "Created At", "Completed At", "Results Count", "Error Message",
}

func writeJobInfo(f *excelize.File, job *entity.Job) error {
	values := []any{
		job.ID.String(),
		job.Query,
		string(job.Status),
		job.MaxResults,
		job.CreatedAt.UTC().Format(time.RFC3339),
		formatTime(job.CompletedAt),
		job.ResultsCount,
		deref(job.ErrorMessage),
	}
	for i, h := range jobInfoHeaders {
		head, _ := excelize.CoordinatesToCellName(i+1, 1)
		val, _ := excelize.CoordinatesToCellName(i+1, 2)
		if err := f.SetCellValue(infoSheet, head, h); err != nil {
			return fmt.Errorf("xlsx job info: %w", err)
		}
		if err := f.SetCellValue(infoSheet, val, values[i]); err != nil {
			return fmt.Errorf("xlsx job info: %w", err)
		}
	}
	_ = f.SetColWidth(infoSheet, "A", "A", 38)
	_ = f.SetColWidth(infoSheet, "B", "B", 40)
	_ = f.SetColWidth(infoSheet, "C", "H", 20)
	return nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
