package repository

import (
	stdsql "database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/scrape-jobs/constants"
	"github.com/joseph-ayodele/scrape-jobs/internal/entity"
)

const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

var timeLayouts = []string{
	sqliteTimeLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05",
}

type rowScanner interface {
	Scan(dest ...any) error
}

// flexTime accepts the time representations produced by pgx (time.Time) and
// modernc sqlite (text).
type flexTime struct {
	Time  time.Time
	Valid bool
}

func (t *flexTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		t.Time, t.Valid = time.Time{}, false
		return nil
	case time.Time:
		t.Time, t.Valid = v.UTC(), true
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	}
	return fmt.Errorf("unsupported time value %T", src)
}

func (t *flexTime) parse(s string) error {
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time, t.Valid = parsed.UTC(), true
			return nil
		}
	}
	return fmt.Errorf("unparseable time %q", s)
}

func (t flexTime) ptr() *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func scanJob(rows rowScanner) (*entity.Job, error) {
	var (
		j                                 entity.Job
		status                            string
		message, errMsg, resultsFile      stdsql.NullString
		createdAt, startedAt, completedAt flexTime
	)
	if err := rows.Scan(
		&j.ID, &j.Query, &j.MaxResults, &status, &j.Progress, &message, &createdAt,
		&startedAt, &completedAt, &errMsg, &j.ResultsCount, &resultsFile,
	); err != nil {
		return nil, err
	}
	j.Status = constants.JobStatus(status)
	j.Message = message.String
	j.CreatedAt = createdAt.Time
	j.StartedAt = startedAt.ptr()
	j.CompletedAt = completedAt.ptr()
	j.ErrorMessage = nullString(errMsg)
	j.ResultsFile = nullString(resultsFile)
	return &j, nil
}

func scanItem(rows rowScanner) (entity.ResultItem, error) {
	var (
		it                                           entity.ResultItem
		jobID                                        uuid.UUID
		title, desc, url, price, rating, date, extra stdsql.NullString
	)
	if err := rows.Scan(&jobID, &it.ID, &title, &desc, &url, &price, &rating, &date, &extra); err != nil {
		return it, err
	}
	it.JobID = jobID
	it.Title = nullString(title)
	it.Description = nullString(desc)
	it.URL = nullString(url)
	it.Price = nullString(price)
	it.Rating = nullString(rating)
	it.Date = nullString(date)
	if extra.Valid && extra.String != "" {
		if err := json.Unmarshal([]byte(extra.String), &it.AdditionalData); err != nil {
			return it, fmt.Errorf("decode additional_data: %w", err)
		}
	}
	return it, nil
}

func nullString(ns stdsql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
