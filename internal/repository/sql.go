package repository

import (
	"context"
	stdsql "database/sql"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/scrape-jobs/constants"
	"github.com/joseph-ayodele/scrape-jobs/db"
	"github.com/joseph-ayodele/scrape-jobs/internal/common"
	"github.com/joseph-ayodele/scrape-jobs/internal/entity"
)

const (
	jobsTable  = "scrape_jobs"
	itemsTable = "scrape_items"
)

var jobColumns = []string{
	"id", "query", "max_results", "status", "progress", "message", "created_at",
	"started_at", "completed_at", "error_message", "results_count", "results_file",
}

var itemColumns = []string{
	"job_id", "seq", "title", "description", "url", "price", "rating", "date", "additional_data",
}

// SQLJobRepository stores jobs in Postgres or SQLite. Statements are built with ent's
// dialect-aware builder and each mutation runs in its own transaction.
type SQLJobRepository struct {
	drv     *entsql.Driver
	dialect string
	log     *slog.Logger
	onClose func()
}

// NewSQLJobRepository wraps an open *sql.DB. onClose runs after the driver is closed.
func NewSQLJobRepository(sqlDB *stdsql.DB, dialectName string, log *slog.Logger, onClose func()) *SQLJobRepository {
	if log == nil {
		log = slog.Default()
	}
	return &SQLJobRepository{
		drv:     entsql.OpenDB(dialectName, sqlDB),
		dialect: dialectName,
		log:     log,
		onClose: onClose,
	}
}

func (r *SQLJobRepository) builder() *entsql.DialectBuilder {
	return entsql.Dialect(r.dialect)
}

// Migrate applies the embedded DDL for the repository's dialect.
func (r *SQLJobRepository) Migrate(ctx context.Context) error {
	name := "migrations/postgres.sql"
	if r.dialect == dialect.SQLite {
		name = "migrations/sqlite.sql"
	}
	ddl, err := fs.ReadFile(db.Migrations, name)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	for _, stmt := range strings.Split(string(ddl), ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if err := r.drv.Exec(ctx, stmt, []any{}, nil); err != nil {
			r.log.Error("migration failed", "dialect", r.dialect, "error", err)
			return common.DatabaseError("migrate", err)
		}
	}
	r.log.Info("migrations applied", "dialect", r.dialect)
	return nil
}

// timeArg renders times as fixed-width UTC text on SQLite so ORDER BY stays chronological.
func (r *SQLJobRepository) timeArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	if r.dialect == dialect.SQLite {
		return t.UTC().Format(sqliteTimeLayout)
	}
	return t.UTC()
}

func (r *SQLJobRepository) idArg(id uuid.UUID) any {
	if r.dialect == dialect.SQLite {
		return id.String()
	}
	return id
}

func (r *SQLJobRepository) withTx(ctx context.Context, fn func(tx dialect.Tx) error) error {
	tx, err := r.drv.Tx(ctx)
	if err != nil {
		return common.DatabaseError("begin tx", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			r.log.Warn("rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return common.DatabaseError("commit", err)
	}
	return nil
}

func (r *SQLJobRepository) Create(ctx context.Context, query string, maxResults int) (*entity.Job, error) {
	created := now()
	job := entity.Job{
		ID:         uuid.New(),
		Query:      query,
		MaxResults: maxResults,
		Status:     constants.JobStatusPending,
		Message:    constants.MessageQueued,
		CreatedAt:  created,
		Items:      []entity.ResultItem{},
	}

	q, args := r.builder().Insert(jobsTable).
		Columns("id", "query", "max_results", "status", "progress", "message", "created_at", "results_count").
		Values(r.idArg(job.ID), job.Query, job.MaxResults, string(job.Status), 0, job.Message, r.timeArg(&created), 0).
		Query()
	if err := r.drv.Exec(ctx, q, args, nil); err != nil {
		r.log.Error("scrape_job create failed", "error", err)
		return nil, common.DatabaseError("insert job", err)
	}
	r.log.Info("scrape_job created", "job_id", job.ID, "max_results", maxResults)
	return &job, nil
}

func (r *SQLJobRepository) Get(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	var job *entity.Job
	err := r.readTx(ctx, func(tx dialect.Tx) error {
		var err error
		if job, err = r.selectJob(ctx, tx, id, false); err != nil {
			return err
		}
		items, err := r.selectItems(ctx, tx, []uuid.UUID{id})
		if err != nil {
			return err
		}
		job.Items = items[id]
		return nil
	})
	if err != nil {
		return nil, err
	}
	if job.Items == nil {
		job.Items = []entity.ResultItem{}
	}
	return job, nil
}

func (r *SQLJobRepository) List(ctx context.Context, opts ListOptions) ([]*entity.Job, error) {
	b := r.builder()
	t := b.Table(jobsTable)
	sel := b.Select(jobColumns...).From(t).OrderBy(entsql.Desc("created_at"), entsql.Desc("id"))
	if len(opts.Statuses) > 0 {
		vals := make([]any, len(opts.Statuses))
		for i, s := range opts.Statuses {
			vals[i] = string(s)
		}
		sel.Where(entsql.In("status", vals...))
	}
	if opts.Limit > 0 {
		sel.Limit(opts.Limit)
	}

	var jobs []*entity.Job
	err := r.readTx(ctx, func(tx dialect.Tx) error {
		var err error
		if jobs, err = r.queryJobs(ctx, tx, sel); err != nil {
			return err
		}
		if !opts.IncludeItems || len(jobs) == 0 {
			return nil
		}
		ids := make([]uuid.UUID, len(jobs))
		for i, j := range jobs {
			ids[i] = j.ID
		}
		items, err := r.selectItems(ctx, tx, ids)
		if err != nil {
			return err
		}
		for _, j := range jobs {
			j.Items = items[j.ID]
			if j.Items == nil {
				j.Items = []entity.ResultItem{}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if jobs == nil {
		jobs = []*entity.Job{}
	}
	return jobs, nil
}

// readTx gives multi-statement reads one snapshot so a job's results_count always
// matches the items returned with it.
func (r *SQLJobRepository) readTx(ctx context.Context, fn func(tx dialect.Tx) error) error {
	var opts *entsql.TxOptions
	if r.dialect == dialect.Postgres {
		opts = &entsql.TxOptions{Isolation: stdsql.LevelRepeatableRead, ReadOnly: true}
	}
	tx, err := r.drv.BeginTx(ctx, opts)
	if err != nil {
		return common.DatabaseError("begin read tx", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return common.DatabaseError("commit read tx", err)
	}
	return nil
}

// queryJobs drains and closes the cursor before returning; SQLite runs on one connection.
func (r *SQLJobRepository) queryJobs(ctx context.Context, eq dialect.ExecQuerier, sel *entsql.Selector) ([]*entity.Job, error) {
	q, args := sel.Query()
	var rows entsql.Rows
	if err := eq.Query(ctx, q, args, &rows); err != nil {
		return nil, common.DatabaseError("list jobs", err)
	}
	defer rows.Close()

	var jobs []*entity.Job
	for rows.Next() {
		job, err := scanJob(&rows)
		if err != nil {
			return nil, common.DatabaseError("scan job", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, common.DatabaseError("list jobs", err)
	}
	return jobs, nil
}

func (r *SQLJobRepository) selectJob(ctx context.Context, eq dialect.ExecQuerier, id uuid.UUID, forUpdate bool) (*entity.Job, error) {
	b := r.builder()
	sel := b.Select(jobColumns...).From(b.Table(jobsTable)).Where(entsql.EQ("id", r.idArg(id)))
	if forUpdate && r.dialect == dialect.Postgres {
		sel.ForUpdate()
	}
	q, args := sel.Query()

	var rows entsql.Rows
	if err := eq.Query(ctx, q, args, &rows); err != nil {
		return nil, common.DatabaseError("get job", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, common.DatabaseError("get job", err)
		}
		return nil, common.NotFoundError("job", id.String())
	}
	job, err := scanJob(&rows)
	if err != nil {
		return nil, common.DatabaseError("scan job", err)
	}
	return job, nil
}

func (r *SQLJobRepository) selectItems(ctx context.Context, eq dialect.ExecQuerier, ids []uuid.UUID) (map[uuid.UUID][]entity.ResultItem, error) {
	vals := make([]any, len(ids))
	for i, id := range ids {
		vals[i] = r.idArg(id)
	}
	b := r.builder()
	q, args := b.Select(itemColumns...).
		From(b.Table(itemsTable)).
		Where(entsql.In("job_id", vals...)).
		OrderBy("job_id", "seq").
		Query()

	var rows entsql.Rows
	if err := eq.Query(ctx, q, args, &rows); err != nil {
		return nil, common.DatabaseError("list items", err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID][]entity.ResultItem, len(ids))
	for rows.Next() {
		it, err := scanItem(&rows)
		if err != nil {
			return nil, common.DatabaseError("scan item", err)
		}
		out[it.JobID] = append(out[it.JobID], it)
	}
	if err := rows.Err(); err != nil {
		return nil, common.DatabaseError("list items", err)
	}
	return out, nil
}

// mutate locks the row (FOR UPDATE on Postgres; SQLite serializes writers), lets fn
// decide the new column values and writes them back in the same transaction.
func (r *SQLJobRepository) mutate(ctx context.Context, id uuid.UUID, op string, fn func(tx dialect.Tx, j *entity.Job) (map[string]any, error)) (*entity.Job, error) {
	var out *entity.Job
	err := r.withTx(ctx, func(tx dialect.Tx) error {
		job, err := r.selectJob(ctx, tx, id, true)
		if err != nil {
			return err
		}
		set, err := fn(tx, job)
		if err != nil {
			return err
		}
		if len(set) > 0 {
			upd := r.builder().Update(jobsTable)
			for _, col := range jobColumns {
				if v, ok := set[col]; ok {
					upd.Set(col, v)
				}
			}
			q, args := upd.Where(entsql.EQ("id", r.idArg(id))).Query()
			if err := tx.Exec(ctx, q, args, nil); err != nil {
				return common.DatabaseError(op, err)
			}
		}
		out = job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *SQLJobRepository) MarkRunning(ctx context.Context, id uuid.UUID, message string) (*entity.Job, error) {
	return r.mutate(ctx, id, "mark running", func(_ dialect.Tx, j *entity.Job) (map[string]any, error) {
		if err := checkTransition(id, j.Status, constants.JobStatusRunning); err != nil {
			return nil, err
		}
		started := now()
		j.Status = constants.JobStatusRunning
		j.StartedAt = &started
		j.Message = message
		return map[string]any{
			"status":     string(j.Status),
			"started_at": r.timeArg(&started),
			"message":    message,
		}, nil
	})
}

func (r *SQLJobRepository) AppendItem(ctx context.Context, id uuid.UUID, item entity.ResultItem) (*entity.Job, error) {
	return r.mutate(ctx, id, "append item", func(tx dialect.Tx, j *entity.Job) (map[string]any, error) {
		if err := checkRunning(id, j.Status); err != nil {
			return nil, err
		}
		extra, err := json.Marshal(item.AdditionalData)
		if err != nil {
			return nil, fmt.Errorf("encode additional_data: %w", err)
		}
		seq := j.ResultsCount + 1
		q, args := r.builder().Insert(itemsTable).
			Columns(itemColumns...).
			Values(r.idArg(id), seq, nullable(item.Title), nullable(item.Description), nullable(item.URL),
				nullable(item.Price), nullable(item.Rating), nullable(item.Date), string(extra)).
			Query()
		if err := tx.Exec(ctx, q, args, nil); err != nil {
			return nil, common.DatabaseError("insert item", err)
		}
		j.ResultsCount = seq
		return map[string]any{"results_count": seq}, nil
	})
}

func (r *SQLJobRepository) UpdateProgress(ctx context.Context, id uuid.UUID, progress int, message string) (*entity.Job, error) {
	return r.mutate(ctx, id, "update progress", func(_ dialect.Tx, j *entity.Job) (map[string]any, error) {
		if err := checkActive(id, j.Status); err != nil {
			return nil, err
		}
		j.Progress = nextProgress(j.Progress, progress)
		set := map[string]any{"progress": j.Progress}
		if message != "" {
			j.Message = message
			set["message"] = message
		}
		return set, nil
	})
}

func (r *SQLJobRepository) MarkCompleted(ctx context.Context, id uuid.UUID, message, resultsFile string) (*entity.Job, error) {
	job, err := r.mutate(ctx, id, "mark completed", func(_ dialect.Tx, j *entity.Job) (map[string]any, error) {
		if err := checkTransition(id, j.Status, constants.JobStatusCompleted); err != nil {
			return nil, err
		}
		done := now()
		j.Status = constants.JobStatusCompleted
		j.Progress = 100
		j.CompletedAt = &done
		j.Message = message
		j.ResultsFile = entity.StringPtr(resultsFile)
		return map[string]any{
			"status":       string(j.Status),
			"progress":     100,
			"completed_at": r.timeArg(&done),
			"message":      message,
			"results_file": nullable(j.ResultsFile),
		}, nil
	})
	if err == nil {
		r.log.Info("scrape_job completed", "job_id", id, "results_count", job.ResultsCount)
	}
	return job, err
}

func (r *SQLJobRepository) MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) (*entity.Job, error) {
	job, err := r.mutate(ctx, id, "mark failed", func(_ dialect.Tx, j *entity.Job) (map[string]any, error) {
		if err := checkTransition(id, j.Status, constants.JobStatusFailed); err != nil {
			return nil, err
		}
		done := now()
		msg := errorText(errorMessage)
		j.Status = constants.JobStatusFailed
		j.CompletedAt = &done
		j.ErrorMessage = &msg
		j.Message = failureMessage(msg)
		return map[string]any{
			"status":        string(j.Status),
			"completed_at":  r.timeArg(&done),
			"error_message": msg,
			"message":       j.Message,
		}, nil
	})
	if err == nil {
		r.log.Warn("scrape_job failed", "job_id", id, "error", errorMessage)
	}
	return job, err
}

func (r *SQLJobRepository) Ping(ctx context.Context) error {
	return r.drv.DB().PingContext(ctx)
}

// Close closes the driver and then any pool that backs it.
func (r *SQLJobRepository) Close() error {
	err := r.drv.Close()
	if r.onClose != nil {
		r.onClose()
	}
	return err
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
