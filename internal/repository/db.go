package repository

import (
	"context"
	stdsql "database/sql"
	"fmt"
	"log/slog"
	"time"

	"entgo.io/ent/dialect"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/joseph-ayodele/scrape-jobs/internal/common"
)

type Config struct {
	Driver           string
	DSN              string
	SQLitePath       string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ConfigFrom copies the store settings out of the application config.
func ConfigFrom(c common.DatabaseConfig) Config {
	return Config{
		Driver:           c.Driver,
		DSN:              c.DSN,
		SQLitePath:       c.SQLitePath,
		MaxConns:         c.MaxConns,
		MinConns:         c.MinConns,
		MaxConnLifetime:  c.MaxConnLifetime,
		MaxConnIdleTime:  c.MaxConnIdleTime,
		DialTimeout:      c.DialTimeout,
		StatementTimeout: c.StatementTimeout,
	}
}

// Open returns the job store selected by cfg.Driver, migrated and ready to use.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (JobRepository, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Driver {
	case "", common.DriverMemory:
		logger.Info("using in-memory job store")
		return NewMemoryJobRepository(logger), nil
	case common.DriverPostgres:
		return OpenPostgres(ctx, cfg, logger)
	case common.DriverSQLite:
		return OpenSQLite(ctx, cfg, logger)
	}
	return nil, common.NewAppError("CONFIG_ERROR", fmt.Sprintf("unknown store driver %q", cfg.Driver), common.ErrInvalidInput)
}

// OpenPostgres creates a pgx pool, wraps it as *sql.DB for ent's driver and migrates.
func OpenPostgres(ctx context.Context, cfg Config, logger *slog.Logger) (*SQLJobRepository, error) {
	logger.Info("connecting to database", "driver", "postgres")
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		logger.Error("failed to parse database url", "error", err)
		return nil, err
	}

	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pc.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	pc.ConnConfig.RuntimeParams["application_name"] = "scrape-jobs"
	if cfg.StatementTimeout > 0 {
		pc.ConnConfig.RuntimeParams["statement_timeout"] = fmt.Sprintf("%d", cfg.StatementTimeout.Milliseconds())
	}

	dialCtx := ctx
	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	pool, err := pgxpool.NewWithConfig(dialCtx, pc)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}

	// Wrap pool as *sql.DB for ent
	sqlDB := stdlib.OpenDBFromPool(pool)
	repo := NewSQLJobRepository(sqlDB, dialect.Postgres, logger, pool.Close)
	if err := repo.Migrate(ctx); err != nil {
		_ = repo.Close()
		return nil, err
	}

	logger.Info("successfully connected to database")
	return repo, nil
}

// OpenSQLite opens (creating if needed) a single-file database with one writer connection.
func OpenSQLite(ctx context.Context, cfg Config, logger *slog.Logger) (*SQLJobRepository, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)", cfg.SQLitePath)
	logger.Info("opening database", "driver", "sqlite", "path", cfg.SQLitePath)
	sqlDB, err := stdsql.Open("sqlite", dsn)
	if err != nil {
		logger.Error("failed to open sqlite database", "error", err)
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	repo := NewSQLJobRepository(sqlDB, dialect.SQLite, logger, nil)
	if err := repo.Migrate(ctx); err != nil {
		_ = repo.Close()
		return nil, err
	}
	return repo, nil
}

// HealthCheck pings the store to catch DSN issues early.
func HealthCheck(ctx context.Context, repo JobRepository, timeout time.Duration, logger *slog.Logger) error {
	logger.Debug("pinging job store")
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := repo.Ping(ctx); err != nil {
		logger.Error("job store ping failed", "error", err)
		return err
	}
	logger.Debug("job store ping successful")
	return nil
}
