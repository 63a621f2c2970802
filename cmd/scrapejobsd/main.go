package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/scrape-jobs/internal/async"
	"github.com/joseph-ayodele/scrape-jobs/internal/common"
	"github.com/joseph-ayodele/scrape-jobs/internal/core"
	"github.com/joseph-ayodele/scrape-jobs/internal/export"
	"github.com/joseph-ayodele/scrape-jobs/internal/extract"
	"github.com/joseph-ayodele/scrape-jobs/internal/jobs"
	"github.com/joseph-ayodele/scrape-jobs/internal/notify"
	repo "github.com/joseph-ayodele/scrape-jobs/internal/repository"
	svc "github.com/joseph-ayodele/scrape-jobs/internal/server"
)

func main() {
	if err := common.LoadEnvFile(getenv("ENV_FILE", ".env")); err != nil {
		slog.Error("failed to load env file", "error", err)
		os.Exit(2)
	}
	cfg := common.LoadConfig()

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := repo.Open(ctx, repo.ConfigFrom(cfg.Database), logger)
	if err != nil {
		logger.Error("failed to open job store", "error", err, "driver", cfg.Database.Driver)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close job store", "error", err)
		}
	}()

	// Ping store to ensure connectivity
	if err := repo.HealthCheck(ctx, store, 5*time.Second, logger); err != nil {
		logger.Error("failed to ping job store", "error", err)
		os.Exit(1)
	}

	producer, err := extract.New(cfg.Producer, cfg.LLM, logger)
	if err != nil {
		logger.Error("failed to build producer", "error", err, "kind", cfg.Producer.Kind)
		os.Exit(1)
	}

	hub := notify.NewHub(notify.WithBuffer(cfg.Server.HubBuffer), notify.WithLogger(logger))

	processor := core.NewProcessor(logger, store, producer, hub,
		core.WithMaxRunDuration(cfg.Executor.MaxRunDuration),
	)
	queue := async.NewProcessorQueue(processor, logger,
		async.WithWorkers(cfg.Executor.Workers),
		async.WithQueueSize(cfg.Executor.QueueSize),
		async.WithProcessTimeout(cfg.Executor.MaxRunDuration+cfg.Executor.ReaperGrace),
	)

	reaper := core.NewReaper(core.ReaperConfig{
		Schedule:   cfg.Executor.ReaperSchedule,
		MaxRun:     cfg.Executor.MaxRunDuration,
		Grace:      cfg.Executor.ReaperGrace,
		PendingTTL: cfg.Executor.PendingTTL,
	}, processor, logger)

	// Jobs left behind by a previous process only exist in a persistent store.
	if cfg.Database.Driver != common.DriverMemory {
		if _, _, err := reaper.Recover(ctx, queue); err != nil {
			logger.Error("failed to recover unfinished jobs", "error", err)
			os.Exit(1)
		}
	}
	if err := reaper.Start(); err != nil {
		logger.Error("failed to start reaper", "error", err, "schedule", cfg.Executor.ReaperSchedule)
		os.Exit(1)
	}

	jobsService := jobs.NewService(store, queue, cfg.Jobs, logger,
		jobs.WithPublisher(hub),
		jobs.WithExporter(export.NewService(logger)),
	)

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := svc.NewRouter(svc.Deps{
		Jobs:          jobsService,
		Hub:           hub,
		Store:         store,
		Queue:         queue,
		PingInterval:  cfg.Server.PingInterval,
		HealthTimeout: 2 * time.Second,
		Logger:        logger,
	})
	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// gRPC health server
	healthService := svc.NewHealthService(logger)
	if cfg.Server.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
			os.Exit(1)
		}
		go func() {
			if err := healthService.Serve(lis); err != nil {
				logger.Error("gRPC serve error", "error", err)
			}
		}()
	}

	go func() {
		logger.Info("scrapejobsd listening", "http_addr", cfg.Server.HTTPAddr, "grpc_addr", cfg.Server.GRPCAddr,
			"store", cfg.Database.Driver, "producer", cfg.Producer.Kind)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	healthService.SetServing(false)
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "error", err)
	}
	// workers still running at the deadline are cancelled and fail their jobs
	queue.Shutdown(shutdownCtx)
	reaper.Stop()
	hub.Close()
	healthService.Stop()
	logger.Info("shutdown complete")
}

func newLogger(c common.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
