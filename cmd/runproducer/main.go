package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joseph-ayodele/scrape-jobs/internal/common"
	"github.com/joseph-ayodele/scrape-jobs/internal/entity"
	"github.com/joseph-ayodele/scrape-jobs/internal/extract"
)

// runproducer runs the configured producer directly, without a store or queue,
// and prints what it yields. Useful for checking a scraper or LLM setup.
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		logger.Error("usage: runproducer <query> [max_results] [times]")
		os.Exit(2)
	}
	query := os.Args[1]
	maxResults := 15
	if len(os.Args) >= 3 {
		if n, err := strconv.Atoi(os.Args[2]); err == nil && n > 0 {
			maxResults = n
		}
	}
	times := 1
	if len(os.Args) >= 4 {
		if n, err := strconv.Atoi(os.Args[3]); err == nil && n > 0 {
			times = n
		}
	}

	if err := common.LoadEnvFile(".env"); err != nil {
		logger.Error("load env file", "error", err)
		os.Exit(2)
	}
	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	producer, err := extract.New(cfg.Producer, cfg.LLM, logger)
	if err != nil {
		logger.Error("build producer", "kind", cfg.Producer.Kind, "error", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	for i := 1; i <= times; i++ {
		runCtx, cancelRun := context.WithTimeout(context.Background(), cfg.Executor.MaxRunDuration)
		start := time.Now()
		logger.Info("producer.run.start", "iter", i, "kind", cfg.Producer.Kind, "query", query, "max_results", maxResults)

		var items []entity.ResultItem
		var runErr error
		for item, err := range producer.Produce(runCtx, query, maxResults) {
			if err != nil {
				runErr = err
				break
			}
			items = append(items, item)
			if len(items) >= maxResults {
				break
			}
		}
		cancelRun()

		if runErr != nil {
			logger.Error("producer.run.error", "iter", i, "items", len(items), "err", runErr, "user_message", extract.UserMessage(runErr))
		} else {
			logger.Info("producer.run.ok", "iter", i, "items", len(items), "elapsed_ms", time.Since(start).Milliseconds())
		}
		if i == times {
			_ = enc.Encode(items)
		}
	}
}
