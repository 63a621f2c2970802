package extract

import (
	"context"
	"fmt"
	"iter"
	"log/slog"

	"github.com/joseph-ayodele/scrape-jobs/internal/common"
	"github.com/joseph-ayodele/scrape-jobs/internal/entity"
	"github.com/joseph-ayodele/scrape-jobs/internal/llm/openai"
)

// Producer yields result items for a query lazily. A non-nil error ends the sequence;
// implementations never yield more than maxResults items.
type Producer interface {
	Produce(ctx context.Context, query string, maxResults int) iter.Seq2[entity.ResultItem, error]
}

// ProducerFunc adapts a plain function to Producer.
type ProducerFunc func(ctx context.Context, query string, maxResults int) iter.Seq2[entity.ResultItem, error]

func (f ProducerFunc) Produce(ctx context.Context, query string, maxResults int) iter.Seq2[entity.ResultItem, error] {
	return f(ctx, query, maxResults)
}

// New builds the producer selected by cfg.Kind.
func New(cfg common.ProducerConfig, llmCfg common.LLMConfig, logger *slog.Logger) (Producer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Kind {
	case "", common.ProducerSample:
		return NewSampleProducer(WithItemDelay(cfg.ItemDelay)), nil
	case common.ProducerRemote:
		return NewRemoteProducer(cfg.ScraperURL, cfg.ScraperTimeout, logger)
	case common.ProducerLLM:
		client := openai.NewClient(openai.Config{
			APIKey:      llmCfg.APIKey,
			BaseURL:     llmCfg.BaseURL,
			Model:       llmCfg.Model,
			Temperature: llmCfg.Temperature,
			Timeout:     llmCfg.Timeout,
		}, logger)
		return NewLLMProducer(client, logger), nil
	}
	return nil, common.NewAppError("CONFIG_ERROR", fmt.Sprintf("unknown producer %q", cfg.Kind), common.ErrInvalidInput)
}

// yieldAll streams a materialized slice, stopping early on cancellation.
func yieldAll(ctx context.Context, items []entity.ResultItem, yield func(entity.ResultItem, error) bool) {
	for _, it := range items {
		if err := ctx.Err(); err != nil {
			yield(entity.ResultItem{}, newCancelledError(err))
			return
		}
		if !yield(it, nil) {
			return
		}
	}
}
