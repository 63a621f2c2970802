package extract

import (
	"context"
	"iter"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/scrape-jobs/internal/entity"
	"github.com/joseph-ayodele/scrape-jobs/internal/llm"
)

// LLMProducer asks a language model for listings matching the query.
type LLMProducer struct {
	extractor llm.ItemExtractor
	log       *slog.Logger
	hints     []string
}

func NewLLMProducer(extractor llm.ItemExtractor, logger *slog.Logger, hints ...string) *LLMProducer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMProducer{extractor: extractor, log: logger, hints: hints}
}

func (p *LLMProducer) Produce(ctx context.Context, query string, maxResults int) iter.Seq2[entity.ResultItem, error] {
	return func(yield func(entity.ResultItem, error) bool) {
		start := time.Now()
		fields, _, err := p.extractor.ExtractItems(ctx, llm.ItemsRequest{Query: query, MaxResults: maxResults, Hints: p.hints})
		if err != nil {
			pe := classify(err)
			p.log.Error("producer.llm.error", "type", pe.Type, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
			yield(entity.ResultItem{}, pe)
			return
		}
		p.log.Info("producer.llm.ok", "items", len(fields), "elapsed_ms", time.Since(start).Milliseconds())
		yieldAll(ctx, itemsFromFields(fields, maxResults), yield)
	}
}
