package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/scrape-jobs/internal/entity"
	"github.com/joseph-ayodele/scrape-jobs/internal/llm"
)

// RemoteProducer delegates extraction to an external scraping service:
// POST {baseURL}/scrape {"query": ..., "max_results": ...}.
type RemoteProducer struct {
	baseURL string
	client  *http.Client
	schema  *jsonschema.Schema
	log     *slog.Logger
}

type ScrapeRequest struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

type ScrapeResponse struct {
	Success bool             `json:"success"`
	Items   []llm.ItemFields `json:"items"`
	Error   string           `json:"error,omitempty"`
}

func NewRemoteProducer(baseURL string, timeout time.Duration, logger *slog.Logger) (*RemoteProducer, error) {
	if baseURL == "" {
		baseURL = "http://localhost:3000"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	schema, err := llm.CompileSchema(scrapeResponseSchema())
	if err != nil {
		return nil, err
	}
	return &RemoteProducer{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		schema:  schema,
		log:     logger,
	}, nil
}

// scrapeResponseSchema extends the items document with the service envelope fields.
func scrapeResponseSchema() map[string]any {
	s := llm.BuildItemsJSONSchema(0)
	props := s["properties"].(map[string]any)
	props["success"] = map[string]any{"type": "boolean"}
	props["error"] = map[string]any{"type": "string"}
	s["required"] = []string{"success"}
	return s
}

// CheckHealth verifies the service is available.
func (p *RemoteProducer) CheckHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/health", nil)
	if err != nil {
		return newNetworkError(err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return classify(err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return newServiceUnavailableError(fmt.Errorf("service unhealthy: status %d", resp.StatusCode))
	}
	return nil
}

func (p *RemoteProducer) Produce(ctx context.Context, query string, maxResults int) iter.Seq2[entity.ResultItem, error] {
	return func(yield func(entity.ResultItem, error) bool) {
		items, err := p.scrape(ctx, query, maxResults)
		if err != nil {
			yield(entity.ResultItem{}, err)
			return
		}
		yieldAll(ctx, items, yield)
	}
}

func (p *RemoteProducer) scrape(ctx context.Context, query string, maxResults int) ([]entity.ResultItem, error) {
	start := time.Now()
	raw, _, err := llm.SendJSON(ctx, p.client, p.baseURL+"/scrape", ScrapeRequest{Query: query, MaxResults: maxResults}, nil, p.log)
	if err != nil {
		pe := classify(err)
		var statusErr *llm.HTTPStatusError
		if errors.As(err, &statusErr) {
			if msg := errorField(statusErr.Body); msg != "" {
				pe.Message = msg
			}
		}
		p.log.Error("producer.remote.error", "type", pe.Type, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, pe
	}

	if err := llm.ValidateJSON(p.schema, raw); err != nil {
		p.log.Error("producer.remote.invalid_response", "error", err, "bytes", len(raw))
		return nil, newInvalidResponseError("response does not match schema", err)
	}
	var resp ScrapeResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, newInvalidResponseError("failed to decode response", err)
	}
	if !resp.Success {
		msg := resp.Error
		if msg == "" {
			msg = "scraper reported failure"
		}
		return nil, newExtractionError(msg, nil)
	}

	p.log.Info("producer.remote.ok", "items", len(resp.Items), "elapsed_ms", time.Since(start).Milliseconds())
	return itemsFromFields(resp.Items, maxResults), nil
}

// errorField pulls {"error": "..."} out of an error body, if present.
func errorField(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) != nil {
		return ""
	}
	return e.Error
}
