package llm

import (
	"context"

	"github.com/joseph-ayodele/scrape-jobs/internal/entity"
)

// ItemsRequest describes one extraction call.
type ItemsRequest struct {
	Query      string
	MaxResults int
	// Hints are free-form context lines appended to the user prompt (locale, preferred sites).
	Hints []string
}

// ItemFields is the normalized shape we want from the model for one result.
type ItemFields struct {
	Title          string                `json:"title"`
	Description    string                `json:"description,omitempty"`
	URL            string                `json:"url,omitempty"`
	Price          string                `json:"price,omitempty"`  // as displayed, currency symbol kept
	Rating         string                `json:"rating,omitempty"` // e.g. "4.5/5"
	Date           string                `json:"date,omitempty"`
	AdditionalData entity.AdditionalData `json:"additional_data"`
}

// ItemsDocument is the top-level JSON object the model must return.
type ItemsDocument struct {
	Items []ItemFields `json:"items"`
}

// ItemExtractor is the interface the extraction producer depends on.
type ItemExtractor interface {
	ExtractItems(ctx context.Context, req ItemsRequest) ([]ItemFields, []byte /*rawJSON*/, error)
}
