package extract

import (
	"context"
	"fmt"
	"hash/fnv"
	"iter"
	"strings"
	"time"

	"github.com/joseph-ayodele/scrape-jobs/internal/entity"
)

// SampleProducer returns a fixed demonstration catalogue: phone listings for queries that
// mention "iphone", two generic search results otherwise. Output depends only on the query.
type SampleProducer struct {
	delay time.Duration
	now   func() time.Time
}

type SampleOption func(*SampleProducer)

// WithItemDelay pauses between items so progress is observable.
func WithItemDelay(d time.Duration) SampleOption {
	return func(p *SampleProducer) { p.delay = d }
}

// WithClock overrides the timestamp used for the date field.
func WithClock(now func() time.Time) SampleOption {
	return func(p *SampleProducer) { p.now = now }
}

func NewSampleProducer(opts ...SampleOption) *SampleProducer {
	p := &SampleProducer{now: time.Now}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *SampleProducer) Produce(ctx context.Context, query string, maxResults int) iter.Seq2[entity.ResultItem, error] {
	return func(yield func(entity.ResultItem, error) bool) {
		items := p.catalogue(query)
		if maxResults >= 0 && len(items) > maxResults {
			items = items[:maxResults]
		}
		for i, it := range items {
			if i > 0 && p.delay > 0 {
				t := time.NewTimer(p.delay)
				select {
				case <-ctx.Done():
					t.Stop()
					yield(entity.ResultItem{}, newCancelledError(ctx.Err()))
					return
				case <-t.C:
				}
			}
			if err := ctx.Err(); err != nil {
				yield(entity.ResultItem{}, newCancelledError(err))
				return
			}
			if !yield(it, nil) {
				return
			}
		}
	}
}

type phone struct {
	title, description, url, price, rating string
	extra                                  []entity.Field
}

var phoneCatalogue = []phone{
	{
		title:       "iPhone 15 128GB - Midnight",
		description: "Latest iPhone 15 with 48MP camera, USB-C, and Dynamic Island. Available in multiple colors.",
		url:         "https://www.apple.com/iphone-15/",
		price:       "₹79,900",
		rating:      "4.5/5",
		extra:       phoneExtra("Midnight", "128GB", "availability", "In Stock"),
	},
	{
		title:       "iPhone 15 Plus 256GB - Blue",
		description: "iPhone 15 Plus with larger 6.7-inch display, longer battery life, and advanced camera system.",
		url:         "https://www.apple.com/iphone-15-plus/",
		price:       "₹89,900",
		rating:      "4.4/5",
		extra:       phoneExtra("Blue", "256GB", "availability", "In Stock"),
	},
	{
		title:       "iPhone 15 Pro 128GB - Natural Titanium",
		description: "Pro model with titanium design, advanced camera system, and powerful A17 Pro chip.",
		url:         "https://www.apple.com/iphone-15-pro/",
		price:       "₹1,34,900",
		rating:      "4.6/5",
		extra:       phoneExtra("Natural Titanium", "128GB", "availability", "Limited Stock"),
	},
	{
		title:       "iPhone 15 Pro Max 256GB - Black Titanium",
		description: "Largest iPhone with Pro Max features, titanium build, and professional camera capabilities.",
		url:         "https://www.apple.com/iphone-15-pro-max/",
		price:       "₹1,59,900",
		rating:      "4.7/5",
		extra:       phoneExtra("Black Titanium", "256GB", "availability", "Pre-order"),
	},
	{
		title:       "iPhone 15 512GB - Yellow (Amazon)",
		description: "iPhone 15 with maximum storage, available with exclusive Amazon offers and fast delivery.",
		url:         "https://amazon.in/iphone-15-yellow",
		price:       "₹99,900",
		rating:      "4.3/5",
		extra: append(phoneExtra("Yellow", "512GB", "platform", "Amazon"),
			entity.Field{Key: "discount", Value: entity.StringValue("5% off")}),
	},
}

func phoneExtra(color, storage, key, val string) []entity.Field {
	return []entity.Field{
		{Key: "color", Value: entity.StringValue(color)},
		{Key: "storage", Value: entity.StringValue(storage)},
		{Key: key, Value: entity.StringValue(val)},
	}
}

func (p *SampleProducer) catalogue(query string) []entity.ResultItem {
	date := p.now().UTC().Format(time.RFC3339)

	if strings.Contains(strings.ToLower(query), "iphone") {
		out := make([]entity.ResultItem, len(phoneCatalogue))
		for i, ph := range phoneCatalogue {
			out[i] = entity.ResultItem{
				Title:          entity.StringPtr(ph.title),
				Description:    entity.StringPtr(ph.description),
				URL:            entity.StringPtr(ph.url),
				Price:          entity.StringPtr(ph.price),
				Rating:         entity.StringPtr(ph.rating),
				Date:           entity.StringPtr(date),
				AdditionalData: entity.NewAdditionalData(ph.extra...),
			}
		}
		return out
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(query))
	seed := h.Sum32()
	slug := strings.ReplaceAll(strings.TrimSpace(query), " ", "-")

	descriptions := []string{
		"Detailed information about %s from a reliable source with comprehensive details.",
		"Alternative option for %s with different features and competitive pricing.",
	}
	out := make([]entity.ResultItem, len(descriptions))
	for i, d := range descriptions {
		n := seed + uint32(i)*7919
		out[i] = entity.ResultItem{
			Title:       entity.StringPtr(fmt.Sprintf("Search Result %d for %s", i+1, query)),
			Description: entity.StringPtr(fmt.Sprintf(d, query)),
			URL:         entity.StringPtr(fmt.Sprintf("https://example%d.com/%s", i+1, slug)),
			Price:       entity.StringPtr(fmt.Sprintf("₹%d", 1000+n%49001)),
			Rating:      entity.StringPtr(fmt.Sprintf("%.1f/5", 3.5+float64(n%16)/10)),
			Date:        entity.StringPtr(date),
			AdditionalData: entity.NewAdditionalData(
				entity.Field{Key: "source", Value: entity.StringValue(fmt.Sprintf("Example Site %d", i+1))},
				entity.Field{Key: "category", Value: entity.StringValue("General")},
			),
		}
	}
	return out
}
