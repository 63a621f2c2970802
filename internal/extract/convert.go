package extract

import (
	"strings"

	"github.com/joseph-ayodele/scrape-jobs/internal/entity"
	"github.com/joseph-ayodele/scrape-jobs/internal/llm"
)

// itemFromFields maps the wire shape onto a result item; blank fields stay absent.
func itemFromFields(f llm.ItemFields) entity.ResultItem {
	return entity.ResultItem{
		Title:          entity.StringPtr(strings.TrimSpace(f.Title)),
		Description:    entity.StringPtr(strings.TrimSpace(f.Description)),
		URL:            entity.StringPtr(strings.TrimSpace(f.URL)),
		Price:          entity.StringPtr(strings.TrimSpace(f.Price)),
		Rating:         entity.StringPtr(strings.TrimSpace(f.Rating)),
		Date:           entity.StringPtr(strings.TrimSpace(f.Date)),
		AdditionalData: f.AdditionalData.Clone(),
	}
}

func itemsFromFields(fields []llm.ItemFields, maxResults int) []entity.ResultItem {
	if maxResults >= 0 && len(fields) > maxResults {
		fields = fields[:maxResults]
	}
	out := make([]entity.ResultItem, len(fields))
	for i, f := range fields {
		out[i] = itemFromFields(f)
	}
	return out
}
