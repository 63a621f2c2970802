package entity

import "github.com/google/uuid"

// ResultItem is one scraped record attached to a Job. Nil attributes were not found.
type ResultItem struct {
	ID             int            `json:"id"`
	JobID          uuid.UUID      `json:"job_id"`
	Title          *string        `json:"title"`
	Description    *string        `json:"description"`
	URL            *string        `json:"url"`
	Price          *string        `json:"price"`
	Rating         *string        `json:"rating"`
	Date           *string        `json:"date"`
	AdditionalData AdditionalData `json:"additional_data"`
}

// Clone returns a deep copy of the item.
func (it ResultItem) Clone() ResultItem {
	out := it
	out.Title = cloneString(it.Title)
	out.Description = cloneString(it.Description)
	out.URL = cloneString(it.URL)
	out.Price = cloneString(it.Price)
	out.Rating = cloneString(it.Rating)
	out.Date = cloneString(it.Date)
	out.AdditionalData = it.AdditionalData.Clone()
	return out
}

// StringPtr returns nil for blank input so absence survives storage round trips.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
