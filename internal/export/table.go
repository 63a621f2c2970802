package export

import (
	"strings"

	"github.com/joseph-ayodele/scrape-jobs/internal/entity"
)

// BaseHeaders are the fixed item columns; additional_data keys follow in first-seen order.
var BaseHeaders = []string{"Title", "Description", "URL", "Price", "Rating", "Date"}

// Table is the flattened view shared by every export format.
type Table struct {
	Headers []string
	// Rows hold one entry per header; absent values are invalid entity.Value.
	Rows [][]entity.Value
}

// BuildTable flattens items. An additional_data key that collides with a base header
// gets an "additional_" prefix so both values survive.
func BuildTable(items []entity.ResultItem) Table {
	headers := append([]string(nil), BaseHeaders...)
	taken := make(map[string]bool, len(BaseHeaders))
	for _, h := range BaseHeaders {
		taken[strings.ToLower(h)] = true
	}

	extraCol := map[string]int{}
	for _, it := range items {
		for _, key := range it.AdditionalData.Keys() {
			if _, ok := extraCol[key]; ok {
				continue
			}
			name := key
			for taken[strings.ToLower(name)] {
				name = "additional_" + name
			}
			taken[strings.ToLower(name)] = true
			extraCol[key] = len(headers)
			headers = append(headers, name)
		}
	}

	rows := make([][]entity.Value, len(items))
	for i, it := range items {
		row := make([]entity.Value, len(headers))
		for j, p := range []*string{it.Title, it.Description, it.URL, it.Price, it.Rating, it.Date} {
			if p != nil {
				row[j] = entity.StringValue(*p)
			}
		}
		for _, f := range it.AdditionalData.Fields() {
			row[extraCol[f.Key]] = f.Value
		}
		rows[i] = row
	}
	return Table{Headers: headers, Rows: rows}
}
