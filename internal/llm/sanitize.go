package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

var itemStringFields = []string{"title", "description", "url", "price", "rating", "date"}

// SanitizeItems normalizes a model or scraper response so it can pass the strict schema:
//   - renames known synonyms (name -> title, link -> url, summary -> description)
//   - coerces numbers to strings for the scalar fields and drops null/empty values
//   - moves unknown scalar keys into additional_data and drops nested ones
//   - drops items without a title and truncates to maxResults (0 keeps all)
func SanitizeItems(raw []byte, maxResults int, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	var dropped []string
	list, ok := doc["items"].([]any)
	if !ok {
		// some models answer with a bare array under another key
		for k, v := range doc {
			if arr, isArr := v.([]any); isArr {
				list = arr
				dropped = append(dropped, k+"->items")
				break
			}
		}
	}

	items := make([]any, 0, len(list))
	for i, entry := range list {
		m, ok := entry.(map[string]any)
		if !ok {
			dropped = append(dropped, fmt.Sprintf("items[%d](type)", i))
			continue
		}
		cleaned, notes := sanitizeItem(m)
		for _, n := range notes {
			dropped = append(dropped, fmt.Sprintf("items[%d].%s", i, n))
		}
		if _, hasTitle := cleaned["title"]; !hasTitle {
			dropped = append(dropped, fmt.Sprintf("items[%d](no title)", i))
			continue
		}
		items = append(items, cleaned)
	}
	if maxResults > 0 && len(items) > maxResults {
		dropped = append(dropped, fmt.Sprintf("items[%d:](over max)", maxResults))
		items = items[:maxResults]
	}

	out, err := json.Marshal(map[string]any{"items": items})
	if err != nil {
		return nil, dropped, fmt.Errorf("sanitize: encode: %w", err)
	}
	if len(dropped) > 0 {
		logger.Warn("llm.extract.normalize_sanitize", "dropped", dropped)
	}
	return out, dropped, nil
}

func sanitizeItem(m map[string]any) (map[string]any, []string) {
	var notes []string
	rename := func(from, to string) {
		if v, ok := m[from]; ok {
			if _, exists := m[to]; !exists {
				m[to] = v
			}
			delete(m, from)
			notes = append(notes, from+"->"+to)
		}
	}
	rename("name", "title")
	rename("link", "url")
	rename("summary", "description")

	out := make(map[string]any, len(m))
	for _, k := range itemStringFields {
		v, ok := m[k]
		if !ok {
			continue
		}
		delete(m, k)
		s, ok := scalarString(v)
		if !ok {
			notes = append(notes, k+"(type)")
			continue
		}
		if s = strings.TrimSpace(s); s == "" || strings.EqualFold(s, "null") {
			notes = append(notes, k+"(empty)")
			continue
		}
		out[k] = s
	}

	extra := map[string]any{}
	if nested, ok := m["additional_data"].(map[string]any); ok {
		for k, v := range nested {
			extra[k] = v
		}
	}
	delete(m, "additional_data")
	// anything left over is promoted into additional_data
	for k, v := range m {
		if _, exists := extra[k]; !exists {
			extra[k] = v
		}
	}
	for k, v := range extra {
		switch v.(type) {
		case string, float64, bool:
		default:
			delete(extra, k)
			notes = append(notes, "additional_data."+k+"(type)")
		}
	}
	out["additional_data"] = extra
	return out, notes
}

func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	case nil:
		return "", true
	}
	return "", false
}
