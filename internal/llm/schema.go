package llm

// BuildItemsJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a generic map.
// It is sent to the model as a structured output hint and used locally to validate.
func BuildItemsJSONSchema(maxResults int) map[string]any {
	item := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"title":       map[string]any{"type": "string", "minLength": 1},
			"description": map[string]any{"type": "string"},
			"url":         map[string]any{"type": "string"},
			"price":       map[string]any{"type": "string"},
			"rating":      map[string]any{"type": "string"},
			"date":        map[string]any{"type": "string"},
			"additional_data": map[string]any{
				"type": "object",
				// scalars only; nested objects and arrays do not survive export
				"additionalProperties": map[string]any{"type": []string{"string", "number", "boolean"}},
			},
		},
		"required": []string{"title"},
	}

	items := map[string]any{
		"type":  "array",
		"items": item,
	}
	if maxResults > 0 {
		items["maxItems"] = maxResults
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           map[string]any{"items": items},
		"required":             []string{"items"},
	}
}
