package llm

import (
	"strconv"
	"strings"
)

const maxQueryInPrompt = 500

// BuildSystemPrompt composes the system message: output contract plus field formatting rules.
func BuildSystemPrompt(req ItemsRequest) string {
	limit := "as many results as are relevant"
	if req.MaxResults > 0 {
		limit = "at most " + strconv.Itoa(req.MaxResults) + " results"
	}

	parts := []string{
		"You are a web research assistant that turns a search request into structured listings.",
		"Return ONLY a JSON object of the form {\"items\": [...]} that matches the provided JSON Schema.",
		"Return " + limit + ", best match first.",
		"Every item MUST have a 'title'.",
		"Keep 'price' as displayed, including the currency symbol (e.g. \"$999\", \"₹79,900\").",
		"Write 'rating' as \"<score>/<scale>\" (e.g. \"4.5/5\").",
		"Use ISO-8601 for 'date' when a date is known.",
		"'url' must be an absolute http(s) URL.",
		"Put any other useful attribute (color, storage, availability, seller, discount) into 'additional_data' as flat string, number or boolean values.",

		// formatting hygiene:
		"Never output null. If a field is not known, omit it.",
		"Do not invent listings; return fewer items rather than fabricated ones.",
	}
	return strings.Join(parts, " ")
}

// BuildUserPrompt packages the query and optional hints.
func BuildUserPrompt(req ItemsRequest) string {
	q := strings.TrimSpace(req.Query)
	if len(q) > maxQueryInPrompt {
		q = q[:maxQueryInPrompt]
	}

	var b strings.Builder
	b.WriteString("Search request: ")
	b.WriteString(q)
	b.WriteString("\n")
	for _, h := range req.Hints {
		if h = strings.TrimSpace(h); h != "" {
			b.WriteString("Hint: ")
			b.WriteString(h)
			b.WriteString("\n")
		}
	}
	return b.String()
}
