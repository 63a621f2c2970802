package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/scrape-jobs/internal/llm"
)

func completion(content string) []byte {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{{"message": map[string]any{"content": content}}},
	})
	return b
}

func newTestClient(t *testing.T, strict bool, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{APIKey: "test-key", BaseURL: srv.URL, Model: "test-model", Strict: strict}, nil)
}

func TestExtractItemsValid(t *testing.T) {
	c := newTestClient(t, false, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "test-model", body["model"])
		_, _ = w.Write(completion("```json\n{\"items\":[{\"title\":\"A\",\"additional_data\":{\"z\":1,\"a\":\"x\"}}]}\n```"))
	})

	items, raw, err := c.ExtractItems(context.Background(), llm.ItemsRequest{Query: "q", MaxResults: 5})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "A", items[0].Title)
	assert.Equal(t, []string{"z", "a"}, items[0].AdditionalData.Keys())
	assert.NotEmpty(t, raw)
}

func TestExtractItemsLenientSanitize(t *testing.T) {
	content := `{"items":[{"title":"A","price":12,"vendor":"shop"}]}`
	c := newTestClient(t, false, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(completion(content))
	})
	items, _, err := c.ExtractItems(context.Background(), llm.ItemsRequest{Query: "q", MaxResults: 5})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "12", items[0].Price)
	v, ok := items[0].AdditionalData.Get("vendor")
	require.True(t, ok)
	assert.Equal(t, "shop", v.String())

	strict := newTestClient(t, true, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(completion(content))
	})
	_, _, err = strict.ExtractItems(context.Background(), llm.ItemsRequest{Query: "q", MaxResults: 5})
	assert.ErrorContains(t, err, "schema validation failed")
}

func TestExtractItemsHTTPError(t *testing.T) {
	c := newTestClient(t, false, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	})
	_, _, err := c.ExtractItems(context.Background(), llm.ItemsRequest{Query: "q"})
	var statusErr *llm.HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusTooManyRequests, statusErr.Status)
}

func TestExtractItemsNoChoices(t *testing.T) {
	c := newTestClient(t, false, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	})
	_, _, err := c.ExtractItems(context.Background(), llm.ItemsRequest{Query: "q"})
	assert.ErrorIs(t, err, ErrNoChoices)
}
