package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnthropicComplete(t *testing.T) {
	var gotReq map[string]any
	var gotHeaders http.Header

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		assert.Equal(t, "/messages", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		json.NewEncoder(w).Encode(map[string]any{
			"content":     []map[string]any{{"type": "text", "text": "Globex sells widgets."}},
			"stop_reason": "end_turn",
			"usage":       map[string]int{"input_tokens": 1000, "output_tokens": 500},
		})
	}))
	defer srv.Close()

	client := NewAnthropic(Options{
		APIKey:  "sk-ant-test",
		Model:   "claude-sonnet-4-20250514",
		BaseURL: srv.URL,
	})

	resp, err := client.Complete(context.Background(), "describe globex", "be factual")
	require.NoError(t, err)

	assert.Equal(t, "sk-ant-test", gotHeaders.Get("x-api-key"))
	assert.Equal(t, "2023-06-01", gotHeaders.Get("anthropic-version"))
	assert.Equal(t, "be factual", gotReq["system"])
	assert.Equal(t, "claude-sonnet-4-20250514", gotReq["model"])
	assert.EqualValues(t, defaultMaxTokens, gotReq["max_tokens"])

	assert.Equal(t, "Globex sells widgets.", resp.Content)
	assert.Equal(t, ProviderAnthropic, resp.Provider)
	assert.Equal(t, 1000, resp.InputTokens)
	assert.Equal(t, 500, resp.OutputTokens)
	assert.Equal(t, 1500, resp.TotalTokens)
	assert.Equal(t, "end_turn", resp.FinishReason)
	// 1000 in at $3/1M + 500 out at $15/1M.
	assert.InDelta(t, 0.0105, resp.CostUSD, 1e-9)
}

func TestAnthropicOmitsEmptySystem(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		_, hasSystem := req["system"]
		assert.False(t, hasSystem)

		json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]any{{"type": "text", "text": "ok"}},
			"usage":   map[string]int{"input_tokens": 1, "output_tokens": 1},
		})
	}))
	defer srv.Close()

	client := NewAnthropic(Options{APIKey: "k", Model: "m", BaseURL: srv.URL})
	_, err := client.Complete(context.Background(), "hi", "")
	require.NoError(t, err)
}

func TestAnthropicAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"type": "authentication_error", "message": "invalid x-api-key"},
		})
	}))
	defer srv.Close()

	client := NewAnthropic(Options{APIKey: "bad", Model: "m", BaseURL: srv.URL})
	_, err := client.Complete(context.Background(), "hi", "")

	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, ProviderAnthropic, provErr.Provider)
	assert.Equal(t, http.StatusUnauthorized, provErr.StatusCode)
	assert.Equal(t, "invalid x-api-key", provErr.Message)
}

func TestAnthropicStructuredAppendsInstruction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		system, _ := req["system"].(string)
		assert.Contains(t, system, "valid JSON only")
		assert.Contains(t, system, `"score"`)

		json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]any{{"type": "text", "text": `{"score": 7}`}},
			"usage":   map[string]int{"input_tokens": 1, "output_tokens": 1},
		})
	}))
	defer srv.Close()

	client := NewAnthropic(Options{APIKey: "k", Model: "m", BaseURL: srv.URL})
	resp, err := client.CompleteStructured(context.Background(), "score globex", "", map[string]any{
		"type":       "object",
		"properties": map[string]any{"score": map[string]any{"type": "number"}},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"score": 7}`, resp.Content)
}
