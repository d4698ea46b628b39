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

func TestCost(t *testing.T) {
	// 1M input + 1M output at sonar-pro pricing.
	assert.InDelta(t, 18.0, Cost("sonar-pro", 1_000_000, 1_000_000), 1e-9)
	assert.InDelta(t, 6.0, Cost("sonar", 1_000_000, 1_000_000), 1e-9)
	// Unknown model prices as the default, not as free.
	assert.InDelta(t, 18.0, Cost("something-new", 1_000_000, 1_000_000), 1e-9)
}

func TestPerplexityComplete(t *testing.T) {
	var gotAuth string
	var gotReq map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"output": []map[string]any{
				{
					"type": "message",
					"role": "assistant",
					"content": []map[string]any{
						{"type": "output_text", "text": "Take it "},
						{"type": "output_text", "text": "easy today."},
					},
				},
			},
			"usage": map[string]int{"input_tokens": 1200, "output_tokens": 60},
		})
	}))
	defer srv.Close()

	c, err := NewPerplexityClient("test-key", "sonar-pro")
	require.NoError(t, err)
	c.SetEndpoint(srv.URL)

	reply, usage, err := c.Complete(context.Background(), "You are a coach.", []Message{
		{Role: "user", Content: "how should today go?"},
		{Role: "system", Content: "dropped"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Take it easy today.", reply)
	assert.Equal(t, 1200, usage.InputTokens)
	assert.Equal(t, 60, usage.OutputTokens)
	assert.InDelta(t, Cost("sonar-pro", 1200, 60), usage.CostUSD, 1e-12)

	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "You are a coach.", gotReq["instructions"])
	input := gotReq["input"].([]any)
	require.Len(t, input, 1) // non user/assistant roles are filtered out
}

func TestPerplexityComplete_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c, err := NewPerplexityClient("test-key", "")
	require.NoError(t, err)
	c.SetEndpoint(srv.URL)

	_, _, err = c.Complete(context.Background(), "sys", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "rate limited")
}

func TestNewPerplexityClient_RequiresKey(t *testing.T) {
	_, err := NewPerplexityClient("", "sonar")
	assert.Error(t, err)
}
