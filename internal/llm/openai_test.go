package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completion(content string) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 1234567890,
		"model":   "test-model",
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]any{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
		"usage": map[string]any{"prompt_tokens": 40, "completion_tokens": 25, "total_tokens": 65},
	}
}

func newOpenRouterTestProvider(t *testing.T, handler http.HandlerFunc) *OpenAIProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	p, err := NewOpenRouterProvider(Config{
		APIKey:  "test-key",
		Model:   "test-model",
		BaseURL: server.URL + "/v1",
		Referer: "https://skillway.example",
		Title:   "Skillway",
	})
	require.NoError(t, err)
	return p
}

func TestOpenRouter_HappyPathSendsAttribution(t *testing.T) {
	var gotReq map[string]any
	p := newOpenRouterTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "https://skillway.example", r.Header.Get("HTTP-Referer"))
		assert.Equal(t, "Skillway", r.Header.Get("X-Title"))
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(completion(`{"questions":[]}`))
	})

	req := UserPrompt("system text", "make a test")
	req.MaxTokens = 2500
	req.Temperature = 0.7
	resp, err := p.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, `{"questions":[]}`, resp.Text)
	assert.Equal(t, 40, resp.Usage.InputTokens)
	assert.Equal(t, "end", resp.StopReason)

	assert.Equal(t, "test-model", gotReq["model"])
	msgs := gotReq["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "make a test", msgs[1].(map[string]any)["content"])
}

func TestOpenRouter_GatewayErrorIsRetried(t *testing.T) {
	var calls atomic.Int32
	p := newOpenRouterTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("<html>bad gateway</html>"))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(completion("fine"))
	})

	resp, err := WithRetry(p, DefaultRetryPolicy(time.Millisecond)).Generate(context.Background(), UserPrompt("", "x"))
	require.NoError(t, err)
	assert.Equal(t, "fine", resp.Text)
	assert.Equal(t, int32(2), calls.Load())
}

func TestOpenRouter_ClientErrorCarriesStatus(t *testing.T) {
	p := newOpenRouterTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "bad key", "type": "auth"}})
	})
	_, err := p.Generate(context.Background(), UserPrompt("", "x"))
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, StatusOf(err))
	assert.False(t, DefaultRetryPolicy(time.Millisecond).Retryable(err))
}

func TestOpenRouter_EmptyChoices(t *testing.T) {
	p := newOpenRouterTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(completion("   "))
	})
	_, err := p.Generate(context.Background(), UserPrompt("", "x"))
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestNewProviderRequiresKey(t *testing.T) {
	for _, name := range []string{ProviderOpenRouter, ProviderOpenAI, ProviderAnthropic, ProviderGemini} {
		cfg := DefaultConfig()
		cfg.Provider = name
		_, err := NewProvider(context.Background(), cfg, nil, nil)
		assert.Error(t, err, name)
	}
}
