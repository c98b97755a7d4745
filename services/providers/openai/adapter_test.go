package openai

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

	"github.com/upb/llm-compare/models"
	"github.com/upb/llm-compare/services/providers"
)

const completionBody = `{
	"id": "chatcmpl-123",
	"object": "chat.completion",
	"created": 1700000000,
	"model": "gpt-3.5-turbo",
	"choices": [{"index": 0, "message": {"role": "assistant", "content": "Hi there"}, "finish_reason": "stop"}],
	"usage": {"prompt_tokens": 9, "completion_tokens": 3, "total_tokens": 12}
}`

type capturedRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func newTestAdapter(t *testing.T, handler http.HandlerFunc, timeout time.Duration) (*Adapter, *atomic.Int64) {
	t.Helper()
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	adapter := NewOpenAIAdapter(providers.ProviderConfig{
		BaseURL: server.URL,
		Timeout: timeout,
	})
	return adapter, &hits
}

func TestNewAdapters(t *testing.T) {
	openaiAdapter := NewOpenAIAdapter(providers.ProviderConfig{})
	assert.Equal(t, models.ProviderOpenAI, openaiAdapter.ID())
	assert.Equal(t, defaultBaseURL, openaiAdapter.config.BaseURL)
	assert.Equal(t, defaultModel, openaiAdapter.config.DefaultModel)

	grok := NewGrokAdapter(providers.ProviderConfig{})
	assert.Equal(t, models.ProviderGrok, grok.ID())
	assert.Equal(t, GrokBaseURL, grok.config.BaseURL)
	assert.Equal(t, grokModel, grok.config.DefaultModel)
}

func TestAdapter_Generate_Success(t *testing.T) {
	var captured capturedRequest
	var authHeader string

	adapter, hits := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		authHeader = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionBody))
	}, 5*time.Second)

	outcome := adapter.Generate(context.Background(), &providers.GenerateRequest{
		Message: "How are you?",
		History: []models.ConversationEntry{
			models.NewUserEntry("Hello"),
			models.NewAssistantEntry("Hi", models.ProviderGemini),
		},
		Credential: providers.NewCredential("sk-test"),
	})

	require.True(t, outcome.OK(), "unexpected failure: %s", outcome.Detail())
	assert.Equal(t, "Hi there", outcome.Text)
	assert.Equal(t, 12, outcome.Usage.TotalTokens)
	assert.Equal(t, int64(1), hits.Load())
	assert.Equal(t, "Bearer sk-test", authHeader)

	assert.Equal(t, defaultModel, captured.Model)
	require.Len(t, captured.Messages, 3)
	assert.Equal(t, "user", captured.Messages[0].Role)
	assert.Equal(t, "assistant", captured.Messages[1].Role)
	assert.Equal(t, "How are you?", captured.Messages[2].Content)
}

func TestAdapter_Generate_ModelOverride(t *testing.T) {
	var captured capturedRequest
	adapter, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&captured)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionBody))
	}, 5*time.Second)

	adapter.Generate(context.Background(), &providers.GenerateRequest{
		Message:    "Hello",
		Credential: providers.NewCredential("sk-test"),
		Model:      "gpt-4o-mini",
	})

	assert.Equal(t, "gpt-4o-mini", captured.Model)
}

func TestAdapter_Generate_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   providers.ErrorKind
	}{
		{
			name:   "rate limited",
			status: http.StatusTooManyRequests,
			body:   `{"error": {"message": "Rate limit reached", "type": "requests", "code": "rate_limit_exceeded"}}`,
			want:   providers.ErrorKindRateLimited,
		},
		{
			name:   "invalid key",
			status: http.StatusUnauthorized,
			body:   `{"error": {"message": "Incorrect API key provided", "type": "invalid_request_error", "code": "invalid_api_key"}}`,
			want:   providers.ErrorKindUnconfigured,
		},
		{
			name:   "server error",
			status: http.StatusServiceUnavailable,
			body:   `{"error": {"message": "overloaded", "type": "server_error"}}`,
			want:   providers.ErrorKindTransient,
		},
		{
			name:   "bad request",
			status: http.StatusBadRequest,
			body:   `{"error": {"message": "messages is malformed", "type": "invalid_request_error"}}`,
			want:   providers.ErrorKindUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}, 5*time.Second)

			outcome := adapter.Generate(context.Background(), &providers.GenerateRequest{
				Message:    "Hello",
				Credential: providers.NewCredential("sk-test"),
			})

			assert.False(t, outcome.OK())
			assert.Equal(t, tt.want, outcome.Kind())
		})
	}
}

func TestAdapter_Generate_EmptyCompletion(t *testing.T) {
	adapter, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "x", "object": "chat.completion", "model": "m", "choices": [{"index": 0, "message": {"role": "assistant", "content": "  "}}]}`))
	}, 5*time.Second)

	outcome := adapter.Generate(context.Background(), &providers.GenerateRequest{
		Message:    "Hello",
		Credential: providers.NewCredential("sk-test"),
	})

	assert.Equal(t, providers.ErrorKindUnknown, outcome.Kind())
	assert.Equal(t, "empty response", outcome.Detail())
}

func TestAdapter_Generate_Timeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	adapter, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, 50*time.Millisecond)

	start := time.Now()
	outcome := adapter.Generate(context.Background(), &providers.GenerateRequest{
		Message:    "Hello",
		Credential: providers.NewCredential("sk-test"),
	})

	assert.Equal(t, providers.ErrorKindTransient, outcome.Kind())
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestAdapter_Generate_Unconfigured(t *testing.T) {
	adapter, hits := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	}, time.Second)

	outcome := adapter.Generate(context.Background(), &providers.GenerateRequest{Message: "Hello"})

	assert.Equal(t, providers.ErrorKindUnconfigured, outcome.Kind())
	assert.Equal(t, "configure a valid credential", outcome.Render())
	assert.Equal(t, int64(0), hits.Load())
}
