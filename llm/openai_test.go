package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hourei-dev/hourei/types"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) (*OpenAIProvider, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p := NewOpenAIProvider(OpenAIConfig{
		ProviderName: "test-openai",
		APIKey:       "sk-test",
		BaseURL:      srv.URL,
		DefaultModel: "gpt-4o-mini",
	}, zap.NewNop())
	return p, srv
}

func TestOpenAIProvider_Complete_Success(t *testing.T) {
	var gotAuth string
	var gotBody openaiRequest

	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		resp := openaiResponse{
			ID:    "chatcmpl-123",
			Model: "gpt-4o-mini",
			Choices: []openaiChoice{
				{Index: 0, FinishReason: "stop", Message: Message{Role: RoleAssistant, Content: "第32条は労働時間を定める。"}},
			},
			Usage:   &ChatUsage{PromptTokens: 20, CompletionTokens: 12, TotalTokens: 32},
			Created: 1700000000,
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})

	resp, err := p.Complete(context.Background(), &ChatRequest{
		Messages: []Message{
			{Role: RoleSystem, Content: "you are a legal assistant"},
			{Role: RoleUser, Content: "労働基準法第32条は？"},
		},
		Temperature: 0.1,
		MaxTokens:   256,
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "gpt-4o-mini", gotBody.Model, "default model fills empty request model")
	assert.InDelta(t, 0.1, float64(gotBody.Temperature), 1e-6)
	assert.Equal(t, 256, gotBody.MaxTokens)

	assert.Equal(t, "chatcmpl-123", resp.ID)
	assert.Equal(t, "test-openai", resp.Provider)
	assert.Equal(t, "第32条は労働時間を定める。", resp.Text())
	assert.Equal(t, 32, resp.Usage.TotalTokens)
	assert.False(t, resp.CreatedAt.IsZero())
}

func TestOpenAIProvider_Complete_RequestModelWins(t *testing.T) {
	var gotModel string
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		var body openaiRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotModel = body.Model
		_ = json.NewEncoder(w).Encode(openaiResponse{Choices: []openaiChoice{{Message: Message{Content: "ok"}}}})
	})

	_, err := p.Complete(context.Background(), &ChatRequest{
		Model:    "qwen2.5-72b",
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "qwen2.5-72b", gotModel)
}

func TestOpenAIProvider_Complete_EmptyMessages(t *testing.T) {
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("server must not be called")
	})

	_, err := p.Complete(context.Background(), &ChatRequest{})
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidRequest))
}

func TestOpenAIProvider_Complete_ErrorMapping(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantCode  types.ErrorCode
		wantRetry bool
	}{
		{
			name:      "unauthorized",
			status:    http.StatusUnauthorized,
			body:      `{"error":{"message":"invalid api key","type":"auth_error"}}`,
			wantCode:  types.ErrUnauthorized,
			wantRetry: false,
		},
		{
			name:      "rate limited",
			status:    http.StatusTooManyRequests,
			body:      `{"error":{"message":"slow down"}}`,
			wantCode:  types.ErrRateLimited,
			wantRetry: true,
		},
		{
			name:      "bad request",
			status:    http.StatusBadRequest,
			body:      `{"error":{"message":"bad params"}}`,
			wantCode:  types.ErrInvalidRequest,
			wantRetry: false,
		},
		{
			name:      "service unavailable",
			status:    http.StatusServiceUnavailable,
			body:      "overloaded",
			wantCode:  types.ErrUpstreamError,
			wantRetry: true,
		},
		{
			name:      "gateway timeout",
			status:    http.StatusGatewayTimeout,
			body:      "timeout",
			wantCode:  types.ErrUpstreamTimeout,
			wantRetry: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := p.Complete(context.Background(), &ChatRequest{
				Messages: []Message{{Role: RoleUser, Content: "q"}},
			})
			require.Error(t, err)

			typed := types.AsError(err)
			require.NotNil(t, typed)
			assert.Equal(t, tt.wantCode, typed.Code)
			assert.Equal(t, tt.wantRetry, typed.Retryable)
			assert.Equal(t, tt.status, typed.HTTPStatus)
			assert.Equal(t, "test-openai", typed.Provider)
		})
	}
}

func TestOpenAIProvider_HealthCheck(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/models", r.URL.Path)
			_, _ = w.Write([]byte(`{"object":"list","data":[]}`))
		})

		status, err := p.HealthCheck(context.Background())
		require.NoError(t, err)
		assert.True(t, status.Healthy)
		assert.Greater(t, status.Latency.Nanoseconds(), int64(0))
	})

	t.Run("unhealthy", func(t *testing.T) {
		p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("boom"))
		})

		status, err := p.HealthCheck(context.Background())
		require.Error(t, err)
		assert.False(t, status.Healthy)
	})
}

func TestReadErrorMessage(t *testing.T) {
	t.Run("json envelope", func(t *testing.T) {
		msg := readErrorMessage(strings.NewReader(`{"error":{"message":"quota exceeded","type":"billing"}}`))
		assert.Equal(t, "quota exceeded (type: billing)", msg)
	})

	t.Run("raw text fallback", func(t *testing.T) {
		msg := readErrorMessage(strings.NewReader("plain failure\n"))
		assert.Equal(t, "plain failure", msg)
	})
}
