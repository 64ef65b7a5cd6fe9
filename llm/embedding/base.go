package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hourei-dev/hourei/internal/httpclient"
	"github.com/hourei-dev/hourei/llm/retry"
	"github.com/hourei-dev/hourei/types"
)

// BaseProvider carries the plumbing shared by embedding providers.
type BaseProvider struct {
	name       string
	client     *http.Client
	retryer    retry.Retryer
	baseURL    string
	apiKey     string
	model      string
	dimensions int
	maxBatch   int
}

// BaseConfig holds the common provider configuration.
type BaseConfig struct {
	Name       string
	BaseURL    string
	APIKey     string
	Model      string
	Dimensions int
	MaxBatch   int
	Timeout    time.Duration

	// Retry overrides the transient-failure policy. Nil gets the
	// default three-attempt backoff on retryable errors.
	Retry *retry.Policy
}

// NewBaseProvider creates the shared provider base.
func NewBaseProvider(cfg BaseConfig) *BaseProvider {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	maxBatch := cfg.MaxBatch
	if maxBatch == 0 {
		maxBatch = 100
	}
	policy := cfg.Retry
	if policy == nil {
		// A failed query embedding kills the dense branch outright, so
		// transient upstream errors are retried. Non-retryable codes
		// fail fast.
		policy = retry.DefaultPolicy()
		policy.ShouldRetry = types.IsRetryable
	}
	return &BaseProvider{
		name:       cfg.Name,
		client:     httpclient.New(timeout),
		retryer:    retry.NewBackoffRetryer(policy, nil),
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		maxBatch:   maxBatch,
	}
}

func (p *BaseProvider) Name() string      { return p.name }
func (p *BaseProvider) Dimensions() int   { return p.dimensions }
func (p *BaseProvider) MaxBatchSize() int { return p.maxBatch }

// EmbedQuery embeds a single query string via the provider's Embed.
func (p *BaseProvider) EmbedQuery(ctx context.Context, query string, embedFn func(context.Context, *EmbeddingRequest) (*EmbeddingResponse, error)) ([]float64, error) {
	resp, err := embedFn(ctx, &EmbeddingRequest{
		Input:     []string{query},
		InputType: InputTypeQuery,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}
	return resp.Embeddings[0].Embedding, nil
}

// EmbedDocuments embeds multiple documents via the provider's Embed.
func (p *BaseProvider) EmbedDocuments(ctx context.Context, documents []string, embedFn func(context.Context, *EmbeddingRequest) (*EmbeddingResponse, error)) ([][]float64, error) {
	resp, err := embedFn(ctx, &EmbeddingRequest{
		Input:     documents,
		InputType: InputTypeDocument,
	})
	if err != nil {
		return nil, err
	}
	result := make([][]float64, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		result[i] = emb.Embedding
	}
	return result, nil
}

// DoRequest performs an HTTP request with common error handling, retrying
// transient failures per the provider's policy.
func (p *BaseProvider) DoRequest(ctx context.Context, method, endpoint string, body any, headers map[string]string) ([]byte, error) {
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		payload = data
	}

	// The reader is rebuilt per attempt; a retried request must not see a
	// drained body.
	return retry.DoWithResultTyped(p.retryer, ctx, func() ([]byte, error) {
		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, p.baseURL+endpoint, reqBody)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := p.client.Do(req)
		if err != nil {
			return nil, types.NewError(types.ErrUpstreamError, err.Error()).
				WithHTTPStatus(http.StatusBadGateway).WithProvider(p.name).WithCause(err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}

		if resp.StatusCode >= 400 {
			return nil, mapHTTPError(resp.StatusCode, string(respBody), p.name)
		}

		return respBody, nil
	})
}

// mapHTTPError maps an HTTP status to a typed error.
func mapHTTPError(status int, msg, provider string) *types.Error {
	code := types.ErrUpstreamError
	switch status {
	case http.StatusUnauthorized:
		code = types.ErrUnauthorized
	case http.StatusForbidden:
		code = types.ErrForbidden
	case http.StatusTooManyRequests:
		code = types.ErrRateLimited
	case http.StatusBadRequest:
		code = types.ErrInvalidRequest
	}
	return types.NewError(code, msg).
		WithHTTPStatus(status).WithProvider(provider).
		WithRetryable(code == types.ErrRateLimited || status >= 500)
}

// ChooseModel picks the model from the request, default, then fallback.
func ChooseModel(reqModel, defaultModel, fallback string) string {
	if reqModel != "" {
		return reqModel
	}
	if defaultModel != "" {
		return defaultModel
	}
	return fallback
}
