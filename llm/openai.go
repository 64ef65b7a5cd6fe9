package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hourei-dev/hourei/internal/httpclient"
	"github.com/hourei-dev/hourei/types"
)

// OpenAIConfig configures an OpenAI-compatible chat endpoint. Any service
// speaking the /v1/chat/completions wire format works: OpenAI itself,
// vLLM, Ollama, LM Studio, or a gateway in front of them.
type OpenAIConfig struct {
	// ProviderName identifies this provider in logs and errors.
	ProviderName string

	// APIKey is sent as a Bearer token. May be empty for local servers.
	APIKey string

	// BaseURL is the API root, e.g. "https://api.openai.com".
	BaseURL string

	// DefaultModel is used when the request leaves Model empty.
	DefaultModel string

	// Timeout is the HTTP client timeout. Defaults to 30s.
	Timeout time.Duration

	// EndpointPath defaults to "/v1/chat/completions".
	EndpointPath string

	// ModelsEndpoint defaults to "/v1/models"; used by HealthCheck.
	ModelsEndpoint string

	// BuildHeaders optionally replaces the default Bearer-token headers.
	BuildHeaders func(req *http.Request, apiKey string)
}

// OpenAIProvider is a ChatProvider over the OpenAI-compatible REST API.
type OpenAIProvider struct {
	cfg    OpenAIConfig
	client *http.Client
	logger *zap.Logger
}

var _ ChatProvider = (*OpenAIProvider)(nil)

// NewOpenAIProvider creates a chat provider for an OpenAI-compatible API.
func NewOpenAIProvider(cfg OpenAIConfig, logger *zap.Logger) *OpenAIProvider {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if cfg.ProviderName == "" {
		cfg.ProviderName = "openai"
	}
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/v1/chat/completions"
	}
	if cfg.ModelsEndpoint == "" {
		cfg.ModelsEndpoint = "/v1/models"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenAIProvider{
		cfg:    cfg,
		client: httpclient.New(timeout),
		logger: logger,
	}
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string { return p.cfg.ProviderName }

func (p *OpenAIProvider) buildHeaders(req *http.Request) {
	if p.cfg.BuildHeaders != nil {
		p.cfg.BuildHeaders(req, p.cfg.APIKey)
		return
	}
	if p.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}
	req.Header.Set("Content-Type", "application/json")
}

func (p *OpenAIProvider) endpoint(path string) string {
	return fmt.Sprintf("%s%s", strings.TrimRight(p.cfg.BaseURL, "/"), path)
}

// HealthCheck verifies the endpoint is reachable via the models listing.
func (p *OpenAIProvider) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	start := time.Now()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint(p.cfg.ModelsEndpoint), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	p.buildHeaders(httpReq)

	resp, err := p.client.Do(httpReq)
	latency := time.Since(start)
	if err != nil {
		return &HealthStatus{Healthy: false, Latency: latency, Error: err.Error()}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg := readErrorMessage(resp.Body)
		return &HealthStatus{Healthy: false, Latency: latency, Error: msg},
			fmt.Errorf("%s health check failed: status=%d msg=%s", p.cfg.ProviderName, resp.StatusCode, msg)
	}
	return &HealthStatus{Healthy: true, Latency: latency}, nil
}

// openaiRequest is the wire request for /v1/chat/completions.
type openaiRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float32   `json:"temperature,omitempty"`
	TopP        float32   `json:"top_p,omitempty"`
	Stop        []string  `json:"stop,omitempty"`
}

type openaiChoice struct {
	Index        int     `json:"index"`
	FinishReason string  `json:"finish_reason"`
	Message      Message `json:"message"`
}

type openaiResponse struct {
	ID      string         `json:"id"`
	Model   string         `json:"model"`
	Choices []openaiChoice `json:"choices"`
	Usage   *ChatUsage     `json:"usage,omitempty"`
	Created int64          `json:"created,omitempty"`
}

// Complete performs a non-streaming chat completion.
func (p *OpenAIProvider) Complete(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if req == nil || len(req.Messages) == 0 {
		return nil, types.NewError(types.ErrInvalidRequest, "chat request has no messages").
			WithProvider(p.Name())
	}

	model := req.Model
	if model == "" {
		model = p.cfg.DefaultModel
	}

	body := openaiRequest{
		Model:       model,
		Messages:    req.Messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stop:        req.Stop,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint(p.cfg.EndpointPath), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	p.buildHeaders(httpReq)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, types.NewError(types.ErrUpstreamTimeout, err.Error()).
				WithProvider(p.Name()).WithCause(ctx.Err())
		}
		return nil, types.NewError(types.ErrUpstreamError, err.Error()).
			WithProvider(p.Name()).WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, mapHTTPError(resp.StatusCode, readErrorMessage(resp.Body), p.Name())
	}

	var oa openaiResponse
	if err := json.NewDecoder(resp.Body).Decode(&oa); err != nil {
		return nil, types.NewError(types.ErrUpstreamError, "failed to decode response: "+err.Error()).
			WithProvider(p.Name()).WithCause(err)
	}

	out := &ChatResponse{
		ID:       oa.ID,
		Provider: p.Name(),
		Model:    oa.Model,
		Choices:  make([]ChatChoice, 0, len(oa.Choices)),
	}
	for _, c := range oa.Choices {
		out.Choices = append(out.Choices, ChatChoice{
			Index:        c.Index,
			FinishReason: c.FinishReason,
			Message:      Message{Role: RoleAssistant, Content: c.Message.Content},
		})
	}
	if oa.Usage != nil {
		out.Usage = *oa.Usage
	}
	if oa.Created != 0 {
		out.CreatedAt = time.Unix(oa.Created, 0)
	}
	return out, nil
}

// mapHTTPError converts an upstream HTTP status into a typed error with
// the right retryability.
func mapHTTPError(status int, msg, provider string) *types.Error {
	var code types.ErrorCode
	switch status {
	case http.StatusUnauthorized:
		code = types.ErrUnauthorized
	case http.StatusForbidden:
		code = types.ErrForbidden
	case http.StatusTooManyRequests:
		code = types.ErrRateLimited
	case http.StatusBadRequest:
		code = types.ErrInvalidRequest
	case http.StatusGatewayTimeout:
		code = types.ErrUpstreamTimeout
	case http.StatusServiceUnavailable, http.StatusBadGateway:
		code = types.ErrUpstreamError
	default:
		if status >= 500 {
			code = types.ErrUpstreamError
		} else {
			code = types.ErrInvalidRequest
		}
	}
	return types.NewError(code, msg).WithHTTPStatus(status).WithProvider(provider)
}

// readErrorMessage extracts a human-readable message from an error body,
// trying the OpenAI JSON error envelope before falling back to raw text.
func readErrorMessage(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 8<<10))
	if err != nil {
		return "failed to read error response"
	}

	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error.Message != "" {
		if errResp.Error.Type != "" {
			return fmt.Sprintf("%s (type: %s)", errResp.Error.Message, errResp.Error.Type)
		}
		return errResp.Error.Message
	}
	return strings.TrimSpace(string(data))
}
