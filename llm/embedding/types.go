// Package embedding provides a unified dense embedding provider
// interface and implementations.
package embedding

import (
	"context"
	"time"
)

// EmbeddingRequest asks a provider to embed one or more inputs.
type EmbeddingRequest struct {
	Input          []string          `json:"input"`
	Model          string            `json:"model,omitempty"`
	Dimensions     int               `json:"dimensions,omitempty"`
	EncodingFormat string            `json:"encoding_format,omitempty"`
	InputType      InputType         `json:"input_type,omitempty"`
	Metadata       map[string]string `json:"-"`
}

// InputType tells providers that distinguish them whether the text is a
// search query or an indexed document.
type InputType string

const (
	InputTypeQuery    InputType = "query"
	InputTypeDocument InputType = "document"
)

// EmbeddingResponse is the provider-neutral embedding result.
type EmbeddingResponse struct {
	ID         string          `json:"id,omitempty"`
	Provider   string          `json:"provider"`
	Model      string          `json:"model"`
	Embeddings []EmbeddingData `json:"embeddings"`
	Usage      EmbeddingUsage  `json:"usage"`
	CreatedAt  time.Time       `json:"created_at,omitempty"`
}

// EmbeddingData is a single embedding vector.
type EmbeddingData struct {
	Index     int       `json:"index"`
	Embedding []float64 `json:"embedding"`
}

// EmbeddingUsage reports token accounting for an embed call.
type EmbeddingUsage struct {
	PromptTokens int `json:"prompt_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Provider is the dense embedding seam. Implementations must batch:
// one Embed call covers all inputs.
type Provider interface {
	// Embed generates embeddings for all inputs in a single call.
	Embed(ctx context.Context, req *EmbeddingRequest) (*EmbeddingResponse, error)

	// EmbedQuery embeds a single search query.
	EmbedQuery(ctx context.Context, query string) ([]float64, error)

	// EmbedDocuments embeds multiple documents.
	EmbedDocuments(ctx context.Context, documents []string) ([][]float64, error)

	// Name returns the provider name.
	Name() string

	// Dimensions returns the default embedding width.
	Dimensions() int

	// MaxBatchSize returns the largest supported input batch.
	MaxBatchSize() int
}
