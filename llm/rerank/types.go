// Package rerank provides a unified cross-encoder reranking provider
// interface and implementations.
package rerank

import (
	"context"
	"time"
)

// RerankRequest asks a provider to score documents against a query.
type RerankRequest struct {
	Query           string            `json:"query"`
	Documents       []Document        `json:"documents"`
	Model           string            `json:"model,omitempty"`
	TopN            int               `json:"top_n,omitempty"`
	ReturnDocuments bool              `json:"return_documents,omitempty"`
	Metadata        map[string]string `json:"-"`
}

// Document is a candidate passage to rerank.
type Document struct {
	Text  string `json:"text"`
	ID    string `json:"id,omitempty"`
	Title string `json:"title,omitempty"`
}

// RerankResponse is the provider-neutral rerank result.
type RerankResponse struct {
	ID        string         `json:"id,omitempty"`
	Provider  string         `json:"provider"`
	Model     string         `json:"model"`
	Results   []RerankResult `json:"results"`
	Usage     RerankUsage    `json:"usage"`
	CreatedAt time.Time      `json:"created_at,omitempty"`
}

// RerankResult scores one input document. Index refers to the position
// in the request's Documents; RelevanceScore is normalized to [0,1].
type RerankResult struct {
	Index          int      `json:"index"`
	RelevanceScore float64  `json:"relevance_score"`
	Document       Document `json:"document,omitempty"`
}

// RerankUsage reports usage accounting for a rerank call.
type RerankUsage struct {
	SearchUnits int `json:"search_units,omitempty"`
	TotalTokens int `json:"total_tokens,omitempty"`
}

// Provider is the reranking seam.
type Provider interface {
	// Rerank scores documents by relevance to the query.
	Rerank(ctx context.Context, req *RerankRequest) (*RerankResponse, error)

	// RerankSimple is a convenience wrapper over Rerank.
	RerankSimple(ctx context.Context, query string, documents []string, topN int) ([]RerankResult, error)

	// Name returns the provider name.
	Name() string

	// MaxDocuments returns the largest supported document batch.
	MaxDocuments() int
}
