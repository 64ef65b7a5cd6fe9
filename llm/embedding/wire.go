package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// embedAPIRequest is the OpenAI-compatible embeddings request body.
// Jina speaks the same shape plus a task field; fields a provider
// doesn't use stay empty and are omitted.
type embedAPIRequest struct {
	Input          []string `json:"input"`
	Model          string   `json:"model"`
	Dimensions     int      `json:"dimensions,omitempty"`
	EncodingFormat string   `json:"encoding_format,omitempty"`
	Task           string   `json:"task,omitempty"`
}

type embedAPIResponse struct {
	Model string `json:"model"`
	Data  []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
	Usage struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

// postEmbeddings sends the request to the provider's /v1/embeddings
// endpoint and converts the response to the neutral shape. Transient
// failures are retried inside DoRequest.
func (p *BaseProvider) postEmbeddings(ctx context.Context, body embedAPIRequest) (*EmbeddingResponse, error) {
	raw, err := p.DoRequest(ctx, "POST", "/v1/embeddings", body, map[string]string{
		"Authorization": "Bearer " + p.apiKey,
	})
	if err != nil {
		return nil, err
	}

	var resp embedAPIResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode embeddings response: %w", err)
	}

	data := make([]EmbeddingData, len(resp.Data))
	for i, d := range resp.Data {
		data[i] = EmbeddingData{Index: d.Index, Embedding: d.Embedding}
	}
	return &EmbeddingResponse{
		Provider:   p.Name(),
		Model:      resp.Model,
		Embeddings: data,
		Usage: EmbeddingUsage{
			PromptTokens: resp.Usage.PromptTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
		CreatedAt: time.Now(),
	}, nil
}
