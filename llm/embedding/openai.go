package embedding

import "context"

// OpenAIProvider embeds through the OpenAI embeddings API. The
// text-embedding-3 family is what the statute index was built with,
// so the default model and width must match the collection schema.
type OpenAIProvider struct {
	*BaseProvider
	cfg OpenAIConfig
}

var _ Provider = (*OpenAIProvider)(nil)

// NewOpenAIProvider creates an OpenAI embedding provider.
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = 1536
	}

	return &OpenAIProvider{
		BaseProvider: NewBaseProvider(BaseConfig{
			Name:       "openai-embedding",
			BaseURL:    cfg.BaseURL,
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			MaxBatch:   2048,
			Timeout:    cfg.Timeout,
		}),
		cfg: cfg,
	}
}

// Embed generates embeddings for all inputs in one call.
func (p *OpenAIProvider) Embed(ctx context.Context, req *EmbeddingRequest) (*EmbeddingResponse, error) {
	dims := req.Dimensions
	if dims == 0 {
		dims = p.cfg.Dimensions
	}
	return p.postEmbeddings(ctx, embedAPIRequest{
		Input:          req.Input,
		Model:          ChooseModel(req.Model, p.cfg.Model, "text-embedding-3-small"),
		Dimensions:     dims,
		EncodingFormat: req.EncodingFormat,
	})
}

// EmbedQuery embeds a single query.
func (p *OpenAIProvider) EmbedQuery(ctx context.Context, query string) ([]float64, error) {
	return p.BaseProvider.EmbedQuery(ctx, query, p.Embed)
}

// EmbedDocuments embeds multiple documents.
func (p *OpenAIProvider) EmbedDocuments(ctx context.Context, documents []string) ([][]float64, error) {
	return p.BaseProvider.EmbedDocuments(ctx, documents, p.Embed)
}
