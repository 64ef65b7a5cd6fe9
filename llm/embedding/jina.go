package embedding

import "context"

// JinaProvider embeds through the Jina AI API. Jina models are
// task-conditioned, so the neutral query/document input type maps to
// the retrieval task pair.
type JinaProvider struct {
	*BaseProvider
	cfg JinaConfig
}

var _ Provider = (*JinaProvider)(nil)

// NewJinaProvider creates a Jina AI embedding provider.
func NewJinaProvider(cfg JinaConfig) *JinaProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.jina.ai"
	}
	if cfg.Model == "" {
		cfg.Model = "jina-embeddings-v3"
	}

	return &JinaProvider{
		BaseProvider: NewBaseProvider(BaseConfig{
			Name:       "jina-embedding",
			BaseURL:    cfg.BaseURL,
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Dimensions: 1024,
			MaxBatch:   2048,
			Timeout:    cfg.Timeout,
		}),
		cfg: cfg,
	}
}

// Embed generates embeddings for all inputs in one call.
func (p *JinaProvider) Embed(ctx context.Context, req *EmbeddingRequest) (*EmbeddingResponse, error) {
	return p.postEmbeddings(ctx, embedAPIRequest{
		Input:      req.Input,
		Model:      ChooseModel(req.Model, p.cfg.Model, "jina-embeddings-v3"),
		Dimensions: req.Dimensions,
		Task:       jinaTask(req.InputType),
	})
}

func jinaTask(t InputType) string {
	switch t {
	case InputTypeQuery:
		return "retrieval.query"
	case InputTypeDocument:
		return "retrieval.passage"
	}
	return ""
}

// EmbedQuery embeds a single query.
func (p *JinaProvider) EmbedQuery(ctx context.Context, query string) ([]float64, error) {
	return p.BaseProvider.EmbedQuery(ctx, query, p.Embed)
}

// EmbedDocuments embeds multiple documents.
func (p *JinaProvider) EmbedDocuments(ctx context.Context, documents []string) ([][]float64, error) {
	return p.BaseProvider.EmbedDocuments(ctx, documents, p.Embed)
}
