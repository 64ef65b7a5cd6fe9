package rerank

import (
	"context"
	"net/http"
	"time"

	"github.com/hourei-dev/hourei/internal/httpclient"
)

// JinaProvider reranks through the Jina AI API. The multilingual v2
// reranker handles mixed Japanese/Vietnamese query-passage pairs.
type JinaProvider struct {
	cfg    JinaConfig
	client *http.Client
}

var _ Provider = (*JinaProvider)(nil)

// NewJinaProvider creates a Jina reranker provider.
func NewJinaProvider(cfg JinaConfig) *JinaProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.jina.ai"
	}
	if cfg.Model == "" {
		cfg.Model = "jina-reranker-v2-base-multilingual"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &JinaProvider{cfg: cfg, client: httpclient.New(timeout)}
}

func (p *JinaProvider) Name() string      { return "jina-rerank" }
func (p *JinaProvider) MaxDocuments() int { return 1024 }

type jinaRerankRequest struct {
	Query           string   `json:"query"`
	Documents       []string `json:"documents"`
	Model           string   `json:"model"`
	TopN            int      `json:"top_n,omitempty"`
	ReturnDocuments bool     `json:"return_documents,omitempty"`
}

type jinaRerankResponse struct {
	Model   string `json:"model"`
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
		Document       *struct {
			Text string `json:"text"`
		} `json:"document,omitempty"`
	} `json:"results"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// Rerank scores documents against the query.
func (p *JinaProvider) Rerank(ctx context.Context, req *RerankRequest) (*RerankResponse, error) {
	model := req.Model
	if model == "" {
		model = p.cfg.Model
	}
	docs := make([]string, len(req.Documents))
	for i, d := range req.Documents {
		docs[i] = d.Text
	}

	var jResp jinaRerankResponse
	err := postJSON(ctx, p.client, p.cfg.BaseURL, "/v1/rerank",
		map[string]string{"Authorization": "Bearer " + p.cfg.APIKey},
		jinaRerankRequest{
			Query:           req.Query,
			Documents:       docs,
			Model:           model,
			TopN:            req.TopN,
			ReturnDocuments: req.ReturnDocuments,
		}, &jResp)
	if err != nil {
		return nil, err
	}

	results := make([]RerankResult, len(jResp.Results))
	for i, r := range jResp.Results {
		results[i] = RerankResult{Index: r.Index, RelevanceScore: r.RelevanceScore}
		if r.Document != nil {
			results[i].Document = Document{Text: r.Document.Text}
		}
		if r.Index < len(req.Documents) {
			results[i].Document.ID = req.Documents[r.Index].ID
		}
	}

	return &RerankResponse{
		Provider:  p.Name(),
		Model:     jResp.Model,
		Results:   results,
		Usage:     RerankUsage{TotalTokens: jResp.Usage.TotalTokens},
		CreatedAt: time.Now(),
	}, nil
}

// RerankSimple reranks plain strings.
func (p *JinaProvider) RerankSimple(ctx context.Context, query string, documents []string, topN int) ([]RerankResult, error) {
	return simpleRerank(ctx, p, query, documents, topN)
}
