package rerank

import (
	"context"
	"net/http"
	"time"

	"github.com/hourei-dev/hourei/internal/httpclient"
)

// TEIProvider reranks against a HuggingFace text-embeddings-inference
// server, typically a self-hosted BGE cross-encoder. With raw_scores
// disabled the server returns sigmoid scores, so RelevanceScore is
// already in [0,1].
type TEIProvider struct {
	cfg    TEIConfig
	client *http.Client
}

var _ Provider = (*TEIProvider)(nil)

// NewTEIProvider creates a reranker provider for a TEI server.
func NewTEIProvider(cfg TEIConfig) *TEIProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8080"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &TEIProvider{cfg: cfg, client: httpclient.New(timeout)}
}

func (p *TEIProvider) Name() string      { return "tei-rerank" }
func (p *TEIProvider) MaxDocuments() int { return 256 }

type teiRerankRequest struct {
	Query      string   `json:"query"`
	Texts      []string `json:"texts"`
	RawScores  bool     `json:"raw_scores"`
	ReturnText bool     `json:"return_text"`
}

type teiRerankResult struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
	Text  string  `json:"text,omitempty"`
}

// Rerank scores documents against the query on the TEI server.
func (p *TEIProvider) Rerank(ctx context.Context, req *RerankRequest) (*RerankResponse, error) {
	texts := make([]string, len(req.Documents))
	for i, d := range req.Documents {
		texts[i] = d.Text
	}

	var teiResults []teiRerankResult
	err := postJSON(ctx, p.client, p.cfg.BaseURL, "/rerank", nil,
		teiRerankRequest{
			Query:      req.Query,
			Texts:      texts,
			RawScores:  false,
			ReturnText: req.ReturnDocuments,
		}, &teiResults)
	if err != nil {
		return nil, err
	}

	// TEI scores every document; TopN applies locally.
	if req.TopN > 0 && req.TopN < len(teiResults) {
		teiResults = teiResults[:req.TopN]
	}

	results := make([]RerankResult, len(teiResults))
	for i, r := range teiResults {
		results[i] = RerankResult{Index: r.Index, RelevanceScore: r.Score}
		if r.Text != "" {
			results[i].Document = Document{Text: r.Text}
		}
		if r.Index < len(req.Documents) {
			results[i].Document.ID = req.Documents[r.Index].ID
		}
	}

	return &RerankResponse{
		Provider:  p.Name(),
		Model:     p.cfg.Model,
		Results:   results,
		CreatedAt: time.Now(),
	}, nil
}

// RerankSimple reranks plain strings.
func (p *TEIProvider) RerankSimple(ctx context.Context, query string, documents []string, topN int) ([]RerankResult, error) {
	return simpleRerank(ctx, p, query, documents, topN)
}
