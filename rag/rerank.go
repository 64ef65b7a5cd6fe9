package rag

import (
	"context"

	"github.com/hourei-dev/hourei/llm/rerank"
	"github.com/hourei-dev/hourei/types"

	"go.uber.org/zap"
)

// Reranker rescores fused candidates with a cross-encoder. The fused
// scores mix graph weights with cosine similarities, so a dedicated
// relevance model gets the final ordering.
type Reranker struct {
	provider rerank.Provider
	logger   *zap.Logger
}

func NewReranker(provider rerank.Provider, logger *zap.Logger) *Reranker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reranker{
		provider: provider,
		logger:   logger.With(zap.String("component", "reranker")),
	}
}

// Rerank scores candidates against the question and returns the topK
// best. Candidates without text cannot be scored and rank after every
// scored one. Provider failure degrades to the fused order; only
// cancellation is an error.
func (r *Reranker) Rerank(ctx context.Context, question string, candidates []Candidate, topK int) ([]Candidate, error) {
	if len(candidates) == 0 {
		return candidates, nil
	}
	if topK <= 0 || topK > len(candidates) {
		topK = len(candidates)
	}

	scored, tail := splitRerankable(candidates, r.provider.MaxDocuments())
	if len(scored) == 0 {
		return candidates[:topK], nil
	}

	docs := make([]rerank.Document, len(scored))
	for i, c := range scored {
		docs[i] = rerank.Document{ID: c.ChunkID, Text: c.Text}
	}

	resp, err := r.provider.Rerank(ctx, &rerank.RerankRequest{
		Query:     question,
		Documents: docs,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, types.NewError(types.ErrCancelled, "rerank cancelled").WithCause(ctx.Err())
		}
		r.logger.Warn("rerank failed, keeping fused order", zap.Error(err))
		return candidates[:topK], nil
	}

	rescored := make([]Candidate, len(scored))
	copy(rescored, scored)
	for i := range rescored {
		rescored[i].OriginalScore = rescored[i].Score
		rescored[i].RerankScore = 0
	}

	var maxScore float64
	for _, res := range resp.Results {
		if res.Index < 0 || res.Index >= len(rescored) {
			continue
		}
		rescored[res.Index].RerankScore = res.RelevanceScore
		if res.RelevanceScore > maxScore {
			maxScore = res.RelevanceScore
		}
	}

	// Cross-encoder scales vary by model, so rescale against the best
	// hit. The top candidate always scores exactly 1.0.
	for i := range rescored {
		if maxScore > 0 {
			rescored[i].Score = rescored[i].RerankScore / maxScore
		} else {
			rescored[i].Score = 0
		}
	}
	sortCandidates(rescored)

	out := append(rescored, tail...)
	if len(out) > topK {
		out = out[:topK]
	}

	r.logger.Debug("rerank applied",
		zap.Int("scored", len(rescored)),
		zap.Int("unscored", len(tail)),
		zap.Int("returned", len(out)))
	return out, nil
}

// splitRerankable separates candidates with text from those without.
// Overflow past the provider's batch limit joins the unscored tail.
func splitRerankable(candidates []Candidate, maxDocs int) (scored, tail []Candidate) {
	for _, c := range candidates {
		if c.Text == "" || (maxDocs > 0 && len(scored) == maxDocs) {
			tail = append(tail, c)
			continue
		}
		scored = append(scored, c)
	}
	return scored, tail
}
