package rag

import (
	"context"
	"sort"

	"github.com/hourei-dev/hourei/llm/embedding"
	"github.com/hourei-dev/hourei/types"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// VectorStore searches a dense vector index and maps hits to
// candidates with Source set to "vector".
type VectorStore interface {
	Search(ctx context.Context, vector []float64, topK int, filters map[string]string) ([]Candidate, error)
}

// HybridVectorStore additionally fuses a sparse query with the dense
// one on the server side.
type HybridVectorStore interface {
	VectorStore
	HybridSearch(ctx context.Context, dense []float64, sparse SparseVector, topK int, filters map[string]string) ([]Candidate, error)
}

// maxConcurrentSearches bounds the per-expansion fan-out.
const maxConcurrentSearches = 3

// VectorRetriever embeds the expanded search texts in one batch and
// runs one store search per text, merging hits by chunk keep-max.
type VectorRetriever struct {
	embedder embedding.Provider
	sparse   SparseEncoder
	store    VectorStore
	logger   *zap.Logger
}

// NewVectorRetriever builds the dense/hybrid retriever. A nil sparse
// encoder disables hybrid search even when requested.
func NewVectorRetriever(embedder embedding.Provider, sparse SparseEncoder, store VectorStore, logger *zap.Logger) *VectorRetriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VectorRetriever{
		embedder: embedder,
		sparse:   sparse,
		store:    store,
		logger:   logger.With(zap.String("component", "vector_retriever")),
	}
}

// Retrieve searches every expansion of q and returns the merged
// candidates, best score first. A failed search for one text degrades
// to the remaining texts; only all texts failing is an error.
func (r *VectorRetriever) Retrieve(ctx context.Context, q *Query, topK int, useHybrid bool) ([]Candidate, error) {
	texts := q.SearchTexts
	if len(texts) == 0 {
		texts = []string{q.Primary()}
	}

	vectors, err := r.embedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}

	hybrid, _ := r.store.(HybridVectorStore)
	sparseVecs := r.sparseBatch(ctx, texts, useHybrid && hybrid != nil)

	perText := make([][]Candidate, len(texts))
	errs := make([]error, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentSearches)
	for i := range texts {
		g.Go(func() error {
			var sparse SparseVector
			if sparseVecs != nil {
				sparse = sparseVecs[i]
			}
			hits, err := r.searchOne(gctx, hybrid, vectors[i], sparse, topK, q.Filters)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				r.logger.Warn("vector search failed for expansion",
					zap.String("text", texts[i]),
					zap.Error(err))
				errs[i] = err
				return nil
			}
			perText[i] = hits
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, types.NewError(types.ErrCancelled, "vector retrieval cancelled").WithCause(ctx.Err())
		}
		return nil, err
	}

	failed := 0
	merged := make(map[string]Candidate)
	for i, hits := range perText {
		if errs[i] != nil {
			failed++
			continue
		}
		for _, hit := range hits {
			if hit.ChunkID == "" {
				continue
			}
			if prev, ok := merged[hit.ChunkID]; !ok || hit.Score > prev.Score {
				merged[hit.ChunkID] = hit
			}
		}
	}
	if failed == len(texts) {
		return nil, types.NewError(types.ErrStoreQueryFailed, "all vector searches failed").
			WithCause(errs[len(errs)-1])
	}

	candidates := make([]Candidate, 0, len(merged))
	for _, c := range merged {
		candidates = append(candidates, c)
	}
	sortCandidates(candidates)

	r.logger.Debug("vector retrieval merged",
		zap.Int("texts", len(texts)),
		zap.Int("failed", failed),
		zap.Int("candidates", len(candidates)))
	return candidates, nil
}

// embedBatch turns all texts into dense vectors with a single
// provider call, restoring request order from the response indices.
func (r *VectorRetriever) embedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	resp, err := r.embedder.Embed(ctx, &embedding.EmbeddingRequest{
		Input:     texts,
		InputType: embedding.InputTypeQuery,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, types.NewError(types.ErrCancelled, "embedding cancelled").WithCause(ctx.Err())
		}
		return nil, types.NewError(types.ErrEmbeddingFailed, "failed to embed search texts").WithCause(err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, types.NewError(types.ErrEmbeddingFailed, "embedding count mismatch")
	}

	vectors := make([][]float64, len(texts))
	for _, data := range resp.Embeddings {
		if data.Index < 0 || data.Index >= len(vectors) {
			return nil, types.NewError(types.ErrEmbeddingFailed, "embedding index out of range")
		}
		vectors[data.Index] = data.Embedding
	}
	return vectors, nil
}

// sparseBatch encodes all texts in one call when hybrid search will
// run. A failed encoder degrades the request to dense-only.
func (r *VectorRetriever) sparseBatch(ctx context.Context, texts []string, wantHybrid bool) []SparseVector {
	if !wantHybrid || r.sparse == nil {
		return nil
	}
	vectors, err := r.sparse.EmbedBatch(ctx, texts)
	if err != nil || len(vectors) != len(texts) {
		r.logger.Warn("sparse encoding failed, falling back to dense search",
			zap.Error(err))
		return nil
	}
	return vectors
}

func (r *VectorRetriever) searchOne(ctx context.Context, hybrid HybridVectorStore, dense []float64, sparse SparseVector, topK int, filters map[string]string) ([]Candidate, error) {
	if hybrid != nil && !sparse.IsEmpty() {
		return hybrid.HybridSearch(ctx, dense, sparse, topK, filters)
	}
	return r.store.Search(ctx, dense, topK, filters)
}

// sortCandidates orders by score descending, chunk id ascending on
// ties so results are stable across runs.
func sortCandidates(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].ChunkID < candidates[j].ChunkID
	})
}
