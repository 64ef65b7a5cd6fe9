package rag

import (
	"context"
	"strings"

	"github.com/hourei-dev/hourei/types"

	"go.uber.org/zap"
)

// Top-k bounds for prepared queries. A zero TopK selects the default;
// out-of-range values clamp. Explicit zero rejection happens at the
// HTTP boundary where absence and zero are distinguishable.
const (
	defaultTopK = 10
	minTopK     = 1
	maxTopK     = 50
)

// QueryPreparer turns a raw question plus request options into an
// immutable Query: validated top-k, merged filters, translated text
// and expansion variants.
type QueryPreparer struct {
	translator Translator
	logger     *zap.Logger
}

// NewQueryPreparer creates a preparer over the given translator.
func NewQueryPreparer(translator Translator, logger *zap.Logger) *QueryPreparer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryPreparer{
		translator: translator,
		logger:     logger.With(zap.String("component", "preparer")),
	}
}

// Prepare validates and enriches a question. Translation and expansion
// failures degrade to the original text; only invalid input and
// context cancellation fail.
func (p *QueryPreparer) Prepare(ctx context.Context, query string, opts Options) (*Query, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, types.NewError(types.ErrEmptyQuery, "query must not be empty")
	}

	topK, err := clampTopK(opts.TopK)
	if err != nil {
		return nil, err
	}

	q := &Query{
		Original:   query,
		TopK:       topK,
		Filters:    mergeFilters(opts.Filters, AnalyzeQuery(query)),
		UseGraph:   opts.UseGraph,
		UseHybrid:  opts.UseHybrid,
		MultiQuery: opts.MultiQuery,
	}

	translated, err := p.translator.Translate(ctx, query)
	if err != nil {
		if ctx.Err() != nil {
			return nil, types.NewError(types.ErrCancelled, "query preparation cancelled").WithCause(err)
		}
		p.logger.Warn("translation failed, using the original query",
			zap.String("query", query), zap.Error(err))
		translated = query
	}
	q.Translated = translated

	if !opts.MultiQuery.Resolve(true) {
		q.SearchTexts = []string{translated}
		return q, nil
	}

	exp, err := p.translator.Expand(ctx, query)
	if err != nil {
		if ctx.Err() != nil {
			return nil, types.NewError(types.ErrCancelled, "query preparation cancelled").WithCause(err)
		}
		p.logger.Warn("expansion failed, using the translation only",
			zap.String("query", query), zap.Error(err))
		q.SearchTexts = []string{translated}
		return q, nil
	}

	q.SearchTexts = buildSearchTexts(translated, exp)
	if len(q.SearchTexts) == 0 {
		q.SearchTexts = []string{translated}
	}
	q.Keywords = exp.Keywords

	p.logger.Debug("query prepared",
		zap.String("query", query),
		zap.String("translated", translated),
		zap.Int("search_texts", len(q.SearchTexts)),
		zap.Any("filters", q.Filters))
	return q, nil
}

// clampTopK resolves the requested result count. Zero selects the
// default, negatives are rejected, everything else clamps to bounds.
func clampTopK(topK int) (int, error) {
	switch {
	case topK < 0:
		return 0, types.NewError(types.ErrInvalidRequest, "top_k must be positive")
	case topK == 0:
		return defaultTopK, nil
	case topK < minTopK:
		return minTopK, nil
	case topK > maxTopK:
		return maxTopK, nil
	default:
		return topK, nil
	}
}

// mergeFilters overlays the detected category filter with explicit
// user filters. User filters win on key conflicts.
func mergeFilters(user map[string]string, analysis Analysis) map[string]string {
	suggested := analysis.SuggestedFilters()
	if len(user) == 0 && len(suggested) == 0 {
		return nil
	}
	merged := make(map[string]string, len(user)+len(suggested))
	for k, v := range suggested {
		merged[k] = v
	}
	for k, v := range user {
		merged[k] = v
	}
	return merged
}
