package rag

import (
	"context"

	"go.uber.org/zap"
)

// GraphStore is the statute graph port. The graph holds
// (Law)-[:HAS_CHAPTER]->(Chapter)-[:HAS_ARTICLE]->(Article)
// -[:HAS_PARAGRAPH]->(Paragraph) plus (Article)-[:REFERENCES]->(Article).
type GraphStore interface {
	// FindArticle looks up one article by law title substring and
	// article number. Returns nil when nothing matches.
	FindArticle(ctx context.Context, lawTitle, articleNum string) (*GraphResult, error)
	// FindRelated walks REFERENCES edges from an article up to depth
	// hops, nearest first.
	FindRelated(ctx context.Context, lawID, articleNum string, depth, limit int) ([]GraphResult, error)
	// KeywordSearch matches keyword as a substring of article titles,
	// captions and law titles.
	KeywordSearch(ctx context.Context, keyword string, limit int) ([]GraphResult, error)
	// LawStructure returns the chapter and article outline of a law.
	LawStructure(ctx context.Context, lawID string) (*LawOutline, error)
	// Stats reports node and relationship counts by label.
	Stats(ctx context.Context) (*GraphStats, error)
}

// Per-entity traversal limits.
const (
	relatedDepth        = 2
	relatedLimit        = 3
	lawKeywordLimit     = 5
	articleKeywordLimit = 3
)

// GraphRetriever expands routed entities into graph results.
type GraphRetriever struct {
	store  GraphStore
	logger *zap.Logger
}

// NewGraphRetriever creates a retriever over the given store.
func NewGraphRetriever(store GraphStore, logger *zap.Logger) *GraphRetriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GraphRetriever{
		store:  store,
		logger: logger.With(zap.String("component", "graph_retriever")),
	}
}

// Retrieve runs the per-entity strategy: exact lookup plus reference
// traversal for law+article entities, keyword search for law names and
// bare articles. Individual lookup failures are logged and skipped so
// a flaky graph degrades instead of failing the request. The only
// returned error is context cancellation.
func (g *GraphRetriever) Retrieve(ctx context.Context, entities []Entity) ([]GraphResult, error) {
	var results []GraphResult

	for _, entity := range entities {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		switch entity.Kind {
		case EntityLawArticle:
			law, num, ok := splitLawArticle(entity.Text)
			if !ok {
				continue
			}
			hit, err := g.store.FindArticle(ctx, law, num)
			if err != nil {
				g.logger.Warn("article lookup failed",
					zap.String("entity", entity.Text), zap.Error(err))
				continue
			}
			if hit == nil {
				continue
			}
			results = append(results, *hit)

			related, err := g.store.FindRelated(ctx, hit.LawID, num, relatedDepth, relatedLimit)
			if err != nil {
				g.logger.Warn("related article traversal failed",
					zap.String("law_id", hit.LawID),
					zap.String("article_num", num), zap.Error(err))
				continue
			}
			results = append(results, related...)

		case EntityLaw:
			hits, err := g.store.KeywordSearch(ctx, entity.Text, lawKeywordLimit)
			if err != nil {
				g.logger.Warn("law keyword search failed",
					zap.String("entity", entity.Text), zap.Error(err))
				continue
			}
			results = append(results, hits...)

		case EntityArticle:
			hits, err := g.store.KeywordSearch(ctx, entity.Text, articleKeywordLimit)
			if err != nil {
				g.logger.Warn("article keyword search failed",
					zap.String("entity", entity.Text), zap.Error(err))
				continue
			}
			results = append(results, hits...)
		}
	}

	results = dedupeGraphResults(results)
	for i := range results {
		if results[i].HighlightPath == nil {
			results[i].HighlightPath = map[string]string{
				"law":     results[i].LawTitle,
				"article": "第" + results[i].ArticleNumber + "条",
			}
		}
	}
	return results, nil
}

// dedupeGraphResults drops repeat (law, article) pairs, keeping the
// first occurrence so exact lookups outrank traversal hits.
func dedupeGraphResults(results []GraphResult) []GraphResult {
	type key struct{ lawID, articleNum string }
	seen := make(map[key]struct{}, len(results))
	out := make([]GraphResult, 0, len(results))
	for _, r := range results {
		k := key{lawID: r.LawID, articleNum: r.ArticleNumber}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out
}
