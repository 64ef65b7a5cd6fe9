package rag

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/hourei-dev/hourei/types"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

// Relevance constants for graph hits. Exact lookups are fully
// relevant, traversal decays per hop, keyword matches score flat.
const (
	exactMatchRelevance   = 1.0
	relatedDecayBase      = 0.95
	keywordRelevance      = 0.8
	defaultNeo4jTimeout   = 5 * time.Second
	defaultNeo4jDatabase  = "neo4j"
	maxTraversalDepth     = 3
	defaultTraversalDepth = 2
)

const findArticleCypher = `
MATCH (l:Law)-[:HAS_CHAPTER]->(c:Chapter)-[:HAS_ARTICLE]->(a:Article)
WHERE l.title CONTAINS $law_title AND a.num = $article_num
OPTIONAL MATCH (a)-[:HAS_PARAGRAPH]->(p:Paragraph)
RETURN l.law_id as law_id, l.title as law_title,
       a.num as article_num, a.title as article_title, a.caption as caption,
       collect(p.chunk_id)[0] as chunk_id
LIMIT 1`

// findRelatedCypher has its traversal depth spliced in because
// variable-length patterns cannot take parameters. The depth is
// clamped to a small integer first.
const findRelatedCypher = `
MATCH (start:Article {law_id: $law_id, num: $article_num})
MATCH path = (start)-[:REFERENCES*1..%d]-(related:Article)
WHERE related.law_id = $law_id AND related.num <> $article_num
MATCH (l:Law {law_id: related.law_id})
OPTIONAL MATCH (related)-[:HAS_PARAGRAPH]->(p:Paragraph)
RETURN DISTINCT l.law_id as law_id, l.title as law_title,
       related.num as article_num, related.title as article_title,
       related.caption as caption,
       collect(DISTINCT p.chunk_id)[0] as chunk_id,
       length(path) as distance
ORDER BY distance
LIMIT $limit`

const keywordSearchCypher = `
MATCH (l:Law)-[:HAS_CHAPTER]->(:Chapter)-[:HAS_ARTICLE]->(a:Article)
WHERE a.title CONTAINS $keyword OR a.caption CONTAINS $keyword
      OR l.title CONTAINS $keyword
OPTIONAL MATCH (a)-[:HAS_PARAGRAPH]->(p:Paragraph)
RETURN DISTINCT l.law_id as law_id, l.title as law_title,
       a.num as article_num, a.title as article_title, a.caption as caption,
       collect(DISTINCT p.chunk_id)[0] as chunk_id
LIMIT $limit`

const lawStructureCypher = `
MATCH (l:Law {law_id: $law_id})-[:HAS_CHAPTER]->(c:Chapter)
OPTIONAL MATCH (c)-[:HAS_ARTICLE]->(a:Article)
RETURN l.title as law_title, c.num as chapter_num, c.title as chapter_title,
       collect({num: a.num, title: a.title, caption: a.caption}) as articles
ORDER BY c.num`

const nodeCountsCypher = `MATCH (n) RETURN labels(n)[0] as label, count(*) as count`

const relCountsCypher = `MATCH ()-[r]->() RETURN type(r) as type, count(*) as count`

// Neo4jConfig holds the statute graph connection settings.
type Neo4jConfig struct {
	URI      string
	Username string
	Password string
	Database string
	// MaxPoolSize caps pooled bolt connections. Zero keeps the driver
	// default.
	MaxPoolSize int
	// Timeout bounds every graph query.
	Timeout time.Duration
}

// Neo4jStore implements GraphStore over the bolt protocol.
type Neo4jStore struct {
	driver   neo4j.DriverWithContext
	database string
	timeout  time.Duration
	logger   *zap.Logger
}

var _ GraphStore = (*Neo4jStore)(nil)

// NewNeo4jStore creates a store. The connection is lazy; call Verify
// to probe it.
func NewNeo4jStore(cfg Neo4jConfig, logger *zap.Logger) (*Neo4jStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Database == "" {
		cfg.Database = defaultNeo4jDatabase
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultNeo4jTimeout
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""),
		func(c *neo4j.Config) {
			if cfg.MaxPoolSize > 0 {
				c.MaxConnectionPoolSize = cfg.MaxPoolSize
			}
		})
	if err != nil {
		return nil, types.NewError(types.ErrGraphUnavailable, "failed to create neo4j driver").
			WithCause(err).WithProvider("neo4j")
	}

	return &Neo4jStore{
		driver:   driver,
		database: cfg.Database,
		timeout:  cfg.Timeout,
		logger:   logger.With(zap.String("component", "neo4j_store")),
	}, nil
}

// Verify probes connectivity so startup can decide whether to run
// with the graph disabled.
func (s *Neo4jStore) Verify(ctx context.Context) error {
	if err := s.driver.VerifyConnectivity(ctx); err != nil {
		return types.NewError(types.ErrGraphUnavailable, "neo4j unreachable").
			WithCause(err).WithProvider("neo4j")
	}
	return nil
}

// Close releases the driver's connection pool.
func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// FindArticle looks up one article by law title substring and exact
// article number, with relevance 1.0.
func (s *Neo4jStore) FindArticle(ctx context.Context, lawTitle, articleNum string) (*GraphResult, error) {
	records, err := s.read(ctx, findArticleCypher, map[string]any{
		"law_title":   lawTitle,
		"article_num": articleNum,
	})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	result := recordToGraphResult(records[0], exactMatchRelevance)
	return &result, nil
}

// FindRelated walks REFERENCES edges up to depth hops from the given
// article, relevance decaying per hop, nearest first.
func (s *Neo4jStore) FindRelated(ctx context.Context, lawID, articleNum string, depth, limit int) ([]GraphResult, error) {
	if depth < 1 {
		depth = defaultTraversalDepth
	}
	if depth > maxTraversalDepth {
		depth = maxTraversalDepth
	}

	records, err := s.read(ctx, fmt.Sprintf(findRelatedCypher, depth), map[string]any{
		"law_id":      lawID,
		"article_num": articleNum,
		"limit":       limit,
	})
	if err != nil {
		return nil, err
	}

	results := make([]GraphResult, 0, len(records))
	for _, record := range records {
		distance := intValue(record, "distance")
		if distance < 1 {
			distance = 1
		}
		results = append(results, recordToGraphResult(record, math.Pow(relatedDecayBase, float64(distance))))
	}
	return results, nil
}

// KeywordSearch matches keyword as a substring of article titles,
// captions and law titles, with flat relevance.
func (s *Neo4jStore) KeywordSearch(ctx context.Context, keyword string, limit int) ([]GraphResult, error) {
	records, err := s.read(ctx, keywordSearchCypher, map[string]any{
		"keyword": keyword,
		"limit":   limit,
	})
	if err != nil {
		return nil, err
	}

	results := make([]GraphResult, 0, len(records))
	for _, record := range records {
		results = append(results, recordToGraphResult(record, keywordRelevance))
	}
	return results, nil
}

// LawStructure returns the chapter and article outline of a law, or
// nil when the law is unknown.
func (s *Neo4jStore) LawStructure(ctx context.Context, lawID string) (*LawOutline, error) {
	records, err := s.read(ctx, lawStructureCypher, map[string]any{"law_id": lawID})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	outline := &LawOutline{
		LawID:    lawID,
		LawTitle: stringValue(records[0], "law_title"),
		Chapters: make([]ChapterOutline, 0, len(records)),
	}
	for _, record := range records {
		outline.Chapters = append(outline.Chapters, ChapterOutline{
			Number:   stringValue(record, "chapter_num"),
			Title:    stringValue(record, "chapter_title"),
			Articles: articleRefs(record),
		})
	}
	return outline, nil
}

// Stats reports node and relationship counts by label.
func (s *Neo4jStore) Stats(ctx context.Context) (*GraphStats, error) {
	stats := &GraphStats{
		Nodes:         make(map[string]int64),
		Relationships: make(map[string]int64),
	}

	nodeRecords, err := s.read(ctx, nodeCountsCypher, nil)
	if err != nil {
		return nil, err
	}
	for _, record := range nodeRecords {
		if label := stringValue(record, "label"); label != "" {
			stats.Nodes[label] = intValue(record, "count")
		}
	}

	relRecords, err := s.read(ctx, relCountsCypher, nil)
	if err != nil {
		return nil, err
	}
	for _, record := range relRecords {
		if relType := stringValue(record, "type"); relType != "" {
			stats.Relationships[relType] = intValue(record, "count")
		}
	}
	return stats, nil
}

func (s *Neo4jStore) read(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	result, err := neo4j.ExecuteQuery(ctx, s.driver, cypher, params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(s.database),
		neo4j.ExecuteQueryWithReadersRouting())
	if err != nil {
		return nil, types.NewError(types.ErrStoreQueryFailed, "graph query failed").
			WithCause(err).WithProvider("neo4j")
	}

	s.logger.Debug("graph query",
		zap.Int("records", len(result.Records)),
		zap.Duration("elapsed", time.Since(start)))
	return result.Records, nil
}

// recordToGraphResult maps the shared column set of the lookup
// queries. Optional columns such as caption and chunk_id may be null.
func recordToGraphResult(record *neo4j.Record, relevance float64) GraphResult {
	lawTitle := stringValue(record, "law_title")
	articleNum := stringValue(record, "article_num")
	return GraphResult{
		LawID:          stringValue(record, "law_id"),
		LawTitle:       lawTitle,
		ArticleNumber:  articleNum,
		ArticleTitle:   stringValue(record, "article_title"),
		ArticleCaption: stringValue(record, "caption"),
		ChunkID:        stringValue(record, "chunk_id"),
		Relevance:      relevance,
		HighlightPath: map[string]string{
			"law":     lawTitle,
			"article": "第" + articleNum + "条",
		},
	}
}

func articleRefs(record *neo4j.Record) []ArticleRef {
	raw, ok := record.Get("articles")
	if !ok {
		return nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil
	}

	refs := make([]ArticleRef, 0, len(items))
	for _, item := range items {
		fields, ok := item.(map[string]any)
		if !ok {
			continue
		}
		num, _ := fields["num"].(string)
		if num == "" {
			// Chapters without articles collect one all-null entry.
			continue
		}
		title, _ := fields["title"].(string)
		caption, _ := fields["caption"].(string)
		refs = append(refs, ArticleRef{Number: num, Title: title, Caption: caption})
	}
	return refs
}

func stringValue(record *neo4j.Record, key string) string {
	v, ok := record.Get(key)
	if !ok || v == nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

func intValue(record *neo4j.Record, key string) int64 {
	v, ok := record.Get(key)
	if !ok || v == nil {
		return 0
	}
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}
