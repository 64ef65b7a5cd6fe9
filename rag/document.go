package rag

// QueryType classifies how a query should be retrieved.
type QueryType string

const (
	// QueryEntityLookup targets a specific article, graph only.
	QueryEntityLookup QueryType = "entity_lookup"
	// QueryMultiHop follows references between articles, graph and vector.
	QueryMultiHop QueryType = "multi_hop"
	// QueryHybrid mentions entities without a clear intent, graph and vector.
	QueryHybrid QueryType = "hybrid"
	// QuerySemantic has no legal entities, vector only.
	QuerySemantic QueryType = "semantic"
)

// EntityKind tags an extracted legal entity.
type EntityKind string

const (
	// EntityLawArticle is a law name plus article number, e.g. 労働基準法第32条.
	EntityLawArticle EntityKind = "law_article"
	// EntityArticle is a bare article number, e.g. 第32条 or 第32条の2.
	EntityArticle EntityKind = "article"
	// EntityLaw is a law name alone, e.g. 労働基準法.
	EntityLaw EntityKind = "law"
)

// Entity is a legal reference extracted from query text.
type Entity struct {
	Text string
	Kind EntityKind
}

// RoutedQuery is the routing decision for one query text.
type RoutedQuery struct {
	Query     string
	Type      QueryType
	Entities  []Entity
	UseGraph  bool
	UseVector bool
}

// Toggle is a tri-state request option: follow the default, force on,
// or force off.
type Toggle int

const (
	ToggleDefault Toggle = iota
	ToggleOn
	ToggleOff
)

// Resolve collapses the toggle against a fallback value.
func (t Toggle) Resolve(fallback bool) bool {
	switch t {
	case ToggleOn:
		return true
	case ToggleOff:
		return false
	default:
		return fallback
	}
}

// Options carries per-request knobs for Chat and Search. Zero value
// means server defaults everywhere.
type Options struct {
	// TopK is the number of sources to return, clamped to 1..50.
	// Zero selects the default; negative values are rejected.
	TopK int
	// Filters are exact-match payload constraints, conjunctive.
	Filters map[string]string
	// UseGraph overrides the router's graph decision.
	UseGraph Toggle
	// UseHybrid overrides dense-only versus dense+sparse search.
	UseHybrid Toggle
	// MultiQuery overrides query expansion into multiple search texts.
	MultiQuery Toggle
}

// Query is a prepared query. It is immutable after preparation;
// adaptive rewrites build a new value instead of mutating.
type Query struct {
	// Original is the user's question as received.
	Original string
	// Translated is the corpus-language form of Original. Equal to
	// Original when translation was skipped or failed.
	Translated string
	// SearchTexts are the retrieval variants, primary first. Never
	// empty after preparation.
	SearchTexts []string
	// Keywords are expansion terms kept for diagnostics and logging.
	Keywords []string
	// Filters are the merged explicit and auto-detected constraints.
	Filters map[string]string
	// TopK is the clamped result count.
	TopK int

	UseGraph   Toggle
	UseHybrid  Toggle
	MultiQuery Toggle
}

// Primary returns the main search text, falling back to the original
// question when preparation produced nothing.
func (q *Query) Primary() string {
	if len(q.SearchTexts) > 0 {
		return q.SearchTexts[0]
	}
	return q.Original
}

// Expansion is the structured result of LLM query expansion.
type Expansion struct {
	Original      string   `json:"original"`
	Translated    string   `json:"translated"`
	Keywords      []string `json:"keywords"`
	RelatedTerms  []string `json:"related_terms"`
	SearchQueries []string `json:"search_queries"`
}

// Candidate source labels.
const (
	SourceGraph  = "graph"
	SourceVector = "vector"
	SourceHybrid = "hybrid"
	SourceRerank = "rerank"
)

// Candidate is one retrieved chunk. ChunkID is the dedupe key across
// retrieval stages.
type Candidate struct {
	ChunkID string
	Score   float64
	// Source records which stage produced the kept score: graph,
	// vector or hybrid. Reranking rescores but keeps the source.
	Source string

	LawID          string
	LawTitle       string
	ArticleNumber  string
	ArticleTitle   string
	ArticleCaption string
	ChapterTitle   string
	ParagraphNum   string
	Category       string

	Text            string
	TextWithContext string
	HighlightPath   map[string]string

	// OriginalScore preserves the fused score once a reranker has
	// overwritten Score. RerankScore is the raw cross-encoder output.
	OriginalScore float64
	RerankScore   float64

	Metadata map[string]any
}

// DisplayText picks the context-window variant when asked and present.
func (c *Candidate) DisplayText(preferContext bool) string {
	if preferContext && c.TextWithContext != "" {
		return c.TextWithContext
	}
	return c.Text
}

// GraphResult is one hit from the statute graph.
type GraphResult struct {
	LawID          string
	LawTitle       string
	ArticleNumber  string
	ArticleTitle   string
	ArticleCaption string
	// ChunkID links the article to its first paragraph chunk in the
	// vector store. Empty when the article has no indexed paragraph.
	ChunkID string
	// Relevance is in (0,1]: 1.0 exact lookup, 0.95^distance for
	// reference traversal, 0.8 for keyword matches.
	Relevance     float64
	HighlightPath map[string]string
}

// LawOutline is the chapter and article skeleton of one law.
type LawOutline struct {
	LawID    string           `json:"law_id"`
	LawTitle string           `json:"law_title"`
	Chapters []ChapterOutline `json:"chapters"`
}

// ChapterOutline is one chapter with its article headings.
type ChapterOutline struct {
	Number   string       `json:"num"`
	Title    string       `json:"title"`
	Articles []ArticleRef `json:"articles"`
}

// ArticleRef is an article heading inside a chapter outline.
type ArticleRef struct {
	Number  string `json:"num"`
	Title   string `json:"title"`
	Caption string `json:"caption"`
}

// GraphStats reports node and relationship counts by label.
type GraphStats struct {
	Nodes         map[string]int64 `json:"nodes"`
	Relationships map[string]int64 `json:"relationships"`
}

// SourceDocument is one cited source on an Answer. Text is capped at
// 500 display characters.
type SourceDocument struct {
	ChunkID        string            `json:"chunk_id"`
	LawID          string            `json:"law_id"`
	LawTitle       string            `json:"law_title"`
	ArticleTitle   string            `json:"article_title"`
	ArticleCaption string            `json:"article_caption"`
	ChapterTitle   string            `json:"chapter_title"`
	ParagraphNum   string            `json:"paragraph_num"`
	Text           string            `json:"text"`
	Score          float64           `json:"score"`
	Source         string            `json:"source"`
	HighlightPath  map[string]string `json:"highlight_path,omitempty"`
	Metadata       map[string]any    `json:"metadata,omitempty"`
}

// Answer is the final pipeline output. Sources are ordered by rank;
// citation [i] in the answer text refers to Sources[i-1].
type Answer struct {
	Answer    string           `json:"answer"`
	Sources   []SourceDocument `json:"sources"`
	Query     string           `json:"query"`
	ElapsedMS int64            `json:"elapsed_ms"`

	// Run diagnostics for boundary logging, kept off the wire.
	Route      string `json:"-"`
	Translated string `json:"-"`
	Rewrites   int    `json:"-"`
	Reranked   bool   `json:"-"`
}

// maxSourceDisplayRunes caps SourceDocument text length.
const maxSourceDisplayRunes = 500

// truncateDisplay cuts s to max runes, appending "..." when cut.
func truncateDisplay(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
