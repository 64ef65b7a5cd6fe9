package api

import (
	"github.com/hourei-dev/hourei/rag"
	"github.com/hourei-dev/hourei/types"
)

// Wire aliases. The pipeline types already carry the JSON contract, so
// the API layer re-exports them instead of converting field by field.
type (
	SourceDocument = rag.SourceDocument
	LawOutline     = rag.LawOutline
	GraphStats     = rag.GraphStats
)

// QueryOptions are the retrieval knobs shared by chat and search
// requests. Pointer fields distinguish "absent, use the server
// default" from an explicit value.
type QueryOptions struct {
	// Number of sources to return, 1 to 50. Omitted means the server
	// default.
	TopK *int `json:"top_k,omitempty"`
	// Exact-match payload filters, e.g. {"category": "労働"}.
	Filters map[string]string `json:"filters,omitempty"`
	// Force graph retrieval on or off instead of following the router.
	UseGraph *bool `json:"use_graph,omitempty"`
	// Force dense+sparse hybrid search on or off.
	UseHybrid *bool `json:"use_hybrid,omitempty"`
	// Force multi-query expansion on or off.
	MultiQuery *bool `json:"multi_query,omitempty"`
}

// Validate checks the ranges the pipeline can no longer see once
// defaults have been applied. An omitted top_k is valid; an explicit
// out-of-range one is not.
func (o *QueryOptions) Validate() *types.Error {
	if o.TopK != nil && (*o.TopK < 1 || *o.TopK > 50) {
		return types.NewError(types.ErrInvalidRequest, "top_k must be between 1 and 50")
	}
	return nil
}

// Options resolves the wire fields into pipeline options.
func (o *QueryOptions) Options() rag.Options {
	opts := rag.Options{
		Filters:    o.Filters,
		UseGraph:   toggleOf(o.UseGraph),
		UseHybrid:  toggleOf(o.UseHybrid),
		MultiQuery: toggleOf(o.MultiQuery),
	}
	if o.TopK != nil {
		opts.TopK = *o.TopK
	}
	return opts
}

func toggleOf(v *bool) rag.Toggle {
	switch {
	case v == nil:
		return rag.ToggleDefault
	case *v:
		return rag.ToggleOn
	default:
		return rag.ToggleOff
	}
}

// ChatRequest asks for a generated answer with citations.
type ChatRequest struct {
	// Question in Vietnamese or Japanese.
	Query string `json:"query"`
	QueryOptions
}

// ChatResponse is the generated answer plus the sources it cites.
// Citation [i] in the answer text refers to Sources[i-1].
type ChatResponse struct {
	Answer    string           `json:"answer"`
	Sources   []SourceDocument `json:"sources"`
	Query     string           `json:"query"`
	ElapsedMS int64            `json:"elapsed_ms"`
}

// SearchRequest asks for retrieval only, no generation.
type SearchRequest struct {
	// Search text in Vietnamese or Japanese.
	Query string `json:"query"`
	QueryOptions
}

// SearchResponse lists the retrieved documents by descending score.
type SearchResponse struct {
	Results   []SourceDocument `json:"results"`
	Query     string           `json:"query"`
	Total     int              `json:"total"`
	ElapsedMS int64            `json:"elapsed_ms"`
}
