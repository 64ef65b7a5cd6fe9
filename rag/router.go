package rag

import "strings"

// Intent keyword sets. Matching is case-insensitive substring
// containment against the whole query, so "các điều khác liên quan"
// hits the relationship set even mid-sentence.
var (
	relationshipKeywords = []string{
		"liên quan", "related", "tham chiếu", "references",
		"kết nối", "connected", "điều khác", "các điều",
		"quy định tại", "theo điều", "dựa trên",
	}
	lookupKeywords = []string{
		"là gì", "nói gì", "quy định gì", "what is",
		"điều", "khoản", "mục", "chương",
	}
)

// Route classifies a query by its legal entities and intent keywords.
// Relationship intent wins over lookup intent, so a query that asks
// how articles connect is traversed rather than looked up directly.
// Route is pure: equal input yields equal output, and routing the
// echoed Query again is a fixed point.
func Route(text string) RoutedQuery {
	entities := ExtractEntities(text)
	lower := strings.ToLower(text)
	hasRelationship := containsAny(lower, relationshipKeywords)
	hasLookup := containsAny(lower, lookupKeywords)

	routed := RoutedQuery{Query: text, Entities: entities}
	switch {
	case len(entities) > 0 && hasRelationship:
		routed.Type = QueryMultiHop
		routed.UseGraph = true
		routed.UseVector = true
	case len(entities) > 0 && hasLookup:
		routed.Type = QueryEntityLookup
		routed.UseGraph = true
	case len(entities) > 0:
		routed.Type = QueryHybrid
		routed.UseGraph = true
		routed.UseVector = true
	default:
		routed.Type = QuerySemantic
		routed.UseVector = true
	}
	return routed
}

func containsAny(lower string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
