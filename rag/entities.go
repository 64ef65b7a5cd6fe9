package rag

import "regexp"

// Extraction patterns, tried in priority order. Earlier matches
// suppress later matches whose span they contain, so 労働基準法第32条
// yields one law_article entity rather than three overlapping ones.
var (
	lawArticlePattern = regexp.MustCompile(`([ぁ-んァ-ン一-龯]+法)第(\d+)条`)
	articlePattern    = regexp.MustCompile(`第(\d+)条(?:の(\d+))?`)
	lawPattern        = regexp.MustCompile(`[ぁ-んァ-ン一-龯]+法`)
)

// ExtractEntities finds legal references in text. Results keep
// extraction order: law+article first, then bare articles, then law
// names, each positionally ordered, deduplicated by text and kind.
func ExtractEntities(text string) []Entity {
	type span struct{ start, end int }
	var accepted []span
	var entities []Entity

	add := func(start, end int, kind EntityKind) {
		for _, s := range accepted {
			if start >= s.start && end <= s.end {
				return
			}
		}
		accepted = append(accepted, span{start: start, end: end})
		entities = append(entities, Entity{Text: text[start:end], Kind: kind})
	}

	for _, m := range lawArticlePattern.FindAllStringIndex(text, -1) {
		add(m[0], m[1], EntityLawArticle)
	}
	for _, m := range articlePattern.FindAllStringIndex(text, -1) {
		add(m[0], m[1], EntityArticle)
	}
	for _, m := range lawPattern.FindAllStringIndex(text, -1) {
		add(m[0], m[1], EntityLaw)
	}

	seen := make(map[Entity]struct{}, len(entities))
	out := make([]Entity, 0, len(entities))
	for _, e := range entities {
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	return out
}

// splitLawArticle splits a law_article entity like 労働基準法第32条
// into its law title and article number.
func splitLawArticle(text string) (law, num string, ok bool) {
	m := lawArticlePattern.FindStringSubmatch(text)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}
