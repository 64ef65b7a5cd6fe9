package rag

import (
	"go.uber.org/zap"
)

const (
	// defaultGraphWeight boosts graph hits over vector hits during
	// fusion. Exact article lookups deserve to outrank fuzzy matches.
	defaultGraphWeight = 1.2

	// defaultScoreThreshold drops candidates below this score after
	// fusion.
	defaultScoreThreshold = 0.25

	// fallbackCandidates is how many unfiltered hits survive when the
	// threshold would discard everything.
	fallbackCandidates = 3
)

// Fuser merges graph and vector hits into one ranked candidate list.
type Fuser struct {
	graphWeight float64
	threshold   float64
	logger      *zap.Logger
}

func NewFuser(graphWeight, threshold float64, logger *zap.Logger) *Fuser {
	if graphWeight <= 0 {
		graphWeight = defaultGraphWeight
	}
	if threshold <= 0 {
		threshold = defaultScoreThreshold
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fuser{
		graphWeight: graphWeight,
		threshold:   threshold,
		logger:      logger.With(zap.String("component", "fuser")),
	}
}

// Fuse promotes graph results to weighted candidates, merges vector
// hits by chunk id keeping the higher score, filters by threshold and
// ranks the survivors. When the threshold would discard everything it
// keeps the best few hits instead so the answer stage always has
// material to cite.
func (f *Fuser) Fuse(graph []GraphResult, vector []Candidate) []Candidate {
	merged := make(map[string]Candidate, len(graph)+len(vector))

	for _, gr := range graph {
		if gr.ChunkID == "" {
			// Structure-only node; nothing retrievable to cite.
			continue
		}
		merged[gr.ChunkID] = f.promote(gr)
	}

	for _, vc := range vector {
		if vc.ChunkID == "" {
			continue
		}
		if prev, ok := merged[vc.ChunkID]; !ok || vc.Score > prev.Score {
			merged[vc.ChunkID] = vc
		}
	}

	candidates := make([]Candidate, 0, len(merged))
	for _, c := range merged {
		candidates = append(candidates, c)
	}
	sortCandidates(candidates)

	filtered := candidates[:0:0]
	for _, c := range candidates {
		if c.Score >= f.threshold {
			filtered = append(filtered, c)
		}
	}
	if len(filtered) == 0 && len(candidates) > 0 {
		keep := fallbackCandidates
		if keep > len(candidates) {
			keep = len(candidates)
		}
		f.logger.Warn("all candidates below score threshold, keeping best hits",
			zap.Float64("threshold", f.threshold),
			zap.Int("kept", keep))
		filtered = candidates[:keep]
	}
	return filtered
}

// promote turns a graph hit into a candidate. The display title is
// normalized to 第N条 form and the caption stands in for the chunk
// text until hydration, matching what the vector payload would carry.
func (f *Fuser) promote(gr GraphResult) Candidate {
	articleTitle := "第" + gr.ArticleNumber + "条"

	text := gr.ArticleCaption
	if text == "" {
		text = gr.ArticleTitle
	}

	highlight := gr.HighlightPath
	if highlight == nil {
		highlight = map[string]string{"law": gr.LawTitle, "article": articleTitle}
	}

	return Candidate{
		ChunkID:        gr.ChunkID,
		Score:          gr.Relevance * f.graphWeight,
		Source:         SourceGraph,
		LawID:          gr.LawID,
		LawTitle:       gr.LawTitle,
		ArticleNumber:  gr.ArticleNumber,
		ArticleTitle:   articleTitle,
		ArticleCaption: gr.ArticleCaption,
		Text:           text,
		HighlightPath:  highlight,
	}
}
