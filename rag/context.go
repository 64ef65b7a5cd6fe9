package rag

import (
	"fmt"
	"strings"

	"github.com/hourei-dev/hourei/llm/tokenizer"

	"go.uber.org/zap"
)

// ContextBuilder renders ranked candidates into the numbered block
// format the answer prompt cites, and the matching source documents
// returned alongside the answer.
type ContextBuilder struct {
	preferContext bool
	maxTokens     int
	counter       tokenizer.Tokenizer
	logger        *zap.Logger
}

// NewContextBuilder creates a builder. preferContext picks the
// context-window chunk variant when present. maxTokens > 0 enables a
// token budget; blocks past the budget are dropped from the tail.
func NewContextBuilder(preferContext bool, maxTokens int, counter tokenizer.Tokenizer, logger *zap.Logger) *ContextBuilder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if counter == nil && maxTokens > 0 {
		counter = tokenizer.NewEstimatorTokenizer("context-budget", 0)
	}
	return &ContextBuilder{
		preferContext: preferContext,
		maxTokens:     maxTokens,
		counter:       counter,
		logger:        logger.With(zap.String("component", "context_builder")),
	}
}

// Build renders candidates in rank order. Block i cites candidate i:
//
//	[1]【労働基準法 第32条】
//	使用者は、労働者に...
//
// Candidates without law and article titles render as "[i] text".
// Citation numbers stay consecutive even when the token budget drops
// tail blocks, so the answer's [n] references always resolve.
func (b *ContextBuilder) Build(candidates []Candidate) string {
	if len(candidates) == 0 {
		return ""
	}

	blocks := make([]string, 0, len(candidates))
	remaining := b.maxTokens
	for i := range candidates {
		block := citationBlock(len(blocks)+1, &candidates[i], b.preferContext)
		if b.maxTokens > 0 {
			cost := b.blockCost(block)
			// The first block always ships, even over budget; an
			// empty context would force the not-found answer.
			if len(blocks) > 0 && cost > remaining {
				b.logger.Debug("context budget reached",
					zap.Int("kept", len(blocks)),
					zap.Int("dropped", len(candidates)-len(blocks)))
				break
			}
			remaining -= cost
		}
		blocks = append(blocks, block)
	}
	return strings.Join(blocks, "\n\n")
}

// Sources maps candidates onto the response document shape, with the
// chunk text capped for display.
func (b *ContextBuilder) Sources(candidates []Candidate) []SourceDocument {
	sources := make([]SourceDocument, 0, len(candidates))
	for _, c := range candidates {
		sources = append(sources, SourceDocument{
			ChunkID:        c.ChunkID,
			LawID:          c.LawID,
			LawTitle:       c.LawTitle,
			ArticleTitle:   c.ArticleTitle,
			ArticleCaption: c.ArticleCaption,
			ChapterTitle:   c.ChapterTitle,
			ParagraphNum:   c.ParagraphNum,
			Text:           truncateDisplay(c.Text, maxSourceDisplayRunes),
			Score:          c.Score,
			Source:         c.Source,
			HighlightPath:  c.HighlightPath,
			Metadata:       c.Metadata,
		})
	}
	return sources
}

func (b *ContextBuilder) blockCost(block string) int {
	cost, err := b.counter.CountTokens(block)
	if err != nil {
		return len([]rune(block))
	}
	return cost
}

func citationBlock(index int, c *Candidate, preferContext bool) string {
	label := strings.TrimSpace(c.LawTitle)
	if article := strings.TrimSpace(c.ArticleTitle); article != "" {
		if label != "" {
			label += " "
		}
		label += article
	}

	text := c.DisplayText(preferContext)
	if label == "" {
		return fmt.Sprintf("[%d] %s", index, text)
	}
	return fmt.Sprintf("[%d]【%s】\n%s", index, label, text)
}
