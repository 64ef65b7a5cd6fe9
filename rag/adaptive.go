package rag

import (
	"context"
	"strings"

	"github.com/hourei-dev/hourei/llm"
	"github.com/hourei-dev/hourei/types"

	"go.uber.org/zap"
)

const (
	// gradeDocLimit caps how many candidates get a relevance verdict.
	gradeDocLimit = 10
	// gradeTextRunes caps the chunk text shown to the judge.
	gradeTextRunes = 500

	gradeMaxTokens   = 10
	rewriteMaxTokens = 200

	// minRelevantDocs is the floor below which a retrieval pass is
	// considered weak; maxRewrites bounds how often we try again.
	minRelevantDocs = 2
	maxRewrites     = 2
)

const rewriteTemperature float32 = 0.3

// AdaptiveGrader judges whether retrieval actually answered the
// question and rephrases the query when it did not.
type AdaptiveGrader struct {
	provider llm.ChatProvider
	model    string
	logger   *zap.Logger
}

func NewAdaptiveGrader(provider llm.ChatProvider, model string, logger *zap.Logger) *AdaptiveGrader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdaptiveGrader{
		provider: provider,
		model:    model,
		logger:   logger.With(zap.String("component", "adaptive_grader")),
	}
}

// GradeCandidates counts how many of the leading candidates the judge
// marks relevant. A failed judge call counts as relevant so a flaky
// model cannot erase an otherwise good retrieval.
func (g *AdaptiveGrader) GradeCandidates(ctx context.Context, question string, candidates []Candidate) (int, error) {
	limit := len(candidates)
	if limit > gradeDocLimit {
		limit = gradeDocLimit
	}

	relevant := 0
	for i := 0; i < limit; i++ {
		if err := ctx.Err(); err != nil {
			return 0, types.NewError(types.ErrCancelled, "grading cancelled").WithCause(err)
		}
		if g.gradeOne(ctx, question, &candidates[i]) {
			relevant++
		}
	}

	g.logger.Debug("candidates graded",
		zap.Int("graded", limit),
		zap.Int("relevant", relevant))
	return relevant, nil
}

// ShouldRewrite reports whether another retrieval pass is worthwhile.
func (g *AdaptiveGrader) ShouldRewrite(relevant, rewrites int) bool {
	return relevant < minRelevantDocs && rewrites < maxRewrites
}

// Rewrite rephrases the question for another retrieval pass.
func (g *AdaptiveGrader) Rewrite(ctx context.Context, question string) (string, error) {
	resp, err := g.provider.Complete(ctx, &llm.ChatRequest{
		Model: g.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: rewriteSystemPrompt},
			{Role: llm.RoleUser, Content: buildRewritePrompt(question)},
		},
		Temperature: rewriteTemperature,
		MaxTokens:   rewriteMaxTokens,
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", types.NewError(types.ErrCancelled, "rewrite cancelled").WithCause(ctx.Err())
		}
		return "", types.NewError(types.ErrTranslationFailed, "query rewrite failed").WithCause(err)
	}

	rewritten := strings.TrimSpace(resp.Text())
	if rewritten == "" {
		return "", types.NewError(types.ErrTranslationFailed, "query rewrite returned nothing")
	}

	g.logger.Info("query rewritten",
		zap.String("from", question),
		zap.String("to", rewritten))
	return rewritten, nil
}

func (g *AdaptiveGrader) gradeOne(ctx context.Context, question string, c *Candidate) bool {
	text := c.Text
	if runes := []rune(text); len(runes) > gradeTextRunes {
		text = string(runes[:gradeTextRunes])
	}

	resp, err := g.provider.Complete(ctx, &llm.ChatRequest{
		Model: g.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: gradeSystemPrompt},
			{Role: llm.RoleUser, Content: buildGradePrompt(question, text)},
		},
		Temperature: 0,
		MaxTokens:   gradeMaxTokens,
	})
	if err != nil {
		g.logger.Warn("grading call failed, counting as relevant",
			zap.String("chunk_id", c.ChunkID),
			zap.Error(err))
		return true
	}

	grade := strings.ToLower(strings.TrimSpace(resp.Text()))
	return strings.Contains(grade, "relevant") && !strings.Contains(grade, "not")
}
