package rag

import (
	"context"
	"strings"

	"github.com/hourei-dev/hourei/llm"
	"github.com/hourei-dev/hourei/types"

	"go.uber.org/zap"
)

const (
	defaultAnswerTemperature float32 = 0.3
	defaultAnswerMaxTokens           = 2048
)

// Generator produces the final Vietnamese answer from the numbered
// citation context.
type Generator struct {
	provider    llm.ChatProvider
	model       string
	temperature float32
	maxTokens   int
	logger      *zap.Logger
}

// NewGenerator creates a generator. An empty model defers to the
// provider's default.
func NewGenerator(provider llm.ChatProvider, model string, temperature float32, maxTokens int, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if temperature <= 0 {
		temperature = defaultAnswerTemperature
	}
	if maxTokens <= 0 {
		maxTokens = defaultAnswerMaxTokens
	}
	return &Generator{
		provider:    provider,
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
		logger:      logger.With(zap.String("component", "generator")),
	}
}

// Generate answers the question from the rendered context. An empty
// context short-circuits to the not-found answer without a model call,
// so the assistant never invents statutes it was not shown.
func (g *Generator) Generate(ctx context.Context, question, docContext string) (string, error) {
	if strings.TrimSpace(docContext) == "" {
		g.logger.Info("empty context, returning not-found answer")
		return notFoundAnswer, nil
	}

	resp, err := g.provider.Complete(ctx, &llm.ChatRequest{
		Model: g.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: legalAssistantSystemPrompt},
			{Role: llm.RoleUser, Content: buildAnswerPrompt(docContext, question)},
		},
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", types.NewError(types.ErrCancelled, "generation cancelled").WithCause(ctx.Err())
		}
		return "", types.NewError(types.ErrGenerationFailed, "answer generation failed").WithCause(err)
	}

	answer := strings.TrimSpace(resp.Text())
	if answer == "" {
		return "", types.NewError(types.ErrGenerationFailed, "model returned an empty answer")
	}
	return answer, nil
}
