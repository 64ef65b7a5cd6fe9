package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hourei-dev/hourei/llm"
	"github.com/hourei-dev/hourei/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratorAnswersFromContext(t *testing.T) {
	var captured *llm.ChatRequest
	provider := &mockChatProvider{
		completeFn: func(_ context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
			captured = req
			return textResponse("Theo [1], thời gian làm việc tối đa là 40 giờ mỗi tuần."), nil
		},
	}
	generator := NewGenerator(provider, "gpt-4o-mini", 0.3, 2048, nil)

	docContext := "[1]【労働基準法 第32条】\n使用者は、..."
	answer, err := generator.Generate(context.Background(), "Thời gian làm việc tối đa?", docContext)
	require.NoError(t, err)
	assert.Contains(t, answer, "[1]")

	require.NotNil(t, captured)
	assert.Equal(t, "gpt-4o-mini", captured.Model)
	assert.Equal(t, float32(0.3), captured.Temperature)
	assert.Equal(t, 2048, captured.MaxTokens)
	require.Len(t, captured.Messages, 2)
	assert.Equal(t, legalAssistantSystemPrompt, captured.Messages[0].Content)
	assert.Contains(t, captured.Messages[1].Content, docContext)
	assert.Contains(t, captured.Messages[1].Content, "Thời gian làm việc tối đa?")
	assert.Contains(t, captured.Messages[1].Content, "【Tài liệu tham khảo / 参照文書】")
}

func TestGeneratorEmptyContextShortCircuits(t *testing.T) {
	provider := &mockChatProvider{}
	generator := NewGenerator(provider, "", 0, 0, nil)

	for _, docContext := range []string{"", "   ", "\n\t"} {
		answer, err := generator.Generate(context.Background(), "労働時間とは", docContext)
		require.NoError(t, err)
		assert.Equal(t, notFoundAnswer, answer)
	}
	assert.Equal(t, 0, provider.callCount(), "no model call without context")
}

func TestGeneratorProviderFailure(t *testing.T) {
	provider := &mockChatProvider{
		completeFn: func(context.Context, *llm.ChatRequest) (*llm.ChatResponse, error) {
			return nil, errors.New("rate limited")
		},
	}
	generator := NewGenerator(provider, "", 0, 0, nil)

	_, err := generator.Generate(context.Background(), "q", "[1] doc")
	require.Error(t, err)
	assert.Equal(t, types.ErrGenerationFailed, types.GetErrorCode(err))
}

func TestGeneratorEmptyCompletion(t *testing.T) {
	provider := &mockChatProvider{
		completeFn: func(context.Context, *llm.ChatRequest) (*llm.ChatResponse, error) {
			return textResponse("   "), nil
		},
	}
	generator := NewGenerator(provider, "", 0, 0, nil)

	_, err := generator.Generate(context.Background(), "q", "[1] doc")
	require.Error(t, err)
	assert.Equal(t, types.ErrGenerationFailed, types.GetErrorCode(err))
}

func TestGeneratorCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	provider := &mockChatProvider{
		completeFn: func(ctx context.Context, _ *llm.ChatRequest) (*llm.ChatResponse, error) {
			return nil, ctx.Err()
		},
	}
	generator := NewGenerator(provider, "", 0, 0, nil)

	_, err := generator.Generate(ctx, "q", "[1] doc")
	require.Error(t, err)
	assert.Equal(t, types.ErrCancelled, types.GetErrorCode(err))
}

func TestGeneratorTrimsAnswer(t *testing.T) {
	provider := &mockChatProvider{
		completeFn: func(context.Context, *llm.ChatRequest) (*llm.ChatResponse, error) {
			return textResponse("\n  Câu trả lời.  \n"), nil
		},
	}
	generator := NewGenerator(provider, "", 0, 0, nil)

	answer, err := generator.Generate(context.Background(), "q", "[1] doc")
	require.NoError(t, err)
	assert.Equal(t, "Câu trả lời.", answer)
	assert.False(t, strings.ContainsAny(answer, "\n"))
}

func TestGeneratorDefaults(t *testing.T) {
	var captured *llm.ChatRequest
	provider := &mockChatProvider{
		completeFn: func(_ context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
			captured = req
			return textResponse("ok"), nil
		},
	}
	generator := NewGenerator(provider, "", 0, 0, nil)

	_, err := generator.Generate(context.Background(), "q", "[1] doc")
	require.NoError(t, err)
	require.NotNil(t, captured)
	assert.Empty(t, captured.Model, "empty model defers to the provider default")
	assert.Equal(t, defaultAnswerTemperature, captured.Temperature)
	assert.Equal(t, defaultAnswerMaxTokens, captured.MaxTokens)
}
