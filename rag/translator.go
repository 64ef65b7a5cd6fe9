package rag

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/hourei-dev/hourei/internal/cache"
	"github.com/hourei-dev/hourei/internal/metrics"
	"github.com/hourei-dev/hourei/llm"
	"github.com/hourei-dev/hourei/types"

	"go.uber.org/zap"
)

// Translator turns a user-language question into corpus-language
// search texts. Implementations must be safe for concurrent use.
type Translator interface {
	// Translate returns the corpus-language form of query. Queries
	// already in the corpus language are returned unchanged without a
	// model call.
	Translate(ctx context.Context, query string) (string, error)
	// Expand returns the structured expansion of query: translation,
	// keywords, related terms and alternative search queries.
	Expand(ctx context.Context, query string) (*Expansion, error)
	// SearchTexts composes Translate and Expand into retrieval
	// variants, primary first. Model failures degrade to fewer texts
	// instead of failing, so the result is non-empty unless ctx is
	// done.
	SearchTexts(ctx context.Context, query string) ([]string, error)
}

const (
	translateTemperature = 0.1
	translateMaxTokens   = 256
	expandTemperature    = 0.3
	expandMaxTokens      = 512

	// maxSearchTexts caps retrieval variants per query.
	maxSearchTexts = 3
)

// LLMTranslator implements Translator over a chat provider with an
// optional result cache in front of both model calls.
type LLMTranslator struct {
	provider llm.ChatProvider
	cache    cache.Store
	metrics  *metrics.Collector
	logger   *zap.Logger
}

// NewLLMTranslator creates a translator. store and collector may be
// nil to disable caching and metrics.
func NewLLMTranslator(provider llm.ChatProvider, store cache.Store, collector *metrics.Collector, logger *zap.Logger) *LLMTranslator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMTranslator{
		provider: provider,
		cache:    store,
		metrics:  collector,
		logger:   logger.With(zap.String("component", "translator")),
	}
}

// Translate converts a Vietnamese legal question into Japanese. Text
// that is already mostly Japanese is returned as is.
func (t *LLMTranslator) Translate(ctx context.Context, query string) (string, error) {
	if IsJapanese(query) {
		return query, nil
	}

	if cached, ok := t.cacheGet(ctx, "translation", query); ok {
		return cached, nil
	}

	resp, err := t.provider.Complete(ctx, &llm.ChatRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: translationSystemPrompt},
			{Role: llm.RoleUser, Content: query},
		},
		Temperature: translateTemperature,
		MaxTokens:   translateMaxTokens,
	})
	if err != nil {
		return "", types.NewError(types.ErrTranslationFailed, "query translation failed").WithCause(err)
	}

	translated := strings.TrimSpace(resp.Text())
	if translated == "" {
		return "", types.NewError(types.ErrTranslationFailed, "query translation returned empty text")
	}

	t.cacheSet(ctx, "translation", query, translated)
	t.logger.Debug("query translated",
		zap.String("query", query),
		zap.String("translated", translated))
	return translated, nil
}

// Expand asks the model for keywords, related terms and alternative
// search queries as one JSON object.
func (t *LLMTranslator) Expand(ctx context.Context, query string) (*Expansion, error) {
	if cached, ok := t.cacheGet(ctx, "expansion", query); ok {
		var exp Expansion
		if err := json.Unmarshal([]byte(cached), &exp); err == nil {
			return &exp, nil
		}
	}

	resp, err := t.provider.Complete(ctx, &llm.ChatRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: expansionSystemPrompt},
			{Role: llm.RoleUser, Content: query},
		},
		Temperature: expandTemperature,
		MaxTokens:   expandMaxTokens,
	})
	if err != nil {
		return nil, types.NewError(types.ErrTranslationFailed, "query expansion failed").WithCause(err)
	}

	exp, err := parseExpansion(resp.Text())
	if err != nil {
		return nil, err
	}
	exp.Original = query

	if data, err := json.Marshal(exp); err == nil {
		t.cacheSet(ctx, "expansion", query, string(data))
	}
	t.logger.Debug("query expanded",
		zap.String("query", query),
		zap.Int("keywords", len(exp.Keywords)),
		zap.Int("search_queries", len(exp.SearchQueries)))
	return exp, nil
}

// SearchTexts builds the retrieval variants for a query. Translation
// failure falls back to the original text, expansion failure to the
// translation alone. Only context cancellation is propagated.
func (t *LLMTranslator) SearchTexts(ctx context.Context, query string) ([]string, error) {
	translated, err := t.Translate(ctx, query)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		t.logger.Warn("translation failed, searching with the original query", zap.Error(err))
		translated = query
	}

	exp, err := t.Expand(ctx, query)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		t.logger.Warn("expansion failed, searching with the translation only", zap.Error(err))
		return []string{translated}, nil
	}

	return buildSearchTexts(translated, exp), nil
}

// parseExpansion extracts the first JSON object from a model response
// that may wrap it in prose or code fences.
func parseExpansion(raw string) (*Expansion, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, types.NewError(types.ErrTranslationFailed, "expansion response contains no JSON object")
	}

	var exp Expansion
	if err := json.Unmarshal([]byte(raw[start:end+1]), &exp); err != nil {
		return nil, types.NewError(types.ErrTranslationFailed, "failed to parse expansion JSON").WithCause(err)
	}
	return &exp, nil
}

// buildSearchTexts orders variants as translated first, alternative
// queries next, one keyword bundle last, deduplicated and capped at
// maxSearchTexts.
func buildSearchTexts(translated string, exp *Expansion) []string {
	texts := make([]string, 0, maxSearchTexts)
	seen := make(map[string]struct{}, maxSearchTexts)
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" || len(texts) >= maxSearchTexts {
			return
		}
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		texts = append(texts, s)
	}

	add(translated)
	if exp != nil {
		if len(texts) == 0 {
			add(exp.Translated)
		}
		for _, q := range exp.SearchQueries {
			add(q)
		}
		if len(exp.Keywords) > 0 {
			add(strings.Join(exp.Keywords, " "))
		}
	}
	return texts
}

func (t *LLMTranslator) cacheKey(kind, query string) string {
	return cache.Key(kind + ":" + strings.ToLower(strings.TrimSpace(query)))
}

func (t *LLMTranslator) cacheGet(ctx context.Context, kind, query string) (string, bool) {
	if t.cache == nil {
		return "", false
	}
	v, err := t.cache.Get(ctx, t.cacheKey(kind, query))
	if err != nil {
		if !cache.IsCacheMiss(err) {
			t.logger.Warn("cache read failed", zap.String("cache_type", kind), zap.Error(err))
		}
		if t.metrics != nil {
			t.metrics.RecordCacheMiss(kind)
		}
		return "", false
	}
	if t.metrics != nil {
		t.metrics.RecordCacheHit(kind)
	}
	return v, true
}

func (t *LLMTranslator) cacheSet(ctx context.Context, kind, query, value string) {
	if t.cache == nil {
		return
	}
	if err := t.cache.Set(ctx, t.cacheKey(kind, query), value); err != nil {
		t.logger.Warn("cache write failed", zap.String("cache_type", kind), zap.Error(err))
	}
}
