// Package hourei assembles the statute question-answering service from
// a single configuration struct.
//
// Usage:
//
//	cfg := config.MustLoad("config.yaml")
//	app, err := hourei.New(cfg, logger)
//	if err != nil {
//	    ...
//	}
//	defer app.Close(context.Background())
//
//	answer, err := app.Chat(ctx, "Điều 32 Luật Lao động quy định gì?", rag.Options{})
//
// New wires the translation, routing, retrieval, fusion, rerank and
// generation stages the same way the hourei binary does. Use it when
// the pipeline should run inside another process; use cmd/hourei for
// the standalone HTTP service.
package hourei

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hourei-dev/hourei/config"
	"github.com/hourei-dev/hourei/internal/cache"
	"github.com/hourei-dev/hourei/internal/database"
	"github.com/hourei-dev/hourei/internal/metrics"
	"github.com/hourei-dev/hourei/internal/querylog"
	"github.com/hourei-dev/hourei/llm"
	"github.com/hourei-dev/hourei/llm/embedding"
	"github.com/hourei-dev/hourei/llm/rerank"
	"github.com/hourei-dev/hourei/llm/tokenizer"
	"github.com/hourei-dev/hourei/rag"
)

// App is an assembled pipeline together with the connections behind
// it. The exported fields expose the pieces the HTTP layer serves
// directly: the graph store for structure endpoints, the query log
// for request records, the collector for /metrics.
//
// Graph, Cache and QueryLog are nil when their subsystem is not
// configured; callers must check before use.
type App struct {
	Pipeline *rag.Pipeline
	Graph    *rag.Neo4jStore
	Vector   *rag.QdrantStore
	Cache    cache.Store
	QueryLog *querylog.Store
	Metrics  *metrics.Collector

	logger *zap.Logger
}

// New builds the full pipeline from cfg.
//
// Optional subsystems degrade instead of failing: an unreachable cache
// or query log is logged and skipped, a missing Neo4j URI disables
// graph retrieval, and the reranker only runs when enabled. A
// malformed Neo4j URI or an unknown provider name is a hard error.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	// Resolve provider names before registering metrics so a config
	// typo fails without side effects on the Prometheus registry.
	embedder, err := newEmbedder(cfg.Embedding)
	if err != nil {
		return nil, err
	}
	var rerankProvider rerank.Provider
	if cfg.Reranker.Enabled {
		rerankProvider, err = newRerankProvider(cfg.Reranker)
		if err != nil {
			return nil, err
		}
	}

	collector := metrics.NewCollector("hourei", logger)

	chatProvider := llm.NewOpenAIProvider(llm.OpenAIConfig{
		ProviderName: cfg.LLM.Provider,
		APIKey:       cfg.LLM.APIKey,
		BaseURL:      cfg.LLM.BaseURL,
		DefaultModel: cfg.LLM.Model,
		Timeout:      cfg.LLM.Timeout,
	}, logger)

	cacheStore := newCache(cfg, logger)
	translator := rag.NewLLMTranslator(chatProvider, cacheStore, collector, logger)

	var (
		graphStore     *rag.Neo4jStore
		graphRetriever *rag.GraphRetriever
	)
	if cfg.Neo4j.URI != "" {
		graphStore, err = rag.NewNeo4jStore(rag.Neo4jConfig{
			URI:         cfg.Neo4j.URI,
			Username:    cfg.Neo4j.User,
			Password:    cfg.Neo4j.Password,
			Database:    cfg.Neo4j.Database,
			MaxPoolSize: cfg.Neo4j.PoolSize,
			Timeout:     cfg.Neo4j.Timeout,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("graph store: %w", err)
		}
		graphRetriever = rag.NewGraphRetriever(graphStore, logger)
	} else {
		logger.Info("graph connection not configured, graph retrieval disabled")
	}

	// The hybrid collection carries named dense and sparse vectors, so
	// it serves plain dense queries too. Fall back to the dense-only
	// collection when no hybrid one is configured.
	collection := cfg.Qdrant.HybridCollection
	if collection == "" {
		collection = cfg.Qdrant.VectorCollection
	}
	vectorStore := rag.NewQdrantStore(rag.QdrantConfig{
		BaseURL:    cfg.Qdrant.URL,
		APIKey:     cfg.Qdrant.APIKey,
		Collection: collection,
		Timeout:    cfg.Qdrant.Timeout,
	}, logger)

	var reranker *rag.Reranker
	if rerankProvider != nil {
		reranker = rag.NewReranker(rerankProvider, logger)
	}

	var grader *rag.AdaptiveGrader
	if cfg.Pipeline.AdaptiveEnabled {
		grader = rag.NewAdaptiveGrader(chatProvider, cfg.LLM.Model, logger)
	}

	var counter tokenizer.Tokenizer
	if tk, tkErr := tokenizer.NewTiktokenTokenizer(cfg.LLM.Model); tkErr == nil {
		counter = tk
	} else {
		logger.Warn("tiktoken unavailable, estimating token counts", zap.Error(tkErr))
		counter = tokenizer.NewEstimatorTokenizer(cfg.LLM.Model, 0)
	}

	pipeline, err := rag.NewPipeline(rag.PipelineDeps{
		Preparer:  rag.NewQueryPreparer(translator, logger),
		Graph:     graphRetriever,
		Vector:    rag.NewVectorRetriever(embedder, rag.LocalSparseEncoder{}, vectorStore, logger),
		Fuser:     rag.NewFuser(cfg.Pipeline.GraphWeight, cfg.Pipeline.MinScoreThreshold, logger),
		Reranker:  reranker,
		Builder:   rag.NewContextBuilder(cfg.Pipeline.PreferContextText, cfg.Pipeline.MaxContextTokens, counter, logger),
		Generator: rag.NewGenerator(chatProvider, cfg.LLM.Model, float32(cfg.LLM.Temperature), cfg.LLM.MaxTokens, logger),
		Grader:    grader,
		Metrics:   collector,
		Logger:    logger,
	}, rag.PipelineConfig{
		GraphEnabled: graphRetriever != nil,
		// Hybrid needs the sparse named vector, which only the hybrid
		// collection has.
		HybridEnabled:       cfg.Pipeline.UseHybridSearch && cfg.Qdrant.HybridCollection != "",
		RetrievalMultiplier: cfg.Pipeline.RetrievalMultiplier,
		GraphTimeout:        cfg.Pipeline.GraphTimeout,
		VectorTimeout:       cfg.Pipeline.VectorTimeout,
		RerankTimeout:       cfg.Pipeline.RerankTimeout,
		GenerateTimeout:     cfg.Pipeline.GenerateTimeout,
	})
	if err != nil {
		return nil, err
	}

	return &App{
		Pipeline: pipeline,
		Graph:    graphStore,
		Vector:   vectorStore,
		Cache:    cacheStore,
		QueryLog: newQueryLog(cfg.QueryLog, collector, logger),
		Metrics:  collector,
		logger:   logger,
	}, nil
}

// VerifyGraph probes graph connectivity once. The Neo4j driver
// connects lazily, so an unreachable backend only surfaces here: the
// process keeps running with graph retrieval disabled instead of
// failing startup. Call it before serving.
func (a *App) VerifyGraph(ctx context.Context) {
	if a.Graph == nil {
		return
	}
	if err := a.Graph.Verify(ctx); err != nil {
		a.logger.Warn("graph backend unreachable, running without graph retrieval", zap.Error(err))
		if cerr := a.Graph.Close(ctx); cerr != nil {
			a.logger.Warn("failed to close unreachable graph store", zap.Error(cerr))
		}
		a.Graph = nil
		a.Pipeline.DisableGraph()
	}
}

// Chat answers a question with numbered citations.
func (a *App) Chat(ctx context.Context, query string, opts rag.Options) (*rag.Answer, error) {
	return a.Pipeline.Chat(ctx, query, opts)
}

// Search retrieves source documents without generating an answer.
func (a *App) Search(ctx context.Context, query string, opts rag.Options) ([]rag.SourceDocument, error) {
	return a.Pipeline.Search(ctx, query, opts)
}

// Close releases every connection the App holds.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Graph != nil {
		if err := a.Graph.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close graph store: %w", err))
		}
	}
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close cache: %w", err))
		}
	}
	if a.QueryLog != nil {
		if err := a.QueryLog.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close query log: %w", err))
		}
	}
	return errors.Join(errs...)
}

func newEmbedder(cfg config.EmbeddingConfig) (embedding.Provider, error) {
	switch cfg.Provider {
	case "", "openai":
		return embedding.NewOpenAIProvider(embedding.OpenAIConfig{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.DenseModel,
			Dimensions: cfg.DenseDims,
			Timeout:    cfg.Timeout,
		}), nil
	case "jina":
		return embedding.NewJinaProvider(embedding.JinaConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.DenseModel,
			Timeout: cfg.Timeout,
		}), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

func newRerankProvider(cfg config.RerankerConfig) (rerank.Provider, error) {
	switch cfg.Provider {
	case "", "tei":
		c := rerank.DefaultTEIConfig()
		if cfg.BaseURL != "" {
			c.BaseURL = cfg.BaseURL
		}
		if cfg.Model != "" {
			c.Model = cfg.Model
		}
		if cfg.Timeout > 0 {
			c.Timeout = cfg.Timeout
		}
		return rerank.NewTEIProvider(c), nil
	case "jina":
		c := rerank.DefaultJinaConfig()
		c.APIKey = cfg.APIKey
		if cfg.BaseURL != "" {
			c.BaseURL = cfg.BaseURL
		}
		if cfg.Model != "" {
			c.Model = cfg.Model
		}
		if cfg.Timeout > 0 {
			c.Timeout = cfg.Timeout
		}
		return rerank.NewJinaProvider(c), nil
	default:
		return nil, fmt.Errorf("unknown reranker provider %q", cfg.Provider)
	}
}

// newCache builds the translation cache, or returns nil when caching
// is disabled or the backend cannot be reached. The translator treats
// a nil store as a cache that never hits.
func newCache(cfg *config.Config, logger *zap.Logger) cache.Store {
	if !cfg.Cache.Enabled {
		return nil
	}
	store, err := cache.New(cache.Config{
		Backend:      cfg.Cache.Backend,
		TTL:          cfg.Cache.TTL,
		MaxEntries:   cfg.Cache.MaxEntries,
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, logger)
	if err != nil {
		logger.Warn("cache unavailable, translation caching disabled", zap.Error(err))
		return nil
	}
	return store
}

// newQueryLog opens the query log store, or returns nil when logging
// is disabled or the database cannot be opened. Requests are served
// either way; only the audit trail is lost.
func newQueryLog(cfg config.QueryLogConfig, collector *metrics.Collector, logger *zap.Logger) *querylog.Store {
	if !cfg.Enabled {
		return nil
	}
	pool := database.DefaultPoolConfig()
	if cfg.MaxOpenConns > 0 {
		pool.MaxOpenConns = cfg.MaxOpenConns
	}
	if cfg.MaxIdleConns > 0 {
		pool.MaxIdleConns = cfg.MaxIdleConns
	}
	if cfg.ConnMaxLifetime > 0 {
		pool.ConnMaxLifetime = cfg.ConnMaxLifetime
	}
	store, err := querylog.Open(cfg.Driver, cfg.DSN(), pool, collector, logger)
	if err != nil {
		logger.Warn("query log unavailable, request logging disabled", zap.Error(err))
		return nil
	}
	return store
}
