package config

import "time"

// DefaultConfig returns the baseline configuration. YAML and
// environment overrides are applied on top of it.
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		API:       DefaultAPIConfig(),
		LLM:       DefaultLLMConfig(),
		Embedding: DefaultEmbeddingConfig(),
		Sparse:    DefaultSparseConfig(),
		Qdrant:    DefaultQdrantConfig(),
		Neo4j:     DefaultNeo4jConfig(),
		Reranker:  DefaultRerankerConfig(),
		Pipeline:  DefaultPipelineConfig(),
		Cache:     DefaultCacheConfig(),
		Redis:     DefaultRedisConfig(),
		QueryLog:  DefaultQueryLogConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig returns default HTTP server settings.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8000,
		MetricsPort:     9090,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    60 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    20,
		RateLimitBurst:  40,
	}
}

// DefaultAPIConfig returns default API surface settings.
func DefaultAPIConfig() APIConfig {
	return APIConfig{
		Prefix:      "/api",
		CORSOrigins: []string{"http://localhost:3000"},
	}
}

// DefaultLLMConfig returns default chat model settings. The low
// temperature keeps translation and expansion output stable.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Provider:    "openai",
		BaseURL:     "https://api.openai.com",
		Model:       "gpt-4o-mini",
		Temperature: 0.1,
		MaxTokens:   2048,
		Timeout:     30 * time.Second,
	}
}

// DefaultEmbeddingConfig returns default dense embedder settings.
func DefaultEmbeddingConfig() EmbeddingConfig {
	return EmbeddingConfig{
		Provider:   "openai",
		BaseURL:    "https://api.openai.com",
		DenseModel: "text-embedding-3-small",
		DenseDims:  1536,
		Timeout:    30 * time.Second,
	}
}

// DefaultSparseConfig returns default sparse encoder settings.
func DefaultSparseConfig() SparseConfig {
	return SparseConfig{
		Model: "bm42",
	}
}

// DefaultQdrantConfig returns default vector store settings.
func DefaultQdrantConfig() QdrantConfig {
	return QdrantConfig{
		URL:              "http://localhost:6333",
		VectorCollection: "hourei_chunks",
		HybridCollection: "hourei_chunks_hybrid",
		Timeout:          8 * time.Second,
	}
}

// DefaultNeo4jConfig returns default graph store settings.
func DefaultNeo4jConfig() Neo4jConfig {
	return Neo4jConfig{
		URI:      "bolt://localhost:7687",
		User:     "neo4j",
		Database: "neo4j",
		PoolSize: 50,
		Timeout:  5 * time.Second,
	}
}

// DefaultRerankerConfig returns default cross-encoder settings. The
// stage is off until explicitly enabled.
func DefaultRerankerConfig() RerankerConfig {
	return RerankerConfig{
		Enabled:  false,
		Provider: "tei",
		BaseURL:  "http://localhost:8080",
		Model:    "BAAI/bge-reranker-v2-m3",
		Timeout:  15 * time.Second,
	}
}

// DefaultPipelineConfig returns the retrieval tuning defaults.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		GraphWeight:         1.2,
		MinScoreThreshold:   0.25,
		RetrievalMultiplier: 4,
		UseHybridSearch:     true,
		GraphTimeout:        5 * time.Second,
		VectorTimeout:       8 * time.Second,
		RerankTimeout:       15 * time.Second,
		GenerateTimeout:     30 * time.Second,
		AdaptiveEnabled:     false,
		MaxContextTokens:    0,
		PreferContextText:   true,
	}
}

// DefaultCacheConfig returns default translation cache settings.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:    true,
		Backend:    "memory",
		TTL:        600 * time.Second,
		MaxEntries: 1000,
	}
}

// DefaultRedisConfig returns default Redis settings.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

// DefaultQueryLogConfig returns default query log settings. Logging to
// a relational store is opt-in.
func DefaultQueryLogConfig() QueryLogConfig {
	return QueryLogConfig{
		Enabled:         false,
		Driver:          "sqlite",
		Name:            "hourei_queries.db",
		SSLMode:         "disable",
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
	}
}

// DefaultLogConfig returns default logging settings.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig returns default tracing settings.
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "hourei",
		SampleRate:   0.1,
	}
}
