package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NotNil(t, cfg)

	assert.Equal(t, 8000, cfg.Server.HTTPPort)
	assert.Equal(t, 9090, cfg.Server.MetricsPort)
	assert.Equal(t, "/api", cfg.API.Prefix)

	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, 0.1, cfg.LLM.Temperature)
	assert.Equal(t, 2048, cfg.LLM.MaxTokens)

	assert.Equal(t, "text-embedding-3-small", cfg.Embedding.DenseModel)
	assert.Equal(t, 1536, cfg.Embedding.DenseDims)

	assert.Equal(t, 1.2, cfg.Pipeline.GraphWeight)
	assert.Equal(t, 0.25, cfg.Pipeline.MinScoreThreshold)
	assert.Equal(t, 4, cfg.Pipeline.RetrievalMultiplier)
	assert.Equal(t, 5*time.Second, cfg.Pipeline.GraphTimeout)
	assert.Equal(t, 8*time.Second, cfg.Pipeline.VectorTimeout)
	assert.Equal(t, 15*time.Second, cfg.Pipeline.RerankTimeout)
	assert.Equal(t, 30*time.Second, cfg.Pipeline.GenerateTimeout)

	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, 600*time.Second, cfg.Cache.TTL)
	assert.Equal(t, 1000, cfg.Cache.MaxEntries)

	assert.False(t, cfg.Reranker.Enabled)
	assert.Equal(t, 15*time.Second, cfg.Reranker.Timeout)

	// Defaults must pass their own validation.
	assert.NoError(t, cfg.Validate())
}

func TestLoader_LoadFromYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
server:
  http_port: 9000
llm:
  model: "qwen2.5-72b-instruct"
  temperature: 0.0
qdrant:
  url: "http://qdrant:6333"
  vector_collection: "statutes"
neo4j:
  graph_connection: "bolt://graph:7687"
  pool_size: 25
pipeline:
  graph_weight: 1.5
  min_score_threshold: 0.3
  use_hybrid_search: false
reranker:
  enabled: true
  provider: "jina"
`
	err := os.WriteFile(configPath, []byte(yamlContent), 0644)
	require.NoError(t, err)

	cfg, err := NewLoader().
		WithConfigPath(configPath).
		Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.HTTPPort)
	assert.Equal(t, "qwen2.5-72b-instruct", cfg.LLM.Model)
	assert.Equal(t, 0.0, cfg.LLM.Temperature)
	assert.Equal(t, "http://qdrant:6333", cfg.Qdrant.URL)
	assert.Equal(t, "statutes", cfg.Qdrant.VectorCollection)
	assert.Equal(t, "bolt://graph:7687", cfg.Neo4j.URI)
	assert.Equal(t, 25, cfg.Neo4j.PoolSize)
	assert.Equal(t, 1.5, cfg.Pipeline.GraphWeight)
	assert.Equal(t, 0.3, cfg.Pipeline.MinScoreThreshold)
	assert.False(t, cfg.Pipeline.UseHybridSearch)
	assert.True(t, cfg.Reranker.Enabled)
	assert.Equal(t, "jina", cfg.Reranker.Provider)

	// Untouched sections keep their defaults.
	assert.Equal(t, 4, cfg.Pipeline.RetrievalMultiplier)
	assert.Equal(t, "memory", cfg.Cache.Backend)
}

func TestLoader_LoadFromEnv(t *testing.T) {
	envVars := map[string]string{
		"HOUREI_SERVER_HTTP_PORT":              "7777",
		"HOUREI_LLM_API_KEY":                   "sk-env-key",
		"HOUREI_LLM_MODEL":                     "gpt-4o",
		"HOUREI_LLM_TEMPERATURE":               "0.2",
		"HOUREI_EMBEDDING_DENSE_DIMS":          "3072",
		"HOUREI_PIPELINE_GRAPH_WEIGHT":         "2.0",
		"HOUREI_PIPELINE_GRAPH_TIMEOUT":        "10s",
		"HOUREI_CACHE_BACKEND":                 "redis",
		"HOUREI_REDIS_ADDR":                    "env-redis:6379",
		"HOUREI_API_CORS_ORIGINS":              "http://a.example, http://b.example",
		"HOUREI_LOG_LEVEL":                     "warn",
		"HOUREI_PIPELINE_USE_HYBRID_SEARCH":    "false",
		"HOUREI_PIPELINE_PREFER_CONTEXT_TEXT":  "false",
		"HOUREI_NEO4J_GRAPH_CONNECTION":        "neo4j://env:7687",
		"HOUREI_QDRANT_HYBRID_COLLECTION":      "env_hybrid",
		"HOUREI_PIPELINE_RETRIEVAL_MULTIPLIER": "2",
	}

	for k, v := range envVars {
		os.Setenv(k, v)
	}
	defer func() {
		for k := range envVars {
			os.Unsetenv(k)
		}
	}()

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Server.HTTPPort)
	assert.Equal(t, "sk-env-key", cfg.LLM.APIKey)
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.Equal(t, 0.2, cfg.LLM.Temperature)
	assert.Equal(t, 3072, cfg.Embedding.DenseDims)
	assert.Equal(t, 2.0, cfg.Pipeline.GraphWeight)
	assert.Equal(t, 10*time.Second, cfg.Pipeline.GraphTimeout)
	assert.Equal(t, "redis", cfg.Cache.Backend)
	assert.Equal(t, "env-redis:6379", cfg.Redis.Addr)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.API.CORSOrigins)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.False(t, cfg.Pipeline.UseHybridSearch)
	assert.False(t, cfg.Pipeline.PreferContextText)
	assert.Equal(t, "neo4j://env:7687", cfg.Neo4j.URI)
	assert.Equal(t, "env_hybrid", cfg.Qdrant.HybridCollection)
	assert.Equal(t, 2, cfg.Pipeline.RetrievalMultiplier)
}

func TestLoader_EnvOverridesYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
server:
  http_port: 8888
llm:
  model: "yaml-model"
  base_url: "https://yaml.example"
`
	err := os.WriteFile(configPath, []byte(yamlContent), 0644)
	require.NoError(t, err)

	os.Setenv("HOUREI_SERVER_HTTP_PORT", "9999")
	os.Setenv("HOUREI_LLM_MODEL", "env-model")
	defer func() {
		os.Unsetenv("HOUREI_SERVER_HTTP_PORT")
		os.Unsetenv("HOUREI_LLM_MODEL")
	}()

	cfg, err := NewLoader().
		WithConfigPath(configPath).
		Load()
	require.NoError(t, err)

	// Env wins over YAML.
	assert.Equal(t, 9999, cfg.Server.HTTPPort)
	assert.Equal(t, "env-model", cfg.LLM.Model)
	// YAML values without env overrides survive.
	assert.Equal(t, "https://yaml.example", cfg.LLM.BaseURL)
}

func TestLoader_CustomEnvPrefix(t *testing.T) {
	os.Setenv("MYAPP_SERVER_HTTP_PORT", "6666")
	os.Setenv("MYAPP_QDRANT_URL", "http://custom:6333")
	defer func() {
		os.Unsetenv("MYAPP_SERVER_HTTP_PORT")
		os.Unsetenv("MYAPP_QDRANT_URL")
	}()

	cfg, err := NewLoader().
		WithEnvPrefix("MYAPP").
		Load()
	require.NoError(t, err)

	assert.Equal(t, 6666, cfg.Server.HTTPPort)
	assert.Equal(t, "http://custom:6333", cfg.Qdrant.URL)
}

func TestLoader_WithValidator(t *testing.T) {
	validator := func(cfg *Config) error {
		if cfg.Server.HTTPPort < 1024 {
			return assert.AnError
		}
		return nil
	}

	os.Setenv("HOUREI_SERVER_HTTP_PORT", "80")
	defer os.Unsetenv("HOUREI_SERVER_HTTP_PORT")

	_, err := NewLoader().
		WithValidator(validator).
		Load()
	assert.Error(t, err)
}

func TestLoader_NonExistentFile(t *testing.T) {
	// A missing file falls back to defaults without error.
	cfg, err := NewLoader().
		WithConfigPath("/non/existent/path/config.yaml").
		Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 8000, cfg.Server.HTTPPort)
}

func TestLoader_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	invalidYAML := `
server:
  http_port: [invalid
  this is not valid yaml
`
	err := os.WriteFile(configPath, []byte(invalidYAML), 0644)
	require.NoError(t, err)

	_, err = NewLoader().
		WithConfigPath(configPath).
		Load()
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name: "invalid HTTP port (negative)",
			modify: func(c *Config) {
				c.Server.HTTPPort = -1
			},
			wantErr: true,
		},
		{
			name: "invalid HTTP port (too large)",
			modify: func(c *Config) {
				c.Server.HTTPPort = 70000
			},
			wantErr: true,
		},
		{
			name: "graph weight zero",
			modify: func(c *Config) {
				c.Pipeline.GraphWeight = 0
			},
			wantErr: true,
		},
		{
			name: "score threshold above one",
			modify: func(c *Config) {
				c.Pipeline.MinScoreThreshold = 1.5
			},
			wantErr: true,
		},
		{
			name: "retrieval multiplier below one",
			modify: func(c *Config) {
				c.Pipeline.RetrievalMultiplier = 0
			},
			wantErr: true,
		},
		{
			name: "invalid temperature (negative)",
			modify: func(c *Config) {
				c.LLM.Temperature = -0.5
			},
			wantErr: true,
		},
		{
			name: "invalid temperature (too high)",
			modify: func(c *Config) {
				c.LLM.Temperature = 3.0
			},
			wantErr: true,
		},
		{
			name: "unknown cache backend",
			modify: func(c *Config) {
				c.Cache.Backend = "memcached"
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestQueryLogConfig_DSN(t *testing.T) {
	tests := []struct {
		name     string
		config   QueryLogConfig
		expected string
	}{
		{
			name: "postgres DSN",
			config: QueryLogConfig{
				Driver:   "postgres",
				Host:     "localhost",
				Port:     5432,
				User:     "user",
				Password: "pass",
				Name:     "dbname",
				SSLMode:  "disable",
			},
			expected: "host=localhost port=5432 user=user password=pass dbname=dbname sslmode=disable",
		},
		{
			name: "mysql DSN",
			config: QueryLogConfig{
				Driver:   "mysql",
				Host:     "localhost",
				Port:     3306,
				User:     "user",
				Password: "pass",
				Name:     "dbname",
			},
			expected: "user:pass@tcp(localhost:3306)/dbname?parseTime=true",
		},
		{
			name: "sqlite DSN",
			config: QueryLogConfig{
				Driver: "sqlite",
				Name:   "/path/to/queries.db",
			},
			expected: "/path/to/queries.db",
		},
		{
			name: "unknown driver",
			config: QueryLogConfig{
				Driver: "unknown",
			},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.config.DSN())
		})
	}
}

func TestMustLoad_Success(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
server:
  http_port: 8000
`
	err := os.WriteFile(configPath, []byte(yamlContent), 0644)
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		cfg := MustLoad(configPath)
		assert.Equal(t, 8000, cfg.Server.HTTPPort)
	})
}

func TestMustLoad_InvalidFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	err := os.WriteFile(configPath, []byte("invalid: [yaml"), 0644)
	require.NoError(t, err)

	assert.Panics(t, func() {
		MustLoad(configPath)
	})
}

func TestLoadFromEnv_Function(t *testing.T) {
	os.Setenv("HOUREI_LLM_MODEL", "env-only-model")
	defer os.Unsetenv("HOUREI_LLM_MODEL")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "env-only-model", cfg.LLM.Model)
}
