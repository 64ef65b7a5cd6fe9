// Package config provides unified configuration loading: defaults,
// then a YAML file, then environment variable overrides.
//
// Usage:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("HOUREI").
//	    Load()
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" env:"SERVER"`
	API       APIConfig       `yaml:"api" env:"API"`
	LLM       LLMConfig       `yaml:"llm" env:"LLM"`
	Embedding EmbeddingConfig `yaml:"embedding" env:"EMBEDDING"`
	Sparse    SparseConfig    `yaml:"sparse" env:"SPARSE"`
	Qdrant    QdrantConfig    `yaml:"qdrant" env:"QDRANT"`
	Neo4j     Neo4jConfig     `yaml:"neo4j" env:"NEO4J"`
	Reranker  RerankerConfig  `yaml:"reranker" env:"RERANKER"`
	Pipeline  PipelineConfig  `yaml:"pipeline" env:"PIPELINE"`
	Cache     CacheConfig     `yaml:"cache" env:"CACHE"`
	Redis     RedisConfig     `yaml:"redis" env:"REDIS"`
	QueryLog  QueryLogConfig  `yaml:"query_log" env:"QUERY_LOG"`
	Log       LogConfig       `yaml:"log" env:"LOG"`
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	HTTPPort        int           `yaml:"http_port" env:"HTTP_PORT"`
	MetricsPort     int           `yaml:"metrics_port" env:"METRICS_PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	RateLimitRPS    float64       `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	RateLimitBurst  int           `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
}

// APIConfig holds the public API surface settings.
type APIConfig struct {
	// Prefix is prepended to every route, e.g. "/api".
	Prefix string `yaml:"prefix" env:"PREFIX"`
	// CORSOrigins lists allowed origins. Empty means deny cross-origin.
	CORSOrigins []string `yaml:"cors_origins" env:"CORS_ORIGINS"`
}

// LLMConfig configures the chat model used for translation, expansion
// and answer generation.
type LLMConfig struct {
	Provider    string        `yaml:"provider" env:"PROVIDER"`
	APIKey      string        `yaml:"api_key" env:"API_KEY"`
	BaseURL     string        `yaml:"base_url" env:"BASE_URL"`
	Model       string        `yaml:"model" env:"MODEL"`
	Temperature float64       `yaml:"temperature" env:"TEMPERATURE"`
	MaxTokens   int           `yaml:"max_tokens" env:"MAX_TOKENS"`
	Timeout     time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// EmbeddingConfig configures the dense embedder.
type EmbeddingConfig struct {
	// Provider selects the implementation: "openai" or "jina".
	Provider   string        `yaml:"provider" env:"PROVIDER"`
	APIKey     string        `yaml:"api_key" env:"API_KEY"`
	BaseURL    string        `yaml:"base_url" env:"BASE_URL"`
	DenseModel string        `yaml:"dense_model" env:"DENSE_MODEL"`
	DenseDims  int           `yaml:"dense_dims" env:"DENSE_DIMS"`
	Timeout    time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// SparseConfig configures the sparse (lexical) encoder used for hybrid
// search.
type SparseConfig struct {
	Model string `yaml:"sparse_model" env:"SPARSE_MODEL"`
}

// QdrantConfig configures the vector store.
type QdrantConfig struct {
	URL    string `yaml:"url" env:"URL"`
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// VectorCollection holds dense-only points.
	VectorCollection string `yaml:"vector_collection" env:"VECTOR_COLLECTION"`
	// HybridCollection holds dense+sparse points for RRF fusion.
	HybridCollection string        `yaml:"hybrid_collection" env:"HYBRID_COLLECTION"`
	Timeout          time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// Neo4jConfig configures the statute graph store.
type Neo4jConfig struct {
	// URI is the bolt/neo4j connection string.
	URI      string        `yaml:"graph_connection" env:"GRAPH_CONNECTION"`
	User     string        `yaml:"user" env:"USER"`
	Password string        `yaml:"password" env:"PASSWORD"`
	Database string        `yaml:"database" env:"DATABASE"`
	PoolSize int           `yaml:"pool_size" env:"POOL_SIZE"`
	Timeout  time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// RerankerConfig configures the optional cross-encoder stage.
type RerankerConfig struct {
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// Provider selects the implementation: "tei" or "jina".
	Provider string        `yaml:"provider" env:"PROVIDER"`
	APIKey   string        `yaml:"api_key" env:"API_KEY"`
	BaseURL  string        `yaml:"base_url" env:"BASE_URL"`
	Model    string        `yaml:"model" env:"MODEL"`
	Timeout  time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// PipelineConfig holds retrieval and fusion tuning knobs.
type PipelineConfig struct {
	// GraphWeight multiplies graph relevance during fusion. Values
	// above 1.0 deliberately push graph hits over vector scores.
	GraphWeight float64 `yaml:"graph_weight" env:"GRAPH_WEIGHT"`
	// MinScoreThreshold drops fused candidates below it.
	MinScoreThreshold float64 `yaml:"min_score_threshold" env:"MIN_SCORE_THRESHOLD"`
	// RetrievalMultiplier widens vector retrieval when a reranker will
	// narrow the list afterwards.
	RetrievalMultiplier int  `yaml:"retrieval_multiplier" env:"RETRIEVAL_MULTIPLIER"`
	UseHybridSearch     bool `yaml:"use_hybrid_search" env:"USE_HYBRID_SEARCH"`

	GraphTimeout    time.Duration `yaml:"graph_timeout" env:"GRAPH_TIMEOUT"`
	VectorTimeout   time.Duration `yaml:"vector_timeout" env:"VECTOR_TIMEOUT"`
	RerankTimeout   time.Duration `yaml:"rerank_timeout" env:"RERANK_TIMEOUT"`
	GenerateTimeout time.Duration `yaml:"generate_timeout" env:"GENERATE_TIMEOUT"`

	// AdaptiveEnabled allows one bounded retrieve-judge-rewrite loop.
	AdaptiveEnabled bool `yaml:"adaptive_enabled" env:"ADAPTIVE_ENABLED"`

	// MaxContextTokens truncates assembled context when positive.
	MaxContextTokens int `yaml:"max_context_tokens" env:"MAX_CONTEXT_TOKENS"`
	// PreferContextText selects the context-window variant of chunk
	// text when available.
	PreferContextText bool `yaml:"prefer_context_text" env:"PREFER_CONTEXT_TEXT"`
}

// CacheConfig configures the translation/expansion cache.
type CacheConfig struct {
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// Backend is "memory" or "redis".
	Backend    string        `yaml:"backend" env:"BACKEND"`
	TTL        time.Duration `yaml:"ttl" env:"TTL"`
	MaxEntries int           `yaml:"max_entries" env:"MAX_ENTRIES"`
}

// RedisConfig configures the Redis cache backend.
type RedisConfig struct {
	Addr         string `yaml:"addr" env:"ADDR"`
	Password     string `yaml:"password" env:"PASSWORD"`
	DB           int    `yaml:"db" env:"DB"`
	PoolSize     int    `yaml:"pool_size" env:"POOL_SIZE"`
	MinIdleConns int    `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
}

// QueryLogConfig configures the optional relational query log.
type QueryLogConfig struct {
	Enabled         bool          `yaml:"enabled" env:"ENABLED"`
	Driver          string        `yaml:"driver" env:"DRIVER"`
	Host            string        `yaml:"host" env:"HOST"`
	Port            int           `yaml:"port" env:"PORT"`
	User            string        `yaml:"user" env:"USER"`
	Password        string        `yaml:"password" env:"PASSWORD"`
	Name            string        `yaml:"name" env:"NAME"`
	SSLMode         string        `yaml:"ssl_mode" env:"SSL_MODE"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level            string   `yaml:"level" env:"LEVEL"`
	Format           string   `yaml:"format" env:"FORMAT"`
	OutputPaths      []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	EnableCaller     bool     `yaml:"enable_caller" env:"ENABLE_CALLER"`
	EnableStacktrace bool     `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled" env:"ENABLED"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	ServiceName  string  `yaml:"service_name" env:"SERVICE_NAME"`
	SampleRate   float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// Loader loads configuration with builder-style options.
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader creates a config loader with the HOUREI env prefix.
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "HOUREI",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath sets the YAML file path.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix overrides the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator appends a config validator.
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load resolves the configuration. Precedence: defaults, then the YAML
// file, then environment variables.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct && field.Type() != reflect.TypeOf(time.Duration(0)) {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetUint(u)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// Comma-separated string slices.
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// MustLoad loads configuration or panics.
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// LoadFromEnv loads configuration from environment variables only.
func LoadFromEnv() (*Config, error) {
	return NewLoader().Load()
}

// Validate checks invariants the pipeline depends on.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, "invalid HTTP port")
	}
	if c.Pipeline.GraphWeight <= 0 {
		errs = append(errs, "graph_weight must be positive")
	}
	if c.Pipeline.MinScoreThreshold < 0 || c.Pipeline.MinScoreThreshold > 1 {
		errs = append(errs, "min_score_threshold must be within [0,1]")
	}
	if c.Pipeline.RetrievalMultiplier < 1 {
		errs = append(errs, "retrieval_multiplier must be at least 1")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, "temperature must be between 0 and 2")
	}
	if c.Cache.Backend != "" && c.Cache.Backend != "memory" && c.Cache.Backend != "redis" {
		errs = append(errs, "cache backend must be memory or redis")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// DSN returns the query log database connection string.
func (q *QueryLogConfig) DSN() string {
	switch q.Driver {
	case "postgres":
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			q.Host, q.Port, q.User, q.Password, q.Name, q.SSLMode,
		)
	case "mysql":
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?parseTime=true",
			q.User, q.Password, q.Host, q.Port, q.Name,
		)
	case "sqlite":
		return q.Name
	default:
		return ""
	}
}
