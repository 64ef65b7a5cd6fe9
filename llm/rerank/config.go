package rerank

import "time"

// JinaConfig configures the Jina AI reranker provider.
type JinaConfig struct {
	APIKey  string        `json:"api_key" yaml:"api_key"`
	BaseURL string        `json:"base_url" yaml:"base_url"`
	Model   string        `json:"model,omitempty" yaml:"model,omitempty"`
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// TEIConfig configures a reranker served by HuggingFace
// text-embeddings-inference, typically a self-hosted BGE cross-encoder.
type TEIConfig struct {
	BaseURL string        `json:"base_url" yaml:"base_url"`
	Model   string        `json:"model,omitempty" yaml:"model,omitempty"`
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// DefaultJinaConfig returns the default Jina reranker config.
func DefaultJinaConfig() JinaConfig {
	return JinaConfig{
		BaseURL: "https://api.jina.ai",
		Model:   "jina-reranker-v2-base-multilingual",
		Timeout: 30 * time.Second,
	}
}

// DefaultTEIConfig returns the default TEI reranker config.
func DefaultTEIConfig() TEIConfig {
	return TEIConfig{
		BaseURL: "http://localhost:8080",
		Model:   "BAAI/bge-reranker-v2-m3",
		Timeout: 30 * time.Second,
	}
}
