package rerank

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJinaProviderRerank(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/rerank", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req jinaRerankRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "jina-reranker-v2-base-multilingual", req.Model)
		assert.Len(t, req.Documents, 3)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"model": req.Model,
			"results": []map[string]any{
				{"index": 2, "relevance_score": 0.95},
				{"index": 0, "relevance_score": 0.42},
			},
			"usage": map[string]int{"total_tokens": 30},
		})
	}))
	defer srv.Close()

	p := NewJinaProvider(JinaConfig{APIKey: "test-key", BaseURL: srv.URL})

	resp, err := p.Rerank(context.Background(), &RerankRequest{
		Query: "労働時間の上限は？",
		Documents: []Document{
			{ID: "doc-a", Text: "第1条 目的"},
			{ID: "doc-b", Text: "第15条 労働条件の明示"},
			{ID: "doc-c", Text: "第32条 労働時間"},
		},
		TopN: 2,
	})
	require.NoError(t, err)

	require.Len(t, resp.Results, 2)
	assert.Equal(t, 2, resp.Results[0].Index)
	assert.InDelta(t, 0.95, resp.Results[0].RelevanceScore, 1e-9)
	assert.Equal(t, "doc-c", resp.Results[0].Document.ID, "ID resolved from original index")
	assert.Equal(t, "doc-a", resp.Results[1].Document.ID)
	assert.Equal(t, 30, resp.Usage.TotalTokens)
}

func TestJinaProviderRerankSimple(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model":   "m",
			"results": []map[string]any{{"index": 0, "relevance_score": 0.7}},
		})
	}))
	defer srv.Close()

	p := NewJinaProvider(JinaConfig{APIKey: "k", BaseURL: srv.URL})
	results, err := p.RerankSimple(context.Background(), "q", []string{"a", "b"}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 0, results[0].Index)
}

func TestJinaProviderUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("overloaded"))
	}))
	defer srv.Close()

	p := NewJinaProvider(JinaConfig{APIKey: "k", BaseURL: srv.URL})
	_, err := p.Rerank(context.Background(), &RerankRequest{Query: "q", Documents: []Document{{Text: "t"}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=503")
}

func TestTEIProviderRerank(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rerank", r.URL.Path)

		var req teiRerankRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.RawScores, "sigmoid scores keep results in [0,1]")
		assert.Equal(t, "第32条の内容", req.Query)

		_ = json.NewEncoder(w).Encode([]teiRerankResult{
			{Index: 1, Score: 0.98},
			{Index: 0, Score: 0.11},
			{Index: 2, Score: 0.07},
		})
	}))
	defer srv.Close()

	p := NewTEIProvider(TEIConfig{BaseURL: srv.URL, Model: "BAAI/bge-reranker-v2-m3"})

	resp, err := p.Rerank(context.Background(), &RerankRequest{
		Query: "第32条の内容",
		Documents: []Document{
			{ID: "x", Text: "irrelevant"},
			{ID: "y", Text: "第32条 労働時間"},
			{ID: "z", Text: "other"},
		},
		TopN: 2,
	})
	require.NoError(t, err)

	require.Len(t, resp.Results, 2, "TopN applied locally")
	assert.Equal(t, 1, resp.Results[0].Index)
	assert.Equal(t, "y", resp.Results[0].Document.ID)
	assert.Equal(t, "BAAI/bge-reranker-v2-m3", resp.Model)

	for _, r := range resp.Results {
		assert.GreaterOrEqual(t, r.RelevanceScore, 0.0)
		assert.LessOrEqual(t, r.RelevanceScore, 1.0)
	}
}

func TestTEIProviderDefaults(t *testing.T) {
	p := NewTEIProvider(TEIConfig{})
	assert.Equal(t, "tei-rerank", p.Name())
	assert.Equal(t, 256, p.MaxDocuments())
}
