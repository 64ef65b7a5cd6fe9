package rag

import (
	"context"
	"sync"

	"github.com/hourei-dev/hourei/llm"
	"github.com/hourei-dev/hourei/llm/embedding"
	"github.com/hourei-dev/hourei/llm/rerank"
)

// mockChatProvider answers chat completions from a function, counting
// calls. The zero value answers "ok" to everything.
type mockChatProvider struct {
	mu         sync.Mutex
	calls      int
	completeFn func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error)
}

func (m *mockChatProvider) Complete(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.completeFn != nil {
		return m.completeFn(ctx, req)
	}
	return textResponse("ok"), nil
}

func (m *mockChatProvider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	return &llm.HealthStatus{Healthy: true}, nil
}

func (m *mockChatProvider) Name() string { return "mock" }

func (m *mockChatProvider) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockGraphStore serves canned graph lookups and records calls.
type mockGraphStore struct {
	mu       sync.Mutex
	articles map[string]*GraphResult  // "lawTitle|articleNum"
	related  map[string][]GraphResult // "lawID|articleNum"
	keywords map[string][]GraphResult
	outline  *LawOutline
	stats    *GraphStats
	err      error // returned by every method when set

	findArticleCalls [][2]string
	findRelatedCalls [][2]string
	keywordCalls     []string
	keywordLimits    []int
}

func (m *mockGraphStore) FindArticle(_ context.Context, lawTitle, articleNum string) (*GraphResult, error) {
	m.mu.Lock()
	m.findArticleCalls = append(m.findArticleCalls, [2]string{lawTitle, articleNum})
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.articles[lawTitle+"|"+articleNum], nil
}

func (m *mockGraphStore) FindRelated(_ context.Context, lawID, articleNum string, _, limit int) ([]GraphResult, error) {
	m.mu.Lock()
	m.findRelatedCalls = append(m.findRelatedCalls, [2]string{lawID, articleNum})
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	related := m.related[lawID+"|"+articleNum]
	if len(related) > limit {
		related = related[:limit]
	}
	return related, nil
}

func (m *mockGraphStore) KeywordSearch(_ context.Context, keyword string, limit int) ([]GraphResult, error) {
	m.mu.Lock()
	m.keywordCalls = append(m.keywordCalls, keyword)
	m.keywordLimits = append(m.keywordLimits, limit)
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	hits := m.keywords[keyword]
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (m *mockGraphStore) LawStructure(_ context.Context, _ string) (*LawOutline, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.outline, nil
}

func (m *mockGraphStore) Stats(_ context.Context) (*GraphStats, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.stats, nil
}

// mockEmbedder returns canned vectors per input text. Unknown texts
// embed to a zero vector so merges stay deterministic.
type mockEmbedder struct {
	mu      sync.Mutex
	calls   int
	inputs  [][]string
	vectors map[string][]float64
	err     error
}

func (m *mockEmbedder) Embed(ctx context.Context, req *embedding.EmbeddingRequest) (*embedding.EmbeddingResponse, error) {
	m.mu.Lock()
	m.calls++
	m.inputs = append(m.inputs, req.Input)
	m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.err != nil {
		return nil, m.err
	}
	resp := &embedding.EmbeddingResponse{Provider: "mock", Model: "mock-embed"}
	for i, text := range req.Input {
		vec := m.vectors[text]
		if vec == nil {
			vec = []float64{0}
		}
		resp.Embeddings = append(resp.Embeddings, embedding.EmbeddingData{Index: i, Embedding: vec})
	}
	return resp, nil
}

func (m *mockEmbedder) EmbedQuery(ctx context.Context, query string) ([]float64, error) {
	resp, err := m.Embed(ctx, &embedding.EmbeddingRequest{Input: []string{query}})
	if err != nil {
		return nil, err
	}
	return resp.Embeddings[0].Embedding, nil
}

func (m *mockEmbedder) EmbedDocuments(ctx context.Context, documents []string) ([][]float64, error) {
	resp, err := m.Embed(ctx, &embedding.EmbeddingRequest{Input: documents})
	if err != nil {
		return nil, err
	}
	out := make([][]float64, len(resp.Embeddings))
	for i, data := range resp.Embeddings {
		out[i] = data.Embedding
	}
	return out, nil
}

func (m *mockEmbedder) Name() string      { return "mock-embed" }
func (m *mockEmbedder) Dimensions() int   { return 4 }
func (m *mockEmbedder) MaxBatchSize() int { return 16 }

func (m *mockEmbedder) embedCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockVectorStore serves dense hits keyed by the first vector
// component, which the mock embedder makes unique per text.
type mockVectorStore struct {
	mu       sync.Mutex
	hits     map[float64][]Candidate
	errFor   map[float64]error
	searches []float64
	topKs    []int
	filters  []map[string]string
}

func (m *mockVectorStore) Search(_ context.Context, vector []float64, topK int, filters map[string]string) ([]Candidate, error) {
	key := 0.0
	if len(vector) > 0 {
		key = vector[0]
	}
	m.mu.Lock()
	m.searches = append(m.searches, key)
	m.topKs = append(m.topKs, topK)
	m.filters = append(m.filters, filters)
	m.mu.Unlock()
	if err := m.errFor[key]; err != nil {
		return nil, err
	}
	return m.hits[key], nil
}

func (m *mockVectorStore) searchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.searches)
}

// mockHybridStore adds server-side fusion on top of mockVectorStore.
type mockHybridStore struct {
	mockVectorStore
	hybridHits  map[float64][]Candidate
	sparseCalls []SparseVector
	hybridKeys  []float64
}

func (m *mockHybridStore) HybridSearch(_ context.Context, dense []float64, sparse SparseVector, topK int, filters map[string]string) ([]Candidate, error) {
	key := 0.0
	if len(dense) > 0 {
		key = dense[0]
	}
	m.mu.Lock()
	m.sparseCalls = append(m.sparseCalls, sparse)
	m.hybridKeys = append(m.hybridKeys, key)
	m.topKs = append(m.topKs, topK)
	m.filters = append(m.filters, filters)
	m.mu.Unlock()
	if err := m.errFor[key]; err != nil {
		return nil, err
	}
	return m.hybridHits[key], nil
}

// mockSparseEncoder wraps the local encoder with call recording and
// an optional injected failure.
type mockSparseEncoder struct {
	mu         sync.Mutex
	batchTexts [][]string
	err        error
}

func (m *mockSparseEncoder) Embed(ctx context.Context, text string) (SparseVector, error) {
	if m.err != nil {
		return SparseVector{}, m.err
	}
	return EncodeSparse(text), nil
}

func (m *mockSparseEncoder) EmbedBatch(ctx context.Context, texts []string) ([]SparseVector, error) {
	m.mu.Lock()
	m.batchTexts = append(m.batchTexts, texts)
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return LocalSparseEncoder{}.EmbedBatch(ctx, texts)
}

func (m *mockSparseEncoder) batchCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.batchTexts)
}

// mockReranker scores documents by ID from a canned table. Unknown
// documents score 0.5. Results come back in request order so callers
// must sort themselves.
type mockReranker struct {
	mu       sync.Mutex
	calls    int
	requests []*rerank.RerankRequest
	scores   map[string]float64
	err      error
	maxDocs  int
}

func (m *mockReranker) Rerank(ctx context.Context, req *rerank.RerankRequest) (*rerank.RerankResponse, error) {
	m.mu.Lock()
	m.calls++
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.err != nil {
		return nil, m.err
	}
	resp := &rerank.RerankResponse{Provider: "mock", Model: "mock-rerank"}
	for i, doc := range req.Documents {
		score, ok := m.scores[doc.ID]
		if !ok {
			score = 0.5
		}
		resp.Results = append(resp.Results, rerank.RerankResult{
			Index:          i,
			RelevanceScore: score,
			Document:       doc,
		})
	}
	return resp, nil
}

func (m *mockReranker) RerankSimple(ctx context.Context, query string, documents []string, topN int) ([]rerank.RerankResult, error) {
	docs := make([]rerank.Document, len(documents))
	for i, text := range documents {
		docs[i] = rerank.Document{Text: text}
	}
	resp, err := m.Rerank(ctx, &rerank.RerankRequest{Query: query, Documents: docs, TopN: topN})
	if err != nil {
		return nil, err
	}
	return resp.Results, nil
}

func (m *mockReranker) Name() string { return "mock-rerank" }

func (m *mockReranker) MaxDocuments() int {
	if m.maxDocs > 0 {
		return m.maxDocs
	}
	return 32
}

func (m *mockReranker) rerankCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func textResponse(text string) *llm.ChatResponse {
	return &llm.ChatResponse{
		Model: "mock-model",
		Choices: []llm.ChatChoice{
			{Message: llm.Message{Role: llm.RoleAssistant, Content: text}},
		},
	}
}

// systemPromptOf returns the system message content of a request, or
// "" when the request has none.
func systemPromptOf(req *llm.ChatRequest) string {
	for _, msg := range req.Messages {
		if msg.Role == llm.RoleSystem {
			return msg.Content
		}
	}
	return ""
}
