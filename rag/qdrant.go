package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hourei-dev/hourei/internal/httpclient"
	"github.com/hourei-dev/hourei/llm/retry"
	"github.com/hourei-dev/hourei/types"

	"go.uber.org/zap"
)

// QdrantConfig configures the statute chunk index.
//
// The collection carries two named vectors per point: a dense
// embedding and a sparse bag-of-tokens vector for hybrid fusion.
type QdrantConfig struct {
	BaseURL    string        `json:"base_url"`
	APIKey     string        `json:"api_key,omitempty"`
	Collection string        `json:"collection"`
	Timeout    time.Duration `json:"timeout,omitempty"`

	DenseVectorName  string `json:"dense_vector_name,omitempty"`
	SparseVectorName string `json:"sparse_vector_name,omitempty"`
	// PrefetchLimit is how many hits each arm of a hybrid query
	// feeds into the fusion stage.
	PrefetchLimit int `json:"prefetch_limit,omitempty"`
}

// QdrantStore implements VectorStore and HybridVectorStore over
// Qdrant's REST API.
type QdrantStore struct {
	cfg     QdrantConfig
	baseURL string
	client  *http.Client
	retryer retry.Retryer
	logger  *zap.Logger
}

var (
	_ VectorStore       = (*QdrantStore)(nil)
	_ HybridVectorStore = (*QdrantStore)(nil)
)

// NewQdrantStore creates a Qdrant-backed store.
func NewQdrantStore(cfg QdrantConfig, logger *zap.Logger) *QdrantStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:6333"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
	}
	if cfg.DenseVectorName == "" {
		cfg.DenseVectorName = "dense"
	}
	if cfg.SparseVectorName == "" {
		cfg.SparseVectorName = "sparse"
	}
	if cfg.PrefetchLimit <= 0 {
		cfg.PrefetchLimit = 20
	}

	log := logger.With(zap.String("component", "qdrant_store"))
	return &QdrantStore{
		cfg:     cfg,
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		client:  httpclient.New(cfg.Timeout),
		retryer: retry.NewBackoffRetryer(&retry.Policy{
			MaxAttempts:  3,
			InitialDelay: 1 * time.Second,
			MaxDelay:     4 * time.Second,
			Multiplier:   2.0,
			Jitter:       true,
			ShouldRetry:  types.IsRetryable,
		}, log),
		logger: log,
	}
}

// Verify probes the collection so startup can fail fast when the
// index is missing or unreachable.
func (s *QdrantStore) Verify(ctx context.Context) error {
	if strings.TrimSpace(s.cfg.Collection) == "" {
		return types.NewError(types.ErrVectorUnavailable, "qdrant collection is required")
	}
	path := fmt.Sprintf("/collections/%s", url.PathEscape(s.cfg.Collection))
	if err := s.doJSON(ctx, http.MethodGet, path, nil, nil); err != nil {
		return types.NewError(types.ErrVectorUnavailable, "qdrant collection unreachable").
			WithCause(err).WithProvider("qdrant")
	}
	return nil
}

// Search runs a dense similarity query against the named dense
// vector. Scores are cosine similarities as Qdrant reports them.
func (s *QdrantStore) Search(ctx context.Context, vector []float64, topK int, filters map[string]string) ([]Candidate, error) {
	if strings.TrimSpace(s.cfg.Collection) == "" {
		return nil, types.NewError(types.ErrVectorUnavailable, "qdrant collection is required")
	}
	if topK <= 0 {
		return []Candidate{}, nil
	}
	if len(vector) == 0 {
		return nil, types.NewError(types.ErrInvalidRequest, "query vector is required")
	}

	req := struct {
		Vector      map[string]any `json:"vector"`
		Limit       int            `json:"limit"`
		WithPayload bool           `json:"with_payload"`
		Filter      map[string]any `json:"filter,omitempty"`
	}{
		Vector:      map[string]any{"name": s.cfg.DenseVectorName, "vector": vector},
		Limit:       topK,
		WithPayload: true,
		Filter:      qdrantFilter(filters),
	}

	var resp struct {
		Result []qdrantPoint `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/search", url.PathEscape(s.cfg.Collection))
	if err := s.doJSON(ctx, http.MethodPost, path, req, &resp); err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(resp.Result))
	for _, point := range resp.Result {
		candidates = append(candidates, candidateFromPoint(point))
	}
	s.logger.Debug("qdrant dense search", zap.Int("hits", len(candidates)))
	return candidates, nil
}

// HybridSearch fuses a sparse and a dense arm with reciprocal rank
// fusion on the server, then rescales so the top hit scores 1.0.
// RRF scores are rank sums with no absolute meaning, so without the
// rescale the relevance floor downstream would reject everything.
func (s *QdrantStore) HybridSearch(ctx context.Context, dense []float64, sparse SparseVector, topK int, filters map[string]string) ([]Candidate, error) {
	if strings.TrimSpace(s.cfg.Collection) == "" {
		return nil, types.NewError(types.ErrVectorUnavailable, "qdrant collection is required")
	}
	if topK <= 0 {
		return []Candidate{}, nil
	}
	if len(dense) == 0 {
		return nil, types.NewError(types.ErrInvalidRequest, "query vector is required")
	}
	if sparse.IsEmpty() {
		return s.Search(ctx, dense, topK, filters)
	}

	filter := qdrantFilter(filters)
	type prefetch struct {
		Query  any            `json:"query"`
		Using  string         `json:"using"`
		Limit  int            `json:"limit"`
		Filter map[string]any `json:"filter,omitempty"`
	}
	req := struct {
		Prefetch    []prefetch     `json:"prefetch"`
		Query       map[string]any `json:"query"`
		Limit       int            `json:"limit"`
		WithPayload bool           `json:"with_payload"`
	}{
		Prefetch: []prefetch{
			{
				Query:  map[string]any{"indices": sparse.Indices, "values": sparse.Values},
				Using:  s.cfg.SparseVectorName,
				Limit:  s.cfg.PrefetchLimit,
				Filter: filter,
			},
			{
				Query:  dense,
				Using:  s.cfg.DenseVectorName,
				Limit:  s.cfg.PrefetchLimit,
				Filter: filter,
			},
		},
		Query:       map[string]any{"fusion": "rrf"},
		Limit:       topK,
		WithPayload: true,
	}

	var resp struct {
		Result struct {
			Points []qdrantPoint `json:"points"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/query", url.PathEscape(s.cfg.Collection))
	if err := s.doJSON(ctx, http.MethodPost, path, req, &resp); err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(resp.Result.Points))
	for _, point := range resp.Result.Points {
		candidates = append(candidates, candidateFromPoint(point))
	}
	normalizeTopScore(candidates)
	s.logger.Debug("qdrant hybrid search", zap.Int("hits", len(candidates)))
	return candidates, nil
}

type qdrantPoint struct {
	ID      any            `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

// candidateFromPoint maps a scored point onto the statute payload
// schema used at ingestion time.
func candidateFromPoint(point qdrantPoint) Candidate {
	payload := point.Payload
	c := Candidate{
		Score:           point.Score,
		Source:          SourceVector,
		ChunkID:         payloadString(payload, "chunk_id"),
		LawID:           payloadString(payload, "law_id"),
		LawTitle:        payloadString(payload, "law_title"),
		ArticleNumber:   payloadString(payload, "article_num"),
		ArticleTitle:    payloadString(payload, "article_title"),
		ArticleCaption:  payloadString(payload, "article_caption"),
		ChapterTitle:    payloadString(payload, "chapter_title"),
		ParagraphNum:    payloadString(payload, "paragraph_num"),
		Category:        payloadString(payload, "category"),
		Text:            payloadString(payload, "text"),
		TextWithContext: payloadString(payload, "text_with_context"),
	}
	if c.ChunkID == "" && point.ID != nil {
		c.ChunkID = fmt.Sprint(point.ID)
	}
	return c
}

func payloadString(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case float64:
		// Numeric payload fields such as paragraph numbers.
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return ""
	}
}

// qdrantFilter builds a must-match filter, keys sorted so request
// bodies are deterministic.
func qdrantFilter(filters map[string]string) map[string]any {
	if len(filters) == 0 {
		return nil
	}
	keys := make([]string, 0, len(filters))
	for key := range filters {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	must := make([]map[string]any, 0, len(keys))
	for _, key := range keys {
		must = append(must, map[string]any{
			"key":   key,
			"match": map[string]any{"value": filters[key]},
		})
	}
	return map[string]any{"must": must}
}

// normalizeTopScore rescales scores so the best hit is exactly 1.0.
func normalizeTopScore(candidates []Candidate) {
	var max float64
	for _, c := range candidates {
		if c.Score > max {
			max = c.Score
		}
	}
	if max <= 0 {
		return
	}
	for i := range candidates {
		candidates[i].Score /= max
	}
}

func (s *QdrantStore) applyHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if strings.TrimSpace(s.cfg.APIKey) != "" {
		// Qdrant convention.
		req.Header.Set("api-key", s.cfg.APIKey)
	}
}

// doJSON posts in and decodes the response into out, retrying
// transient failures with bounded backoff.
func (s *QdrantStore) doJSON(ctx context.Context, method, path string, in any, out any) error {
	var payload []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return types.NewError(types.ErrInternalError, "failed to encode qdrant request").WithCause(err)
		}
		payload = b
	}

	return s.retryer.Do(ctx, func() error {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
		if err != nil {
			return types.NewError(types.ErrInternalError, "failed to build qdrant request").WithCause(err)
		}
		s.applyHeaders(req)

		resp, err := s.client.Do(req)
		if err != nil {
			return types.NewError(types.ErrConnectionReset, "qdrant request failed").
				WithCause(err).WithProvider("qdrant")
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			raw, _ := io.ReadAll(resp.Body)
			msg := fmt.Sprintf("qdrant request failed: method=%s path=%s status=%d body=%s",
				method, path, resp.StatusCode, string(raw))
			switch {
			case resp.StatusCode == http.StatusTooManyRequests:
				return types.NewError(types.ErrRateLimited, msg).WithProvider("qdrant")
			case resp.StatusCode >= 500:
				return types.NewError(types.ErrUpstreamError, msg).WithProvider("qdrant")
			default:
				return types.NewError(types.ErrStoreQueryFailed, msg).WithProvider("qdrant")
			}
		}

		if out == nil {
			io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return types.NewError(types.ErrStoreQueryFailed, "failed to decode qdrant response").
				WithCause(err).WithProvider("qdrant")
		}
		return nil
	})
}
