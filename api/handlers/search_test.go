package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hourei-dev/hourei/api"
	"github.com/hourei-dev/hourei/rag"
	"github.com/hourei-dev/hourei/types"
)

func sampleResults() []rag.SourceDocument {
	return []rag.SourceDocument{
		{ChunkID: "c1", LawTitle: "労働基準法", Text: "使用者は…", Score: 0.92, Source: rag.SourceVector},
		{ChunkID: "c2", LawTitle: "労働基準法", Text: "前項の…", Score: 0.85, Source: rag.SourceVector},
		{ChunkID: "c3", LawTitle: "最低賃金法", Text: "賃金の…", Score: 0.81, Source: rag.SourceGraph},
	}
}

func TestSearchHandler_Success(t *testing.T) {
	pipeline := &fakePipeline{results: sampleResults()}
	queryLog := &fakeQueryLog{}
	h := NewSearchHandler(pipeline, queryLog, zap.NewNop())

	w := postJSON(t, h.HandleSearch, `{"query":"労働時間の上限は？","top_k":3}`)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeEnvelope(t, w)
	assert.True(t, resp.Success)

	data, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var searchResp api.SearchResponse
	require.NoError(t, json.Unmarshal(data, &searchResp))

	assert.Equal(t, 3, searchResp.Total)
	require.Len(t, searchResp.Results, 3)
	assert.Equal(t, "c1", searchResp.Results[0].ChunkID)
	assert.Equal(t, "労働時間の上限は？", searchResp.Query)
	assert.GreaterOrEqual(t, searchResp.ElapsedMS, int64(0))

	assert.Equal(t, 1, pipeline.searchCalls)
	assert.Equal(t, 0, pipeline.chatCalls)

	recs := queryLog.records()
	require.Len(t, recs, 1)
	assert.Equal(t, "ok", recs[0].Status)
	assert.Equal(t, "ja", recs[0].Language)
	assert.Empty(t, recs[0].Answer, "search rows carry no generated answer")
	assert.Equal(t, 3, recs[0].SourceCount)
	assert.Equal(t, 1, recs[0].GraphHits)
	assert.Equal(t, 2, recs[0].VectorHits)
	assert.Equal(t, `["c1","c2","c3"]`, recs[0].ChunkIDs)
}

func TestSearchHandler_OptionsForwarded(t *testing.T) {
	pipeline := &fakePipeline{results: sampleResults()}
	h := NewSearchHandler(pipeline, nil, zap.NewNop())

	w := postJSON(t, h.HandleSearch, `{"query":"q","multi_query":false,"filters":{"law_id":"322AC0000000049"}}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, rag.ToggleOff, pipeline.gotOpts.MultiQuery)
	assert.Equal(t, rag.ToggleDefault, pipeline.gotOpts.UseGraph)
	assert.Equal(t, map[string]string{"law_id": "322AC0000000049"}, pipeline.gotOpts.Filters)
}

func TestSearchHandler_TopKValidation(t *testing.T) {
	pipeline := &fakePipeline{results: sampleResults()}
	h := NewSearchHandler(pipeline, nil, zap.NewNop())

	w := postJSON(t, h.HandleSearch, `{"query":"q","top_k":0}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, pipeline.searchCalls)
}

func TestSearchHandler_PipelineError(t *testing.T) {
	pipeline := &fakePipeline{err: types.NewError(types.ErrVectorUnavailable, "vector store unreachable")}
	queryLog := &fakeQueryLog{}
	h := NewSearchHandler(pipeline, queryLog, zap.NewNop())

	w := postJSON(t, h.HandleSearch, `{"query":"q"}`)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	resp := decodeEnvelope(t, w)
	require.NotNil(t, resp.Error)
	assert.Equal(t, string(types.ErrVectorUnavailable), resp.Error.Code)

	recs := queryLog.records()
	require.Len(t, recs, 1)
	assert.Equal(t, "error", recs[0].Status)
	assert.Equal(t, string(types.ErrVectorUnavailable), recs[0].ErrorCode)
}

func TestSearchHandler_EmptyResults(t *testing.T) {
	pipeline := &fakePipeline{results: []rag.SourceDocument{}}
	h := NewSearchHandler(pipeline, nil, zap.NewNop())

	w := postJSON(t, h.HandleSearch, `{"query":"q"}`)

	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeEnvelope(t, w)
	data, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var searchResp api.SearchResponse
	require.NoError(t, json.Unmarshal(data, &searchResp))
	assert.Zero(t, searchResp.Total)
}
