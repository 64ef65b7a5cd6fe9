package handlers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hourei-dev/hourei/internal/ctxkeys"
	"github.com/hourei-dev/hourei/internal/querylog"
	"github.com/hourei-dev/hourei/rag"
	"github.com/hourei-dev/hourei/types"
)

// saveRecordTimeout bounds the query log write after the response has
// gone out.
const saveRecordTimeout = 5 * time.Second

// saveRecord persists rec detached from the client's context so a
// disconnect does not lose the row. The store logs its own failures.
func saveRecord(ctx context.Context, ql QueryLogger, rec *querylog.QueryRecord) {
	if ql == nil {
		return
	}
	if id, ok := ctxkeys.TraceID(ctx); ok {
		rec.RequestID = id
	}
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveRecordTimeout)
	defer cancel()
	_ = ql.Save(saveCtx, rec)
}

// answerRecord builds the log row for a successful chat run.
func answerRecord(query string, ans *rag.Answer) *querylog.QueryRecord {
	graphHits, vectorHits := tallySources(ans.Sources)
	return &querylog.QueryRecord{
		Query:       query,
		Translated:  ans.Translated,
		Language:    languageOf(query),
		Route:       ans.Route,
		Status:      "ok",
		Answer:      ans.Answer,
		SourceCount: len(ans.Sources),
		GraphHits:   graphHits,
		VectorHits:  vectorHits,
		Reranked:    ans.Reranked,
		Rewrites:    ans.Rewrites,
		ChunkIDs:    chunkIDsJSON(ans.Sources),
		DurationMS:  ans.ElapsedMS,
	}
}

// searchRecord builds the log row for a retrieval-only run.
func searchRecord(query string, results []rag.SourceDocument, elapsed time.Duration) *querylog.QueryRecord {
	graphHits, vectorHits := tallySources(results)
	return &querylog.QueryRecord{
		Query:       query,
		Language:    languageOf(query),
		Status:      "ok",
		SourceCount: len(results),
		GraphHits:   graphHits,
		VectorHits:  vectorHits,
		ChunkIDs:    chunkIDsJSON(results),
		DurationMS:  elapsed.Milliseconds(),
	}
}

// failureRecord builds the log row for a failed run.
func failureRecord(query string, err error, elapsed time.Duration) *querylog.QueryRecord {
	code := string(types.GetErrorCode(err))
	if code == "" {
		code = string(types.ErrInternalError)
	}
	return &querylog.QueryRecord{
		Query:      query,
		Language:   languageOf(query),
		Status:     "error",
		ErrorCode:  code,
		DurationMS: elapsed.Milliseconds(),
	}
}

func tallySources(sources []rag.SourceDocument) (graphHits, vectorHits int) {
	for _, src := range sources {
		if src.Source == rag.SourceGraph {
			graphHits++
		} else {
			vectorHits++
		}
	}
	return graphHits, vectorHits
}

func chunkIDsJSON(sources []rag.SourceDocument) string {
	if len(sources) == 0 {
		return ""
	}
	ids := make([]string, len(sources))
	for i, src := range sources {
		ids[i] = src.ChunkID
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return ""
	}
	return string(b)
}

func languageOf(query string) string {
	if rag.IsJapanese(query) {
		return "ja"
	}
	return "vi"
}
