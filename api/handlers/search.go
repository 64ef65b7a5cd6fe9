package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/hourei-dev/hourei/api"
)

// SearchHandler serves the retrieval-only endpoint.
type SearchHandler struct {
	pipeline Pipeline
	queryLog QueryLogger
	logger   *zap.Logger
}

// NewSearchHandler creates the search handler. queryLog may be nil.
func NewSearchHandler(pipeline Pipeline, queryLog QueryLogger, logger *zap.Logger) *SearchHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SearchHandler{
		pipeline: pipeline,
		queryLog: queryLog,
		logger:   logger,
	}
}

// HandleSearch returns ranked documents without generating an answer.
func (h *SearchHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	var req api.SearchRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if err := req.Validate(); err != nil {
		WriteError(w, r, err, h.logger)
		return
	}

	start := time.Now()
	results, err := h.pipeline.Search(r.Context(), req.Query, req.Options())
	elapsed := time.Since(start)
	if err != nil {
		WriteAnyError(w, r, err, h.logger)
		saveRecord(r.Context(), h.queryLog, failureRecord(req.Query, err, elapsed))
		return
	}

	WriteSuccess(w, r, &api.SearchResponse{
		Results:   results,
		Query:     req.Query,
		Total:     len(results),
		ElapsedMS: elapsed.Milliseconds(),
	})
	saveRecord(r.Context(), h.queryLog, searchRecord(req.Query, results, elapsed))
}
