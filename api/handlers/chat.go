package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/hourei-dev/hourei/api"
	"github.com/hourei-dev/hourei/internal/querylog"
	"github.com/hourei-dev/hourei/rag"
)

// Pipeline is the retrieval-and-answer core the HTTP layer fronts.
// *rag.Pipeline implements it.
type Pipeline interface {
	Chat(ctx context.Context, query string, opts rag.Options) (*rag.Answer, error)
	Search(ctx context.Context, query string, opts rag.Options) ([]rag.SourceDocument, error)
}

// QueryLogger persists one row per request for offline quality review.
// *querylog.Store implements it; nil disables logging.
type QueryLogger interface {
	Save(ctx context.Context, rec *querylog.QueryRecord) error
}

// ChatHandler serves the answer generation endpoint.
type ChatHandler struct {
	pipeline Pipeline
	queryLog QueryLogger
	logger   *zap.Logger
}

// NewChatHandler creates the chat handler. queryLog may be nil.
func NewChatHandler(pipeline Pipeline, queryLog QueryLogger, logger *zap.Logger) *ChatHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatHandler{
		pipeline: pipeline,
		queryLog: queryLog,
		logger:   logger,
	}
}

// HandleChat answers a question with numbered citations.
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	var req api.ChatRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if err := req.Validate(); err != nil {
		WriteError(w, r, err, h.logger)
		return
	}

	start := time.Now()
	answer, err := h.pipeline.Chat(r.Context(), req.Query, req.Options())
	if err != nil {
		WriteAnyError(w, r, err, h.logger)
		saveRecord(r.Context(), h.queryLog, failureRecord(req.Query, err, time.Since(start)))
		return
	}

	WriteSuccess(w, r, &api.ChatResponse{
		Answer:    answer.Answer,
		Sources:   answer.Sources,
		Query:     answer.Query,
		ElapsedMS: answer.ElapsedMS,
	})
	saveRecord(r.Context(), h.queryLog, answerRecord(req.Query, answer))
}
