package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/hourei-dev/hourei/rag"
	"github.com/hourei-dev/hourei/types"
)

// GraphHandler serves read-only views of the statute graph.
type GraphHandler struct {
	store  rag.GraphStore
	logger *zap.Logger
}

// NewGraphHandler creates the graph handler. A nil store answers every
// request with GRAPH_UNAVAILABLE.
func NewGraphHandler(store rag.GraphStore, logger *zap.Logger) *GraphHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GraphHandler{store: store, logger: logger}
}

// HandleLawStructure returns the chapter and article outline of one
// law. The law id comes from the {law_id} path segment.
func (h *GraphHandler) HandleLawStructure(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		WriteError(w, r, types.NewError(types.ErrGraphUnavailable, "statute graph is not configured"), h.logger)
		return
	}

	lawID := r.PathValue("law_id")
	if lawID == "" {
		WriteError(w, r, types.NewError(types.ErrInvalidRequest, "law_id is required"), h.logger)
		return
	}

	outline, err := h.store.LawStructure(r.Context(), lawID)
	if err != nil {
		WriteError(w, r, storeError(r, err), h.logger)
		return
	}
	if outline == nil {
		WriteError(w, r, types.NewError(types.ErrNotFound, "law not found: "+lawID), h.logger)
		return
	}

	WriteSuccess(w, r, outline)
}

// HandleStats returns node and relationship counts by label.
func (h *GraphHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		WriteError(w, r, types.NewError(types.ErrGraphUnavailable, "statute graph is not configured"), h.logger)
		return
	}

	stats, err := h.store.Stats(r.Context())
	if err != nil {
		WriteError(w, r, storeError(r, err), h.logger)
		return
	}

	WriteSuccess(w, r, stats)
}

// storeError keeps typed errors and classifies the rest: cancelled
// when the client went away, store failure otherwise.
func storeError(r *http.Request, err error) *types.Error {
	if typed := types.AsError(err); typed != nil {
		return typed
	}
	if r.Context().Err() != nil {
		return types.NewError(types.ErrCancelled, "request cancelled").WithCause(err)
	}
	return types.NewError(types.ErrStoreQueryFailed, "graph query failed").WithCause(err)
}
