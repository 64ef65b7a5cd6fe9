package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHealthHandler_HandleHealth(t *testing.T) {
	h := NewHealthHandler("0.3.0", zap.NewNop())

	w := httptest.NewRecorder()
	h.HandleHealth(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)

	var status HealthStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&status))
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "0.3.0", status.Version)
	assert.False(t, status.Timestamp.IsZero())
}

func TestHealthHandler_HandleReady(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(*HealthHandler)
		wantStatus int
		check      func(*testing.T, HealthStatus)
	}{
		{
			name:       "no checks",
			setup:      func(h *HealthHandler) {},
			wantStatus: http.StatusOK,
			check: func(t *testing.T, status HealthStatus) {
				assert.Equal(t, "healthy", status.Status)
			},
		},
		{
			name: "all pass",
			setup: func(h *HealthHandler) {
				h.RegisterCheck(NewPingCheck("neo4j", func(ctx context.Context) error { return nil }))
				h.RegisterCheck(NewPingCheck("qdrant", func(ctx context.Context) error { return nil }))
			},
			wantStatus: http.StatusOK,
			check: func(t *testing.T, status HealthStatus) {
				assert.Equal(t, "healthy", status.Status)
				require.Contains(t, status.Checks, "neo4j")
				assert.Equal(t, "pass", status.Checks["neo4j"].Status)
				assert.NotEmpty(t, status.Checks["neo4j"].Latency)
			},
		},
		{
			name: "one fails",
			setup: func(h *HealthHandler) {
				h.RegisterCheck(NewPingCheck("neo4j", func(ctx context.Context) error { return nil }))
				h.RegisterCheck(NewPingCheck("querylog", func(ctx context.Context) error {
					return errors.New("database is locked")
				}))
			},
			wantStatus: http.StatusServiceUnavailable,
			check: func(t *testing.T, status HealthStatus) {
				assert.Equal(t, "unhealthy", status.Status)
				assert.Equal(t, "pass", status.Checks["neo4j"].Status)
				assert.Equal(t, "fail", status.Checks["querylog"].Status)
				assert.Contains(t, status.Checks["querylog"].Message, "locked")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler("", zap.NewNop())
			tt.setup(h)

			w := httptest.NewRecorder()
			h.HandleReady(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			assert.Equal(t, tt.wantStatus, w.Code)

			var status HealthStatus
			require.NoError(t, json.NewDecoder(w.Body).Decode(&status))
			tt.check(t, status)
		})
	}
}
