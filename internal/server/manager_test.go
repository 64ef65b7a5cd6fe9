package server

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func startTestServer(t *testing.T, handler http.Handler) *Manager {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Addr = ":0"
	m := NewManager(handler, cfg, zap.NewNop())
	require.NoError(t, m.Start())
	t.Cleanup(func() { _ = m.Shutdown(context.Background()) })
	return m
}

func TestServeAndShutdown(t *testing.T) {
	m := startTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "pong")
	}))

	addr := m.BoundAddr()
	require.NotEmpty(t, addr, "listener should be bound after Start")

	resp, err := http.Get("http://" + addr + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "pong", string(body))

	require.NoError(t, m.Shutdown(context.Background()))
	assert.False(t, m.IsRunning())
	assert.Empty(t, m.BoundAddr(), "bound address clears on shutdown")
}

func TestLifecycleGuards(t *testing.T) {
	m := startTestServer(t, http.NewServeMux())

	t.Run("second start rejected", func(t *testing.T) {
		err := m.Start()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already started")
	})

	t.Run("shutdown is idempotent", func(t *testing.T) {
		require.NoError(t, m.Shutdown(context.Background()))
		require.NoError(t, m.Shutdown(context.Background()))
	})

	t.Run("start after shutdown rejected", func(t *testing.T) {
		err := m.Start()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "closed")
	})
}

func TestStartFailsOnBusyPort(t *testing.T) {
	first := startTestServer(t, http.NewServeMux())

	cfg := DefaultConfig()
	cfg.Addr = first.BoundAddr()
	second := NewManager(http.NewServeMux(), cfg, zap.NewNop())
	assert.Error(t, second.Start(), "binding an occupied port should fail")
}

func TestErrorsChannelStaysQuiet(t *testing.T) {
	m := startTestServer(t, http.NewServeMux())

	select {
	case err := <-m.Errors():
		t.Fatalf("unexpected serve error: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, ":8000", cfg.Addr)
	assert.Equal(t, 1<<20, cfg.MaxHeaderBytes)
	assert.NotZero(t, cfg.ReadTimeout)
	assert.NotZero(t, cfg.WriteTimeout)
	assert.NotZero(t, cfg.IdleTimeout)
	assert.NotZero(t, cfg.ShutdownTimeout)

	m := NewManager(http.NewServeMux(), Config{Addr: ":9999"}, zap.NewNop())
	assert.Equal(t, ":9999", m.Addr())
	assert.True(t, m.IsRunning(), "a manager reports running until shut down")
}
