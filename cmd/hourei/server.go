package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hourei-dev/hourei"
	"github.com/hourei-dev/hourei/api/handlers"
	"github.com/hourei-dev/hourei/config"
	"github.com/hourei-dev/hourei/internal/server"
	"github.com/hourei-dev/hourei/internal/telemetry"
	"github.com/hourei-dev/hourei/rag"
)

// Server runs the HTTP API and the metrics listener around an
// assembled pipeline.
type Server struct {
	cfg       *config.Config
	app       *hourei.App
	telemetry *telemetry.Providers
	logger    *zap.Logger

	httpManager    *server.Manager
	metricsManager *server.Manager

	health *handlers.HealthHandler

	rateLimiterCancel context.CancelFunc
}

// NewServer wires cfg and app into a runnable server.
func NewServer(cfg *config.Config, app *hourei.App, providers *telemetry.Providers, logger *zap.Logger) *Server {
	return &Server{
		cfg:       cfg,
		app:       app,
		telemetry: providers,
		logger:    logger,
	}
}

// Start brings up both listeners without blocking.
func (s *Server) Start() error {
	s.initHealth()

	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	s.logger.Info("all servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
		zap.String("api_prefix", s.cfg.API.Prefix),
	)
	return nil
}

// initHealth registers one readiness probe per configured backend.
func (s *Server) initHealth() {
	s.health = handlers.NewHealthHandler(Version, s.logger)

	if s.app.Graph != nil {
		s.health.RegisterCheck(handlers.NewPingCheck("neo4j", s.app.Graph.Verify))
	}
	s.health.RegisterCheck(handlers.NewPingCheck("qdrant", s.app.Vector.Verify))
	if s.app.QueryLog != nil {
		s.health.RegisterCheck(handlers.NewPingCheck("querylog", s.app.QueryLog.Ping))
	}
}

// routes builds the API mux. Absent backends stay nil so their
// handlers answer with a service-unavailable error instead of
// panicking on a typed nil.
func (s *Server) routes() *http.ServeMux {
	prefix := strings.TrimSuffix(s.cfg.API.Prefix, "/")

	var queryLog handlers.QueryLogger
	if s.app.QueryLog != nil {
		queryLog = s.app.QueryLog
	}
	var graphStore rag.GraphStore
	if s.app.Graph != nil {
		graphStore = s.app.Graph
	}

	chat := handlers.NewChatHandler(s.app.Pipeline, queryLog, s.logger)
	search := handlers.NewSearchHandler(s.app.Pipeline, queryLog, s.logger)
	graph := handlers.NewGraphHandler(graphStore, s.logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.health.HandleHealth)
	mux.HandleFunc("GET /readyz", s.health.HandleReady)

	mux.HandleFunc("GET "+prefix+"/health", s.health.HandleHealth)
	mux.HandleFunc("POST "+prefix+"/chat", chat.HandleChat)
	mux.HandleFunc("POST "+prefix+"/search", search.HandleSearch)
	mux.HandleFunc("GET "+prefix+"/laws/{law_id}/structure", graph.HandleLawStructure)
	mux.HandleFunc("GET "+prefix+"/graph/stats", graph.HandleStats)

	return mux
}

func (s *Server) startHTTPServer() error {
	rateLimiterCtx, cancel := context.WithCancel(context.Background())
	s.rateLimiterCancel = cancel

	middlewares := []Middleware{
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.app.Metrics),
		OTelTracing(),
		CORS(s.cfg.API.CORSOrigins),
	}
	if s.cfg.Server.RateLimitRPS > 0 {
		middlewares = append(middlewares,
			RateLimiter(rateLimiterCtx, s.cfg.Server.RateLimitRPS, s.cfg.Server.RateLimitBurst, s.logger))
	}
	handler := Chain(s.routes(), middlewares...)

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout,
		MaxHeaderBytes:  1 << 20, // 1 MB
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.httpManager = server.NewManager(handler, serverConfig, s.logger)
	if err := s.httpManager.Start(); err != nil {
		return err
	}

	s.logger.Info("HTTP server started", zap.Int("port", s.cfg.Server.HTTPPort))
	return nil
}

func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.metricsManager = server.NewManager(mux, serverConfig, s.logger)
	if err := s.metricsManager.Start(); err != nil {
		return err
	}

	s.logger.Info("metrics server started", zap.Int("port", s.cfg.Server.MetricsPort))
	return nil
}

// WaitForShutdown blocks until a signal or serve error, then cleans
// up.
func (s *Server) WaitForShutdown() {
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown()
	}
	s.Shutdown()
}

// Shutdown stops the listeners, then closes the stores behind them.
// Safe to call after WaitForShutdown; manager shutdowns are
// idempotent.
func (s *Server) Shutdown() {
	s.logger.Info("starting graceful shutdown")

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}
	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}
	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("metrics server shutdown error", zap.Error(err))
		}
	}
	if err := s.app.Close(ctx); err != nil {
		s.logger.Error("backend shutdown error", zap.Error(err))
	}
	if s.telemetry != nil {
		if err := s.telemetry.Shutdown(ctx); err != nil {
			s.logger.Error("telemetry shutdown error", zap.Error(err))
		}
	}

	s.logger.Info("graceful shutdown completed")
}
