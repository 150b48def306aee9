// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package rest

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jeremyhahn/go-passkey/pkg/health"
	"github.com/jeremyhahn/go-passkey/pkg/metrics"
	"github.com/jeremyhahn/go-passkey/pkg/passkey"
	passkeyhttp "github.com/jeremyhahn/go-passkey/pkg/passkey/http"
)

//go:embed static/*
var staticFiles embed.FS

// Server represents the passkey REST API server.
type Server struct {
	server  *http.Server
	service *passkey.Service
	checker *health.Checker
	logger  *slog.Logger
	port    int
}

// Config holds the REST server configuration.
type Config struct {
	// Host is the interface to bind (default: all interfaces).
	Host string

	// Port is the HTTP port to listen on (default: 8443).
	Port int

	// Service is the ceremony engine (required).
	Service *passkey.Service

	// HealthChecker provides the probe endpoints (optional, a fresh
	// checker is created when nil).
	HealthChecker *health.Checker

	// Logger is the structured logger (optional, defaults to slog.Default).
	Logger *slog.Logger

	// MetricsEnabled exposes Prometheus metrics when true.
	MetricsEnabled bool

	// MetricsPath is the metrics endpoint path (default: /metrics).
	MetricsPath string

	// ServeUI serves the embedded demo web UI at / when true.
	ServeUI bool

	// ReadTimeout is the maximum duration for reading the entire request
	ReadTimeout time.Duration

	// WriteTimeout is the maximum duration before timing out writes
	WriteTimeout time.Duration

	// IdleTimeout is the maximum amount of time to wait for the next request
	IdleTimeout time.Duration
}

// NewServer creates a new REST API server.
func NewServer(cfg *Config) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Service == nil {
		return nil, fmt.Errorf("passkey service is required")
	}

	if cfg.Port == 0 {
		cfg.Port = 8443
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 15 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 15 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	checker := cfg.HealthChecker
	if checker == nil {
		checker = health.NewChecker()
	}

	server := &Server{
		service: cfg.Service,
		checker: checker,
		logger:  logger,
		port:    cfg.Port,
	}

	router, err := server.setupRouter(cfg)
	if err != nil {
		return nil, err
	}

	server.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return server, nil
}

// setupRouter configures the chi router with all routes and middleware.
func (s *Server) setupRouter(cfg *Config) (*chi.Mux, error) {
	r := chi.NewRouter()

	r.Use(s.RecoveryMiddleware())
	r.Use(s.CorrelationMiddleware()) // Add correlation ID before logging
	r.Use(s.LoggingMiddleware())
	r.Use(metrics.HTTPMiddleware)
	r.Use(CORSMiddleware)

	// Health probes (no auth required)
	r.Get("/health", s.HealthHandler)
	r.Head("/health", s.HealthHandler)
	r.Get("/health/live", s.LivenessHandler)
	r.Get("/health/ready", s.ReadinessHandler)
	r.Get("/health/startup", s.StartupHandler)

	if cfg.MetricsEnabled {
		r.Handle(cfg.MetricsPath, promhttp.Handler())
	}

	handler := passkeyhttp.NewHandler(s.service).WithLogger(s.logger)
	r.Route("/api/v1/passkey", func(r chi.Router) {
		passkeyhttp.MountChi(r, handler)
	})

	if cfg.ServeUI {
		staticFS, err := fs.Sub(staticFiles, "static")
		if err != nil {
			return nil, fmt.Errorf("failed to load embedded UI: %w", err)
		}
		r.Handle("/*", http.FileServer(http.FS(staticFS)))
	}

	return r, nil
}

// Start starts the REST API server.
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server",
		"addr", s.server.Addr,
		"rp_id", s.service.Config().RPID)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully stops the REST API server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down server")

	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Error("Failed to shutdown server", "error", err)
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info("Server stopped")
	return nil
}

// Port returns the port the server is listening on.
func (s *Server) Port() int {
	return s.port
}

// HealthChecker returns the server's health checker.
func (s *Server) HealthChecker() *health.Checker {
	return s.checker
}
