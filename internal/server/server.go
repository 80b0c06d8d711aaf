// Package server exposes the registry, simulator and derived views as a JSON
// HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/caevv/suiteboard/internal/metrics"
	"github.com/caevv/suiteboard/internal/registry"
	"github.com/caevv/suiteboard/internal/scheduler"
	"github.com/caevv/suiteboard/internal/simulator"
)

// SweepStats reports the schedule sweeper's state for the health endpoint.
type SweepStats interface {
	Stats() scheduler.Stats
}

// Server is the suiteboard HTTP API.
type Server struct {
	addr    string
	reg     *registry.Registry
	runner  simulator.Runner
	metrics *metrics.Recorder
	sweeper SweepStats
	logger  *slog.Logger

	srv       *http.Server
	router    *http.ServeMux
	handler   http.Handler
	startTime time.Time

	mu      sync.RWMutex
	started bool
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics records request counts and serves GET /metrics.
func WithMetrics(m *metrics.Recorder) Option { return func(s *Server) { s.metrics = m } }

// WithSweeper includes sweeper stats in the health response.
func WithSweeper(sw SweepStats) Option { return func(s *Server) { s.sweeper = sw } }

// New creates a new Server instance.
func New(addr string, reg *registry.Registry, runner simulator.Runner, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		addr:      addr,
		reg:       reg,
		runner:    runner,
		logger:    logger.With(slog.String("component", "server")),
		startTime: time.Now(),
		router:    http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.registerRoutes()
	s.handler = s.instrument(s.router)
	return s
}

func (s *Server) registerRoutes() {
	s.router.HandleFunc("GET /api/health", s.handleHealth)

	s.router.HandleFunc("GET /api/suites", s.handleListSuites)
	s.router.HandleFunc("GET /api/suites/options", s.handleSuiteOptions)
	s.router.HandleFunc("POST /api/suites", s.handleCreateSuite)
	s.router.HandleFunc("GET /api/suites/{id}", s.handleGetSuite)
	s.router.HandleFunc("PATCH /api/suites/{id}", s.handleUpdateSuite)
	s.router.HandleFunc("DELETE /api/suites/{id}", s.handleDeleteSuite)

	s.router.HandleFunc("POST /api/trigger", s.handleTrigger)

	s.router.HandleFunc("GET /api/jobs", s.handleListJobs)
	s.router.HandleFunc("GET /api/jobs/{id}", s.handleGetJob)
	s.router.HandleFunc("POST /api/jobs/{id}/cancel", s.handleCancelJob)

	s.router.HandleFunc("GET /api/executions", s.handleListExecutions)
	s.router.HandleFunc("GET /api/executions/options", s.handleExecutionOptions)
	s.router.HandleFunc("GET /api/executions/{id}", s.handleGetExecution)

	s.router.HandleFunc("GET /api/stats", s.handleStats)

	s.router.HandleFunc("GET /api/schedules", s.handleListSchedules)
	s.router.HandleFunc("POST /api/schedules", s.handleCreateSchedule)
	s.router.HandleFunc("GET /api/schedules/{id}", s.handleGetSchedule)
	s.router.HandleFunc("PATCH /api/schedules/{id}", s.handleUpdateSchedule)
	s.router.HandleFunc("POST /api/schedules/{id}/toggle", s.handleToggleSchedule)
	s.router.HandleFunc("DELETE /api/schedules/{id}", s.handleDeleteSchedule)

	if s.metrics != nil {
		s.router.Handle("GET /metrics", s.metrics.Handler())
	}
}

// Handler returns the routed handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("server already started")
	}
	s.started = true
	s.srv = &http.Server{
		Addr:         s.addr,
		Handler:      s.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(_ net.Listener) context.Context { return ctx },
	}
	s.mu.Unlock()

	s.logger.Info("starting HTTP server", "addr", s.addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server failed: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server", "reason", ctx.Err())
		return s.Stop(context.Background())
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started || s.srv == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("error during shutdown", "error", err)
		return fmt.Errorf("shutdown failed: %w", err)
	}

	s.started = false
	s.logger.Info("HTTP server stopped")
	return nil
}

// Uptime returns the server uptime as a string.
func (s *Server) Uptime() string {
	d := time.Since(s.startTime)
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%dh%dm%ds", hours, minutes, seconds)
	} else if minutes > 0 {
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}
