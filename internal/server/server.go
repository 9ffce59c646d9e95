// Package server wraps an http.Server with graceful start/stop, the same
// shape the rest of the service's ambient stack expects.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/dante-gpu/production-scheduler/internal/config"
	"go.uber.org/zap"
)

// Server wraps an http.Server with a logger so Start/Stop can report
// what they're doing.
type Server struct {
	*http.Server
	Logger *zap.Logger
}

// NewServer creates and configures a new Server instance for the
// scheduling HTTP API.
func NewServer(cfg *config.Config, handler http.Handler, logger *zap.Logger) *Server {
	logger.Info("Configuring HTTP server",
		zap.String("port", cfg.Port),
		zap.Duration("request_timeout", cfg.RequestTimeout),
	)

	httpSrv := &http.Server{
		Addr:         cfg.Port,
		Handler:      handler,
		ReadTimeout:  cfg.RequestTimeout,
		WriteTimeout: cfg.RequestTimeout * 2,
		IdleTimeout:  120 * time.Second,
	}
	return &Server{Server: httpSrv, Logger: logger}
}

// Start initiates the HTTP server listening process. It blocks until the
// server stops, so callers typically run it in its own goroutine.
func (s *Server) Start() {
	s.Logger.Info("Starting HTTP server", zap.String("address", s.Addr))
	if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.Logger.Fatal("HTTP server ListenAndServe error", zap.Error(err))
	}
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) {
	s.Logger.Info("Attempting graceful shutdown of HTTP server...")
	if err := s.Shutdown(ctx); err != nil {
		s.Logger.Error("HTTP server graceful shutdown failed", zap.Error(err))
		if err := s.Close(); err != nil {
			s.Logger.Error("HTTP server close failed after shutdown attempt", zap.Error(err))
		}
	} else {
		s.Logger.Info("HTTP server gracefully stopped")
	}
}
