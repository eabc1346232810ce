package api

import (
	"context"
	"net/http"
	"time"

	"github.com/ignite/leadintel/internal/config"
)

// Server represents the API server
type Server struct {
	config  config.ServerConfig
	handler http.Handler
	server  *http.Server
}

// NewServer creates a new API server
func NewServer(cfg config.ServerConfig, h *IntelligenceHandlers, health *HealthChecker, orgs *OrgResolver) *Server {
	return &Server{
		config:  cfg,
		handler: SetupRoutes(h, health, orgs, cfg.AllowedOrigins),
	}
}

// ListenAndServe starts the HTTP server. Analysis holds a per-subject lock
// while it reads signals, so the write timeout leaves room for lock waits.
func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the HTTP handler for testing
func (s *Server) Handler() http.Handler {
	return s.handler
}
