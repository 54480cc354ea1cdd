package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/segment-insights/internal/config"
	"github.com/ignite/segment-insights/internal/segmentation"
)

// Server represents the API server
type Server struct {
	config   config.ServerConfig
	handler  http.Handler
	handlers *Handlers
	router   *chi.Mux
	server   *http.Server
}

// NewServer creates a new API server over engine. health may be nil, in
// which case /health only reports the snapshot.
func NewServer(cfg config.ServerConfig, engine *segmentation.Engine, health *HealthChecker) *Server {
	if health == nil {
		health = NewHealthChecker(engine.Snapshot(), nil, nil)
	}
	handlers := NewHandlers(engine)
	router := SetupRoutes(handlers, health, cfg.AllowedOrigins)

	return &Server{
		config:   cfg,
		handler:  router,
		handlers: handlers,
		router:   router,
	}
}

// SetReloadTimeout bounds reloads triggered through POST /api/reload.
func (s *Server) SetReloadTimeout(d time.Duration) {
	s.handlers.SetReloadTimeout(d)
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		// Exports stream the whole population.
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  120 * time.Second,
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
