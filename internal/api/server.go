// Package api exposes the unified marketing client over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/marketing-hub/internal/config"
	"github.com/ignite/marketing-hub/internal/unified"
)

// Server is the HTTP server for the marketing API.
type Server struct {
	config   config.ServerConfig
	handler  http.Handler
	handlers *Handlers
	server   *http.Server
	router   *chi.Mux
}

// NewServer creates the API server around a unified client.
func NewServer(cfg config.ServerConfig, client *unified.Client) *Server {
	handlers := NewHandlers(client)
	router := SetupRoutes(handlers)

	return &Server{
		config:   cfg,
		handler:  router,
		handlers: handlers,
		router:   router,
	}
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		// Fan-out queries wait on vendor rate limiters; give them room.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the HTTP handler for testing.
func (s *Server) Handler() http.Handler {
	return s.handler
}
