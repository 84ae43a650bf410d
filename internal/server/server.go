package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
)

// Server is the HTTP API server.
type Server struct {
	router *chi.Mux
	mirror *Mirror
	http   *http.Server
}

// NewServer creates a server listening on addr.
func NewServer(addr string, mirror *Mirror, router *Router) *Server {
	mux := router.SetupRoutes()
	return &Server{
		router: mux,
		mirror: mirror,
		http: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Handler returns the configured router.
func (s *Server) Handler() http.Handler { return s.router }

// Start listens and serves until Shutdown. It returns nil after a clean
// shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.http.Addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln.
func (s *Server) Serve(ln net.Listener) error {
	addr := ln.Addr().String()
	fmt.Fprintf(os.Stderr, "dropdash API listening on http://%s/api/\n", addr)
	fmt.Fprintf(os.Stderr, "Health check available at http://%s/health\n", addr)

	if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
