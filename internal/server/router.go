// Package server exposes the dashboard over a small read-mostly JSON API so
// other tools can consume the same rendered trees and statistics as the TUI.
package server

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/vanderheijden86/dropdash/internal/datasource"
	"github.com/vanderheijden86/dropdash/pkg/filetree"
)

// Options configures the router.
type Options struct {
	Tree          filetree.Options
	StorageLimit  int64
	WarnPercent   float64
	ActionTimeout time.Duration
	// RequestTimeout bounds every request; <= 0 selects one minute.
	RequestTimeout time.Duration
	// Quiet drops the per-request access log.
	Quiet bool
}

// Router wires handlers to a mirror.
type Router struct {
	mirror  *Mirror
	actions datasource.Actions
	opts    Options
}

// NewRouter creates a router. actions may be nil for read-only sources.
func NewRouter(mirror *Mirror, actions datasource.Actions, opts Options) *Router {
	if opts.ActionTimeout <= 0 {
		opts.ActionTimeout = 2 * time.Minute
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = time.Minute
	}
	return &Router{mirror: mirror, actions: actions, opts: opts}
}

// SetupRoutes configures all API routes.
func (r *Router) SetupRoutes() *chi.Mux {
	router := chi.NewRouter()

	if !r.opts.Quiet {
		router.Use(middleware.Logger)
	}
	router.Use(middleware.Recoverer)
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Timeout(r.opts.RequestTimeout))

	health := &HealthHandler{mirror: r.mirror}
	tree := &TreeHandler{mirror: r.mirror, opts: r.opts.Tree}
	stats := &StatsHandler{
		mirror:      r.mirror,
		opts:        r.opts.Tree,
		limit:       r.opts.StorageLimit,
		warnPercent: r.opts.WarnPercent,
	}
	clients := &ClientsHandler{mirror: r.mirror}
	system := &SystemHandler{mirror: r.mirror}
	files := &FileHandler{mirror: r.mirror, actions: r.actions, timeout: r.opts.ActionTimeout}

	router.Get("/health", health.HealthCheck)

	router.Route("/api", func(api chi.Router) {
		api.Route("/tree", func(t chi.Router) {
			t.Get("/", tree.ListGroups)
			t.Get("/{clientID}", tree.GetGroup)
		})
		api.Get("/stats", stats.GetStats)
		api.Get("/clients", clients.ListClients)
		api.Post("/refresh", system.Refresh)

		api.Get("/files/*", files.GetFile)
		api.Delete("/files/*", files.DeleteFile)
	})

	return router
}
