// Package server exposes recorded simulation runs over a JSON REST API and
// accepts manifests to simulate on demand.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/me/tickos/internal/config"
	"github.com/me/tickos/internal/store"
)

// DefaultMaxTicks bounds runs submitted over the API.
const DefaultMaxTicks = 100000

// Server is the tickos REST API server.
type Server struct {
	router    chi.Router
	logger    *slog.Logger
	config    config.ServerConfig
	startTime time.Time
	store     store.Store
	maxTicks  uint32
}

// Option configures optional Server settings.
type Option func(*Server)

// WithMaxTicks caps the tick count accepted by POST /runs.
func WithMaxTicks(n uint32) Option {
	return func(s *Server) {
		s.maxTicks = n
	}
}

// New creates a new Server with all routes registered.
func New(cfg config.ServerConfig, st store.Store, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		logger:    logger.With("component", "server"),
		config:    cfg,
		startTime: time.Now(),
		store:     st,
		maxTicks:  DefaultMaxTicks,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", s.handleDiscovery)
		r.Get("/health", s.handleHealth)

		r.Post("/manifests/validate", s.handleValidateManifest)

		r.Route("/runs", func(r chi.Router) {
			r.Get("/", s.handleListRuns)
			r.Post("/", s.handleCreateRun)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetRun)
				r.Delete("/", s.handleDeleteRun)
				r.Get("/switches", s.handleListSwitches)
				r.Get("/tasks", s.handleListTasks)
				r.Get("/chart.png", s.handleChart)
			})
		})
	})
}
