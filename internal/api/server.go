// Package api exposes the REST surface for submitting telemetry and querying
// pattern analysis.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/vigilstack/vigil-telemetry/internal/engine"
	"github.com/vigilstack/vigil-telemetry/internal/models"
)

// Telemetry is the engine surface the API depends on.
type Telemetry interface {
	RecordError(ctx context.Context, input engine.ErrorInput) (string, error)
	RecordPerformance(ctx context.Context, input engine.PerformanceInput) (string, error)
	RecordWebVital(ctx context.Context, name string, value float64, eventCtx models.PerformanceContext) (string, error)
	ListPatterns(limit int) []models.ErrorPattern
	Stats(window time.Duration) models.ErrorStats
}

// Server is the REST API server.
type Server struct {
	telemetry Telemetry
	router    *chi.Mux
	server    *http.Server
}

// NewServer creates the API server bound to addr.
func NewServer(addr string, telemetry Telemetry) *Server {
	s := &Server{
		telemetry: telemetry,
		router:    chi.NewRouter(),
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(30 * time.Second))

	s.router.Get("/healthz", s.handleHealth)
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Post("/errors", s.recordError)
		r.Post("/performance", s.recordPerformance)
		r.Post("/webvitals", s.recordWebVital)

		r.Get("/patterns", s.listPatterns)
		r.Get("/stats", s.getStats)
	})

	s.server = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	return s
}

// Handler exposes the router, for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the API server and blocks until it stops.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
