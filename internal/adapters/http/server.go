// Package httpserver exposes the agent's HTTP surface: Prometheus metrics,
// a JSON status API for the latest check results, health, and a websocket
// stream of completed runs.
package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/lagscout/lagscout/internal/application"
	"github.com/lagscout/lagscout/internal/domain"
	"github.com/lagscout/lagscout/internal/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server provides the HTTP API of the agent.
type Server struct {
	repo     domain.InstanceRepository
	store    *application.StatusStore
	registry *prometheus.Registry
	hub      *Hub
}

// New creates a new HTTP server instance.
func New(repo domain.InstanceRepository, store *application.StatusStore, registry *prometheus.Registry, hub *Hub) *Server {
	return &Server{
		repo:     repo,
		store:    store,
		registry: registry,
		hub:      hub,
	}
}

// Router builds the chi router with all routes mounted.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			dur := time.Since(start)
			utils.Logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", dur.String(),
			)
		})
	})

	r.Get("/healthz", s.apiHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.Get("/api/instances", s.apiListInstances)
	r.Get("/api/instances/{instanceID}", s.apiGetInstance)
	r.Get("/api/status", s.apiStatus)
	r.Get("/api/status/{instanceID}", s.apiInstanceStatus)
	r.Get("/api/results/ws", s.wsStreamResults)

	return r
}

// Run starts the HTTP server on the given address.
func (s *Server) Run(addr string) error {
	utils.Logger.Info("HTTP server listening", "addr", addr)
	return http.ListenAndServe(addr, s.Router())
}
