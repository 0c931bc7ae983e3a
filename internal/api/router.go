// Package api builds the HTTP router for the SwarmGate coordination
// plane.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/swarmgate/swarmgate/internal/api/handlers"
	"github.com/swarmgate/swarmgate/internal/api/middleware"
	"github.com/swarmgate/swarmgate/internal/config"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates the HTTP router with all API routes.
func NewRouter(cfg *config.Config, h *handlers.Handlers) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))
	r.Use(middleware.Logger)
	r.Use(middleware.Telemetry)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health & info
	r.Get("/health", healthHandler)
	r.Get("/version", versionHandler(cfg))

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		// Coordination
		r.Route("/messages", func(r chi.Router) {
			r.Post("/", h.ProcessMessage)
			r.Post("/validate", h.ValidateMessage)
		})
		r.Route("/coordination", func(r chi.Router) {
			r.Get("/stats", h.CoordinationStats)
			r.Get("/history", h.CoordinationHistory)
			r.Put("/rules", h.UpdateRule)
			r.Post("/reset", h.ResetCoordinator)
		})

		// Vector index
		r.Route("/index", func(r chi.Router) {
			r.Post("/messages", h.IndexMessage)
			r.Post("/devlogs", h.IndexDevlog)
			r.Get("/stats", h.IndexStats)
			r.Get("/drivers", h.IndexDrivers)
			r.Get("/health", h.IndexHealth)
		})
		r.Route("/search", func(r chi.Router) {
			r.Post("/", h.Search)
			r.Get("/related/{messageId}", h.RelatedMessages)
		})
	})

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func versionHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"version": cfg.Version})
	}
}
