package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures all routes. Everything under /api requires an
// organization context; health endpoints do not.
func SetupRoutes(h *IntelligenceHandlers, health *HealthChecker, orgs *OrgResolver, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Organization-ID"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", health.HandleHealth)
	r.Get("/health/live", health.HandleLiveness)
	r.Get("/health/ready", health.HandleReadiness)

	r.Route("/api", func(r chi.Router) {
		r.Use(orgs.RequireOrgMiddleware)

		r.Route("/intelligence", func(r chi.Router) {
			r.Get("/", h.HandleGet)
			r.Post("/analyze", h.HandleAnalyze)
		})
	})

	return r
}
