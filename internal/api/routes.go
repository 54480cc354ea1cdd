package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures all API routes.
func SetupRoutes(h *Handlers, health *HealthChecker, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	// Health checks
	r.Get("/health", health.HandleHealth)
	r.Get("/health/live", health.HandleLiveness)
	r.Get("/health/ready", health.HandleReadiness)

	r.Route("/api", func(r chi.Router) {
		r.Get("/overview", h.GetOverview)
		r.Get("/version", h.GetVersion)
		r.Post("/reload", h.Reload)

		r.Route("/segments", func(r chi.Router) {
			r.Get("/", h.ListSegments)
			r.Route("/{name}", func(r chi.Router) {
				r.Get("/", h.GetSegment)
				r.Get("/insights", h.GetSegmentInsights)
			})
		})

		r.Route("/clusters", func(r chi.Router) {
			r.Get("/", h.ListClusters)
			r.Get("/profiles", h.ListClusterProfiles)
		})

		r.Get("/report", h.GetReport)

		r.Route("/playbook", func(r chi.Router) {
			r.Get("/", h.GetPlaybook)
			r.Get("/strategy", h.GetStrategy)
		})

		r.Route("/customers", func(r chi.Router) {
			r.Get("/", h.ListCustomers)
			r.Post("/query", h.QueryCustomers)
			r.Get("/operators", h.ListOperators)
			r.Get("/{id}", h.GetCustomer)
		})

		r.Route("/export", func(r chi.Router) {
			r.Get("/customers", h.ExportCustomers)
			r.Get("/segments", h.ExportSegments)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, "route not found")
	})

	return r
}
