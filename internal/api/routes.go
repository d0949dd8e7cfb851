package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures the router and all API routes.
func SetupRoutes(h *Handlers, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Get("/fincas", h.GetFincas)
		r.Get("/lotes", h.GetLotes)

		r.Post("/validate-file", h.ValidateFile)
		r.Post("/report", h.DownloadReport)
		r.Post("/submit-validated-data", h.SubmitValidated)

		r.Get("/runs", h.ListRuns)
		r.Get("/runs/stats", h.RunStats)

		r.Route("/ingest", func(r chi.Router) {
			r.Get("/status", h.IngestGetStatus)
			r.Post("/trigger", h.IngestTrigger)
		})
	})

	return r
}
