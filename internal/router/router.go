package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/tripweaver/tripweaver/internal/api/plan"
)

// Config contains dependencies needed for the router setup.
type Config struct {
	PlanHandler *plan.Handler
}

// SetupRouter initializes and configures the main application router.
// Server-wide middleware (logger, requestID, recoverer) are applied before
// mounting this router in main.go.
func SetupRouter(cfg *Config) chi.Router {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/itineraries", cfg.PlanHandler.GeneratePlan)
	})

	return r
}
