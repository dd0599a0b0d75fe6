package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Deps bundles the handlers' collaborators.
type Deps struct {
	Guided   *GuidedHandler
	Generate *GenerateHandler
	Settings *SettingsHandler
	Events   *EventHandler
	Health   *HealthHandler
	Realtime http.Handler
	APIKey   string
	Logger   *slog.Logger
}

// NewRouter creates the Chi router with all routes and middleware.
func NewRouter(d Deps) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware (runs on ALL routes including /health)
	r.Use(CORS)
	r.Use(RequestID)
	r.Use(Logger(d.Logger))
	r.Use(Recovery(d.Logger))

	// Unauthenticated routes
	r.Get("/health", d.Health.Health)

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(d.APIKey))

		r.Post("/guided-start", d.Guided.Start)
		r.Post("/guided-answer", d.Guided.Answer)
		r.Post("/guided-finalize", d.Guided.Finalize)
		r.Post("/guided-skip", d.Guided.Skip)
		r.Route("/guided-sessions", func(r chi.Router) {
			r.Get("/{id}", d.Guided.Get)
			r.Post("/{id}/abandon", d.Guided.Abandon)
		})

		r.Post("/generate-dual", d.Generate.Dual)
		r.Post("/generate-iterative", d.Generate.Iterative)

		r.Get("/settings/ai", d.Settings.Get)
		r.Patch("/settings/ai", d.Settings.Update)
		r.Get("/usage", d.Settings.Usage)
		r.Get("/models/catalog", d.Settings.Catalog)

		r.Post("/documents/{prdId}/events", d.Events.Publish)
		r.Handle("/ws", d.Realtime)
	})

	return r
}
