package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/karta-graph/karta/internal/service"
)

// Config carries the router's operational settings.
type Config struct {
	AuthEnabled    bool
	AuthToken      string
	MaxUploadBytes int64 // zero selects the 50 MB default
}

// NewRouter creates a chi router with all routes mounted. The root level
// carries the read surface (contexts, search, assets, settings, health)
// and the event stream; everything that mutates lives under /api behind
// the auth middleware. events, if non-nil, is mounted at GET /events.
func NewRouter(svc *service.Service, cfg Config, events http.Handler) chi.Router {
	h := NewHandler(svc, cfg.MaxUploadBytes)

	r := chi.NewRouter()

	r.Get("/health/live", h.HealthLive)
	r.Get("/health/ready", h.HealthReady)

	// Read surface.
	r.Get("/ctx/*", h.OpenContext)
	r.Get("/search", h.Search)
	r.Get("/asset/*", h.ServeAsset)
	r.Get("/settings", h.GetSettings)
	r.Put("/settings", h.UpdateSettings)

	// Event stream.
	if events != nil {
		r.Get("/events", events.ServeHTTP)
	}

	r.Route("/api", func(api chi.Router) {
		api.Use(AuthMiddleware(cfg.AuthEnabled, cfg.AuthToken))

		// Contexts.
		api.Put("/ctx/{id}", h.SaveContext)

		// Nodes.
		api.Post("/nodes", h.CreateNode)
		api.Get("/nodes/{id}", h.GetNode)
		api.Put("/nodes/{id}", h.UpsertAttributes)
		api.Delete("/nodes/{id}/attributes", h.DeleteAttributes)
		api.Post("/nodes/rename", h.RenameNode)
		api.Post("/nodes/move", h.MoveNodes)
		api.Delete("/nodes", h.DeleteNodes)

		// Edges.
		api.Post("/edges", h.CreateEdges)
		api.Put("/edges/reconnect", h.ReconnectEdge)
		api.Delete("/edges", h.DeleteEdges)

		// Assets upload (auth-protected).
		api.Post("/assets", h.UploadAsset)

		// Command history.
		api.Post("/undo", h.Undo)
		api.Post("/redo", h.Redo)
		api.Get("/history", h.History)
	})

	return r
}
