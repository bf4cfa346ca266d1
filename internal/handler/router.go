package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/renkeyss/cch-bot/internal/handler/usage"
	"github.com/renkeyss/cch-bot/internal/handler/webhook"
	"github.com/renkeyss/cch-bot/pkg/utils"
)

// NewRouter wires HTTP routes to core services. usageHandler is optional.
func NewRouter(webhookHandler *webhook.Handler, usageHandler *usage.Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// LINE platform callback
	webhookHandler.RegisterRoutes(r)

	if usageHandler != nil {
		r.Route("/api", func(api chi.Router) {
			usageHandler.RegisterRoutes(api)
		})
	}

	return r
}
