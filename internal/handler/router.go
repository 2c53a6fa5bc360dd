package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/workshop-copilot/backend/internal/handler/ask"
	"github.com/zhouzirui/workshop-copilot/backend/internal/handler/live"
	middlewarePkg "github.com/zhouzirui/workshop-copilot/backend/internal/middleware"
	"github.com/zhouzirui/workshop-copilot/backend/pkg/utils"
)

// Assistant is the agent surface the HTTP layer needs.
type Assistant interface {
	ask.Asker
}

// NewRouter wires HTTP routes to core services.
func NewRouter(assistant Assistant, history ask.HistorySource) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	ask.New(assistant, history).RegisterRoutes(r)
	live.NewWebSocketHandler(assistant).RegisterRoutes(r)

	return r
}
