package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"towerdef/internal/registry"
	"towerdef/internal/ws"
)

// SetupRoutes builds the router with the registry injected; there is no
// package-level server state.
func SetupRoutes(reg *registry.Registry, log *zap.SugaredLogger) http.Handler {
	r := chi.NewRouter()

	r.Get("/ws", ws.Handler(reg, log))
	r.Get("/healthz", Healthz)
	r.Get("/stats", Stats(reg))
	return r
}
