package ws

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/fx"

	"github.com/webitel/push-connect-service/internal/domain/csm"
	"github.com/webitel/push-connect-service/internal/domain/router"
	"github.com/webitel/push-connect-service/internal/storage"
)

// Mux is the HTTP router hosting the WebSocket upgrade route. Provided
// here rather than in cmd so the route wiring lives next to the handler
// it serves.
type Mux chi.Router

// Settings is the narrow slice of row-store config the handshake's
// readiness check needs — provided by the config package the same way
// Endpoint is, so this package never has to import config as a whole.
type Settings struct {
	TableName string
}

// Module provides the Handler and mounts it on a fresh chi router under
// Mux, alongside a liveness route.
var Module = fx.Module("ws",
	fx.Provide(
		func(settings Settings, logger *slog.Logger, driver storage.Driver, registry router.Registry, endpoint Endpoint, metrics csm.Recorder, csmCfg csm.Config) *Handler {
			return New(logger, driver, registry, endpoint, metrics, csmCfg, settings.TableName)
		},
		func(h *Handler) Mux {
			r := chi.NewRouter()
			r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})
			r.Get("/wpush/v1/connect", h.ServeHTTP)
			return r
		},
	),
)
