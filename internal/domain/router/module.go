package router

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/webitel/push-connect-service/internal/domain/model"
)

// Registry is the external API surface the rest of the service depends on
// — narrower than *Router so callers can be tested against a fake.
type Registry interface {
	Register(uaid string, sender Sender, connectedAt int64) Outcome
	Deliver(uaid string, signal model.ServerSignal) DeliverResult
	Unregister(uaid string, connectedAt int64)
	Connected(uaid string) (int64, bool)
	LostRace(uaid string, connectedAt int64) bool
	Count() int
}

// Module provides the process-wide Router singleton, and binds it to the
// narrower Registry interface for consumers that don't need *Router
// directly.
var Module = fx.Module("router",
	fx.Provide(
		func(logger *slog.Logger) *Router { return New(logger) },
		fx.Annotate(
			func(r *Router) Registry { return r },
			fx.As(new(Registry)),
		),
	),
)
