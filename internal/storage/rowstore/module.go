package rowstore

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/webitel/push-connect-service/internal/storage"
)

// Module provides the pool and binds a Session to storage.Driver for the
// rest of the service to consume.
var Module = fx.Module("rowstore",
	fx.Provide(
		func(settings Settings, logger *slog.Logger) (*Pool, error) {
			return NewPool(settings, logger)
		},
		fx.Annotate(
			func(pool *Pool, settings Settings, logger *slog.Logger) storage.Driver {
				return NewSession(pool, settings.TableName, logger)
			},
			fx.As(new(storage.Driver)),
		),
	),
	fx.Invoke(func(lc fx.Lifecycle, pool *Pool) {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				pool.Close()
				return nil
			},
		})
	}),
)
