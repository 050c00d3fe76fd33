// Package httpserver hosts the ws.Mux behind a standard net/http.Server,
// wired into the fx lifecycle the way every other transport in this
// service is.
package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"go.uber.org/fx"

	"github.com/webitel/push-connect-service/config"
	"github.com/webitel/push-connect-service/internal/handler/ws"
)

const shutdownTimeout = 10 * time.Second

var Module = fx.Module("httpserver",
	fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config, logger *slog.Logger, mux ws.Mux) {
		srv := &http.Server{
			Addr:    cfg.Server.ListenAddr,
			Handler: mux,
		}
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				go func() {
					if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
						logger.Error("httpserver: stopped", slog.Any("err", err))
					}
				}()
				return nil
			},
			OnStop: func(ctx context.Context) error {
				shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			},
		})
	}),
)
