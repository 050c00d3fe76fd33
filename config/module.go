package config

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/webitel/push-connect-service/internal/domain/csm"
	"github.com/webitel/push-connect-service/internal/handler/notifyfanout"
	"github.com/webitel/push-connect-service/internal/handler/ws"
	"github.com/webitel/push-connect-service/internal/storage/rowstore"
)

// Path is the config file path, supplied by cmd from the CLI flag.
type Path string

// Module provides the top-level Config plus the narrow sub-configs each
// domain package actually depends on, so e.g. rowstore.Module never needs
// to know about *Config as a whole.
var Module = fx.Module("config",
	fx.Provide(
		func(path Path) (*Config, error) { return Load(string(path)) },
		func(cfg *Config) rowstore.Settings {
			return rowstore.Settings{
				DSN:               cfg.RowStore.DSN,
				TableName:         cfg.RowStore.TableName,
				MaxPoolSize:       cfg.RowStore.MaxPoolSize,
				ConnectionTimeout: cfg.RowStore.ConnectionTimeout,
				ConnectionTTL:     cfg.RowStore.ConnectionTTL,
				MaxIdle:           cfg.RowStore.MaxIdle,
			}
		},
		func(cfg *Config) csm.Config {
			return csm.Config{MsgLimit: cfg.CSM.MsgLimit}
		},
		func(cfg *Config) ws.Endpoint {
			return ws.Endpoint{BaseURL: cfg.Server.PublicBaseURL}
		},
		func(cfg *Config) ws.Settings {
			return ws.Settings{TableName: cfg.RowStore.TableName}
		},
		func(cfg *Config) notifyfanout.Settings {
			return notifyfanout.Settings{
				AMQPURL:  cfg.Fanout.AMQPURL,
				Exchange: cfg.Fanout.Exchange,
				NodeID:   cfg.Fanout.NodeID,
			}
		},
	),
	fx.Invoke(func(lc fx.Lifecycle, path Path, cfg *Config, logger *slog.Logger) {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				go Watch(string(path), logger, func(reloaded *Config) {
					*cfg = *reloaded
				})
				return nil
			},
		})
	}),
)
