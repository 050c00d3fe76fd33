package grpcintrospect

import (
	"context"
	"log/slog"
	"net"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/fx"
	"google.golang.org/grpc"

	"github.com/webitel/push-connect-service/config"
	"github.com/webitel/push-connect-service/internal/domain/router"
	"github.com/webitel/push-connect-service/internal/storage"
	"github.com/webitel/push-connect-service/internal/storage/rowstore"
)

func interceptorLogger(l *slog.Logger) logging.Logger {
	return logging.LoggerFunc(func(ctx context.Context, lvl logging.Level, msg string, fields ...any) {
		l.Log(ctx, slog.Level(lvl), msg, fields...)
	})
}

func newServer(cfg *config.Config, logger *slog.Logger, registry router.Registry, pool *rowstore.Pool, driver storage.Driver) *grpc.Server {
	srv := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			recovery.UnaryServerInterceptor(),
			logging.UnaryServerInterceptor(interceptorLogger(logger)),
		),
	)
	srv.RegisterService(&serviceDesc, &server{
		registry: registry,
		pool:     pool,
		driver:   driver,
		table:    cfg.RowStore.TableName,
	})
	return srv
}

// Module hosts the introspection gRPC service on Config.Server.GRPCListenAddr.
var Module = fx.Module("grpcintrospect",
	fx.Provide(newServer),
	fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config, logger *slog.Logger, srv *grpc.Server) {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				lis, err := net.Listen("tcp", cfg.Server.GRPCListenAddr)
				if err != nil {
					return err
				}
				go func() {
					if err := srv.Serve(lis); err != nil {
						logger.Error("grpcintrospect: server stopped", slog.Any("err", err))
					}
				}()
				return nil
			},
			OnStop: func(ctx context.Context) error {
				srv.GracefulStop()
				return nil
			},
		})
	}),
)
