package cmd

import (
	"github.com/webitel/webitel-go-kit/infra/discovery"
	"go.uber.org/fx"

	"github.com/webitel/push-connect-service/config"
	"github.com/webitel/push-connect-service/internal/domain/router"
	"github.com/webitel/push-connect-service/internal/grpcintrospect"
	"github.com/webitel/push-connect-service/internal/handler/notifyfanout"
	"github.com/webitel/push-connect-service/internal/handler/ws"
	"github.com/webitel/push-connect-service/internal/metrics"
	"github.com/webitel/push-connect-service/internal/server/httpserver"
	"github.com/webitel/push-connect-service/internal/storage/rowstore"
)

func NewApp(path config.Path) *fx.App {
	return fx.New(
		fx.Provide(
			func() config.Path { return path },
			ProvideLogger,
		),
		fx.Invoke(func(d discovery.DiscoveryProvider) error { return nil }),
		config.Module,
		rowstore.Module,
		router.Module,
		metrics.Module,
		notifyfanout.Module,
		ws.Module,
		httpserver.Module,
		grpcintrospect.Module,
	)
}
