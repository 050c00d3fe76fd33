package metrics

import (
	"go.opentelemetry.io/otel"
	"go.uber.org/fx"

	"github.com/webitel/push-connect-service/internal/domain/csm"
)

const meterName = "github.com/webitel/push-connect-service"

// Module provides the Recorder, bound to csm.Recorder for injection into
// the transport layer.
var Module = fx.Module("metrics",
	fx.Provide(
		fx.Annotate(
			func() (csm.Recorder, error) {
				return New(otel.Meter(meterName))
			},
			fx.As(new(csm.Recorder)),
		),
	),
)
