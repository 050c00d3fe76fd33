package notifyfanout

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/fx"

	"github.com/webitel/push-connect-service/internal/domain/router"
	"github.com/webitel/push-connect-service/internal/storage"
)

// Settings configures the fanout exchange. AMQPURL empty disables the AMQP
// side: Notifier.Deliver then tries local delivery and falls back to the
// row store, and never touches AMQP, matching a single-node deployment.
type Settings struct {
	AMQPURL  string
	Exchange string
	NodeID   string
}

func nodeQueueName(nodeID string) func(topic string) string {
	return func(topic string) string {
		return fmt.Sprintf("%s.%s", topic, nodeID)
	}
}

func resolveNodeID(configured string) string {
	if configured != "" {
		return configured
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return watermill.NewShortUUID()
}

// Module wires the AMQP publisher/subscriber pair and the Notifier, and
// starts the watermill router carrying wakeups from exchange to Listener.
// When Settings.AMQPURL is empty nothing is started and the Notifier has no
// publisher (local delivery plus row-store fallback only).
var Module = fx.Module("notifyfanout",
	fx.Provide(
		func(settings Settings, registry router.Registry, driver storage.Driver, logger *slog.Logger, lc fx.Lifecycle) (*Notifier, error) {
			if settings.AMQPURL == "" {
				logger.Info("notifyfanout: no AMQP URL configured, running single-node")
				return New(registry, driver, nil, settings.Exchange, logger), nil
			}

			nodeID := resolveNodeID(settings.NodeID)
			wmLogger := watermill.NewSlogLogger(logger)
			// NewDurablePubSubConfig gives every node its own queue (via
			// nodeQueueName) bound to the same exchange, so a publish to
			// the exchange is copied to each node's queue instead of
			// load-balanced across them - the same per-node-queue-on-a-
			// shared-topic trick the teacher's router.go uses.
			cfg := amqp.NewDurablePubSubConfig(settings.AMQPURL, nodeQueueName(nodeID))

			pub, err := amqp.NewPublisher(cfg, wmLogger)
			if err != nil {
				return nil, fmt.Errorf("notifyfanout: new publisher: %w", err)
			}
			sub, err := amqp.NewSubscriber(cfg, wmLogger)
			if err != nil {
				return nil, fmt.Errorf("notifyfanout: new subscriber: %w", err)
			}

			wmRouter, err := message.NewRouter(message.RouterConfig{}, wmLogger)
			if err != nil {
				return nil, fmt.Errorf("notifyfanout: new router: %w", err)
			}
			listener := NewListener(registry, logger)
			wmRouter.AddNoPublisherHandler(
				"notifyfanout-wakeup",
				settings.Exchange,
				sub,
				func(msg *message.Message) error {
					_, err := listener.Handle(msg)
					return err
				},
			)

			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					go func() {
						if err := wmRouter.Run(context.Background()); err != nil {
							logger.Error("notifyfanout: router stopped", slog.Any("err", err))
						}
					}()
					return nil
				},
				OnStop: func(ctx context.Context) error {
					if err := wmRouter.Close(); err != nil {
						return err
					}
					return pub.Close()
				},
			})

			return New(registry, driver, pub, settings.Exchange, logger), nil
		},
	),
)
