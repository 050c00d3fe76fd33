// Package notifyfanout wires NR.deliver across a fleet of nodes. A single
// process can answer "is this uaid connected?" only for its own
// connections; notifyfanout lets an application server call Deliver on any
// node and have it reach the right one, using the row store for durability
// and an AMQP fanout exchange to wake the owning node.
package notifyfanout

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/webitel/push-connect-service/internal/domain/model"
	"github.com/webitel/push-connect-service/internal/domain/router"
	"github.com/webitel/push-connect-service/internal/storage"
)

// Notifier is the cluster-aware NR.deliver entry point.
type Notifier struct {
	registry router.Registry
	driver   storage.Driver
	pub      message.Publisher
	topic    string
	logger   *slog.Logger
}

func New(registry router.Registry, driver storage.Driver, pub message.Publisher, topic string, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Notifier{registry: registry, driver: driver, pub: pub, topic: topic, logger: logger}
}

// Deliver implements NR.deliver: non-blocking local send first, row-store
// fallback plus a cluster wake-up if this node doesn't own the connection.
func (n *Notifier) Deliver(ctx context.Context, uaid string, notif model.Notification) error {
	if n.registry.Deliver(uaid, model.NotificationSignal{Notif: notif}) == router.Delivered {
		return nil
	}

	if err := n.driver.StoreMessage(ctx, uaid, notif); err != nil {
		return fmt.Errorf("notifyfanout: store fallback for %s: %w", uaid, err)
	}

	if n.pub == nil {
		return nil
	}
	if err := n.publishWakeup(ctx, uaid); err != nil {
		n.logger.Warn("notifyfanout: wakeup publish failed, relying on next sweep",
			slog.String("uaid", uaid), slog.Any("err", err))
	}
	return nil
}
