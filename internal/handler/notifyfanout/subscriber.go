package notifyfanout

import (
	"log/slog"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/webitel/push-connect-service/internal/domain/model"
	"github.com/webitel/push-connect-service/internal/domain/router"
)

// Listener consumes this node's copy of every wakeup and acts only on the
// uaids it owns, mirroring the LOCALITY_FILTER the teacher's amqp handler
// applies before touching its hub.
type Listener struct {
	registry router.Registry
	logger   *slog.Logger
}

func NewListener(registry router.Registry, logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Listener{registry: registry, logger: logger}
}

// Handle has the message.HandlerFunc shape but never produces messages;
// Module adapts it to a no-publisher handler. It decodes, checks local
// ownership, wake the owning CSM with a storage sweep, ack regardless of
// outcome. A malformed payload is a poison pill, not a retryable failure,
// so it's logged and dropped rather than nacked.
func (l *Listener) Handle(msg *message.Message) (result []*message.Message, err error) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("notifyfanout: recovered panic handling wakeup", slog.Any("panic", r))
			err = nil
		}
	}()

	uaid, err := decodeWakeup(msg.Payload)
	if err != nil {
		l.logger.Warn("notifyfanout: dropping undecodable wakeup", slog.Any("err", err))
		return nil, nil
	}

	if _, connected := l.registry.Connected(uaid); !connected {
		return nil, nil
	}

	l.registry.Deliver(uaid, model.CheckStorageSignal{})
	return nil, nil
}
