package notifyfanout

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

func (n *Notifier) publishWakeup(ctx context.Context, uaid string) error {
	payload, err := encodeWakeup(uaid)
	if err != nil {
		return fmt.Errorf("encode wakeup: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	return n.pub.Publish(n.topic, msg)
}
