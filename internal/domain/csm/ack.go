package csm

import (
	"context"

	"github.com/webitel/push-connect-service/internal/domain/model"
	"github.com/webitel/push-connect-service/internal/storage"
)

// onAck processes one client Ack frame. Per spec.md §4.1.3 the order is
// fixed: only once both unacked queues have drained, increment_storage
// commits first (if flagged), then a follow-on sweep is triggered so a
// client that acks quickly never stalls waiting for the next signal.
func (c *Client) onAck(ctx context.Context, f model.AckFrame) ([]model.ServerMessage, error) {
	for _, u := range f.Updates {
		res := c.ackState.Ack(u.ChannelID, u.Version)
		if !res.Matched || !res.FromStored {
			continue
		}
		if err := c.driver.RemoveMessage(ctx, c.UAID, res.Notif.RowKey()); err != nil && !storage.IsNotFound(err) {
			return nil, err
		}
	}

	if c.flags.IncrementStorage && c.ackState.Empty() {
		if err := c.incrementStorage(ctx); err != nil {
			return nil, err
		}
	}

	if c.ackState.Empty() && c.flags.CheckStorage {
		return c.checkStorage(ctx)
	}
	return nil, nil
}
