package csm

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v3"

	"github.com/webitel/push-connect-service/internal/domain/model"
)

// flushBackoff bounds the retries below: three attempts, a few hundred
// milliseconds apart, so a connection draining under a deploy doesn't hang
// the process waiting on a row store that's mid-restart.
func flushBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond
	return backoff.WithMaxRetries(b, 2)
}

// Shutdown drains unacked direct notifications back to storage so a
// reconnect can recover them, then releases router ownership. Grounded on
// on_server_notif_shutdown in on_server_notif.rs, which does the inverse
// translation (storage -> in-memory) on every notif received while
// draining — see onServerSignalDuringShutdown below.
func (c *Client) Shutdown(ctx context.Context) error {
	c.shuttingDown = true

	for _, n := range c.ackState.UnackedDirectNotifs {
		if n.TTL == 0 {
			continue
		}
		notif := n
		op := func() error { return c.driver.StoreMessage(ctx, c.UAID, notif) }
		if err := backoff.Retry(op, backoff.WithContext(flushBackoff(), ctx)); err != nil {
			c.logger.Warn("shutdown: failed to flush unacked direct notification", slog.Any("err", err))
		}
	}
	c.ackState.UnackedDirectNotifs = nil

	if c.router != nil {
		c.router.Unregister(c.UAID, c.ConnectedAt)
	}
	return nil
}

// onServerSignalDuringShutdown handles a signal that races with Shutdown:
// a notification that was already in flight from the router when the
// connection started draining must not be lost, so it's appended to
// unacked_direct_notifs for the flush above to pick up. CheckStorage and
// Disconnect signals are moot once draining and are dropped.
func (c *Client) onServerSignalDuringShutdown(sig model.ServerSignal) {
	switch s := sig.(type) {
	case model.NotificationSignal:
		if s.Notif.TTL != 0 {
			c.ackState.PushDirect(s.Notif.Clone())
		}
	case model.CheckStorageSignal, model.DisconnectSignal:
		// no-op: the connection is already going away.
	}
}
