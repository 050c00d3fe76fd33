package csm

import (
	"context"
	"log/slog"
	"time"

	"github.com/webitel/push-connect-service/internal/domain/model"
)

// topicPageSize is the number of topic messages actually emitted per
// sweep; one more than this is fetched to detect overflow without a second
// round trip (spec.md §4.1.2, §8 boundary behaviors).
const topicPageSize = 10

// notif handles direct delivery of a server-pushed notification — the fast
// path that must never touch storage (spec.md §4.1.1).
func (c *Client) notif(n model.Notification) (model.ServerMessage, error) {
	if n.TTL != 0 {
		c.ackState.PushDirect(n.Clone())
	}
	c.emitSend(n, "Direct")
	return model.NotificationMessage{Notif: n}, nil
}

type sweepYield struct {
	includeTopic bool
	messages     []model.Notification
	timestamp    *int64
}

// fetchSweep runs the two conditional SD calls described in spec.md
// §4.1.2 step 2 and returns the yield the caller must fold into state.
func (c *Client) fetchSweep(ctx context.Context) (sweepYield, error) {
	priorTimestamp := c.ackState.UnackedStoredHighest

	if c.flags.IncludeTopic {
		resp, err := c.driver.FetchMessages(ctx, c.UAID, topicFetchLimit)
		if err != nil {
			return sweepYield{}, err
		}
		c.metrics.MessagesRetrieved(true, len(resp.Messages))
		if len(resp.Messages) > 0 {
			msgs := resp.Messages
			if len(msgs) > topicPageSize {
				// 11th message detected: hold it back for the next sweep,
				// include_topic stays true so we resume the topic table.
				msgs = msgs[:topicPageSize]
			}
			return sweepYield{includeTopic: true, messages: msgs, timestamp: resp.Timestamp}, nil
		}
	}

	resp, err := c.driver.FetchTimestampMessages(ctx, c.UAID, priorTimestamp, timestampFetchLimit)
	if err != nil {
		return sweepYield{}, err
	}
	c.metrics.MessagesRetrieved(false, len(resp.Messages))
	ts := resp.Timestamp
	if ts == nil {
		ts = priorTimestamp
	}
	return sweepYield{includeTopic: false, messages: resp.Messages, timestamp: ts}, nil
}

// checkStorage runs one full sweep: fetch, filter expired, enforce quota,
// emit. Grounded on WebPushClient::check_storage in on_server_notif.rs.
func (c *Client) checkStorage(ctx context.Context) ([]model.ServerMessage, error) {
	c.flags.IncludeTopic = true
	c.flags.CheckStorage = true

	yield, err := c.fetchSweep(ctx)
	if err != nil {
		return nil, err
	}

	c.flags.IncludeTopic = yield.includeTopic
	c.ackState.UnackedStoredHighest = yield.timestamp

	if len(yield.messages) == 0 {
		c.flags.CheckStorage = false
		c.counters.SentFromStorage = 0
		return nil, nil
	}

	now := secSinceEpoch()
	survivors := make([]model.Notification, 0, len(yield.messages))
	for _, n := range yield.messages {
		if !n.Expired(now) {
			survivors = append(survivors, n)
			continue
		}
		if n.SortKeyTimestamp == nil {
			c.deleteExpiredBestEffort(n)
		}
		// SortKeyTimestamp set: left for the next increment_storage commit
		// to prune implicitly (spec.md §4.1.2 step 4).
	}

	c.flags.IncrementStorage = !yield.includeTopic && yield.timestamp != nil

	if len(survivors) == 0 {
		return nil, nil
	}

	if c.counters.SentFromStorage+uint32(len(survivors)) > c.cfg.MsgLimit {
		return nil, c.enforceQuota(survivors)
	}

	c.ackState.PushStored(survivors...)
	out := make([]model.ServerMessage, 0, len(survivors))
	for _, n := range survivors {
		c.emitSend(n, "Stored")
		out = append(out, model.NotificationMessage{Notif: n})
	}
	c.counters.SentFromStorage += uint32(len(survivors))
	return out, nil
}

// ErrQuotaExceeded signals the connection must be terminated with an
// overflow close code after a pathological user crossed msg_limit
// (spec.md §4.1.2 "Quota enforcement", policy choice (a): drop then
// disconnect — see DESIGN.md Open Question record).
type ErrQuotaExceeded struct{}

func (*ErrQuotaExceeded) Error() string { return "csm: sent_from_storage exceeded msg_limit" }

// enforceQuota drops the overflowing batch (never emitted to the client)
// and signals connection termination.
func (c *Client) enforceQuota(batch []model.Notification) error {
	for _, n := range batch {
		n := n
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := c.driver.RemoveMessage(ctx, c.UAID, n.RowKey()); err != nil {
				c.logger.Debug("quota drop: best-effort remove failed", slog.Any("err", err))
			}
		}()
	}
	c.counters.SentFromStorage = 0
	return &ErrQuotaExceeded{}
}

// deleteExpiredBestEffort mirrors the rt::spawn fire-and-forget delete in
// on_server_notif.rs: failures are silently ignored, the next sweep will
// revisit the row.
func (c *Client) deleteExpiredBestEffort(n model.Notification) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.driver.RemoveMessage(ctx, c.UAID, n.RowKey()); err == nil {
			c.logger.Debug("deleted expired message without sortkey_timestamp", slog.String("row_key", n.RowKey()))
		}
	}()
}

// incrementStorage commits the high-water mark, per spec.md §4.1.3 "Order:
// increment first, then sweep."
func (c *Client) incrementStorage(ctx context.Context) error {
	if c.ackState.UnackedStoredHighest == nil {
		return &ErrInternal{Msg: "increment_storage called with unset high-water mark"}
	}
	if err := c.driver.IncrementStorage(ctx, c.UAID, *c.ackState.UnackedStoredHighest); err != nil {
		return err
	}
	c.flags.IncrementStorage = false
	return nil
}
