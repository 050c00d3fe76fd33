package csm

import "github.com/webitel/push-connect-service/internal/domain/model"

// onNack records a client-reported delivery failure. Per spec.md §4.1.4 a
// Nack never mutates ack_state or storage — the notification stays
// unacked and will be redelivered on the next sweep or reconnect. Only a
// metric is emitted, mirroring emit_metrics_for_send's counterpart in the
// original client.
func (c *Client) onNack(f model.NackFrame) {
	if c.metrics == nil {
		return
	}
	c.metrics.Nacked(c.uaOS)
}
