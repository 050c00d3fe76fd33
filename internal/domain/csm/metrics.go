package csm

import "github.com/webitel/push-connect-service/internal/domain/model"

// Recorder is the metrics sink the CSM emits to on every send. Implemented
// in internal/metrics using OTel counters; grounded on
// on_server_notif.rs's emit_metrics_for_send (cadence tags translated to
// OTel attributes) — see SPEC_FULL.md §2.3.
type Recorder interface {
	NotificationSent(source string, hasTopic bool, os string)
	MessageData(source string, os string, bytes int)
	MessagesRetrieved(topic bool, count int)
	Nacked(os string)
	IntegrityError()
}

// noopRecorder is used when the caller doesn't care about metrics (tests).
type noopRecorder struct{}

func (noopRecorder) NotificationSent(string, bool, string) {}
func (noopRecorder) MessageData(string, string, int)       {}
func (noopRecorder) MessagesRetrieved(bool, int)            {}
func (noopRecorder) Nacked(string)                          {}
func (noopRecorder) IntegrityError()                        {}

// NoopRecorder is a Recorder that discards everything, for use in tests
// that don't assert on metrics.
var NoopRecorder Recorder = noopRecorder{}

func (c *Client) emitSend(n model.Notification, source string) {
	if c.metrics == nil {
		return
	}
	c.metrics.NotificationSent(source, n.IsTopic(), c.uaOS)
	c.metrics.MessageData(source, c.uaOS, len(n.Data))
}
