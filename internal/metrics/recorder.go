// Package metrics implements the CSM's Recorder interface on top of
// OpenTelemetry counters, translating the cadence tagged-counter calls in
// on_server_notif.rs's emit_metrics_for_send (ua.notification.sent,
// ua.message_data) into OTel attributes.
package metrics

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/webitel/push-connect-service/internal/domain/csm"
)

// Recorder is the concrete OTel-backed csm.Recorder.
type Recorder struct {
	notificationsSent metric.Int64Counter
	messageBytes      metric.Int64Counter
	messagesRetrieved metric.Int64Counter
	nacks             metric.Int64Counter
	integrityErrors   metric.Int64Counter
}

var _ csm.Recorder = (*Recorder)(nil)

// New builds a Recorder from meter, registering every counter it needs.
func New(meter metric.Meter) (*Recorder, error) {
	sent, err := meter.Int64Counter("ua.notification.sent",
		metric.WithDescription("Notifications delivered to a connected client"))
	if err != nil {
		return nil, err
	}
	bytesCounter, err := meter.Int64Counter("ua.message_data",
		metric.WithDescription("Bytes of notification payload delivered"))
	if err != nil {
		return nil, err
	}
	retrieved, err := meter.Int64Counter("ua.storage.messages_retrieved",
		metric.WithDescription("Messages paged in from storage during a sweep"))
	if err != nil {
		return nil, err
	}
	nacks, err := meter.Int64Counter("ua.notification.nacked",
		metric.WithDescription("Client-reported delivery failures"))
	if err != nil {
		return nil, err
	}
	integrity, err := meter.Int64Counter("ua.storage.integrity_errors",
		metric.WithDescription("Rows skipped for failing to deserialize"))
	if err != nil {
		return nil, err
	}
	return &Recorder{
		notificationsSent: sent,
		messageBytes:      bytesCounter,
		messagesRetrieved: retrieved,
		nacks:             nacks,
		integrityErrors:   integrity,
	}, nil
}

func (r *Recorder) NotificationSent(source string, hasTopic bool, os string) {
	r.notificationsSent.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String("source", source),
			attribute.Bool("topic", hasTopic),
			attribute.String("os", os),
		))
}

func (r *Recorder) MessageData(source string, os string, bytesLen int) {
	r.messageBytes.Add(context.Background(), int64(bytesLen),
		metric.WithAttributes(
			attribute.String("source", source),
			attribute.String("os", os),
		))
}

func (r *Recorder) MessagesRetrieved(topic bool, count int) {
	r.messagesRetrieved.Add(context.Background(), int64(count),
		metric.WithAttributes(attribute.Bool("topic", topic)))
}

func (r *Recorder) Nacked(os string) {
	r.nacks.Add(context.Background(), 1, metric.WithAttributes(attribute.String("os", os)))
}

func (r *Recorder) IntegrityError() {
	r.integrityErrors.Add(context.Background(), 1)
}
