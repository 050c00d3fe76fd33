package notifyfanout

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/webitel/push-connect-service/internal/domain/model"
	"github.com/webitel/push-connect-service/internal/domain/router"
	"github.com/webitel/push-connect-service/internal/storage"
)

type fakeRegistry struct {
	deliverResult   router.DeliverResult
	delivered       []model.ServerSignal
	connectedUAID   string
	connectedAt     int64
	connectedExists bool
}

func (f *fakeRegistry) Register(string, router.Sender, int64) router.Outcome { return router.Registered }
func (f *fakeRegistry) Deliver(uaid string, signal model.ServerSignal) router.DeliverResult {
	f.delivered = append(f.delivered, signal)
	return f.deliverResult
}
func (f *fakeRegistry) Unregister(string, int64) {}
func (f *fakeRegistry) Connected(uaid string) (int64, bool) {
	if uaid == f.connectedUAID {
		return f.connectedAt, f.connectedExists
	}
	return 0, false
}
func (f *fakeRegistry) LostRace(string, int64) bool { return false }
func (f *fakeRegistry) Count() int                  { return 0 }

type fakeDriver struct {
	stored []string
	err    error
}

func (d *fakeDriver) FetchMessages(context.Context, string, int) (storage.CheckStorageResponse, error) {
	return storage.CheckStorageResponse{}, nil
}
func (d *fakeDriver) FetchTimestampMessages(context.Context, string, *int64, int) (storage.CheckStorageResponse, error) {
	return storage.CheckStorageResponse{}, nil
}
func (d *fakeDriver) IncrementStorage(context.Context, string, int64) error { return nil }
func (d *fakeDriver) RemoveMessage(context.Context, string, string) error  { return nil }
func (d *fakeDriver) StoreMessage(_ context.Context, uaid string, _ model.Notification) error {
	d.stored = append(d.stored, uaid)
	return d.err
}
func (d *fakeDriver) StoreSubscription(context.Context, string, string) error  { return nil }
func (d *fakeDriver) RemoveSubscription(context.Context, string, string) error { return nil }
func (d *fakeDriver) HealthCheck(context.Context, string) bool                 { return true }

func TestWakeupRoundTrip(t *testing.T) {
	payload, err := encodeWakeup("U1")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	uaid, err := decodeWakeup(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if uaid != "U1" {
		t.Fatalf("expected U1, got %s", uaid)
	}
}

func TestNotifierDeliverLocalHit(t *testing.T) {
	reg := &fakeRegistry{deliverResult: router.Delivered}
	drv := &fakeDriver{}
	n := New(reg, drv, nil, "push.notifications", testLogger())

	if err := n.Deliver(context.Background(), "U1", model.Notification{ChannelID: "C1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(drv.stored) != 0 {
		t.Fatal("local delivery must not fall back to storage")
	}
}

func TestNotifierDeliverFallsBackToStorage(t *testing.T) {
	reg := &fakeRegistry{deliverResult: router.NotConnected}
	drv := &fakeDriver{}
	n := New(reg, drv, nil, "push.notifications", testLogger())

	if err := n.Deliver(context.Background(), "U1", model.Notification{ChannelID: "C1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(drv.stored) != 1 || drv.stored[0] != "U1" {
		t.Fatalf("expected store fallback for U1, got %v", drv.stored)
	}
}

func TestNotifierDeliverStoreFailurePropagates(t *testing.T) {
	reg := &fakeRegistry{deliverResult: router.NotConnected}
	drv := &fakeDriver{err: errors.New("boom")}
	n := New(reg, drv, nil, "push.notifications", testLogger())

	if err := n.Deliver(context.Background(), "U1", model.Notification{}); err == nil {
		t.Fatal("expected store failure to propagate")
	}
}

func TestListenerSkipsUnownedUAID(t *testing.T) {
	reg := &fakeRegistry{connectedUAID: "other", connectedAt: 1, connectedExists: true}
	l := NewListener(reg, testLogger())

	payload, _ := encodeWakeup("U1")
	msg := message.NewMessage(watermill.NewUUID(), payload)

	if _, err := l.Handle(msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reg.delivered) != 0 {
		t.Fatal("listener must not deliver for a uaid this node doesn't own")
	}
}

func TestListenerWakesOwnedUAID(t *testing.T) {
	reg := &fakeRegistry{connectedUAID: "U1", connectedAt: 1, connectedExists: true, deliverResult: router.Delivered}
	l := NewListener(reg, testLogger())

	payload, _ := encodeWakeup("U1")
	msg := message.NewMessage(watermill.NewUUID(), payload)

	if _, err := l.Handle(msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reg.delivered) != 1 {
		t.Fatal("expected a CheckStorageSignal delivery for an owned uaid")
	}
	if _, ok := reg.delivered[0].(model.CheckStorageSignal); !ok {
		t.Fatalf("expected CheckStorageSignal, got %T", reg.delivered[0])
	}
}

func TestListenerDropsUndecodablePayload(t *testing.T) {
	reg := &fakeRegistry{}
	l := NewListener(reg, testLogger())
	msg := message.NewMessage(watermill.NewUUID(), []byte("not json"))

	if _, err := l.Handle(msg); err != nil {
		t.Fatalf("undecodable payload must be dropped, not erred: %v", err)
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
