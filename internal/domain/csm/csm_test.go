package csm

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/webitel/push-connect-service/internal/domain/model"
	"github.com/webitel/push-connect-service/internal/storage"
)

type call struct {
	op        string
	uaid      string
	sortKey   string
	timestamp int64
}

type fakeDriver struct {
	mu sync.Mutex

	topicMessages     []model.Notification
	topicTimestamp    *int64
	timestampMessages []model.Notification
	timestampValue    *int64

	calls []call
}

func (f *fakeDriver) FetchMessages(ctx context.Context, uaid string, limit int) (storage.CheckStorageResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{op: "fetch_messages", uaid: uaid})
	msgs := f.topicMessages
	if len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return storage.CheckStorageResponse{Messages: msgs, Timestamp: f.topicTimestamp}, nil
}

func (f *fakeDriver) FetchTimestampMessages(ctx context.Context, uaid string, after *int64, limit int) (storage.CheckStorageResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{op: "fetch_timestamp_messages", uaid: uaid})
	msgs := f.timestampMessages
	if len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return storage.CheckStorageResponse{Messages: msgs, Timestamp: f.timestampValue}, nil
}

func (f *fakeDriver) IncrementStorage(ctx context.Context, uaid string, timestamp int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{op: "increment_storage", uaid: uaid, timestamp: timestamp})
	return nil
}

func (f *fakeDriver) RemoveMessage(ctx context.Context, uaid string, sortKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{op: "remove_message", uaid: uaid, sortKey: sortKey})
	return nil
}

func (f *fakeDriver) StoreMessage(ctx context.Context, uaid string, n model.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{op: "store_message", uaid: uaid})
	return nil
}

func (f *fakeDriver) StoreSubscription(ctx context.Context, uaid, channelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{op: "store_subscription", uaid: uaid, sortKey: channelID})
	return nil
}

func (f *fakeDriver) RemoveSubscription(ctx context.Context, uaid, channelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{op: "remove_subscription", uaid: uaid, sortKey: channelID})
	return nil
}

func (f *fakeDriver) HealthCheck(ctx context.Context, table string) bool { return true }

func (f *fakeDriver) opsInOrder() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.op
	}
	return out
}

type fakeRouter struct {
	unregistered bool
}

func (f *fakeRouter) Unregister(uaid string, connectedAt int64) { f.unregistered = true }

type fakeEndpoint struct{}

func (fakeEndpoint) BuildEndpoint(uaid, channelID string) string {
	return "https://push.example/wpush/v1/" + uaid + "/" + channelID
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(driver *fakeDriver) *Client {
	return New("U1", 10, Config{MsgLimit: 100}, driver, &fakeRouter{}, fakeEndpoint{}, NoopRecorder, testLogger(), "other")
}

// TestDirectDelivery is scenario S1.
func TestDirectDelivery(t *testing.T) {
	c := newTestClient(&fakeDriver{})
	n := model.Notification{ChannelID: "C", Version: "v1", TTL: 60, Data: []byte("x")}

	msgs, err := c.HandleServerSignal(context.Background(), model.NotificationSignal{Notif: n})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected exactly one outbound message, got %d", len(msgs))
	}
	got, ok := msgs[0].(model.NotificationMessage)
	if !ok || got.Notif.ChannelID != "C" || got.Notif.Version != "v1" {
		t.Fatalf("unexpected outbound message: %#v", msgs[0])
	}
	if len(c.AckState().UnackedDirectNotifs) != 1 {
		t.Fatalf("expected notification tracked in unacked_direct_notifs")
	}
}

// TestAckClearsDirect is scenario S2.
func TestAckClearsDirect(t *testing.T) {
	driver := &fakeDriver{}
	c := newTestClient(driver)
	n := model.Notification{ChannelID: "C", Version: "v1", TTL: 60, Data: []byte("x")}
	if _, err := c.HandleServerSignal(context.Background(), model.NotificationSignal{Notif: n}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msgs, err := c.HandleClientFrame(context.Background(), model.AckFrame{
		Updates: []model.AckUpdate{{ChannelID: "C", Version: "v1"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("expected no outbound frame on ack, got %d", len(msgs))
	}
	if !c.AckState().Empty() {
		t.Fatalf("expected unacked_direct_notifs cleared")
	}
	for _, op := range driver.opsInOrder() {
		if op == "remove_message" {
			t.Fatal("direct-only notification must never trigger SD.delete")
		}
	}
}

// TestTopicOverflowSweep is scenario S3.
func TestTopicOverflowSweep(t *testing.T) {
	topic := make([]model.Notification, 11)
	for i := range topic {
		topic[i] = model.Notification{ChannelID: "C" + string(rune('a'+i)), Version: "v1", TTL: 3600, Timestamp: secSinceEpoch()}
	}
	driver := &fakeDriver{topicMessages: topic}
	c := newTestClient(driver)

	msgs, err := c.HandleServerSignal(context.Background(), model.CheckStorageSignal{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(msgs) != 10 {
		t.Fatalf("expected 10 emitted messages on overflowing topic sweep, got %d", len(msgs))
	}
	if c.SentFromStorage() != 10 {
		t.Fatalf("expected sent_from_storage=10, got %d", c.SentFromStorage())
	}
	if !c.Flags().IncludeTopic {
		t.Fatal("expected include_topic to remain true after an overflowing topic sweep")
	}
	if !c.Flags().CheckStorage {
		t.Fatal("expected check_storage to remain true")
	}
}

// TestTopicMessageDeletedOnAck is the remaining half of scenario S3:
// acking a stored notification must issue SD.delete regardless of
// whether it's a topic message (sortkey_timestamp unset) or a
// timestamp-ordered one — spec.md §4.1.3 doesn't condition the delete on
// which addressing scheme the notif uses.
func TestTopicMessageDeletedOnAck(t *testing.T) {
	n := model.Notification{ChannelID: "C", Topic: "alerts", Version: "v1", TTL: 3600, Timestamp: secSinceEpoch()}
	driver := &fakeDriver{topicMessages: []model.Notification{n}}
	c := newTestClient(driver)

	if _, err := c.HandleServerSignal(context.Background(), model.CheckStorageSignal{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := c.HandleClientFrame(context.Background(), model.AckFrame{
		Updates: []model.AckUpdate{{ChannelID: "C", Version: "v1"}},
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, call := range driver.calls {
		if call.op == "remove_message" && call.sortKey == n.RowKey() {
			return
		}
	}
	t.Fatalf("expected remove_message(%q) for the acked topic message, got calls: %+v", n.RowKey(), driver.calls)
}

// TestQuotaExceededDropsBatch checks the msg_limit enforcement policy:
// crossing the limit drops the whole overflowing batch instead of emitting it.
func TestQuotaExceededDropsBatch(t *testing.T) {
	ts := make([]model.Notification, 5)
	for i := range ts {
		sk := int64(i + 1)
		ts[i] = model.Notification{ChannelID: "C", Version: "v1", TTL: 3600, Timestamp: secSinceEpoch(), SortKeyTimestamp: &sk}
	}
	driver := &fakeDriver{timestampMessages: ts}
	c := New("U1", 10, Config{MsgLimit: 3}, driver, &fakeRouter{}, fakeEndpoint{}, NoopRecorder, testLogger(), "other")
	c.flags.IncludeTopic = false

	msgs, err := c.HandleServerSignal(context.Background(), model.CheckStorageSignal{})
	if msgs != nil {
		t.Fatalf("expected no emitted messages on quota overflow, got %d", len(msgs))
	}
	if _, ok := err.(*ErrQuotaExceeded); !ok {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
	if c.SentFromStorage() != 0 {
		t.Fatalf("expected sent_from_storage reset to 0 after quota drop, got %d", c.SentFromStorage())
	}
}

// TestNackIsNoop is the nack invariant from spec.md §4.1.4: state is
// unchanged, only a metric fires.
func TestNackIsNoop(t *testing.T) {
	driver := &fakeDriver{}
	c := newTestClient(driver)
	n := model.Notification{ChannelID: "C", Version: "v1", TTL: 60, Data: []byte("x")}
	if _, err := c.HandleServerSignal(context.Background(), model.NotificationSignal{Notif: n}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	before := c.AckState()

	msgs, err := c.HandleClientFrame(context.Background(), model.NackFrame{Version: "v1", Code: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msgs != nil {
		t.Fatalf("expected no outbound frame for nack, got %d", len(msgs))
	}
	after := c.AckState()
	if len(before.UnackedDirectNotifs) != len(after.UnackedDirectNotifs) {
		t.Fatal("nack must not mutate ack state")
	}
}

// TestGhostSessionOnDisconnectSignal checks that a router-originated
// Disconnect signal surfaces ErrGhost so the transport can close cleanly.
func TestGhostSessionOnDisconnectSignal(t *testing.T) {
	c := newTestClient(&fakeDriver{})
	_, err := c.HandleServerSignal(context.Background(), model.DisconnectSignal{})
	if err != ErrGhost {
		t.Fatalf("expected ErrGhost, got %v", err)
	}
}

// TestRegisterPersistsSubscription checks spec.md §4.1.6: a successful
// Register must call SD.StoreSubscription, not just hand back an endpoint.
func TestRegisterPersistsSubscription(t *testing.T) {
	driver := &fakeDriver{}
	c := newTestClient(driver)

	msgs, err := c.HandleClientFrame(context.Background(), model.RegisterFrame{ChannelID: "C1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp, ok := msgs[0].(model.RegisterResponse)
	if !ok || resp.Status != model.StatusOK {
		t.Fatalf("expected a successful register response, got %#v", msgs[0])
	}

	for _, call := range driver.calls {
		if call.op == "store_subscription" && call.uaid == "U1" && call.sortKey == "C1" {
			return
		}
	}
	t.Fatalf("expected store_subscription(U1, C1), got calls: %+v", driver.calls)
}

// TestRegisterDuplicateChannelRejected exercises the duplicate-channel
// branch: registering the same channel_id twice on one connection must be
// rejected against the session's own set of registered channels, not
// against in-flight direct notifications.
func TestRegisterDuplicateChannelRejected(t *testing.T) {
	driver := &fakeDriver{}
	c := newTestClient(driver)

	if _, err := c.HandleClientFrame(context.Background(), model.RegisterFrame{ChannelID: "C1"}); err != nil {
		t.Fatalf("unexpected error on first register: %v", err)
	}

	msgs, err := c.HandleClientFrame(context.Background(), model.RegisterFrame{ChannelID: "C1"})
	if err != nil {
		t.Fatalf("unexpected error on duplicate register: %v", err)
	}
	resp, ok := msgs[0].(model.RegisterResponse)
	if !ok || resp.Status != model.StatusDuplicateChannel {
		t.Fatalf("expected a duplicate-channel rejection, got %#v", msgs[0])
	}
}

// TestUnregisterRemovesSubscription exercises the Unregister half: the
// subscription row must be deleted, not the raw channel id passed to
// RemoveMessage (which addresses notification rows, not subscription rows).
func TestUnregisterRemovesSubscription(t *testing.T) {
	driver := &fakeDriver{}
	c := newTestClient(driver)

	if _, err := c.HandleClientFrame(context.Background(), model.RegisterFrame{ChannelID: "C1"}); err != nil {
		t.Fatalf("unexpected error on register: %v", err)
	}
	if _, err := c.HandleClientFrame(context.Background(), model.UnregisterFrame{ChannelID: "C1"}); err != nil {
		t.Fatalf("unexpected error on unregister: %v", err)
	}

	for _, call := range driver.calls {
		if call.op == "remove_subscription" && call.uaid == "U1" && call.sortKey == "C1" {
			return
		}
	}
	t.Fatalf("expected remove_subscription(U1, C1), got calls: %+v", driver.calls)
}

// TestShutdownFlushesDirectAndUnregisters exercises the drain path: an
// unacked direct notification with TTL != 0 must be stored, and router
// ownership released.
func TestShutdownFlushesDirectAndUnregisters(t *testing.T) {
	driver := &fakeDriver{}
	router := &fakeRouter{}
	c := New("U1", 10, Config{}, driver, router, fakeEndpoint{}, NoopRecorder, testLogger(), "other")
	n := model.Notification{ChannelID: "C", Version: "v1", TTL: 60, Data: []byte("x")}
	if _, err := c.HandleServerSignal(context.Background(), model.NotificationSignal{Notif: n}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := c.Shutdown(context.Background()); err != nil {
		t.Fatalf("unexpected shutdown error: %v", err)
	}
	if !router.unregistered {
		t.Fatal("expected router.Unregister to be called on shutdown")
	}
	found := false
	for _, call := range driver.calls {
		if call.op == "store_message" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected unacked direct notification to be flushed to storage on shutdown")
	}
}
