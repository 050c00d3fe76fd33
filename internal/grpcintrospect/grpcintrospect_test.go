package grpcintrospect

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"google.golang.org/grpc"

	"github.com/webitel/push-connect-service/internal/domain/model"
	"github.com/webitel/push-connect-service/internal/domain/router"
	"github.com/webitel/push-connect-service/internal/storage"
	"github.com/webitel/push-connect-service/internal/storage/rowstore"
)

type fakeRegistry struct {
	count int
}

func (f *fakeRegistry) Register(string, router.Sender, int64) router.Outcome { return router.Registered }
func (f *fakeRegistry) Deliver(string, model.ServerSignal) router.DeliverResult {
	return router.Delivered
}
func (f *fakeRegistry) Unregister(string, int64)      {}
func (f *fakeRegistry) Connected(string) (int64, bool) { return 0, false }
func (f *fakeRegistry) LostRace(string, int64) bool    { return false }
func (f *fakeRegistry) Count() int                     { return f.count }

type fakeDriver struct {
	healthy bool
}

func (d *fakeDriver) FetchMessages(context.Context, string, int) (storage.CheckStorageResponse, error) {
	return storage.CheckStorageResponse{}, nil
}
func (d *fakeDriver) FetchTimestampMessages(context.Context, string, *int64, int) (storage.CheckStorageResponse, error) {
	return storage.CheckStorageResponse{}, nil
}
func (d *fakeDriver) IncrementStorage(context.Context, string, int64) error { return nil }
func (d *fakeDriver) RemoveMessage(context.Context, string, string) error   { return nil }
func (d *fakeDriver) StoreMessage(context.Context, string, model.Notification) error {
	return nil
}
func (d *fakeDriver) StoreSubscription(context.Context, string, string) error  { return nil }
func (d *fakeDriver) RemoveSubscription(context.Context, string, string) error { return nil }
func (d *fakeDriver) HealthCheck(context.Context, string) bool                 { return d.healthy }

func testPool(t *testing.T) *rowstore.Pool {
	t.Helper()
	pool, err := rowstore.NewPool(rowstore.Settings{DSN: "grpc://localhost:9999", MaxPoolSize: 4}, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	return pool
}

func TestServerStatsReportsPoolAndRegistry(t *testing.T) {
	registry := &fakeRegistry{count: 3}
	driver := &fakeDriver{healthy: true}
	srv := &server{registry: registry, pool: testPool(t), driver: driver, table: "messages"}

	resp, err := srv.Stats(context.Background(), &StatsRequest{})
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if resp.ConnectedUAIDs != 3 {
		t.Fatalf("ConnectedUAIDs = %d, want 3", resp.ConnectedUAIDs)
	}
	if resp.PoolMaxSize != 4 {
		t.Fatalf("PoolMaxSize = %d, want 4", resp.PoolMaxSize)
	}
	if !resp.RowStoreHealth {
		t.Fatal("RowStoreHealth = false, want true")
	}
}

func TestServerStatsReflectsUnhealthyRowStore(t *testing.T) {
	srv := &server{registry: &fakeRegistry{}, pool: testPool(t), driver: &fakeDriver{healthy: false}, table: "messages"}

	resp, err := srv.Stats(context.Background(), &StatsRequest{})
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if resp.RowStoreHealth {
		t.Fatal("RowStoreHealth = true, want false")
	}
}

func TestStatsHandlerDecodesAndDispatches(t *testing.T) {
	srv := &server{registry: &fakeRegistry{count: 1}, pool: testPool(t), driver: &fakeDriver{healthy: true}, table: "messages"}

	dec := func(v any) error {
		_, ok := v.(*StatsRequest)
		if !ok {
			return errors.New("unexpected request type")
		}
		return nil
	}

	out, err := statsHandler(srv, context.Background(), dec, nil)
	if err != nil {
		t.Fatalf("statsHandler: %v", err)
	}
	resp, ok := out.(*StatsResponse)
	if !ok {
		t.Fatalf("statsHandler returned %T, want *StatsResponse", out)
	}
	if resp.ConnectedUAIDs != 1 {
		t.Fatalf("ConnectedUAIDs = %d, want 1", resp.ConnectedUAIDs)
	}
}

func TestStatsHandlerPropagatesDecodeError(t *testing.T) {
	srv := &server{registry: &fakeRegistry{}, pool: testPool(t), driver: &fakeDriver{}, table: "messages"}
	wantErr := errors.New("boom")
	dec := func(any) error { return wantErr }

	_, err := statsHandler(srv, context.Background(), dec, nil)
	if !errors.Is(err, wantErr) {
		t.Fatalf("statsHandler err = %v, want %v", err, wantErr)
	}
}

func TestStatsHandlerRunsThroughInterceptor(t *testing.T) {
	srv := &server{registry: &fakeRegistry{count: 2}, pool: testPool(t), driver: &fakeDriver{healthy: true}, table: "messages"}
	dec := func(v any) error { return nil }

	var sawMethod string
	interceptor := func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		sawMethod = info.FullMethod
		return handler(ctx, req)
	}

	out, err := statsHandler(srv, context.Background(), dec, interceptor)
	if err != nil {
		t.Fatalf("statsHandler: %v", err)
	}
	if sawMethod != "/pushconnect.Introspect/Stats" {
		t.Fatalf("FullMethod = %q", sawMethod)
	}
	if _, ok := out.(*StatsResponse); !ok {
		t.Fatalf("statsHandler returned %T, want *StatsResponse", out)
	}
}
