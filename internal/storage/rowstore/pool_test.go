package rowstore

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"
)

// TestGetBoundsWaitWhenSaturated locks in spec.md §4.4's "Checkout. Bounded
// wait of create_timeout. On timeout, fail with a pool-exhaustion error":
// a caller with no deadline of its own must still fail once the pool is
// saturated, instead of blocking forever.
func TestGetBoundsWaitWhenSaturated(t *testing.T) {
	pool, err := NewPool(Settings{
		DSN:             "grpc://localhost:9999",
		MaxPoolSize:     1,
		CheckoutTimeout: 50 * time.Millisecond,
	}, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	defer pool.Close()

	if _, err := pool.Get(context.Background()); err != nil {
		t.Fatalf("first Get: %v", err)
	}
	// Deliberately not Put back: the pool is now saturated (sem full,
	// idle empty).

	start := time.Now()
	_, err = pool.Get(context.Background())
	elapsed := time.Since(start)

	if !errors.Is(err, ErrPoolExhausted) {
		t.Fatalf("expected ErrPoolExhausted on a saturated pool with no caller deadline, got %v", err)
	}
	if elapsed > time.Second {
		t.Fatalf("Get blocked for %v, expected it bounded by CheckoutTimeout", elapsed)
	}
}
