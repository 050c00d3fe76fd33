// Package storage defines the capability set the client state machine uses
// to page stored notifications and to commit acknowledgement state. It is
// grounded on autopush-common's db::Db trait (original_source/autopush-common)
// and kept free of any row-store-specific types so the CSM can be tested
// against an in-memory fake.
package storage

import (
	"context"

	"github.com/webitel/push-connect-service/internal/domain/model"
)

// CheckStorageResponse is the result of either fetch call: a page of
// notifications plus the maximum sort key observed, if any.
type CheckStorageResponse struct {
	Messages  []model.Notification
	Timestamp *int64
}

// Driver is the capability set exposed to the CSM. Every method is called
// with a per-request context; implementations must not retain it past
// return.
type Driver interface {
	// FetchMessages returns up to limit topic-indexed notifications,
	// newest-per-topic.
	FetchMessages(ctx context.Context, uaid string, limit int) (CheckStorageResponse, error)

	// FetchTimestampMessages returns up to limit notifications strictly
	// after the given sortkey_timestamp, ascending. after == nil means
	// "from the beginning".
	FetchTimestampMessages(ctx context.Context, uaid string, after *int64, limit int) (CheckStorageResponse, error)

	// IncrementStorage persists timestamp as the user's consumed-up-to
	// high-water mark. Implementations must not regress a previously
	// stored value.
	IncrementStorage(ctx context.Context, uaid string, timestamp int64) error

	// RemoveMessage deletes a single notification row by its sort key.
	// Deleting a row that doesn't exist may return a KindNotFound error,
	// which callers treat as success.
	RemoveMessage(ctx context.Context, uaid string, sortKey string) error

	// StoreMessage persists a notification. A topic notification
	// overwrites any existing row sharing its topic key.
	StoreMessage(ctx context.Context, uaid string, n model.Notification) error

	// StoreSubscription persists the one-row-per-(uaid, channel_id)
	// subscription record a successful Register allocates.
	StoreSubscription(ctx context.Context, uaid, channelID string) error

	// RemoveSubscription deletes a subscription row. Deleting one that
	// doesn't exist may return a KindNotFound error, which callers treat
	// as success.
	RemoveSubscription(ctx context.Context, uaid, channelID string) error

	// HealthCheck probes the row store for a given table. Any I/O failure
	// maps to false — health checks never return an error the caller
	// must additionally branch on.
	HealthCheck(ctx context.Context, table string) bool
}
