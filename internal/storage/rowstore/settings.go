// Package rowstore implements the storage driver (SD) and connection pool
// (CP) against a BigTable-like row store over gRPC. Grounded on
// original_source/autopush-common/src/db/bigtable/pool.rs: same DSN
// shape, the same "channel-per-client, pool-of-clients" structure, and
// the same emulator-credential-skip rule, translated from grpcio::Channel
// + deadpool::managed::Pool into google.golang.org/grpc.ClientConn and a
// hand-rolled bounded pool (the ecosystem examples carry no deadpool
// analogue — see DESIGN.md).
package rowstore

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
)

// maxMessageLen mirrors MAX_MESSAGE_LEN in pool.rs: rows can carry large
// payload blobs, so both directions get the same generous cap.
const maxMessageLen = 1 << 28

// defaultGRPCPort is used when the DSN doesn't specify one.
const defaultGRPCPort = 8086

// emulatorHostEnv is the renamed BIGTABLE_EMULATOR_HOST check.
const emulatorHostEnv = "ROWSTORE_EMULATOR_HOST"

// Settings configures the pool and the row store session it produces.
type Settings struct {
	// DSN is a grpc://host[:port] endpoint. The path component must be
	// empty — table selection is a per-call parameter, not part of the
	// connection string (pool.rs rejects a non-empty path for the same
	// reason).
	DSN string

	TableName string

	MaxPoolSize       int
	ConnectionTimeout time.Duration
	ConnectionTTL     time.Duration
	MaxIdle           time.Duration

	// CheckoutTimeout bounds how long Get waits for a connection to free
	// up when the pool is saturated, per spec.md §4.4 "Checkout. Bounded
	// wait of create_timeout. On timeout, fail with a pool-exhaustion
	// error." This is independent of whatever deadline the caller's own
	// context carries — a caller with no deadline must still fail instead
	// of blocking forever.
	CheckoutTimeout time.Duration
}

func (s Settings) withDefaults() Settings {
	if s.MaxPoolSize <= 0 {
		s.MaxPoolSize = 10
	}
	if s.ConnectionTimeout <= 0 {
		s.ConnectionTimeout = 5 * time.Second
	}
	if s.CheckoutTimeout <= 0 {
		s.CheckoutTimeout = s.ConnectionTimeout
	}
	return s
}

// parseTarget resolves the DSN to a host:port dial target, the way
// BigTablePool::new does via url::Url::parse.
func parseTarget(dsn string) (string, error) {
	parsed, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("rowstore: invalid DSN %q: %w", dsn, err)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("rowstore: invalid DSN %q: unparsable host", dsn)
	}
	if parsed.Path != "" {
		return "", fmt.Errorf("rowstore: invalid DSN %q: table paths don't belong in the connection string", dsn)
	}
	host := parsed.Hostname()
	port := parsed.Port()
	if port == "" {
		port = fmt.Sprintf("%d", defaultGRPCPort)
	}
	return host + ":" + port, nil
}

// isEmulator reports whether credentials should be skipped for this DSN,
// mirroring pool.rs's "localhost in the DSN or BIGTABLE_EMULATOR_HOST set".
func isEmulator(dsn string) bool {
	if strings.Contains(dsn, "localhost") {
		return true
	}
	_, set := os.LookupEnv(emulatorHostEnv)
	return set
}
