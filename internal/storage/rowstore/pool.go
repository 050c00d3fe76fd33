package rowstore

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

// ErrPoolClosed is returned by Get after Close.
var ErrPoolClosed = errors.New("rowstore: pool closed")

// ErrPoolExhausted is returned by Get when no connection becomes available
// within Settings.CheckoutTimeout — the pool-exhaustion error spec.md §4.4
// calls for, distinct from the caller's own context deadline expiring.
var ErrPoolExhausted = errors.New("rowstore: pool exhausted, checkout timed out")

// errRecycle signals a pooled connection failed its recycle check and was
// discarded rather than returned to the idle set — the Go analogue of
// pool.rs's BigTableError::Recycle, which is never surfaced to the
// caller: the pool just creates a fresh one.
var errRecycle = errors.New("rowstore: recycle check failed")

// pooledConn wraps a *grpc.ClientConn with the bookkeeping recycle() in
// pool.rs needs: creation time and last-recycle time.
type pooledConn struct {
	conn      *grpc.ClientConn
	createdAt time.Time
	recycled  time.Time
}

// Pool is a bounded pool of gRPC channels to the row store, equivalent in
// role to BigTablePool. There is no deadpool package in the Go ecosystem
// examples, so creation/recycling is hand-rolled: a buffered channel of
// idle connections plus a semaphore bounding total outstanding
// connections, matching deadpool::managed::Pool's max_size + create
// semantics.
type Pool struct {
	settings Settings
	target   string
	logger   *slog.Logger

	idle chan *pooledConn
	sem  chan struct{}

	healthBreaker *gobreaker.CircuitBreaker

	closeOnce sync.Once
	closed    chan struct{}
}

// NewPool dials no connections eagerly — it only validates the DSN and
// prepares the bounded pool, matching BigTablePool::new which also only
// configures the manager; connections are created lazily on first Get.
func NewPool(settings Settings, logger *slog.Logger) (*Pool, error) {
	settings = settings.withDefaults()
	target, err := parseTarget(settings.DSN)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	p := &Pool{
		settings: settings,
		target:   target,
		logger:   logger.With(slog.String("component", "rowstore.pool"), slog.String("target", target)),
		idle:     make(chan *pooledConn, settings.MaxPoolSize),
		sem:      make(chan struct{}, settings.MaxPoolSize),
		closed:   make(chan struct{}),
	}
	p.healthBreaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "rowstore-health",
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
	return p, nil
}

// Stats is a snapshot of pool occupancy, the Go analogue of deadpool's
// Status{max_size, size, available}.
type Stats struct {
	MaxSize int
	InUse   int
	Idle    int
}

// Stats reports current occupancy for introspection. InUse is derived
// from the semaphore's outstanding permits minus the idle set (idle
// connections keep their permit), so it includes connections being
// created as well as ones checked out.
func (p *Pool) Stats() Stats {
	inUse := len(p.sem) - len(p.idle)
	return Stats{
		MaxSize: p.settings.MaxPoolSize,
		InUse:   inUse,
		Idle:    len(p.idle),
	}
}

// Get acquires a connection, recycling (and if necessary discarding and
// recreating) whatever was last idle, matching recycle() in pool.rs:
// checks connection_ttl expiry, then max_idle expiry, then a health
// check, each of which can force a fresh create(). Waiting for a
// saturated pool to free up is bounded by Settings.CheckoutTimeout
// regardless of the caller's own context, per spec.md §4.4.
func (p *Pool) Get(ctx context.Context) (*grpc.ClientConn, error) {
	select {
	case <-p.closed:
		return nil, ErrPoolClosed
	default:
	}

	checkoutCtx, cancel := context.WithTimeout(ctx, p.settings.CheckoutTimeout)
	defer cancel()

	select {
	case pc := <-p.idle:
		if p.needsRecycle(ctx, pc) {
			pc.conn.Close()
			<-p.sem
			return p.createAndAcquire(ctx, checkoutCtx)
		}
		return pc.conn, nil
	case p.sem <- struct{}{}:
		conn, err := p.create(ctx)
		if err != nil {
			<-p.sem
			return nil, err
		}
		return conn, nil
	case <-checkoutCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, ErrPoolExhausted
	}
}

func (p *Pool) createAndAcquire(ctx, checkoutCtx context.Context) (*grpc.ClientConn, error) {
	select {
	case p.sem <- struct{}{}:
		conn, err := p.create(ctx)
		if err != nil {
			<-p.sem
			return nil, err
		}
		return conn, nil
	case <-checkoutCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, ErrPoolExhausted
	}
}

// Put returns conn to the idle set. If the pool is full or closed the
// connection is closed outright instead of blocking the caller.
func (p *Pool) Put(conn *grpc.ClientConn) {
	select {
	case <-p.closed:
		conn.Close()
		<-p.sem
		return
	default:
	}

	pc := &pooledConn{conn: conn, createdAt: time.Now(), recycled: time.Now()}
	select {
	case p.idle <- pc:
	default:
		conn.Close()
		<-p.sem
	}
}

// needsRecycle runs the same three checks as BigtableClientManager::recycle:
// TTL expiry, max-idle expiry, then a breaker-wrapped health check.
func (p *Pool) needsRecycle(ctx context.Context, pc *pooledConn) bool {
	now := time.Now()
	if p.settings.ConnectionTTL > 0 && now.Sub(pc.createdAt) > p.settings.ConnectionTTL {
		p.logger.Debug("recycle requested (old)")
		return true
	}
	if p.settings.MaxIdle > 0 && now.Sub(pc.recycled) > p.settings.MaxIdle {
		p.logger.Debug("recycle requested (idle)")
		return true
	}
	_, err := p.healthBreaker.Execute(func() (interface{}, error) {
		if !healthCheck(ctx, pc.conn, p.settings.TableName) {
			return nil, errRecycle
		}
		return nil, nil
	})
	if err != nil {
		p.logger.Debug("recycle requested (health)", slog.Any("err", err))
		return true
	}
	return false
}

// create dials a fresh channel, the Go equivalent of
// BigtableClientManager::create/get_channel/create_channel.
func (p *Pool) create(ctx context.Context) (*grpc.ClientConn, error) {
	creds := p.transportCredentials()
	dialCtx, cancel := context.WithTimeout(ctx, p.settings.ConnectionTimeout)
	defer cancel()

	conn, err := grpc.DialContext(dialCtx, p.target,
		grpc.WithTransportCredentials(creds),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallSendMsgSize(maxMessageLen),
			grpc.MaxCallRecvMsgSize(maxMessageLen),
		),
	)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (p *Pool) transportCredentials() credentials.TransportCredentials {
	if isEmulator(p.settings.DSN) {
		p.logger.Debug("using emulator, skipping transport credentials")
		return insecure.NewCredentials()
	}
	p.logger.Debug("using TLS transport credentials")
	return credentials.NewTLS(nil)
}

// Close drains the idle set and prevents further Get calls.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.closed)
		for {
			select {
			case pc := <-p.idle:
				pc.conn.Close()
			default:
				return
			}
		}
	})
}
