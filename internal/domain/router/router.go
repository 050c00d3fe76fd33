// Package router implements the notification router (NR): a process-wide
// mapping from uaid to the inbound-signal channel of whichever connection
// currently owns it. Grounded on the IM delivery service's registry.Hub —
// same sync.Map-of-actors shape — but simplified from "one cell fans out
// to N sessions" to "one uaid has exactly one owning session, arbitrated
// by connected_at", which is what spec.md §4.2 and §3's user-record
// arbitration describe.
package router

import (
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/webitel/push-connect-service/internal/domain/model"
)

// Outcome is the result of a Register call.
type Outcome int

const (
	// Registered means the sender is now the sole owner of uaid, either
	// because no owner existed or because an older owner was evicted.
	Registered Outcome = iota
	// Replaced means an existing owner with an equal or newer connectedAt
	// kept uaid; the caller's sender was not installed.
	Replaced
)

// DeliverResult is the result of a Deliver call.
type DeliverResult int

const (
	// Delivered means the signal was handed to the owning sender's channel.
	Delivered DeliverResult = iota
	// NotConnected means no owner exists, or its mailbox was full — the
	// caller (the notification handler) should fall back to storing the
	// notification instead of losing it.
	NotConnected
)

// Sender is the inbound-signal channel a connection registers to receive
// router-originated signals on. Implementations own the channel's
// lifetime; the router only ever sends non-blocking.
type Sender chan<- model.ServerSignal

type entry struct {
	sender      Sender
	connectedAt int64
}

// Router is the concrete NR. Safe for concurrent use; reads (Deliver) never
// block behind writes (Register/Unregister) since both are sync.Map
// operations, not a single global mutex.
type Router struct {
	entries sync.Map // uaid string -> *entry

	// tombstones remembers the connected_at of the most recently evicted
	// or unregistered owner per uaid, bounded by an LRU so a crash loop of
	// short-lived connections can't grow this without bound. LostRace
	// reads it, so a session that's already been evicted can still tell
	// it lost the race after its entry is gone from entries. Register
	// does not consult it (additive beyond spec.md §4.2 — never changes
	// who wins an arbitration, only how long the loser can still tell it
	// lost).
	tombstones *lru.Cache[string, int64]

	logger *slog.Logger
}

const defaultTombstoneSize = 4096

// New constructs a Router. logger may be nil; a discarding logger is used
// if so.
func New(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	cache, err := lru.New[string, int64](defaultTombstoneSize)
	if err != nil {
		// Only returns an error for a non-positive size, which
		// defaultTombstoneSize never is.
		panic(err)
	}
	return &Router{tombstones: cache, logger: logger}
}

// Register inserts sender as the owner of uaid at connectedAt. If an
// entry already exists with an older connectedAt, it's evicted — a
// Disconnect signal is sent to its sender (best-effort, non-blocking) —
// and replaced. An existing entry with a connectedAt >= the new one wins;
// the caller's sender is not installed and Replaced is returned with the
// winning (older, by wall clock, but higher-priority) owner left in place.
func (r *Router) Register(uaid string, sender Sender, connectedAt int64) Outcome {
	for {
		existing, loaded := r.entries.LoadOrStore(uaid, &entry{sender: sender, connectedAt: connectedAt})
		if !loaded {
			return Registered
		}

		old := existing.(*entry)
		if old.connectedAt >= connectedAt {
			// The caller lost the race. The existing owner keeps running
			// undisturbed; the caller learns it lost from Outcome alone,
			// since its own signal channel has no reader yet at this
			// point in the connection lifecycle.
			return Replaced
		}

		if r.entries.CompareAndSwap(uaid, existing, &entry{sender: sender, connectedAt: connectedAt}) {
			r.trySend(old.sender, model.DisconnectSignal{})
			r.tombstones.Add(uaid, old.connectedAt)
			return Registered
		}
		// Lost a race with another writer; retry against the new value.
	}
}

// Deliver hands signal to the owner of uaid's channel without blocking.
func (r *Router) Deliver(uaid string, signal model.ServerSignal) DeliverResult {
	val, ok := r.entries.Load(uaid)
	if !ok {
		return NotConnected
	}
	if r.trySend(val.(*entry).sender, signal) {
		return Delivered
	}
	return NotConnected
}

// Unregister removes the uaid entry iff its connectedAt still matches.
// Idempotent: unregistering a uaid that's already owned by a newer
// session, or not registered at all, is a no-op.
func (r *Router) Unregister(uaid string, connectedAt int64) {
	val, ok := r.entries.Load(uaid)
	if !ok {
		return
	}
	e := val.(*entry)
	if e.connectedAt != connectedAt {
		return
	}
	if r.entries.CompareAndDelete(uaid, val) {
		r.tombstones.Add(uaid, connectedAt)
	}
}

// Connected reports whether uaid currently has an owner, and if so, the
// owner's connectedAt — used by the notifyfanout listener to act only on
// uaids this node owns.
func (r *Router) Connected(uaid string) (connectedAt int64, ok bool) {
	val, loaded := r.entries.Load(uaid)
	if !loaded {
		return 0, false
	}
	return val.(*entry).connectedAt, true
}

// LostRace reports whether connectedAt is known to have already lost
// arbitration for uaid, consulting the tombstone cache for sessions whose
// entry has since been overwritten or removed entirely. It is a separate
// query: Register does not call it.
func (r *Router) LostRace(uaid string, connectedAt int64) bool {
	if winner, ok := r.tombstones.Get(uaid); ok && winner >= connectedAt {
		return true
	}
	return false
}

// Count returns the number of uaids currently owned by some sender on
// this node. O(n) in the number of connections; intended for
// introspection, not the hot path.
func (r *Router) Count() int {
	n := 0
	r.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func (r *Router) trySend(sender Sender, signal model.ServerSignal) bool {
	select {
	case sender <- signal:
		return true
	default:
		return false
	}
}
