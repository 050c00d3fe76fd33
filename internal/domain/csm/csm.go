// Package csm implements the per-connection client state machine: the
// authority for one logical WebPush client between handshake and
// disconnect. It mediates direct delivery, storage sweeps, acknowledgement,
// and shutdown, per spec section 4.1. It is grounded on
// original_source/autoconnect-ws/autoconnect-ws-sm's identified-client state
// machine (on_server_notif.rs), translated from an actix-web async method
// set into a single-goroutine Go type with no internal locking — exactly
// the "CSM state: exclusive to its owning task; no locking" resource model
// the spec calls for.
package csm

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/webitel/push-connect-service/internal/domain/model"
	"github.com/webitel/push-connect-service/internal/storage"
)

// topicFetchLimit is topicPageSize (10) + 1, used to detect topic overflow
// without a second round trip (spec.md §4.1.2 step 2).
const topicFetchLimit = 11

// timestampFetchLimit is the page size for non-topic sweeps.
const timestampFetchLimit = 10

// Unregisterer is the slice of the notification router's API the CSM needs
// on clean shutdown: release ownership iff this session still owns it.
type Unregisterer interface {
	Unregister(uaid string, connectedAt int64)
}

// EndpointBuilder renders the push endpoint URL for a newly registered
// channel. Implemented by the transport/config layer so the CSM stays free
// of HTTP concerns.
type EndpointBuilder interface {
	BuildEndpoint(uaid, channelID string) string
}

// Config bundles the tunables spec.md leaves as configuration (§9 Design
// Notes: quota enforcement is a policy decision exposed as config).
type Config struct {
	MsgLimit uint32
}

// Client is the state machine for one connected, hello'd client. Callers
// (internal/handler/ws) construct one per accepted WebSocket after a
// successful Hello, feed it ServerSignals and ClientFrames one at a time,
// and flush it via Shutdown when the transport closes.
type Client struct {
	UAID        string
	ConnectedAt int64

	ackState model.AckState
	flags    model.Flags
	counters model.Counters
	channels map[string]struct{}

	cfg      Config
	driver   storage.Driver
	router   Unregisterer
	endpoint EndpointBuilder
	metrics  Recorder
	logger   *slog.Logger

	uaOS string // coarse user-agent OS bucket, used only for metric tags

	shuttingDown bool
}

// New constructs a Client bound to uaid with connectedAt as its ownership
// timestamp (see spec.md §3, User record arbitration).
func New(uaid string, connectedAt int64, cfg Config, driver storage.Driver, router Unregisterer, endpoint EndpointBuilder, metrics Recorder, logger *slog.Logger, uaOS string) *Client {
	if cfg.MsgLimit == 0 {
		cfg.MsgLimit = 100
	}
	return &Client{
		UAID:        uaid,
		ConnectedAt: connectedAt,
		cfg:         cfg,
		driver:      driver,
		router:      router,
		endpoint:    endpoint,
		metrics:     metrics,
		logger:      logger.With(slog.String("uaid", uaid)),
		uaOS:        uaOS,
		channels:    make(map[string]struct{}),
	}
}

// AckState exposes a read-only view for tests and introspection.
func (c *Client) AckState() model.AckState { return c.ackState }

// Flags exposes a read-only view for tests and introspection.
func (c *Client) Flags() model.Flags { return c.flags }

// SentFromStorage exposes the current-connection stored-send counter.
func (c *Client) SentFromStorage() uint32 { return c.counters.SentFromStorage }

func secSinceEpoch() int64 { return time.Now().Unix() }

func newChannelID() string { return uuid.NewString() }

// HandleClientFrame processes exactly one client frame and returns the
// outbound messages it produces. Frames are processed strictly one at a
// time by the owning goroutine (spec.md §4.1.6: "these operations are
// serialized per connection").
func (c *Client) HandleClientFrame(ctx context.Context, frame model.ClientFrame) ([]model.ServerMessage, error) {
	switch f := frame.(type) {
	case model.RegisterFrame:
		return c.onRegister(ctx, f)
	case model.UnregisterFrame:
		return c.onUnregister(ctx, f)
	case model.AckFrame:
		return c.onAck(ctx, f)
	case model.NackFrame:
		c.onNack(f)
		return nil, nil
	case model.PingFrame:
		return []model.ServerMessage{model.PingResponse{}}, nil
	default:
		return nil, &ErrInvalidFrame{Reason: "unrecognized client frame"}
	}
}

// HandleServerSignal processes one signal from the notification router. If
// the connection is draining (Shutdown has been called but flush hasn't
// finished), signals are handled by onServerSignalDuringShutdown
// instead — see shutdown.go.
func (c *Client) HandleServerSignal(ctx context.Context, sig model.ServerSignal) ([]model.ServerMessage, error) {
	if c.shuttingDown {
		c.onServerSignalDuringShutdown(sig)
		return nil, nil
	}
	switch s := sig.(type) {
	case model.CheckStorageSignal:
		return c.checkStorage(ctx)
	case model.NotificationSignal:
		msg, err := c.notif(s.Notif)
		if err != nil {
			return nil, err
		}
		return []model.ServerMessage{msg}, nil
	case model.DisconnectSignal:
		return nil, ErrGhost
	default:
		return nil, &ErrInternal{Msg: "unrecognized server signal"}
	}
}
