// Package ws hosts the WebSocket transport for the client state machine:
// upgrade, hello handshake, frame decode/encode loop. Grounded on the
// teacher's WSHandler.ServeHTTP (upgrade, subscribe, pump loop), extended
// from a one-way event pump into the full bidirectional protocol spec.md
// §6 describes.
package ws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/webitel/push-connect-service/internal/domain/csm"
	"github.com/webitel/push-connect-service/internal/domain/model"
	"github.com/webitel/push-connect-service/internal/domain/router"
	"github.com/webitel/push-connect-service/internal/storage"
)

const (
	mailboxSize  = 32
	helloTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
)

// Handler upgrades incoming requests and drives one CSM per connection.
type Handler struct {
	logger   *slog.Logger
	driver   storage.Driver
	registry router.Registry
	endpoint Endpoint
	metrics  csm.Recorder
	csmCfg   csm.Config
	table    string
	upgrader websocket.Upgrader
}

// New builds a Handler. metrics may be nil, in which case csm.NoopRecorder
// is used. table names the row store table probed during the hello
// handshake's readiness check.
func New(logger *slog.Logger, driver storage.Driver, registry router.Registry, endpoint Endpoint, metrics csm.Recorder, csmCfg csm.Config, table string) *Handler {
	if metrics == nil {
		metrics = csm.NoopRecorder
	}
	return &Handler{
		logger:   logger,
		driver:   driver,
		registry: registry,
		endpoint: endpoint,
		metrics:  metrics,
		csmCfg:   csmCfg,
		table:    table,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws upgrade failed", slog.Any("err", err))
		return
	}
	defer conn.Close()

	uaOS := bucketOS(r.Header.Get("User-Agent"))

	uaid, err := h.handshake(conn)
	if err != nil {
		h.logger.Warn("hello handshake failed", slog.Any("err", err))
		return
	}

	connectedAt := time.Now().UnixNano()
	client := csm.New(uaid, connectedAt, h.csmCfg, h.driver, h.registry, h.endpoint, h.metrics, h.logger, uaOS)

	signals := make(chan model.ServerSignal, mailboxSize)
	if outcome := h.registry.Register(uaid, signals, connectedAt); outcome == router.Replaced {
		h.logger.Info("lost registration race, closing", slog.String("uaid", uaid))
		h.writeClose(conn, websocket.ClosePolicyViolation, "session superseded")
		return
	}

	frames := make(chan model.ClientFrame, mailboxSize)
	readErrs := make(chan error, 1)
	go h.readPump(conn, frames, readErrs)

	ctx := r.Context()
	initial, err := client.HandleServerSignal(ctx, model.CheckStorageSignal{})
	if err != nil {
		h.logger.Warn("initial storage sweep failed", slog.Any("err", err))
	}
	for _, msg := range initial {
		if werr := h.writeMessage(conn, msg); werr != nil {
			h.logger.Warn("write failed during initial sweep", slog.Any("err", werr))
			break
		}
	}

	h.pump(ctx, conn, client, frames, signals, readErrs)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Shutdown(shutdownCtx); err != nil {
		h.logger.Warn("clean shutdown failed", slog.Any("err", err))
	}
}

// handshake reads exactly one frame, which must be "hello", and replies.
// Per spec.md §6 the reply status is 200 on success, 401 on an invalid
// uaid, or 503 if the row store isn't reachable to serve this session; on
// any non-200 status the reply frame is still sent (so the client gets a
// status, per §7's "respond with an error status in the reply frame if
// one exists") before the connection is closed.
func (h *Handler) handshake(conn *websocket.Conn) (string, error) {
	conn.SetReadDeadline(time.Now().Add(helloTimeout))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		return "", err
	}
	conn.SetReadDeadline(time.Time{})

	frame, err := decodeClientFrame(raw)
	if err != nil {
		h.writeClose(conn, websocket.CloseProtocolError, "expected hello")
		return "", err
	}
	hello, ok := frame.(model.HelloFrame)
	if !ok {
		h.writeClose(conn, websocket.CloseProtocolError, "expected hello")
		return "", errors.New("ws: first frame was not hello")
	}

	uaid := hello.UAID
	status := model.StatusOK
	if uaid == "" {
		uaid = uuid.NewString()
	} else if _, parseErr := uuid.Parse(uaid); parseErr != nil {
		status = model.StatusUnauthorized
	}
	if status == model.StatusOK && !h.driver.HealthCheck(context.Background(), h.table) {
		status = model.StatusServiceUnavailable
	}

	data, err := encodeServerMessage(model.HelloResponse{
		Status:     status,
		UAID:       uaid,
		UseWebPush: true,
		Broadcasts: hello.Broadcasts,
	})
	if err != nil {
		return "", err
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return "", err
	}
	if status != model.StatusOK {
		h.writeClose(conn, websocket.ClosePolicyViolation, "hello rejected")
		return "", fmt.Errorf("ws: hello rejected with status %d", status)
	}
	return uaid, nil
}

// errProtocolViolation signals readPump hit a frame decodeClientFrame
// rejected — unknown messageType or a malformed required field. Per
// spec.md §7 ("invalid client frame ... else close with a protocol-error
// close code") this ends the connection rather than being silently
// dropped, since an unrecognized frame type has no reply frame to carry
// an error status in.
var errProtocolViolation = errors.New("ws: protocol violation")

// readPump decodes inbound frames off the connection and forwards them,
// running on its own goroutine so the pump loop can select over both
// client frames and router signals without blocking on network reads.
func (h *Handler) readPump(conn *websocket.Conn, frames chan<- model.ClientFrame, errs chan<- error) {
	defer close(frames)
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			errs <- err
			return
		}
		frame, err := decodeClientFrame(raw)
		if err != nil {
			h.logger.Debug("rejecting malformed client frame", slog.Any("err", err))
			errs <- errProtocolViolation
			return
		}
		frames <- frame
	}
}

// pump is the connection's single-threaded owner of CSM state: every
// frame and signal is handled strictly one at a time here, matching
// spec.md §5's "CSM state: exclusive to its owning task; no locking."
func (h *Handler) pump(ctx context.Context, conn *websocket.Conn, client *csm.Client, frames <-chan model.ClientFrame, signals <-chan model.ServerSignal, readErrs <-chan error) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	closeFor := func(err error) {
		var internal *csm.ErrInternal
		var invalid *csm.ErrInvalidFrame
		var quota *csm.ErrQuotaExceeded
		switch {
		case errors.As(err, &internal):
			h.writeClose(conn, websocket.CloseInternalServerErr, "internal error")
		case errors.As(err, &invalid):
			h.writeClose(conn, websocket.CloseProtocolError, "invalid frame")
		case errors.As(err, &quota):
			h.writeClose(conn, websocket.ClosePolicyViolation, "msg_limit exceeded")
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case err := <-readErrs:
			if errors.Is(err, errProtocolViolation) {
				h.writeClose(conn, websocket.CloseProtocolError, "invalid frame")
			} else if err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("ws read ended", slog.Any("err", err))
			}
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			msgs, err := client.HandleClientFrame(ctx, frame)
			if err != nil {
				h.logger.Warn("client frame handling failed", slog.Any("err", err))
				closeFor(err)
				return
			}
			if !h.writeAll(conn, msgs) {
				return
			}
		case sig := <-signals:
			msgs, err := client.HandleServerSignal(ctx, sig)
			if err != nil {
				if errors.Is(err, csm.ErrGhost) {
					h.writeClose(conn, websocket.ClosePolicyViolation, "session superseded")
				} else {
					h.logger.Warn("server signal handling failed", slog.Any("err", err))
					closeFor(err)
				}
				return
			}
			if !h.writeAll(conn, msgs) {
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Handler) writeAll(conn *websocket.Conn, msgs []model.ServerMessage) bool {
	for _, msg := range msgs {
		if err := h.writeMessage(conn, msg); err != nil {
			h.logger.Warn("ws write failed", slog.Any("err", err))
			return false
		}
	}
	return true
}

func (h *Handler) writeMessage(conn *websocket.Conn, msg model.ServerMessage) error {
	data, err := encodeServerMessage(msg)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (h *Handler) writeClose(conn *websocket.Conn, code int, reason string) {
	deadline := time.Now().Add(time.Second)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
}
