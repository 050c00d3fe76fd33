package csm

import "errors"

// ErrGhost is returned when a DisconnectSignal arrives: a newer session has
// taken over this uaid and the connection must close as if the client
// itself had disconnected.
var ErrGhost = errors.New("csm: ghost session, newer owner took over")

// ErrInternal wraps an invariant violation (e.g. increment_storage called
// with no high-water mark set). The transport layer must close the
// connection with an internal close code on this error; per spec.md §7 the
// next reconnect recovers, so this is never fatal to the process.
type ErrInternal struct {
	Msg string
}

func (e *ErrInternal) Error() string { return "csm: internal: " + e.Msg }

// ErrInvalidFrame is returned for a client frame that's unknown or missing
// required fields. The transport layer responds with an error status if
// the frame type has a reply, else closes with a protocol-error code.
type ErrInvalidFrame struct {
	Reason string
}

func (e *ErrInvalidFrame) Error() string { return "csm: invalid frame: " + e.Reason }
