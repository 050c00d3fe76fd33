package model

// ServerSignal is a message the router (or the transport layer, for
// Disconnect) injects into a CSM's inbound channel. It is distinct from a
// ClientFrame: signals originate server-side, frames originate from the
// connected client.
type ServerSignal interface {
	isServerSignal()
}

// CheckStorageSignal requests a storage sweep. Sent once at connection
// start (after hello) and whenever the router believes new messages may be
// waiting (e.g. an application server pushed while the CSM's inbound
// channel was briefly full).
type CheckStorageSignal struct{}

func (CheckStorageSignal) isServerSignal() {}

// NotificationSignal carries a single notification for direct delivery.
type NotificationSignal struct {
	Notif Notification
}

func (NotificationSignal) isServerSignal() {}

// DisconnectSignal tells the CSM a newer session has taken ownership of
// this uaid (a "ghost" condition) and it must shut down as if the client
// itself had closed the transport.
type DisconnectSignal struct{}

func (DisconnectSignal) isServerSignal() {}
