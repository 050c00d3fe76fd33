package model

import "github.com/google/uuid"

// UserRecord is the row-store record keyed by uaid. ConnectedAt is the
// arbitration timestamp: of any two records racing to own a uaid, the one
// with the larger ConnectedAt wins.
type UserRecord struct {
	UAID        uuid.UUID
	ConnectedAt int64
	RouterType  string
	CurrentMonth string
	LastConnect int64
}
