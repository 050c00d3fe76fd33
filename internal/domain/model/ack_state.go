package model

// AckState holds the per-connection record of what has been sent to the
// client but not yet acknowledged. It is exclusive to the owning CSM
// goroutine — never shared, never locked.
type AckState struct {
	// UnackedDirectNotifs are notifications handed straight to the client
	// since connect, bypassing storage, that haven't been acked yet.
	UnackedDirectNotifs []Notification

	// UnackedStoredNotifs are notifications paged in from storage during
	// this connection that haven't been acked yet.
	UnackedStoredNotifs []Notification

	// UnackedStoredHighest is the high-water sortkey_timestamp: once
	// everything at or below it is acked, it may be committed to storage
	// as "consumed up to here". Nil means no timestamp messages have been
	// seen yet this connection.
	UnackedStoredHighest *int64
}

// PushDirect appends a notification to the direct queue.
func (a *AckState) PushDirect(n Notification) {
	a.UnackedDirectNotifs = append(a.UnackedDirectNotifs, n)
}

// PushStored appends notifications paged from storage.
func (a *AckState) PushStored(ns ...Notification) {
	a.UnackedStoredNotifs = append(a.UnackedStoredNotifs, ns...)
}

// Empty reports whether both unacked queues are drained.
func (a *AckState) Empty() bool {
	return len(a.UnackedDirectNotifs) == 0 && len(a.UnackedStoredNotifs) == 0
}

// AckResult describes what acking a single (channelID, version) pair found.
type AckResult struct {
	Matched    bool
	FromStored bool
	Notif      Notification
}

// Ack removes the first direct-queue match or, if there is none, the first
// stored-queue match, for the given channelID/version pair. Acking an entry that isn't
// present (already removed by a prior ack of the same pair) is a no-op —
// this is what makes repeated acks idempotent.
func (a *AckState) Ack(channelID, version string) AckResult {
	if idx := indexOfNotif(a.UnackedDirectNotifs, channelID, version); idx >= 0 {
		n := a.UnackedDirectNotifs[idx]
		a.UnackedDirectNotifs = append(a.UnackedDirectNotifs[:idx], a.UnackedDirectNotifs[idx+1:]...)
		return AckResult{Matched: true, Notif: n}
	}
	if idx := indexOfNotif(a.UnackedStoredNotifs, channelID, version); idx >= 0 {
		n := a.UnackedStoredNotifs[idx]
		a.UnackedStoredNotifs = append(a.UnackedStoredNotifs[:idx], a.UnackedStoredNotifs[idx+1:]...)
		return AckResult{Matched: true, FromStored: true, Notif: n}
	}
	return AckResult{}
}

func indexOfNotif(ns []Notification, channelID, version string) int {
	for i, n := range ns {
		if n.ChannelID == channelID && n.Version == version {
			return i
		}
	}
	return -1
}
