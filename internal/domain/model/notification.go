// Package model defines the value types shared by the client state machine,
// the notification router, and the storage driver.
package model

import "strconv"

// Notification is a single push message bound for one (uaid, channel_id).
//
// Topic messages and timestamp-ordered messages share this type but are
// mutually exclusive in how they're addressed in storage: a topic message
// is keyed by (uaid, channel_id, topic) and overwrites any prior row with
// the same key; a non-topic message is keyed by (uaid, channel_id,
// sortkey_timestamp) and is never overwritten. See RowKey.
type Notification struct {
	ChannelID        string
	Version          string
	TTL              int64
	Topic            string
	Timestamp        int64
	SortKeyTimestamp *int64
	Data             []byte
	Headers          map[string]string
}

// Expired reports whether the notification's TTL has lapsed as of now
// (seconds since epoch).
func (n Notification) Expired(now int64) bool {
	return n.Timestamp+n.TTL < now
}

// Clone returns a value copy safe to hand to a different owner (the direct
// delivery path clones before pushing onto unacked_direct_notifs so that a
// later mutation of n by the caller can't corrupt state already handed to
// the client).
func (n Notification) Clone() Notification {
	clone := n
	if n.SortKeyTimestamp != nil {
		ts := *n.SortKeyTimestamp
		clone.SortKeyTimestamp = &ts
	}
	if n.Data != nil {
		clone.Data = append([]byte(nil), n.Data...)
	}
	if n.Headers != nil {
		clone.Headers = make(map[string]string, len(n.Headers))
		for k, v := range n.Headers {
			clone.Headers[k] = v
		}
	}
	return clone
}

// rowKeySep separates the key components below. Channel ids are
// client-supplied or server-generated UUIDs and topics are caller-supplied
// short strings;
// neither is expected to contain a NUL byte, but the separator is chosen
// specifically so a collision would require one to.
const rowKeySep = "\x00"

// RowKey returns the storage row key this notification is addressed by,
// per spec.md §6 ("key encodes uaid and either topic or
// sortkey_timestamp") — uaid is carried separately on every SD call, so
// this only needs to encode the rest. A topic message is keyed by
// (channel_id, topic), so a repeat write on the same channel's topic
// overwrites the prior row without colliding with another channel using
// the same topic string. A non-topic message is keyed by (channel_id,
// sortkey_timestamp), so two messages queued on the same channel while
// the user is offline never collide.
func (n Notification) RowKey() string {
	if n.IsTopic() {
		return n.ChannelID + rowKeySep + "topic" + rowKeySep + n.Topic
	}
	var ts int64
	if n.SortKeyTimestamp != nil {
		ts = *n.SortKeyTimestamp
	}
	return n.ChannelID + rowKeySep + "ts" + rowKeySep + strconv.FormatInt(ts, 10)
}

// IsTopic reports whether this notification is deduplicated by topic rather
// than by sortkey_timestamp.
func (n Notification) IsTopic() bool {
	return n.Topic != ""
}
