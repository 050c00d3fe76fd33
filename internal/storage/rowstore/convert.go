package rowstore

import (
	"encoding/binary"
	"fmt"

	"github.com/webitel/push-connect-service/internal/domain/model"
	"github.com/webitel/push-connect-service/internal/storage"
)

const (
	familyNotif = "n"
	familyHdr   = "h"
	familySub   = "s"

	qualChannelID = "channel_id"
	qualVersion   = "version"
	qualTTL       = "ttl"
	qualTopic     = "topic"
	qualTimestamp = "timestamp"
	qualSortKey   = "sortkey_timestamp"
	qualData      = "data"

	// rowKeySep matches model.Notification's own separator choice.
	rowKeySep = "\x00"

	// subRowPrefix distinguishes a subscription row's key from a
	// notification row's: notification keys always start with the
	// channel id itself, so a literal prefix here can only collide with a
	// channel id of "sub", the same acceptable edge RowKey already
	// carries for topic strings.
	subRowPrefix = "sub" + rowKeySep
)

// notificationToRow flattens a Notification into the family/qualifier
// shape a real BigTable-like row store would use, the way
// bigtable_client translates domain objects into Row::add_cells calls.
// The row key is n.RowKey() (channel_id+topic, or channel_id+sortkey_
// timestamp) rather than the bare channel id, so two notifications on
// the same channel with different topics or sortkey_timestamps land on
// distinct rows instead of overwriting each other; channel_id is carried
// as its own cell since it can no longer be recovered from the row key.
func notificationToRow(uaid string, n model.Notification) Row {
	row := Row{RowKey: n.RowKey()}
	row.AddCells(familyNotif,
		Cell{Qualifier: qualChannelID, Value: []byte(n.ChannelID)},
		Cell{Qualifier: qualVersion, Value: []byte(n.Version)},
		Cell{Qualifier: qualTTL, Value: encodeInt64(n.TTL)},
		Cell{Qualifier: qualTopic, Value: []byte(n.Topic)},
		Cell{Qualifier: qualTimestamp, Value: encodeInt64(n.Timestamp)},
		Cell{Qualifier: qualData, Value: n.Data},
	)
	if n.SortKeyTimestamp != nil {
		row.AddCells(familyNotif, Cell{Qualifier: qualSortKey, Value: encodeInt64(*n.SortKeyTimestamp)})
	}
	for k, v := range n.Headers {
		row.AddCells(familyHdr, Cell{Qualifier: k, Value: []byte(v)})
	}
	return row
}

// rowToNotification is the inverse of notificationToRow. An integrity
// error (missing notification family) classifies as storage.KindIntegrity
// so the caller can skip the offending row without failing the whole sweep.
func rowToNotification(row Row) (model.Notification, error) {
	var n model.Notification

	cells := row.Cells[familyNotif]
	if cells == nil {
		return n, storage.NewError(storage.KindIntegrity, "row_to_notification",
			fmt.Errorf("rowstore: row %q missing %q family", row.RowKey, familyNotif))
	}
	for _, c := range cells {
		switch c.Qualifier {
		case qualChannelID:
			n.ChannelID = string(c.Value)
		case qualVersion:
			n.Version = string(c.Value)
		case qualTTL:
			n.TTL = decodeInt64(c.Value)
		case qualTopic:
			n.Topic = string(c.Value)
		case qualTimestamp:
			n.Timestamp = decodeInt64(c.Value)
		case qualSortKey:
			ts := decodeInt64(c.Value)
			n.SortKeyTimestamp = &ts
		case qualData:
			n.Data = c.Value
		}
	}
	if hdrs := row.Cells[familyHdr]; len(hdrs) > 0 {
		n.Headers = make(map[string]string, len(hdrs))
		for _, c := range hdrs {
			n.Headers[c.Qualifier] = string(c.Value)
		}
	}
	return n, nil
}

// subscriptionRowKey is the key for the one-row-per-(uaid, channel_id)
// subscription record spec.md §6 describes; uaid is carried on every SD
// call separately, so only channel_id needs to be encoded here.
func subscriptionRowKey(channelID string) string {
	return subRowPrefix + channelID
}

// subscriptionRow builds the row a Register call persists.
func subscriptionRow(channelID string) Row {
	row := Row{RowKey: subscriptionRowKey(channelID)}
	row.AddCells(familySub, Cell{Qualifier: qualChannelID, Value: []byte(channelID)})
	return row
}

func encodeInt64(v int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}

func decodeInt64(b []byte) int64 {
	if len(b) != 8 {
		return 0
	}
	return int64(binary.BigEndian.Uint64(b))
}
