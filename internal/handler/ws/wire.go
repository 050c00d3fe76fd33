package ws

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/webitel/push-connect-service/internal/domain/model"
)

// wireFrame is the on-the-wire shape of every client frame: a
// lowercase-discriminated JSON object, per spec.md §6.
type wireFrame struct {
	MessageType string `json:"messageType"`

	// hello
	UAID       string            `json:"uaid,omitempty"`
	ChannelIDs []string          `json:"channelIDs,omitempty"`
	UseWebPush bool              `json:"use_webpush,omitempty"`
	Broadcasts map[string]string `json:"broadcasts,omitempty"`

	// register / unregister
	ChannelID string `json:"channelID,omitempty"`
	Key       string `json:"key,omitempty"`
	Code      int    `json:"code,omitempty"`

	// ack
	Updates []wireAckUpdate `json:"updates,omitempty"`

	// nack / notification
	Version string `json:"version,omitempty"`

	// notification (server -> client only, but shares the struct)
	TTL       int64             `json:"ttl,omitempty"`
	Data      string            `json:"data,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
	Topic     string            `json:"topic,omitempty"`
	Timestamp int64             `json:"timestamp,omitempty"`

	// responses
	Status       int    `json:"status,omitempty"`
	PushEndpoint string `json:"pushEndpoint,omitempty"`
	Reason       string `json:"reason,omitempty"`
}

type wireAckUpdate struct {
	ChannelID string `json:"channelID"`
	Version   string `json:"version"`
	Code      int    `json:"code,omitempty"`
}

// decodeClientFrame parses one inbound WS text message into the model
// type the CSM expects.
func decodeClientFrame(raw []byte) (model.ClientFrame, error) {
	var w wireFrame
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("ws: malformed frame: %w", err)
	}
	switch w.MessageType {
	case "hello":
		return model.HelloFrame{UAID: w.UAID, ChannelIDs: w.ChannelIDs, UseWebPush: w.UseWebPush, Broadcasts: w.Broadcasts}, nil
	case "register":
		return model.RegisterFrame{ChannelID: w.ChannelID, Key: w.Key}, nil
	case "unregister":
		return model.UnregisterFrame{ChannelID: w.ChannelID, Code: w.Code}, nil
	case "ack":
		updates := make([]model.AckUpdate, 0, len(w.Updates))
		for _, u := range w.Updates {
			updates = append(updates, model.AckUpdate{ChannelID: u.ChannelID, Version: u.Version, Code: u.Code})
		}
		return model.AckFrame{Updates: updates}, nil
	case "nack":
		return model.NackFrame{Version: w.Version, Code: w.Code}, nil
	case "ping":
		return model.PingFrame{}, nil
	default:
		return nil, fmt.Errorf("ws: unrecognized messageType %q", w.MessageType)
	}
}

// encodeServerMessage renders an outbound model.ServerMessage as the JSON
// the client expects.
func encodeServerMessage(msg model.ServerMessage) ([]byte, error) {
	switch m := msg.(type) {
	case model.HelloResponse:
		return json.Marshal(wireFrame{
			MessageType: "hello",
			Status:      m.Status,
			UAID:        m.UAID,
			UseWebPush:  m.UseWebPush,
			Broadcasts:  m.Broadcasts,
		})
	case model.RegisterResponse:
		return json.Marshal(wireFrame{
			MessageType:  "register",
			Status:       m.Status,
			ChannelID:    m.ChannelID,
			PushEndpoint: m.PushEndpoint,
			Reason:       m.Reason,
		})
	case model.UnregisterResponse:
		return json.Marshal(wireFrame{
			MessageType: "unregister",
			Status:      m.Status,
			ChannelID:   m.ChannelID,
		})
	case model.NotificationMessage:
		return json.Marshal(wireFrame{
			MessageType: "notification",
			ChannelID:   m.Notif.ChannelID,
			Version:     m.Notif.Version,
			TTL:         m.Notif.TTL,
			Data:        base64.URLEncoding.EncodeToString(m.Notif.Data),
			Headers:     m.Notif.Headers,
			Topic:       m.Notif.Topic,
			Timestamp:   m.Notif.Timestamp,
		})
	case model.PingResponse:
		return json.Marshal(wireFrame{})
	default:
		return nil, fmt.Errorf("ws: unrecognized outbound message %T", msg)
	}
}
