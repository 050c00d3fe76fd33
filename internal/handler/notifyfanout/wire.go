package notifyfanout

import "encoding/json"

// wakeup is the payload published to the fanout exchange. It intentionally
// carries no notification data: the row store is the source of truth, and
// every node already knows how to pull a waiting notification for a uaid it
// owns. Keeping this envelope tiny means a burst of deliveries to one
// disconnected uaid costs one row-store write, not N AMQP payloads.
type wakeup struct {
	UAID string `json:"uaid"`
}

func encodeWakeup(uaid string) ([]byte, error) {
	return json.Marshal(wakeup{UAID: uaid})
}

func decodeWakeup(payload []byte) (string, error) {
	var w wakeup
	if err := json.Unmarshal(payload, &w); err != nil {
		return "", err
	}
	return w.UAID, nil
}
