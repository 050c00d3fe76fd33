// Package rpcenc provides a gob-based grpc/encoding.Codec for the
// service's internal gRPC calls, which carry plain Go structs rather than
// generated protobuf messages.
package rpcenc

import (
	"bytes"
	"encoding/gob"

	"google.golang.org/grpc/encoding"
)

type gobCodec struct{}

func (gobCodec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (gobCodec) Unmarshal(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

func (gobCodec) Name() string { return "gob" }

// Codec is registered globally in init so any grpc.ClientConn or
// grpc.Server in the process can select it by content-subtype.
var Codec = gobCodec{}

func init() {
	encoding.RegisterCodec(Codec)
}
