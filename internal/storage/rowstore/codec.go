package rowstore

import (
	"github.com/webitel/push-connect-service/internal/rpcenc"
)

// codec is the wire codec for every row store call: gob instead of
// protobuf, since these are plain Go structs, not generated messages.
// Registered globally by rpcenc's init, shared with grpcintrospect.
var codec = rpcenc.Codec
