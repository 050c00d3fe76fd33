package rowstore

// Wire request/response pairs for the row store's gRPC surface. These are
// plain Go structs carried over the gob codec (codec.go) rather than
// generated protobuf types: the corpus example this service is grounded
// on depends on a service-specific buf-generated package we have no
// schema to regenerate here. Using grpc's public ForceCodec extension
// point keeps the wire path honest — a real google.golang.org/grpc
// ClientConn, a real unary Invoke — without fabricating protoc-gen-go
// output (see DESIGN.md).

// FetchRequest asks for messages for uaid, optionally only those after
// afterTimestamp (nil means "from the start").
type FetchRequest struct {
	Table          string
	UAID           string
	AfterTimestamp *int64
	Limit          int32
	Topic          bool
}

// FetchResponse carries the page of rows plus the cursor timestamp to
// resume from on the next page.
type FetchResponse struct {
	Rows      []Row
	Timestamp *int64
}

// IncrementRequest commits the high-water mark for uaid.
type IncrementRequest struct {
	Table     string
	UAID      string
	Timestamp int64
}

// RemoveRequest deletes a single row by key.
type RemoveRequest struct {
	Table  string
	UAID   string
	RowKey string
}

// StoreRequest upserts a single row.
type StoreRequest struct {
	Table string
	UAID  string
	Row   Row
}

// StoreSubscriptionRequest upserts the one-row-per-(uaid, channel_id)
// subscription record a successful Register allocates.
type StoreSubscriptionRequest struct {
	Table string
	UAID  string
	Row   Row
}

// RemoveSubscriptionRequest deletes a subscription row by channel id.
type RemoveSubscriptionRequest struct {
	Table     string
	UAID      string
	ChannelID string
}

// Empty is returned by RPCs that have nothing to say beyond success.
type Empty struct{}

// HealthRequest probes the health of table.
type HealthRequest struct {
	Table string
}

// HealthResponse reports whether the row store answered.
type HealthResponse struct {
	OK bool
}

const (
	methodFetch              = "/rowstore.RowStore/Fetch"
	methodIncrement          = "/rowstore.RowStore/IncrementStorage"
	methodRemove             = "/rowstore.RowStore/RemoveRow"
	methodStore              = "/rowstore.RowStore/StoreRow"
	methodStoreSubscription  = "/rowstore.RowStore/StoreSubscription"
	methodRemoveSubscription = "/rowstore.RowStore/RemoveSubscription"
	methodHealth             = "/rowstore.RowStore/HealthCheck"
)
