package grpcintrospect

// StatsRequest carries no fields; present for symmetry with the other
// request/response pairs and to leave room for a future scoped query.
type StatsRequest struct{}

// StatsResponse reports this node's live connection and pool occupancy,
// the Go analogue of a deadpool Status plus a connected-uaid count.
type StatsResponse struct {
	ConnectedUAIDs int
	PoolMaxSize    int
	PoolInUse      int
	PoolIdle       int
	RowStoreHealth bool
}
