package model

// Flags track the storage-sweep state machine for one connection.
type Flags struct {
	// IncludeTopic: the next fetch should check the per-topic table.
	IncludeTopic bool
	// CheckStorage: a sweep is pending or in progress.
	CheckStorage bool
	// IncrementStorage: the high-water mark must be committed before the
	// next sweep is allowed to run.
	IncrementStorage bool
}

// Counters track per-connection bookkeeping bounded by configuration.
type Counters struct {
	// SentFromStorage counts stored notifications emitted this
	// connection; the CSM terminates the connection once this exceeds
	// MsgLimit.
	SentFromStorage uint32
}
