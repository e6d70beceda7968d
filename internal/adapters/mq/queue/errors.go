package queue

import "errors"

// Sentinel kinds for outbox errors.
var (
	// ErrStopped is reported to a write's Done callback when the outbox shut
	// down before the write reached the store.
	ErrStopped = errors.New("outbox stopped")
)
