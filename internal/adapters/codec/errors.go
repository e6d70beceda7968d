package codec

import "errors"

// Sentinel errors for record decoding.
var (
	ErrInvalidRecord     = errors.New("invalid record")
	ErrUnknownCollection = errors.New("unknown collection")
)
