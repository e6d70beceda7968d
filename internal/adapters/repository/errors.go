package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound       = errors.New("record not found")
	ErrExists         = errors.New("record already exists")
	ErrClosed         = errors.New("store closed")
	ErrKindMismatch   = errors.New("record kind does not match collection")
	ErrImmutableField = errors.New("field cannot be updated")
)
