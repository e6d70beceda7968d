package service

import "errors"

// Sentinel errors returned by Service operations.
var (
	ErrNotStarted        = errors.New("service not started")
	ErrNoSession         = errors.New("member is not signed in")
	ErrVisitorRestricted = errors.New("visitors cannot log impact events")
	ErrEmptyField        = errors.New("required field is empty")
	ErrUnknownItem       = errors.New("item not found")
	ErrItemPending       = errors.New("item is still being published")
	ErrNothingToRetry    = errors.New("item has no failed publish to retry")
	ErrBackpressure      = errors.New("too many pending writes, try again")
)
