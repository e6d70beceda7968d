package model

import "errors"

// Sentinel errors for model validation.
var (
	ErrInvalidKind     = errors.New("invalid action kind")
	ErrInvalidCategory = errors.New("invalid prayer category")
)
