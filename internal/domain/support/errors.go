package support

import "errors"

// Sentinel errors for support toggles.
var (
	ErrUnauthenticated = errors.New("support requires a signed-in member")
	ErrSelfSupport     = errors.New("authors may not support their own item")
)
