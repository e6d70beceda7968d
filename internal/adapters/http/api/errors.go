package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/vibeteen/mural/internal/adapters/repository"
	service "github.com/vibeteen/mural/internal/app"
	"github.com/vibeteen/mural/internal/domain/model"
	"github.com/vibeteen/mural/internal/domain/support"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest    = errors.New("bad request")
	ErrMissingMember = errors.New("missing X-Member-ID header")
	ErrRateLimited   = errors.New("rate limit exceeded")
)

// Wrap prefixes err with the operation name.
func Wrap(op string, err error) error {
	return fmt.Errorf("%s: %w", op, err)
}

// NewKind reports an error of the given kind raised by op.
func NewKind(op string, kind error) error {
	return fmt.Errorf("%s: %w", op, kind)
}

// WrapKind reports cause as an error of the given kind raised by op.
func WrapKind(op string, kind, cause error) error {
	return fmt.Errorf("%s: %w: %w", op, kind, cause)
}

// statusFor maps domain and service errors onto an HTTP status and error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrMissingMember),
		errors.Is(err, service.ErrNoSession),
		errors.Is(err, support.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, service.ErrVisitorRestricted),
		errors.Is(err, support.ErrSelfSupport):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, service.ErrEmptyField),
		errors.Is(err, model.ErrInvalidKind),
		errors.Is(err, model.ErrInvalidCategory):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, service.ErrUnknownItem),
		errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrItemPending),
		errors.Is(err, service.ErrNothingToRetry):
		return http.StatusConflict, "conflict"
	case errors.Is(err, service.ErrBackpressure):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeFailure renders err with the status statusFor picks.
func writeFailure(w http.ResponseWriter, op string, err error) {
	status, code := statusFor(err)
	writeError(w, status, code, Wrap(op, err))
}
