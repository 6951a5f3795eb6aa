package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/samcharles93/devplane/internal/devctx"
)

var ErrInvalidRequest = errors.New("invalid_request")

// paramError reports a path parameter that could not be parsed.
type paramError struct {
	name string
	raw  string
}

func (e *paramError) Error() string {
	return fmt.Sprintf("%s must be a non-negative integer, got %q", e.name, e.raw)
}

func (e *paramError) Unwrap() error { return ErrInvalidRequest }

// statusFor maps a plane error to an HTTP status and error type.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, devctx.ErrInvalidArgument):
		return http.StatusBadRequest, "invalid_request_error"
	case errors.Is(err, devctx.ErrInvalidDevice):
		return http.StatusNotFound, "not_found_error"
	case errors.Is(err, devctx.ErrUnsupportedCapability):
		return http.StatusUnprocessableEntity, "unsupported_capability_error"
	case errors.Is(err, devctx.ErrClosed):
		return http.StatusServiceUnavailable, "unavailable_error"
	default:
		return http.StatusInternalServerError, "device_error"
	}
}
