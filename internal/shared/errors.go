package shared

import (
	"errors"
	"fmt"
)

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrMissingCode      = fmt.Errorf("missing authorization code")
	ErrInvalidState     = fmt.Errorf("invalid state parameter")
	ErrExchangeFailed   = fmt.Errorf("authorization code exchange failed")
	ErrRefreshFailed    = fmt.Errorf("token refresh failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrSessionNotFound  = fmt.Errorf("session not found")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// Dispatch and upstream errors
	ErrUnknownAction          = fmt.Errorf("unknown action")
	ErrUpstreamRejected       = fmt.Errorf("upstream rejected request")
	ErrVolumeStateUnavailable = fmt.Errorf("volume state unavailable")
	ErrAPIRequest             = fmt.Errorf("API request failed")
	ErrServiceUnavailable     = fmt.Errorf("service unavailable")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
)

// maxBodyLen bounds how much of an upstream body is kept for diagnostics.
const maxBodyLen = 512

// UpstreamError records a non-2xx response from Spotify.
//
// Kind is one of [ErrUpstreamRejected], [ErrExchangeFailed] or [ErrRefreshFailed] so callers can match with [errors.Is].
type UpstreamError struct {
	Kind   error
	Status int
	Body   string
}

// NewUpstreamError builds an [UpstreamError], truncating the body.
func NewUpstreamError(kind error, status int, body []byte) *UpstreamError {
	b := string(body)
	if len(b) > maxBodyLen {
		b = b[:maxBodyLen] + "..."
	}
	return &UpstreamError{Kind: kind, Status: status, Body: b}
}

func (e *UpstreamError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%v: status %d", e.Kind, e.Status)
	}
	return fmt.Sprintf("%v: status %d, body: %s", e.Kind, e.Status, e.Body)
}

func (e *UpstreamError) Unwrap() error {
	return e.Kind
}

// StatusOf returns the upstream HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Status
	}
	return 0
}

// IsAuthError reports whether err should be surfaced to callers as 401.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrNotAuthenticated) ||
		errors.Is(err, ErrRefreshFailed) ||
		errors.Is(err, ErrSessionNotFound)
}
