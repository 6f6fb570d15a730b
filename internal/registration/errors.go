package registration

import (
	"errors"
	"fmt"

	textutil "github.com/cmarkh/audible-api/pkg/strings"
)

var (
	// ErrRegistrationFailed is returned for a non-2xx response from the
	// registration endpoint.
	ErrRegistrationFailed = errors.New("device registration failed")

	// ErrMalformedResponse is returned when a successful response lacks a
	// required token field or carries an unparsable expiry.
	ErrMalformedResponse = errors.New("malformed registration response")
)

// Error carries the endpoint's response for a failed registration.
type Error struct {
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: status %d: %s", ErrRegistrationFailed, e.StatusCode, textutil.Truncate(e.Body, textutil.MaxErrorBodyLen))
}

// Unwrap lets errors.Is match ErrRegistrationFailed.
func (e *Error) Unwrap() error {
	return ErrRegistrationFailed
}
