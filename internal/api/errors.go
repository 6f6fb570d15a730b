package api

import (
	"errors"
	"fmt"
	"net/http"

	textutil "github.com/cmarkh/audible-api/pkg/strings"
)

// StatusError is returned for a non-2xx API response.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, textutil.Truncate(e.Body, textutil.MaxErrorBodyLen))
}

// IsUnauthorized reports whether err is a 401 or 403 from the API, which
// usually means the device registration was revoked.
//
// Example:
//
//	if err := client.Get(ctx, "/1.0/library", &out); api.IsUnauthorized(err) {
//	    // sign in again
//	}
func IsUnauthorized(err error) bool {
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		return false
	}
	return statusErr.StatusCode == http.StatusUnauthorized || statusErr.StatusCode == http.StatusForbidden
}
