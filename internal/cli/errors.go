package cli

import (
	"errors"
	"fmt"

	"github.com/cmarkh/audible-api/internal/api"
	"github.com/cmarkh/audible-api/internal/capture"
	"github.com/cmarkh/audible-api/internal/registration"
	"github.com/cmarkh/audible-api/internal/session"
	"github.com/cmarkh/audible-api/pkg/oauth"
	"github.com/cmarkh/audible-api/pkg/signing"
)

// AuthRequiredError indicates no usable session exists.
type AuthRequiredError struct {
	// Location is where the session was looked for.
	Location string
	Reason   error
}

// Error returns a user-friendly error message with actionable guidance.
func (e *AuthRequiredError) Error() string {
	return fmt.Sprintf(`Not signed in (no session at %s)

To sign in, run:
  audible auth login`, e.Location)
}

func (e *AuthRequiredError) Unwrap() error {
	return e.Reason
}

// Is allows errors.Is() to work with wrapped errors.
func (e *AuthRequiredError) Is(target error) bool {
	_, ok := target.(*AuthRequiredError)
	return ok
}

// AuthExpiredError indicates the API rejected the stored device
// registration.
type AuthExpiredError struct {
	Location string
	Reason   error
}

// Error returns a user-friendly error message with actionable guidance.
func (e *AuthExpiredError) Error() string {
	return fmt.Sprintf(`The device registration in %s was rejected: %v

To register again, run:
  audible auth login`, e.Location, e.Reason)
}

func (e *AuthExpiredError) Unwrap() error {
	return e.Reason
}

// Is allows errors.Is() to work with wrapped errors.
func (e *AuthExpiredError) Is(target error) bool {
	_, ok := target.(*AuthExpiredError)
	return ok
}

// AuthFailedError indicates the sign-in itself failed.
type AuthFailedError struct {
	CountryCode string
	Reason      error
}

// Error returns a user-friendly error message with actionable guidance.
func (e *AuthFailedError) Error() string {
	return fmt.Sprintf(`Sign-in to Audible %s failed: %v

To retry, run:
  audible auth login --country %s`, e.CountryCode, e.Reason, e.CountryCode)
}

// Unwrap returns the underlying error.
func (e *AuthFailedError) Unwrap() error {
	return e.Reason
}

// Is allows errors.Is() to work with wrapped errors.
func (e *AuthFailedError) Is(target error) bool {
	_, ok := target.(*AuthFailedError)
	return ok
}

// SessionError classifies an error from loading or using a stored session.
// Errors that are not authentication related are returned unchanged.
func SessionError(err error, location string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, session.ErrPersistence), errors.Is(err, signing.ErrInvalidPrivateKey):
		return &AuthRequiredError{Location: location, Reason: err}
	case api.IsUnauthorized(err):
		return &AuthExpiredError{Location: location, Reason: err}
	default:
		return err
	}
}

// SignInError classifies an error returned by a sign-in.
func SignInError(err error, countryCode string) error {
	var failure capture.CaptureFailure
	switch {
	case err == nil:
		return nil
	case errors.Is(err, registration.ErrRegistrationFailed),
		errors.Is(err, registration.ErrMalformedResponse),
		errors.Is(err, oauth.ErrAuthorizationCodeMissing),
		errors.Is(err, capture.ErrDeviceNotFound),
		errors.Is(err, capture.ErrRegistrationMissing),
		errors.As(err, &failure):
		return &AuthFailedError{CountryCode: countryCode, Reason: err}
	default:
		return err
	}
}
