package signing

import "errors"

var (
	// ErrInvalidPrivateKey is returned when the stored device key is not a
	// PEM encoded RSA private key.
	ErrInvalidPrivateKey = errors.New("invalid device private key")

	// ErrSigningFailure is returned when the RSA signing operation fails.
	ErrSigningFailure = errors.New("request signing failed")
)
