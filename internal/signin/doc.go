// Package signin drives a complete sign-in: resolve the marketplace, obtain
// an authorization code through a capture.Acquirer, register the device and
// hand back a session.Session ready to persist.
package signin
