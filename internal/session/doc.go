// Package session persists the outcome of a sign-in: the locale, the device
// registration and the PKCE material used to obtain it.
//
// The on-disk form is a single JSON document (auth.json) that is rewritten
// wholesale on every save. It holds the device private key, so files are
// written 0600 inside a 0700 directory. A KeyringStore keeps the same document
// in the OS keychain instead.
package session
