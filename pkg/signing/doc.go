// Package signing produces the per-request signature headers that the
// Audible API requires on every call made with a device registration.
//
// The canonical string is
//
//	METHOD \n PATH \n TIMESTAMP \n BODY \n ADP_TOKEN
//
// hashed with SHA-256 and signed with the device's RSA key using PKCS#1 v1.5.
// The timestamp is an RFC 3339 UTC time with a literal "Z" appended after the
// "+00:00" offset; the vendor's verifier expects exactly that shape.
//
// A Signer holds only immutable state and is safe for concurrent use.
package signing
