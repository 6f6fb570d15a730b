// Package api is a small signed JSON client for the Audible API.
//
// Every request is signed with the device key from the active session (see
// pkg/signing) and sent to https://api.audible.<domain>. Endpoint-specific
// request and response types are left to callers; Do marshals any body and
// decodes into any target.
//
// The client can follow a session file: when `audible auth login` rewrites
// the file, WatchSession swaps in the new signer without a restart.
package api
