// Package registration exchanges a captured authorization code for a device
// registration: the ADP token and RSA key used to sign API requests, the
// bearer tokens, website cookies and the device/customer info extensions.
//
// The call is made once per sign-in and is never retried.
package registration
