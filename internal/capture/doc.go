// Package capture obtains an authorization code from a user's browser login.
//
// Two acquirers are provided. TerminalAcquirer opens the vendor login page
// and reads the final redirect URL pasted back into the terminal; it yields
// an authorization grant that the caller registers. ServerAcquirer runs a
// local sign-in server whose capture endpoint registers the device inline
// and hands back the finished registration.
//
// Pending devices and finished registrations live in tables owned by the
// server; entries that are never claimed expire.
package capture
