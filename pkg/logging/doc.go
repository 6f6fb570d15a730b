// Package logging provides subsystem-tagged structured logging for the
// audible CLI and its internal packages.
//
// It is a thin layer over log/slog: every record carries a "subsystem"
// attribute so that output from the capture server, the registration client
// and the session store can be told apart.
//
//	logging.InitForCLI(logging.LevelInfo, os.Stderr)
//
//	logging.Info("Capture", "Callback server listening on %s", addr)
//	logging.Debug("Registration", "POST %s", endpoint)
//	logging.Error("Session", err, "Failed to save session to %s", path)
//
// Security-sensitive events go through Audit, which emits a record prefixed
// with SECURITY_AUDIT. Token values, cookies and private keys are never passed
// to any logging function.
package logging
