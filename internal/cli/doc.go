// Package cli holds helpers shared by the cobra commands: typed
// authentication errors that map to exit codes, and progress output.
package cli
