package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cmarkh/audible-api/internal/locale"
	"github.com/cmarkh/audible-api/internal/registration"
	"github.com/cmarkh/audible-api/pkg/logging"
	"github.com/cmarkh/audible-api/pkg/signing"
)

var (
	// ErrPersistence is the umbrella error for session I/O failures.
	ErrPersistence = errors.New("session persistence error")

	// ErrNotFound is returned when no session has been saved yet.
	ErrNotFound = fmt.Errorf("%w: session not found", ErrPersistence)

	// ErrParse is returned when a stored session cannot be decoded.
	ErrParse = fmt.Errorf("%w: session unreadable", ErrPersistence)
)

// Session is a completed sign-in.
type Session struct {
	Locale             locale.Locale              `json:"locale"`
	DeviceRegistration *registration.Registration `json:"device_registration"`
	AuthorizationCode  string                     `json:"authorization_code"`
	CodeVerifier       string                     `json:"code_verifier"`
}

// Validate checks that the session carries the material needed to sign.
func (s *Session) Validate() error {
	if s.DeviceRegistration == nil {
		return fmt.Errorf("%w: missing device_registration", ErrParse)
	}
	if s.DeviceRegistration.ADPToken == "" || s.DeviceRegistration.DevicePrivateKey == "" {
		return fmt.Errorf("%w: device_registration lacks signing credentials", ErrParse)
	}
	return nil
}

// Signer returns a request signer for the session's device.
func (s *Session) Signer(opts ...signing.Option) (*signing.Signer, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return signing.NewSigner(s.DeviceRegistration.ADPToken, s.DeviceRegistration.DevicePrivateKey, opts...)
}

// Expired reports whether the bearer token has expired at now.
func (s *Session) Expired(now time.Time) bool {
	return s.DeviceRegistration != nil && s.DeviceRegistration.Expired(now)
}

// Decode parses a session document.
func Decode(data []byte) (*Session, error) {
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Encode renders an indented session document. Opaque registration
// documents are re-indented on output and compacted again by Decode.
func Encode(s *Session) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return nil, fmt.Errorf("%w: failed to encode session: %w", ErrPersistence, err)
	}
	return buf.Bytes(), nil
}

// Load reads the session stored at path.
func Load(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("%w: failed to read %s: %w", ErrPersistence, path, err)
	}
	return Decode(data)
}

// Save writes s to path, replacing any previous session.
func Save(s *Session, path string) error {
	data, err := Encode(s)
	if err != nil {
		return err
	}

	if err := writeFileAtomic(path, data); err != nil {
		logging.Audit("Session", "session_store_failed",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	attrs := []slog.Attr{slog.String("path", path)}
	if s.DeviceRegistration != nil {
		attrs = append(attrs,
			slog.String("device_serial", s.DeviceRegistration.DeviceSerial),
			slog.Time("expiry", s.DeviceRegistration.ExpiresAt()))
	}
	logging.Audit("Session", "session_stored", attrs...)
	return nil
}

// writeFileAtomic writes data to a temp file in the target directory and
// renames it over path, so readers never observe a partial session.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".auth-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set session file mode: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close session file: %w", err)
	}

	return os.Rename(tmpName, path)
}
