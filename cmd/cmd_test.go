package cmd

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/cmarkh/audible-api/internal/locale"
	"github.com/cmarkh/audible-api/internal/registration"
	"github.com/cmarkh/audible-api/internal/session"
)

// executeCommand runs the root command with args and returns its stdout.
// A missing config file is passed so the user's config never leaks in.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(append([]string{
		"--config", filepath.Join(t.TempDir(), "config.yaml"),
		"--log-level", "error",
	}, args...))
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

// writeTestSession stores a session signed by a fresh key and returns the
// file path and the key.
func writeTestSession(t *testing.T, expires int64) (string, *rsa.PrivateKey) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("Failed to generate key: %v", err)
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})

	loc, err := locale.Resolve("us")
	if err != nil {
		t.Fatalf("Failed to resolve locale: %v", err)
	}

	path := filepath.Join(t.TempDir(), "auth.json")
	s := &session.Session{
		Locale: loc,
		DeviceRegistration: &registration.Registration{
			DeviceSerial:     "0A1B2C3D4E5F",
			ADPToken:         "{enc:adp}",
			DevicePrivateKey: string(keyPEM),
			AccessToken:      "Atna|token",
			Expires:          expires,
		},
		AuthorizationCode: "code",
		CodeVerifier:      "verifier",
	}
	if err := session.Save(s, path); err != nil {
		t.Fatalf("Failed to save session: %v", err)
	}
	return path, key
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}
