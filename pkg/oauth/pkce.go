package oauth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

const (
	// pkceVerifierBytes is the number of random bytes for the PKCE code verifier.
	// 32 bytes encode to a 43 character base64url verifier.
	pkceVerifierBytes = 32

	// CodeChallengeMethod is the only challenge method the vendor accepts.
	CodeChallengeMethod = "S256"
)

// PKCEChallenge represents a PKCE (Proof Key for Code Exchange) challenge.
type PKCEChallenge struct {
	// CodeVerifier is the base64url-encoded random secret. It is sent only
	// to the registration endpoint, never to the browser.
	CodeVerifier string

	// CodeChallenge is the S256 hash of the verifier (base64url-encoded).
	CodeChallenge string

	// CodeChallengeMethod is always "S256".
	CodeChallengeMethod string
}

// GeneratePKCE generates a new PKCE code verifier and challenge.
// A verifier must not be reused across sign-in attempts.
func GeneratePKCE() (*PKCEChallenge, error) {
	verifier, challenge, err := GeneratePKCERaw()
	if err != nil {
		return nil, err
	}

	return &PKCEChallenge{
		CodeVerifier:        verifier,
		CodeChallenge:       challenge,
		CodeChallengeMethod: CodeChallengeMethod,
	}, nil
}

// GeneratePKCERaw generates a PKCE code verifier and challenge as raw strings.
//
// Returns the verifier and S256 challenge.
func GeneratePKCERaw() (verifier, challenge string, err error) {
	verifierBytes := make([]byte, pkceVerifierBytes)
	if _, err := rand.Read(verifierBytes); err != nil {
		return "", "", fmt.Errorf("failed to generate random bytes for PKCE: %w", err)
	}

	verifier = base64.RawURLEncoding.EncodeToString(verifierBytes)
	return verifier, S256Challenge(verifier), nil
}

// S256Challenge derives the code challenge for a verifier: the unpadded
// base64url encoding of SHA-256 over the verifier's bytes.
func S256Challenge(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}
