package signing

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

// Header names and the fixed algorithm identifier.
const (
	HeaderToken     = "x-adp-token"
	HeaderAlg       = "x-adp-alg"
	HeaderSignature = "x-adp-signature"

	Algorithm = "SHA256withRSA:1.0"
)

// timestampLayout renders UTC as "+00:00" (not "Z"); the extra "Z" is
// appended by Timestamp.
const timestampLayout = "2006-01-02T15:04:05.000000-07:00"

// Headers is the signature header set for one request.
type Headers struct {
	Token     string
	Alg       string
	Signature string

	// Timestamp is the value embedded in the canonical string and in the
	// suffix of Signature.
	Timestamp string
}

// Apply sets the signature headers on h, replacing existing values.
func (h Headers) Apply(hdr http.Header) {
	hdr.Set(HeaderToken, h.Token)
	hdr.Set(HeaderAlg, h.Alg)
	hdr.Set(HeaderSignature, h.Signature)
}

// Map returns the headers keyed by their wire names.
func (h Headers) Map() map[string]string {
	return map[string]string{
		HeaderToken:     h.Token,
		HeaderAlg:       h.Alg,
		HeaderSignature: h.Signature,
	}
}

// Signer signs requests for one device registration.
type Signer struct {
	adpToken string
	key      *rsa.PrivateKey
	now      func() time.Time
}

// Option configures a Signer.
type Option func(*Signer)

// WithClock overrides the time source used for request timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Signer) {
		s.now = now
	}
}

// NewSigner parses the device key once and returns a Signer for it.
func NewSigner(adpToken, privateKeyPEM string, opts ...Option) (*Signer, error) {
	key, err := ParsePrivateKey(privateKeyPEM)
	if err != nil {
		return nil, err
	}

	s := &Signer{
		adpToken: adpToken,
		key:      key,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Sign signs a request using the current time.
func (s *Signer) Sign(method, path string, body []byte) (Headers, error) {
	return s.SignAt(method, path, body, Timestamp(s.now()))
}

// SignAt signs a request using a caller-supplied timestamp string.
func (s *Signer) SignAt(method, path string, body []byte, timestamp string) (Headers, error) {
	if !utf8.Valid(body) {
		return Headers{}, fmt.Errorf("%w: request body is not valid UTF-8", ErrSigningFailure)
	}

	digest := sha256.Sum256([]byte(CanonicalString(method, path, timestamp, body, s.adpToken)))
	sig, err := rsa.SignPKCS1v15(rand.Reader, s.key, crypto.SHA256, digest[:])
	if err != nil {
		return Headers{}, fmt.Errorf("%w: %v", ErrSigningFailure, err)
	}

	return Headers{
		Token:     s.adpToken,
		Alg:       Algorithm,
		Signature: base64.StdEncoding.EncodeToString(sig) + ":" + timestamp,
		Timestamp: timestamp,
	}, nil
}

// Sign is a convenience for one-off signing without keeping a Signer.
func Sign(method, path string, body []byte, adpToken, privateKeyPEM string) (Headers, error) {
	s, err := NewSigner(adpToken, privateKeyPEM)
	if err != nil {
		return Headers{}, err
	}
	return s.Sign(method, path, body)
}

// Timestamp formats t the way the vendor expects in x-adp-signature.
func Timestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout) + "Z"
}

// CanonicalString builds the newline-joined string that is hashed and signed.
func CanonicalString(method, path, timestamp string, body []byte, adpToken string) string {
	return strings.Join([]string{method, path, timestamp, string(body), adpToken}, "\n")
}

// ParsePrivateKey decodes a PEM encoded PKCS#1 RSA private key. PKCS#8
// wrapped RSA keys are accepted as well.
func ParsePrivateKey(privateKeyPEM string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(privateKeyPEM))
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block found", ErrInvalidPrivateKey)
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: key is %T, not RSA", ErrInvalidPrivateKey, parsed)
	}
	return key, nil
}

// Verify checks a signature header produced by Sign against the public key,
// reconstructing the canonical string from the request fields and the
// timestamp carried in the header.
func Verify(pub *rsa.PublicKey, method, path string, body []byte, adpToken, signatureHeader string) error {
	encoded, timestamp, ok := strings.Cut(signatureHeader, ":")
	if !ok {
		return fmt.Errorf("malformed signature header")
	}
	sig, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("malformed signature: %w", err)
	}

	digest := sha256.Sum256([]byte(CanonicalString(method, path, timestamp, body, adpToken)))
	return rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], sig)
}
