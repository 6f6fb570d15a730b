package signing

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
)

// Transport is an http.RoundTripper that signs every outgoing request.
// The signed path is the request URI (path plus raw query) relative to the
// API host.
type Transport struct {
	Signer *Signer

	// Base is the underlying transport. http.DefaultTransport when nil.
	Base http.RoundTripper
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil && req.Body != http.NoBody {
		var err error
		body, err = io.ReadAll(req.Body)
		_ = req.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read request body for signing: %w", err)
		}
	}

	headers, err := t.Signer.Sign(req.Method, req.URL.RequestURI(), body)
	if err != nil {
		return nil, err
	}

	// RoundTrippers must not modify the caller's request.
	signed := req.Clone(req.Context())
	if body != nil {
		signed.Body = io.NopCloser(bytes.NewReader(body))
		signed.ContentLength = int64(len(body))
	}
	headers.Apply(signed.Header)

	return t.base().RoundTrip(signed)
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}
