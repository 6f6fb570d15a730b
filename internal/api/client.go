package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cmarkh/audible-api/internal/session"
	"github.com/cmarkh/audible-api/pkg/logging"
	"github.com/cmarkh/audible-api/pkg/signing"
)

// DefaultTimeout bounds a single API call.
const DefaultTimeout = 30 * time.Second

// Client sends signed requests on behalf of one session.
type Client struct {
	mu         sync.RWMutex
	baseURL    string
	fixedBase  bool
	session    *session.Session
	httpClient *http.Client
	transport  http.RoundTripper
	timeout    time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API origin derived from the session locale.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimSuffix(baseURL, "/")
			c.fixedBase = true
		}
	}
}

// WithTransport sets the transport beneath the signing layer.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.transport = rt
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// NewClient creates a client signing with the device key of s.
func NewClient(s *session.Session, opts ...Option) (*Client, error) {
	c := &Client{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.UseSession(s); err != nil {
		return nil, err
	}
	return c, nil
}

// BaseURL returns the API origin requests are sent to.
func BaseURL(domain string) string {
	return "https://api.audible." + domain
}

// UseSession switches the client to a new session.
func (c *Client) UseSession(s *session.Session) error {
	signer, err := s.Signer()
	if err != nil {
		return err
	}

	httpClient := &http.Client{
		Timeout:   c.timeout,
		Transport: &signing.Transport{Signer: signer, Base: c.transport},
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = s
	c.httpClient = httpClient
	if !c.fixedBase {
		c.baseURL = BaseURL(s.Locale.Domain)
	}
	return nil
}

// Origin returns the API origin requests are currently sent to.
func (c *Client) Origin() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL
}

// RoundTrip signs and sends req with the current session, so the client can
// back an httputil.ReverseProxy. req must already target Origin.
func (c *Client) RoundTrip(req *http.Request) (*http.Response, error) {
	c.mu.RLock()
	rt := c.httpClient.Transport
	c.mu.RUnlock()
	return rt.RoundTrip(req)
}

// Session returns the session currently in use.
func (c *Client) Session() *session.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// WatchSession reloads the client whenever the session file at path is
// rewritten. The returned function stops watching.
func (c *Client) WatchSession(path string) (stop func(), err error) {
	w := session.NewWatcher(session.WatcherConfig{
		Path: path,
		OnChange: func(s *session.Session) {
			if err := c.UseSession(s); err != nil {
				logging.Warn("API", "Ignoring reloaded session: %v", err)
			}
		},
	})
	if err := w.Start(); err != nil {
		return nil, err
	}
	return w.Stop, nil
}

// Get sends a signed GET and decodes the JSON response into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodGet, path, nil, out)
}

// Do sends a signed request. body, when non-nil, is sent as JSON; a
// json.RawMessage or []byte body is sent verbatim. out, when non-nil,
// receives the decoded JSON response.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	var reader io.Reader
	if body != nil {
		payload, err := encodeBody(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	c.mu.RLock()
	httpClient, baseURL := c.httpClient, c.baseURL
	c.mu.RUnlock()

	req, err := http.NewRequestWithContext(ctx, method, baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	logging.Debug("API", "%s %s", method, path)

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: string(data)}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if raw, ok := out.(*json.RawMessage); ok {
		*raw = append((*raw)[:0], data...)
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}

func encodeBody(body any) ([]byte, error) {
	switch b := body.(type) {
	case json.RawMessage:
		return b, nil
	case []byte:
		return b, nil
	case string:
		return []byte(b), nil
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}
	if len(payload) == 0 {
		return nil, errors.New("empty request body")
	}
	return payload, nil
}
