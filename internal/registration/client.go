package registration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cmarkh/audible-api/pkg/oauth"
)

// DefaultHTTPTimeout bounds the single registration round trip.
const DefaultHTTPTimeout = 30 * time.Second

// Device metadata sent at registration, matching the iOS app.
const (
	appName         = "Audible"
	appVersion      = "3.56.2"
	softwareVersion = "35602678"
	osVersion       = "15.0.0"
	deviceModel     = "iPhone"
	deviceName      = "%FIRST_NAME%%FIRST_NAME_POSSESSIVE_STRING%%DUPE_STRATEGY_1ST%Audible for iPhone"
)

// Client exchanges an authorization code for a device registration.
// It does not retry; every failure is returned to the caller.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
	now        func() time.Time
}

// ClientOption configures the registration client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithBaseURL replaces the derived https://api.<host>.<domain> origin.
// Used to point the client at a test server.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithClock overrides the time source used to compute absolute expiry.
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient creates a new registration client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultHTTPTimeout},
		logger:     slog.Default(),
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Endpoint returns the registration URL for a domain.
func (c *Client) Endpoint(domain string, withUsername bool) string {
	if c.baseURL != "" {
		return c.baseURL + "/auth/register"
	}
	host := "amazon"
	if withUsername {
		host = "audible"
	}
	return fmt.Sprintf("https://api.%s.%s/auth/register", host, domain)
}

// Register performs the device registration call.
func (c *Client) Register(ctx context.Context, req Request) (*Registration, error) {
	clientID := oauth.ClientID(req.DeviceSerial)

	payload, err := json.Marshal(newRegisterRequest(req, clientID))
	if err != nil {
		return nil, fmt.Errorf("failed to encode registration request: %w", err)
	}

	endpoint := c.Endpoint(req.Domain, req.WithUsername)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create registration request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	c.logger.Debug("Registering device",
		"endpoint", endpoint,
		"device_serial", req.DeviceSerial)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("registration request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read registration response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Debug("Registration request failed",
			"status", resp.StatusCode,
			"device_serial", req.DeviceSerial)
		return nil, &Error{StatusCode: resp.StatusCode, Body: string(body)}
	}

	reg, err := c.parseResponse(body)
	if err != nil {
		return nil, err
	}
	reg.DeviceSerial = req.DeviceSerial
	reg.ClientID = clientID

	c.logger.Debug("Device registered",
		"device_serial", req.DeviceSerial,
		"expires", reg.ExpiresAt().Format(time.RFC3339))

	return reg, nil
}

func newRegisterRequest(req Request, clientID string) registerRequest {
	return registerRequest{
		RequestedTokenType: []string{
			"bearer",
			"mac_dms",
			"website_cookies",
			"store_authentication_cookie",
		},
		Cookies: requestCookies{
			WebsiteCookies: []string{},
			Domain:         ".amazon." + req.Domain,
		},
		RegistrationData: registrationData{
			Domain:          "Device",
			AppVersion:      appVersion,
			DeviceSerial:    req.DeviceSerial,
			DeviceType:      oauth.DeviceType,
			DeviceName:      deviceName,
			OSVersion:       osVersion,
			SoftwareVersion: softwareVersion,
			DeviceModel:     deviceModel,
			AppName:         appName,
		},
		AuthData: authData{
			ClientID:          clientID,
			AuthorizationCode: req.AuthorizationCode,
			CodeVerifier:      req.CodeVerifier,
			CodeAlgorithm:     "SHA-256",
			ClientDomain:      "DeviceLegacy",
		},
		RequestedExtensions: []string{"device_info", "customer_info"},
	}
}

func (c *Client) parseResponse(body []byte) (*Registration, error) {
	var parsed registerResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	success := parsed.Response.Success
	tokens := success.Tokens

	if tokens.MacDMS.ADPToken == "" {
		return nil, fmt.Errorf("%w: missing adp_token", ErrMalformedResponse)
	}
	if tokens.MacDMS.DevicePrivateKey == "" {
		return nil, fmt.Errorf("%w: missing device_private_key", ErrMalformedResponse)
	}

	var expires int64
	if len(tokens.Bearer.ExpiresIn) > 0 && string(tokens.Bearer.ExpiresIn) != "null" {
		seconds, err := parseExpiresIn(tokens.Bearer.ExpiresIn)
		if err != nil {
			return nil, fmt.Errorf("%w: expires_in: %v", ErrMalformedResponse, err)
		}
		expires = c.now().Add(time.Duration(seconds) * time.Second).Unix()
	}

	cookies := make(map[string]string, len(tokens.WebsiteCookies))
	for _, cookie := range tokens.WebsiteCookies {
		if cookie.Name == "" {
			continue
		}
		cookies[cookie.Name] = strings.ReplaceAll(cookie.Value, `"`, "")
	}

	return &Registration{
		ADPToken:                  tokens.MacDMS.ADPToken,
		DevicePrivateKey:          tokens.MacDMS.DevicePrivateKey,
		AccessToken:               tokens.Bearer.AccessToken,
		RefreshToken:              tokens.Bearer.RefreshToken,
		Expires:                   expires,
		WebsiteCookies:            cookies,
		StoreAuthenticationCookie: tokens.StoreAuthenticationCookie.Cookie,
		DeviceInfo:                compactRaw(success.Extensions.DeviceInfo),
		CustomerInfo:              compactRaw(success.Extensions.CustomerInfo),
	}, nil
}

// parseExpiresIn accepts the vendor's string-encoded seconds ("3600") and,
// leniently, a bare JSON number.
func parseExpiresIn(raw json.RawMessage) (int64, error) {
	s := string(raw)
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = unquoted
	}
	return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
}
