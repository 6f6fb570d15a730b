package registration

import (
	"bytes"
	"encoding/json"
	"time"

	"golang.org/x/oauth2"
)

// Registration is the credential bundle issued for one registered device.
// It is immutable once created; the JSON field names match the session file.
type Registration struct {
	DeviceSerial              string            `json:"device_serial"`
	ClientID                  string            `json:"client_id"`
	ADPToken                  string            `json:"adp_token"`
	DevicePrivateKey          string            `json:"device_private_key"`
	AccessToken               string            `json:"access_token"`
	RefreshToken              string            `json:"refresh_token"`
	Expires                   int64             `json:"expires"`
	WebsiteCookies            map[string]string `json:"website_cookies"`
	StoreAuthenticationCookie string            `json:"store_authentication_cookie"`
	DeviceInfo                json.RawMessage   `json:"device_info"`
	CustomerInfo              json.RawMessage   `json:"customer_info"`
}

// UnmarshalJSON decodes a registration, compacting device_info and
// customer_info so a stored registration reads back byte for byte.
func (r *Registration) UnmarshalJSON(data []byte) error {
	type plain Registration
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = Registration(p)
	r.DeviceInfo = compactRaw(r.DeviceInfo)
	r.CustomerInfo = compactRaw(r.CustomerInfo)
	return nil
}

// compactRaw strips insignificant whitespace from an opaque JSON document.
// An explicit null becomes nil.
func compactRaw(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || string(bytes.TrimSpace(raw)) == "null" {
		return nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return raw
	}
	return json.RawMessage(buf.Bytes())
}

// ExpiresAt returns the absolute expiry of the bearer access token.
func (r *Registration) ExpiresAt() time.Time {
	return time.Unix(r.Expires, 0)
}

// Expired reports whether the access token has expired at now. There is no
// refresh; an expired registration requires signing in again.
func (r *Registration) Expired(now time.Time) bool {
	return r.Expires != 0 && !now.Before(r.ExpiresAt())
}

// BearerToken exposes the bearer credentials as an oauth2.Token so callers
// can inspect validity with the usual Valid/Expiry accessors.
func (r *Registration) BearerToken() *oauth2.Token {
	token := &oauth2.Token{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		TokenType:    "Bearer",
	}
	if r.Expires != 0 {
		token.Expiry = r.ExpiresAt()
	}
	return token
}

// Request carries the inputs of one registration call.
type Request struct {
	AuthorizationCode string
	CodeVerifier      string
	Domain            string
	DeviceSerial      string

	// WithUsername registers against api.audible.<domain> instead of
	// api.amazon.<domain>.
	WithUsername bool
}

type registerRequest struct {
	RequestedTokenType  []string         `json:"requested_token_type"`
	Cookies             requestCookies   `json:"cookies"`
	RegistrationData    registrationData `json:"registration_data"`
	AuthData            authData         `json:"auth_data"`
	RequestedExtensions []string         `json:"requested_extensions"`
}

type requestCookies struct {
	WebsiteCookies []string `json:"website_cookies"`
	Domain         string   `json:"domain"`
}

type registrationData struct {
	Domain          string `json:"domain"`
	AppVersion      string `json:"app_version"`
	DeviceSerial    string `json:"device_serial"`
	DeviceType      string `json:"device_type"`
	DeviceName      string `json:"device_name"`
	OSVersion       string `json:"os_version"`
	SoftwareVersion string `json:"software_version"`
	DeviceModel     string `json:"device_model"`
	AppName         string `json:"app_name"`
}

type authData struct {
	ClientID          string `json:"client_id"`
	AuthorizationCode string `json:"authorization_code"`
	CodeVerifier      string `json:"code_verifier"`
	CodeAlgorithm     string `json:"code_algorithm"`
	ClientDomain      string `json:"client_domain"`
}

type registerResponse struct {
	Response struct {
		Success struct {
			Tokens struct {
				MacDMS struct {
					ADPToken         string `json:"adp_token"`
					DevicePrivateKey string `json:"device_private_key"`
				} `json:"mac_dms"`
				StoreAuthenticationCookie struct {
					Cookie string `json:"cookie"`
				} `json:"store_authentication_cookie"`
				Bearer struct {
					AccessToken  string          `json:"access_token"`
					RefreshToken string          `json:"refresh_token"`
					ExpiresIn    json.RawMessage `json:"expires_in"`
				} `json:"bearer"`
				WebsiteCookies []struct {
					Name  string `json:"Name"`
					Value string `json:"Value"`
				} `json:"website_cookies"`
			} `json:"tokens"`
			Extensions struct {
				DeviceInfo   json.RawMessage `json:"device_info"`
				CustomerInfo json.RawMessage `json:"customer_info"`
			} `json:"extensions"`
		} `json:"success"`
	} `json:"response"`
}
