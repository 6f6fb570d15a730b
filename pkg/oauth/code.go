package oauth

import (
	"fmt"
	"net/url"
	"strings"
)

// AuthorizationCodeParam is the query parameter on the vendor's maplanding
// redirect that carries the authorization code.
const AuthorizationCodeParam = "openid.oa2.authorization_code"

// ExtractAuthorizationCode returns the authorization code carried by the
// redirect URL the browser landed on after sign-in.
func ExtractAuthorizationCode(responseURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(responseURL))
	if err != nil {
		return "", fmt.Errorf("invalid response URL: %w", err)
	}

	code := u.Query().Get(AuthorizationCodeParam)
	if code == "" {
		return "", ErrAuthorizationCodeMissing
	}
	return code, nil
}
