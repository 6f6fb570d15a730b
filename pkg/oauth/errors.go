package oauth

import "errors"

var (
	// ErrUnsupportedDomain is returned when the username ("private pool")
	// sign-in flow is requested for a marketplace that does not offer it.
	ErrUnsupportedDomain = errors.New("username sign-in is not supported for this domain")

	// ErrAuthorizationCodeMissing is returned when a redirect URL carries no
	// openid.oa2.authorization_code parameter.
	ErrAuthorizationCodeMissing = errors.New("authorization code not found in response URL")
)
