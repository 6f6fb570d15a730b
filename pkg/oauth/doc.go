// Package oauth implements the client side of the vendor's OAuth-like
// sign-in protocol: PKCE parameters, device identity, the authorization URL
// and extraction of the authorization code from the post-login redirect.
//
// The vendor endpoint is not a standard OAuth 2.0 authorization server. The
// authorization URL mixes OpenID 2.0 and OAuth 2 extension parameters, and
// the vendor rejects requests whose parameter names, values or order differ
// from those sent by the official iOS app. BuildAuthorizationURL reproduces
// them exactly.
//
//	authURL, err := oauth.BuildAuthorizationURL(oauth.AuthorizationRequest{
//	    CountryCode:   "us",
//	    Domain:        "com",
//	    MarketplaceID: "AF2M0KC94RCEA",
//	})
//	// open authURL.URL in a browser, then:
//	code, err := oauth.ExtractAuthorizationCode(redirectedURL)
package oauth
