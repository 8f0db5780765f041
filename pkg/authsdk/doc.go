/*
Package authsdk is a Go client for the gatekeeper OAuth2 server.

It covers the three token grants, the interactive login form submission and
logout:

	c := authsdk.NewClient("https://auth.example.com")

	// Resource owner password credentials.
	tok, err := c.PasswordGrant(ctx, authsdk.ClientAuth{ID: "cli"}, "alice@example.com", "pw", nil)

	// Authorization code with PKCE, driving the login form directly.
	pkce, _ := authsdk.GeneratePKCEChallenge()
	code, err := c.SubmitCredentials(ctx, authsdk.AuthorizeParams{
		ClientID:    "web",
		RedirectURI: "https://app.example.com/cb",
		State:       "xyz",
		PKCE:        pkce,
	}, "alice@example.com", "pw")
	tok, err = c.ExchangeAuthorizationCode(ctx, authsdk.ClientAuth{ID: "web"}, code, "https://app.example.com/cb", pkce.Verifier)

	// Refresh and logout.
	tok, err = c.RefreshGrant(ctx, authsdk.ClientAuth{ID: "web"}, tok.RefreshToken, nil)
	err = c.Logout(ctx, tok.AccessToken, tok.RefreshToken)

Errors returned by the server come back as *OAuth2Error; use errors.As to
inspect the code.
*/
package authsdk
