package domain

import "slices"

// Grant types understood by the token endpoint, plus "implicit" which
// gates response_type=token on the authorize endpoint.
const (
	GrantTypeAuthorizationCode = "authorization_code"
	GrantTypeRefreshToken      = "refresh_token"
	GrantTypePassword          = "password"
	GrantTypeImplicit          = "implicit"
)

// Client is a registered OAuth2 client.
type Client struct {
	ID string
	// Secret is empty for public clients. It may be stored hashed.
	Secret string
	// GrantTypes restricts which grants the client may use; empty means any.
	GrantTypes   []string
	RedirectURIs []string
	// Scope is the space-delimited ceiling on what the client may request;
	// empty means unrestricted.
	Scope  string
	UserID string
}

// IsPublic reports whether the client authenticates without a secret.
func (c Client) IsPublic() bool {
	return c.Secret == ""
}

// AllowsGrantType reports whether grantType is permitted for the client.
func (c Client) AllowsGrantType(grantType string) bool {
	return len(c.GrantTypes) == 0 || slices.Contains(c.GrantTypes, grantType)
}

// HasRedirectURI reports whether uri exactly matches a registered URI.
func (c Client) HasRedirectURI(uri string) bool {
	return slices.Contains(c.RedirectURIs, uri)
}
