package domain

import "time"

// PKCE code challenge methods (RFC 7636).
const (
	PKCEMethodPlain = "plain"
	PKCEMethodS256  = "S256"
)

// AuthorizationCode is a single-use code issued by the authorize endpoint.
// Exchanging it sets Expires to the exchange time; the row is kept.
type AuthorizationCode struct {
	Code                string
	ClientID            string
	UserID              string
	RedirectURI         string
	Expires             time.Time
	Scope               string
	CodeChallenge       string
	CodeChallengeMethod string
}

// HasChallenge reports whether the code was issued with PKCE.
func (c AuthorizationCode) HasChallenge() bool {
	return c.CodeChallenge != ""
}
