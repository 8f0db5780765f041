package service

import (
	"context"
	"net/url"
	"strings"

	"github.com/aussiebroadwan/gatekeeper/internal/oauth/domain"
)

// TokenRequest is a token endpoint call after transport decoding: the form
// parameters plus the client credentials, wherever they were presented.
type TokenRequest struct {
	Form         url.Values
	ClientID     string
	ClientSecret string
}

// Get returns the trimmed form value for key.
func (r TokenRequest) Get(key string) string {
	return strings.TrimSpace(r.Form.Get(key))
}

// GrantType is the requested grant_type.
func (r TokenRequest) GrantType() string { return r.Get("grant_type") }

// GrantResult is a grant's output. UserID is set when the grant
// authenticated a resource owner directly.
type GrantResult struct {
	Token  *domain.TokenResult
	UserID string
}

// Grant processes one grant_type. The client has already been
// authenticated and checked against its grant type restriction.
type Grant interface {
	GrantType() string
	IssueToken(ctx context.Context, client domain.Client, req TokenRequest) (*GrantResult, error)
}

// resolveScope applies the client's registered scope: an empty request
// gets the registered scope, and a client with a registered scope cannot
// ask for more.
func resolveScope(requested string, client domain.Client) (string, error) {
	requested = domain.JoinScope(domain.SplitScope(requested))
	if requested == "" {
		return client.Scope, nil
	}
	if client.Scope != "" && !domain.ScopeWithin(requested, client.Scope) {
		return "", describe(ErrInvalidScope, "An unsupported scope was requested")
	}
	return requested, nil
}

// issuesRefresh reports whether tokens minted for the client come with a
// refresh token.
func issuesRefresh(client domain.Client) bool {
	return client.AllowsGrantType(domain.GrantTypeRefreshToken)
}
