package service

import (
	"context"
	"errors"

	"github.com/aussiebroadwan/gatekeeper/internal/oauth/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/oauth/store"
)

// PasswordGrant is the resource owner password credentials grant.
type PasswordGrant struct {
	Store    store.Store
	Issuer   *TokenIssuer
	Verifier *CredentialVerifier
}

func (g *PasswordGrant) GrantType() string { return domain.GrantTypePassword }

func (g *PasswordGrant) IssueToken(ctx context.Context, client domain.Client, req TokenRequest) (*GrantResult, error) {
	username := req.Get("username")
	password := req.Form.Get("password")
	if username == "" || password == "" {
		return nil, describe(ErrInvalidRequest, "Missing parameters: \"username\" and \"password\" required")
	}

	scope, err := resolveScope(req.Get("scope"), client)
	if err != nil {
		return nil, err
	}

	user, err := g.Verifier.Authenticate(ctx, username, password)
	if errors.Is(err, ErrInvalidCredentials) {
		return nil, describe(ErrInvalidGrant, "Invalid username and password combination")
	}
	if err != nil {
		return nil, err
	}

	var tok *domain.TokenResult
	err = g.Store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		tok, err = g.Issuer.Issue(ctx, tx, client.ID, user.ID, scope, issuesRefresh(client))
		return err
	})
	if err != nil {
		return nil, err
	}
	return &GrantResult{Token: tok, UserID: user.ID}, nil
}
