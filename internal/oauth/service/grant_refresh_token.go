package service

import (
	"context"
	"errors"

	"github.com/aussiebroadwan/gatekeeper/internal/oauth/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/oauth/store"
)

// RefreshTokenGrant trades a refresh token for a new access token.
type RefreshTokenGrant struct {
	Store  store.Store
	Issuer *TokenIssuer

	// AlwaysIssueNewRefreshToken rotates the refresh token on every use.
	AlwaysIssueNewRefreshToken bool
	// UnsetRefreshTokenAfterUse deletes the old token when rotating.
	UnsetRefreshTokenAfterUse bool
}

func (g *RefreshTokenGrant) GrantType() string { return domain.GrantTypeRefreshToken }

func (g *RefreshTokenGrant) IssueToken(ctx context.Context, client domain.Client, req TokenRequest) (*GrantResult, error) {
	presented := req.Get("refresh_token")
	if presented == "" {
		return nil, describe(ErrInvalidRequest, "Missing parameter: \"refresh_token\" is required")
	}

	var res *GrantResult
	err := g.Store.WithTx(ctx, func(tx store.Tx) error {
		rt, err := tx.RefreshTokens().GetRefreshToken(ctx, presented)
		if errors.Is(err, store.ErrNotFound) {
			return describe(ErrInvalidGrant, "Invalid refresh token")
		}
		if err != nil {
			return err
		}
		if rt.ClientID != client.ID {
			return describe(ErrInvalidGrant, "Invalid refresh token")
		}

		scope := domain.JoinScope(domain.SplitScope(req.Get("scope")))
		if scope == "" {
			scope = rt.Scope
		} else if !domain.ScopeWithin(scope, rt.Scope) {
			return describe(ErrInvalidScope, "The scope requested is invalid for this request")
		}

		tok, err := g.Issuer.Issue(ctx, tx, rt.ClientID, rt.UserID, scope, g.AlwaysIssueNewRefreshToken)
		if err != nil {
			return err
		}
		if g.AlwaysIssueNewRefreshToken && g.UnsetRefreshTokenAfterUse {
			if err := tx.RefreshTokens().UnsetRefreshToken(ctx, presented); err != nil {
				return err
			}
		}
		res = &GrantResult{Token: tok}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
