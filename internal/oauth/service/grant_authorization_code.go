package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aussiebroadwan/gatekeeper/internal/oauth/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/oauth/store"
	"github.com/aussiebroadwan/gatekeeper/pkg/cryptox"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
)

// AuthorizationCodeGrant exchanges a code from the authorize endpoint.
type AuthorizationCodeGrant struct {
	Store  store.Store
	Issuer *TokenIssuer
}

func (g *AuthorizationCodeGrant) GrantType() string { return domain.GrantTypeAuthorizationCode }

// IssueToken consumes the code and mints tokens for the user it was issued
// to. Consuming and minting share one transaction, and the conditional
// expiry makes the first of two concurrent exchanges the only winner.
func (g *AuthorizationCodeGrant) IssueToken(ctx context.Context, client domain.Client, req TokenRequest) (*GrantResult, error) {
	log := slogx.FromContext(ctx)

	code := req.Get("code")
	if code == "" {
		return nil, describe(ErrInvalidRequest, "Missing parameter: \"code\" is required")
	}

	var res *GrantResult
	err := g.Store.WithTx(ctx, func(tx store.Tx) error {
		ac, err := tx.AuthorizationCodes().GetAuthorizationCode(ctx, code)
		if errors.Is(err, store.ErrNotFound) {
			return describe(ErrInvalidGrant, "Authorization code doesn't exist or is invalid for the client")
		}
		if err != nil {
			return err
		}
		if ac.ClientID != client.ID {
			log.Info("authorization code presented by another client", slog.String("client_id", client.ID))
			return describe(ErrInvalidGrant, "Authorization code doesn't exist or is invalid for the client")
		}
		if ac.RedirectURI != "" && ac.RedirectURI != req.Get("redirect_uri") {
			return describe(ErrInvalidGrant, "The redirect URI is missing or does not match")
		}
		if err := verifyPKCE(ac, req.Get("code_verifier")); err != nil {
			return err
		}

		if err := tx.AuthorizationCodes().ExpireAuthorizationCode(ctx, code); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return describe(ErrInvalidGrant, "Authorization code has already been used")
			}
			return err
		}

		tok, err := g.Issuer.Issue(ctx, tx, client.ID, ac.UserID, ac.Scope, issuesRefresh(client))
		if err != nil {
			return err
		}
		res = &GrantResult{Token: tok}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func verifyPKCE(ac domain.AuthorizationCode, verifier string) error {
	if !ac.HasChallenge() {
		return nil
	}
	if verifier == "" {
		return describe(ErrInvalidGrant, "The PKCE code verifier parameter is required")
	}
	// RFC 7636 section 4.1.
	if len(verifier) < 43 || len(verifier) > 128 {
		return describe(ErrInvalidGrant, "The PKCE code verifier must be between 43 and 128 characters")
	}

	var ok bool
	switch ac.CodeChallengeMethod {
	case domain.PKCEMethodS256:
		ok = cryptox.ConstantTimeEqual(cryptox.S256Challenge(verifier), ac.CodeChallenge)
	default:
		ok = cryptox.ConstantTimeEqual(verifier, ac.CodeChallenge)
	}
	if !ok {
		return describe(ErrInvalidGrant, "The PKCE code verifier parameter does not match the code challenge")
	}
	return nil
}
