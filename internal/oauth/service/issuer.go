package service

import (
	"context"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/oauth/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/oauth/store"
	"github.com/aussiebroadwan/gatekeeper/pkg/cryptox"
)

// TokenIssuer mints opaque bearer tokens and persists them.
type TokenIssuer struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Issue stores a new access token, plus a refresh token when withRefresh
// is set, through st (usually a transaction). Expiry is computed from the
// store clock.
func (i *TokenIssuer) Issue(ctx context.Context, st store.Store, clientID, userID, scope string, withRefresh bool) (*domain.TokenResult, error) {
	now := st.Now()

	access, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return nil, err
	}
	err = st.AccessTokens().SetAccessToken(ctx, domain.AccessToken{
		Token:    access,
		ClientID: clientID,
		UserID:   userID,
		Expires:  now.Add(i.AccessTTL),
		Scope:    scope,
	})
	if err != nil {
		return nil, err
	}

	res := &domain.TokenResult{
		AccessToken: access,
		TokenType:   domain.TokenTypeBearer,
		ExpiresIn:   int(i.AccessTTL / time.Second),
		Scope:       scope,
	}
	if !withRefresh {
		return res, nil
	}

	refresh, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return nil, err
	}
	err = st.RefreshTokens().SetRefreshToken(ctx, domain.RefreshToken{
		Token:    refresh,
		ClientID: clientID,
		UserID:   userID,
		Expires:  now.Add(i.RefreshTTL),
		Scope:    scope,
	})
	if err != nil {
		return nil, err
	}
	res.RefreshToken = refresh
	return res, nil
}
