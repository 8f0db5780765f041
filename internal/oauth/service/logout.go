package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aussiebroadwan/gatekeeper/internal/oauth/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/oauth/store"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
)

// LogoutRequest carries what the logout endpoint resolved from the call.
// Principal is nil when the bearer token did not resolve.
type LogoutRequest struct {
	AccessToken  string
	RefreshToken string
	Principal    *domain.Principal
}

// LogoutService revokes a session's token pair.
type LogoutService struct {
	Store store.Store
}

// Logout expires the access token and the caller's refresh token. Both
// updates share a transaction, so a rejected logout revokes nothing.
func (s *LogoutService) Logout(ctx context.Context, req LogoutRequest) error {
	if req.AccessToken == "" {
		return describe(ErrUnauthenticated, "Authentication required")
	}
	if req.RefreshToken == "" {
		return describe(ErrMissingRefreshToken, "Refresh token is required")
	}

	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		now := tx.Now()

		at, err := tx.AccessTokens().GetAccessToken(ctx, req.AccessToken)
		if errors.Is(err, store.ErrNotFound) {
			return describe(ErrAccessTokenNotFound, "Access token not found")
		}
		if err != nil {
			return err
		}

		userID := at.UserID
		if req.Principal != nil && req.Principal.UserID != "" {
			userID = req.Principal.UserID
		}

		rt, err := tx.RefreshTokens().GetRefreshToken(ctx, req.RefreshToken)
		if errors.Is(err, store.ErrNotFound) || (err == nil && rt.UserID != userID) {
			return describe(ErrRefreshTokenNotFound, "Refresh token not found")
		}
		if err != nil {
			return err
		}

		at.Expires = now
		if err := tx.AccessTokens().SetAccessToken(ctx, at); err != nil {
			return err
		}
		rt.Expires = now
		return tx.RefreshTokens().SetRefreshToken(ctx, rt)
	})
	if err != nil {
		return err
	}

	slogx.FromContext(ctx).Info("logout", slog.String("user_id", req.principalUserID()))
	return nil
}

func (r LogoutRequest) principalUserID() string {
	if r.Principal == nil {
		return ""
	}
	return r.Principal.UserID
}
