package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLogout(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("revokes both tokens", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		tok := f.passwordToken(t)
		p, err := f.srv.VerifyAccessToken(ctx, tok.AccessToken)
		require.NoError(t, err)

		svc := &LogoutService{Store: f.st}
		require.NoError(t, svc.Logout(ctx, LogoutRequest{
			AccessToken:  tok.AccessToken,
			RefreshToken: tok.RefreshToken,
			Principal:    p,
		}))

		_, err = f.srv.VerifyAccessToken(ctx, tok.AccessToken)
		require.ErrorIs(t, err, ErrInvalidToken)

		_, err = f.srv.HandleTokenRequest(ctx, f.tokenRequest(f.client, testSecret,
			"grant_type", "refresh_token", "refresh_token", tok.RefreshToken))
		require.ErrorIs(t, err, ErrInvalidGrant)
	})

	t.Run("request errors", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		tok := f.passwordToken(t)
		svc := &LogoutService{Store: f.st}

		tests := []struct {
			name string
			req  LogoutRequest
			want error
			desc string
		}{
			{"no access token", LogoutRequest{RefreshToken: tok.RefreshToken}, ErrUnauthenticated, ""},
			{"no refresh token", LogoutRequest{AccessToken: tok.AccessToken}, ErrMissingRefreshToken, ""},
			{"unknown access token", LogoutRequest{AccessToken: "ghost", RefreshToken: tok.RefreshToken}, ErrAccessTokenNotFound, "Access token not found"},
			{"unknown refresh token", LogoutRequest{AccessToken: tok.AccessToken, RefreshToken: "ghost"}, ErrRefreshTokenNotFound, "Refresh token not found"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				err := svc.Logout(ctx, tt.req)
				require.ErrorIs(t, err, tt.want)
				if tt.desc != "" {
					require.Equal(t, tt.desc, Describe(err))
				}
			})
		}

		// None of the rejected calls revoked anything.
		_, err := f.srv.VerifyAccessToken(ctx, tok.AccessToken)
		require.NoError(t, err)
	})

	t.Run("refresh token of another user", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.addUser(t, "bob@example.com", "bobs password", nil)

		alice := f.passwordToken(t)
		bob, err := f.srv.HandleTokenRequest(ctx, f.tokenRequest(f.client, testSecret,
			"grant_type", "password", "username", "bob@example.com", "password", "bobs password"))
		require.NoError(t, err)

		svc := &LogoutService{Store: f.st}
		err = svc.Logout(ctx, LogoutRequest{AccessToken: alice.AccessToken, RefreshToken: bob.RefreshToken})
		require.ErrorIs(t, err, ErrRefreshTokenNotFound)

		_, err = f.srv.VerifyAccessToken(ctx, alice.AccessToken)
		require.NoError(t, err, "a failed logout must not revoke the access token")
	})
}
