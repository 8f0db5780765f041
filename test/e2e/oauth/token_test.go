package oauth_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/gatekeeper/internal/oauth/app"
	"github.com/aussiebroadwan/gatekeeper/pkg/authsdk"
)

func TestPasswordGrant(t *testing.T) {
	t.Parallel()
	s := setupServer(t)

	tok := s.login(t)
	require.NotEmpty(t, tok.RefreshToken)

	_, err := s.client.PasswordGrant(t.Context(), s.conf, userEmail, "wrong", nil)
	requireOAuth2Error(t, err, authsdk.ErrorCodeInvalidGrant, http.StatusBadRequest)
}

func TestPasswordGrantBasicAuth(t *testing.T) {
	t.Parallel()
	s := setupServer(t)

	basic := s.conf
	basic.Basic = true
	tok, err := s.client.PasswordGrant(t.Context(), basic, userEmail, userPassword, nil)
	require.NoError(t, err)
	assertTokenResponse(t, tok)

	basic.Secret = "wrong"
	_, err = s.client.PasswordGrant(t.Context(), basic, userEmail, userPassword, nil)
	requireOAuth2Error(t, err, authsdk.ErrorCodeInvalidClient, http.StatusUnauthorized)
}

func TestPasswordGrantRestrictedClient(t *testing.T) {
	t.Parallel()
	s := setupServer(t)

	_, err := s.client.PasswordGrant(t.Context(), s.public, userEmail, userPassword, nil)
	requireOAuth2Error(t, err, authsdk.ErrorCodeUnauthorizedClient, http.StatusBadRequest)
}

func TestAuthorizationCodeFlow(t *testing.T) {
	t.Parallel()
	s := setupServer(t)
	ctx := context.Background()

	code, err := s.client.SubmitCredentials(t.Context(), s.authorizeParams(), userEmail, userPassword)
	require.NoError(t, err)
	require.NotEmpty(t, code)

	ac, err := s.app.Store().AuthorizationCodes().GetAuthorizationCode(ctx, code)
	require.NoError(t, err)
	require.Equal(t, clientID, ac.ClientID)

	user, err := s.app.Store().Users().GetUserByEmail(ctx, userEmail)
	require.NoError(t, err)
	require.Equal(t, user.ID, ac.UserID)
	require.NotNil(t, user.LastLogin)

	tok, err := s.client.ExchangeAuthorizationCode(t.Context(), s.conf, code, redirectURI, "")
	require.NoError(t, err)
	assertTokenResponse(t, tok)

	// The code is spent.
	_, err = s.client.ExchangeAuthorizationCode(t.Context(), s.conf, code, redirectURI, "")
	requireOAuth2Error(t, err, authsdk.ErrorCodeInvalidGrant, http.StatusBadRequest)
}

func TestAuthorizationCodeFlowPublicClientPKCE(t *testing.T) {
	t.Parallel()
	s := setupServer(t)

	pkce, err := authsdk.GeneratePKCEChallenge()
	require.NoError(t, err)

	params := s.authorizeParams()
	params.ClientID = publicID
	params.PKCE = pkce

	t.Run("wrong verifier", func(t *testing.T) {
		t.Parallel()
		code, err := s.client.SubmitCredentials(t.Context(), params, userEmail, userPassword)
		require.NoError(t, err)

		other, err := authsdk.GeneratePKCEChallenge()
		require.NoError(t, err)
		_, err = s.client.ExchangeAuthorizationCode(t.Context(), s.public, code, redirectURI, other.Verifier)
		requireOAuth2Error(t, err, authsdk.ErrorCodeInvalidGrant, http.StatusBadRequest)
	})

	t.Run("matching verifier", func(t *testing.T) {
		t.Parallel()
		code, err := s.client.SubmitCredentials(t.Context(), params, userEmail, userPassword)
		require.NoError(t, err)

		tok, err := s.client.ExchangeAuthorizationCode(t.Context(), s.public, code, redirectURI, pkce.Verifier)
		require.NoError(t, err)
		assertTokenResponse(t, tok)
		require.NotEmpty(t, tok.RefreshToken)
	})
}

func TestRefreshGrant(t *testing.T) {
	t.Parallel()

	t.Run("keeps refresh token by default", func(t *testing.T) {
		t.Parallel()
		s := setupServer(t)
		tok := s.login(t)

		refreshed, err := s.client.RefreshGrant(t.Context(), s.conf, tok.RefreshToken, nil)
		require.NoError(t, err)
		assertTokenResponse(t, refreshed)
		require.NotEqual(t, tok.AccessToken, refreshed.AccessToken)
		require.Empty(t, refreshed.RefreshToken)

		_, err = s.client.RefreshGrant(t.Context(), s.conf, tok.RefreshToken, nil)
		require.NoError(t, err)
	})

	t.Run("rotation", func(t *testing.T) {
		t.Parallel()
		s := setupServer(t, func(c *app.Config) {
			c.OAuth.AlwaysIssueNewRefreshToken = true
		})
		tok := s.login(t)

		refreshed, err := s.client.RefreshGrant(t.Context(), s.conf, tok.RefreshToken, nil)
		require.NoError(t, err)
		assertTokenResponse(t, refreshed)
		require.NotEmpty(t, refreshed.RefreshToken)
		require.NotEqual(t, tok.RefreshToken, refreshed.RefreshToken, "refresh token should be rotated")

		_, err = s.client.RefreshGrant(t.Context(), s.conf, tok.RefreshToken, nil)
		requireOAuth2Error(t, err, authsdk.ErrorCodeInvalidGrant, http.StatusBadRequest)

		_, err = s.client.RefreshGrant(t.Context(), s.conf, refreshed.RefreshToken, nil)
		require.NoError(t, err)
	})
}
