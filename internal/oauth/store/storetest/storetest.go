package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/oauth/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/oauth/store"
	"github.com/aussiebroadwan/gatekeeper/pkg/cryptox"
	"github.com/aussiebroadwan/gatekeeper/pkg/idx"
	"github.com/stretchr/testify/require"
)

// Opener returns a migrated, empty-enough store whose Now follows clock.
// Suites create their own rows with unique identifiers, so a shared
// database is fine.
type Opener func(t *testing.T, clock *Clock) store.Store

var epoch = time.Date(2030, 6, 1, 12, 0, 0, 0, time.UTC)

// Run exercises the store contract against open.
func Run(t *testing.T, open Opener) {
	t.Helper()

	t.Run("AccessTokens", func(t *testing.T) { testAccessTokens(t, open) })
	t.Run("RefreshTokens", func(t *testing.T) { testRefreshTokens(t, open) })
	t.Run("AuthorizationCodes", func(t *testing.T) { testAuthorizationCodes(t, open) })
	t.Run("Clients", func(t *testing.T) { testClients(t, open) })
	t.Run("Users", func(t *testing.T) { testUsers(t, open) })
	t.Run("Transactions", func(t *testing.T) { testTransactions(t, open) })
}

// SeedClient inserts a public client with a unique id and returns it.
func SeedClient(t *testing.T, st store.Store, mutate ...func(*domain.Client)) domain.Client {
	t.Helper()
	c := domain.Client{ID: "client-" + idx.New().String()}
	for _, m := range mutate {
		m(&c)
	}
	require.NoError(t, st.Clients().CreateClient(context.Background(), c))
	return c
}

func newToken(t *testing.T) string {
	t.Helper()
	tok, err := cryptox.GenerateToken(cryptox.TokenSize256)
	require.NoError(t, err)
	return tok
}

func testAccessTokens(t *testing.T, open Opener) {
	ctx := context.Background()

	t.Run("round trip echoes presented token", func(t *testing.T) {
		clock := NewClock(epoch)
		st := open(t, clock)
		c := SeedClient(t, st)
		tok := newToken(t)

		require.NoError(t, st.AccessTokens().SetAccessToken(ctx, domain.AccessToken{
			Token: tok, ClientID: c.ID, UserID: "u1", Expires: clock.Now().Add(time.Hour), Scope: "read write",
		}))

		got, err := st.AccessTokens().GetAccessToken(ctx, tok)
		require.NoError(t, err)
		require.Equal(t, tok, got.Token)
		require.Equal(t, c.ID, got.ClientID)
		require.Equal(t, "u1", got.UserID)
		require.Equal(t, "read write", got.Scope)
		require.WithinDuration(t, clock.Now().Add(time.Hour), got.Expires, time.Millisecond)
	})

	t.Run("null user and scope", func(t *testing.T) {
		clock := NewClock(epoch)
		st := open(t, clock)
		c := SeedClient(t, st)
		tok := newToken(t)

		require.NoError(t, st.AccessTokens().SetAccessToken(ctx, domain.AccessToken{
			Token: tok, ClientID: c.ID, Expires: clock.Now().Add(time.Hour),
		}))
		got, err := st.AccessTokens().GetAccessToken(ctx, tok)
		require.NoError(t, err)
		require.Empty(t, got.UserID)
		require.Empty(t, got.Scope)
	})

	t.Run("upsert is idempotent and last write wins", func(t *testing.T) {
		clock := NewClock(epoch)
		st := open(t, clock)
		c := SeedClient(t, st)
		tok := newToken(t)

		rec := domain.AccessToken{Token: tok, ClientID: c.ID, UserID: "u1", Expires: clock.Now().Add(time.Hour), Scope: "read"}
		require.NoError(t, st.AccessTokens().SetAccessToken(ctx, rec))
		require.NoError(t, st.AccessTokens().SetAccessToken(ctx, rec))

		rec.Scope = "read write"
		rec.Expires = clock.Now().Add(2 * time.Hour)
		require.NoError(t, st.AccessTokens().SetAccessToken(ctx, rec))

		got, err := st.AccessTokens().GetAccessToken(ctx, tok)
		require.NoError(t, err)
		require.Equal(t, "read write", got.Scope)
		require.WithinDuration(t, clock.Now().Add(2*time.Hour), got.Expires, time.Millisecond)
	})

	t.Run("expired token is not found", func(t *testing.T) {
		clock := NewClock(epoch)
		st := open(t, clock)
		c := SeedClient(t, st)
		tok := newToken(t)

		require.NoError(t, st.AccessTokens().SetAccessToken(ctx, domain.AccessToken{
			Token: tok, ClientID: c.ID, Expires: clock.Now().Add(time.Minute),
		}))

		clock.Advance(time.Minute)
		_, err := st.AccessTokens().GetAccessToken(ctx, tok)
		require.ErrorIs(t, err, store.ErrNotFound, "expiry at exactly now must not authorize")

		clock.Advance(time.Hour)
		_, err = st.AccessTokens().GetAccessToken(ctx, tok)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("unknown token", func(t *testing.T) {
		st := open(t, NewClock(epoch))
		_, err := st.AccessTokens().GetAccessToken(ctx, "does-not-exist")
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}

func testRefreshTokens(t *testing.T, open Opener) {
	ctx := context.Background()

	t.Run("set get unset", func(t *testing.T) {
		clock := NewClock(epoch)
		st := open(t, clock)
		c := SeedClient(t, st)
		tok := newToken(t)

		require.NoError(t, st.RefreshTokens().SetRefreshToken(ctx, domain.RefreshToken{
			Token: tok, ClientID: c.ID, UserID: "u1", Expires: clock.Now().Add(time.Hour), Scope: "read",
		}))

		got, err := st.RefreshTokens().GetRefreshToken(ctx, tok)
		require.NoError(t, err)
		require.Equal(t, tok, got.Token)
		require.Equal(t, "u1", got.UserID)
		require.Equal(t, "read", got.Scope)

		require.NoError(t, st.RefreshTokens().UnsetRefreshToken(ctx, tok))
		_, err = st.RefreshTokens().GetRefreshToken(ctx, tok)
		require.ErrorIs(t, err, store.ErrNotFound)

		require.NoError(t, st.RefreshTokens().UnsetRefreshToken(ctx, tok), "unsetting twice is harmless")
	})

	t.Run("expired refresh token is not found", func(t *testing.T) {
		clock := NewClock(epoch)
		st := open(t, clock)
		c := SeedClient(t, st)
		tok := newToken(t)

		require.NoError(t, st.RefreshTokens().SetRefreshToken(ctx, domain.RefreshToken{
			Token: tok, ClientID: c.ID, UserID: "u1", Expires: clock.Now().Add(time.Second),
		}))
		clock.Advance(2 * time.Second)

		_, err := st.RefreshTokens().GetRefreshToken(ctx, tok)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("upsert replaces fields", func(t *testing.T) {
		clock := NewClock(epoch)
		st := open(t, clock)
		c := SeedClient(t, st)
		tok := newToken(t)

		rec := domain.RefreshToken{Token: tok, ClientID: c.ID, UserID: "u1", Expires: clock.Now().Add(time.Hour)}
		require.NoError(t, st.RefreshTokens().SetRefreshToken(ctx, rec))
		rec.UserID = "u2"
		require.NoError(t, st.RefreshTokens().SetRefreshToken(ctx, rec))

		got, err := st.RefreshTokens().GetRefreshToken(ctx, tok)
		require.NoError(t, err)
		require.Equal(t, "u2", got.UserID)
	})
}

func testAuthorizationCodes(t *testing.T, open Opener) {
	ctx := context.Background()

	seed := func(t *testing.T, st store.Store, clock *Clock) domain.AuthorizationCode {
		c := SeedClient(t, st)
		code := domain.AuthorizationCode{
			Code:                newToken(t),
			ClientID:            c.ID,
			UserID:              "u1",
			RedirectURI:         "https://app.example.com/cb",
			Expires:             clock.Now().Add(30 * time.Second),
			Scope:               "read",
			CodeChallenge:       "challenge",
			CodeChallengeMethod: domain.PKCEMethodS256,
		}
		require.NoError(t, st.AuthorizationCodes().SetAuthorizationCode(ctx, code))
		return code
	}

	t.Run("round trip", func(t *testing.T) {
		clock := NewClock(epoch)
		st := open(t, clock)
		want := seed(t, st, clock)

		got, err := st.AuthorizationCodes().GetAuthorizationCode(ctx, want.Code)
		require.NoError(t, err)
		require.Equal(t, want.Code, got.Code)
		require.Equal(t, want.ClientID, got.ClientID)
		require.Equal(t, want.RedirectURI, got.RedirectURI)
		require.Equal(t, want.Scope, got.Scope)
		require.Equal(t, want.CodeChallenge, got.CodeChallenge)
		require.Equal(t, want.CodeChallengeMethod, got.CodeChallengeMethod)
	})

	t.Run("expire is single use", func(t *testing.T) {
		clock := NewClock(epoch)
		st := open(t, clock)
		code := seed(t, st, clock)

		require.NoError(t, st.AuthorizationCodes().ExpireAuthorizationCode(ctx, code.Code))
		require.ErrorIs(t, st.AuthorizationCodes().ExpireAuthorizationCode(ctx, code.Code), store.ErrNotFound)

		_, err := st.AuthorizationCodes().GetAuthorizationCode(ctx, code.Code)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("expire after natural expiry", func(t *testing.T) {
		clock := NewClock(epoch)
		st := open(t, clock)
		code := seed(t, st, clock)

		clock.Advance(31 * time.Second)
		require.ErrorIs(t, st.AuthorizationCodes().ExpireAuthorizationCode(ctx, code.Code), store.ErrNotFound)
		_, err := st.AuthorizationCodes().GetAuthorizationCode(ctx, code.Code)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("expire unknown", func(t *testing.T) {
		st := open(t, NewClock(epoch))
		require.ErrorIs(t, st.AuthorizationCodes().ExpireAuthorizationCode(ctx, "nope"), store.ErrNotFound)
	})
}

func testClients(t *testing.T, open Opener) {
	ctx := context.Background()

	t.Run("create get list", func(t *testing.T) {
		st := open(t, NewClock(epoch))
		c := SeedClient(t, st, func(c *domain.Client) {
			c.Secret = "plain-secret"
			c.GrantTypes = []string{domain.GrantTypeAuthorizationCode, domain.GrantTypeRefreshToken}
			c.RedirectURIs = []string{"https://a.example.com/cb", "https://b.example.com/cb"}
			c.Scope = "read write"
			c.UserID = "owner"
		})

		got, err := st.Clients().GetClientDetails(ctx, c.ID)
		require.NoError(t, err)
		require.Equal(t, c, got)

		err = st.Clients().CreateClient(ctx, c)
		require.ErrorIs(t, err, store.ErrAlreadyExists)

		all, err := st.Clients().ListClients(ctx)
		require.NoError(t, err)
		require.Contains(t, all, c)

		_, err = st.Clients().GetClientDetails(ctx, "missing-"+idx.New().String())
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("check client credentials", func(t *testing.T) {
		st := open(t, NewClock(epoch))

		hash, err := cryptox.HashPassword("hashed-secret")
		require.NoError(t, err)

		plain := SeedClient(t, st, func(c *domain.Client) { c.Secret = "plain-secret" })
		hashed := SeedClient(t, st, func(c *domain.Client) { c.Secret = hash })
		public := SeedClient(t, st)

		tests := []struct {
			name     string
			clientID string
			secret   string
			want     bool
		}{
			{"plain match", plain.ID, "plain-secret", true},
			{"plain mismatch", plain.ID, "nope", false},
			{"hashed match", hashed.ID, "hashed-secret", true},
			{"hashed mismatch", hashed.ID, hash, false},
			{"public no secret", public.ID, "", true},
			{"public with secret", public.ID, "x", false},
			{"unknown client", "missing-" + idx.New().String(), "x", false},
		}
		for _, tt := range tests {
			ok, err := st.Clients().CheckClientCredentials(ctx, tt.clientID, tt.secret)
			require.NoError(t, err, tt.name)
			require.Equal(t, tt.want, ok, tt.name)
		}
	})

	t.Run("check restricted grant type", func(t *testing.T) {
		st := open(t, NewClock(epoch))
		unrestricted := SeedClient(t, st)
		restricted := SeedClient(t, st, func(c *domain.Client) { c.GrantTypes = []string{domain.GrantTypePassword} })

		ok, err := st.Clients().CheckRestrictedGrantType(ctx, unrestricted.ID, domain.GrantTypeAuthorizationCode)
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = st.Clients().CheckRestrictedGrantType(ctx, restricted.ID, domain.GrantTypePassword)
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = st.Clients().CheckRestrictedGrantType(ctx, restricted.ID, domain.GrantTypeRefreshToken)
		require.NoError(t, err)
		require.False(t, ok)

		ok, err = st.Clients().CheckRestrictedGrantType(ctx, "missing-"+idx.New().String(), domain.GrantTypePassword)
		require.NoError(t, err)
		require.False(t, ok)
	})
}

func testUsers(t *testing.T, open Opener) {
	ctx := context.Background()

	t.Run("lifecycle", func(t *testing.T) {
		clock := NewClock(epoch)
		st := open(t, clock)

		email := idx.New().String() + "@Example.com"
		u := domain.User{
			ID:           idx.New().String(),
			Email:        email,
			PasswordHash: "$2a$10$placeholder",
			Enabled:      true,
			Verified:     false,
			CreatedAt:    clock.Now(),
		}
		require.NoError(t, st.Users().CreateUser(ctx, u))
		require.ErrorIs(t, st.Users().CreateUser(ctx, u), store.ErrAlreadyExists)

		got, err := st.Users().GetUserByEmail(ctx, "  "+email+" ")
		require.NoError(t, err)
		require.Equal(t, u.ID, got.ID)
		require.True(t, got.Enabled)
		require.False(t, got.Verified)
		require.Nil(t, got.LastLogin)

		require.NoError(t, st.Users().UpdatePasswordHash(ctx, u.ID, "$2a$12$upgraded"))
		require.NoError(t, st.Users().TouchLastLogin(ctx, u.ID, clock.Now()))

		got, err = st.Users().GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		require.Equal(t, "$2a$12$upgraded", got.PasswordHash)
		require.NotNil(t, got.LastLogin)
		require.WithinDuration(t, clock.Now(), *got.LastLogin, time.Millisecond)

		require.NoError(t, st.Users().SetUserStatus(ctx, u.ID, false, true))
		got, err = st.Users().GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		require.False(t, got.Enabled)
		require.True(t, got.Verified)

		require.ErrorIs(t, st.Users().TouchLastLogin(ctx, "missing", clock.Now()), store.ErrNotFound)
		require.ErrorIs(t, st.Users().SetUserStatus(ctx, "missing", true, true), store.ErrNotFound)
		_, err = st.Users().GetUserByEmail(ctx, "missing@example.com")
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}

func testTransactions(t *testing.T, open Opener) {
	ctx := context.Background()

	t.Run("rollback discards writes", func(t *testing.T) {
		clock := NewClock(epoch)
		st := open(t, clock)
		c := SeedClient(t, st)
		tok := newToken(t)
		boom := errors.New("boom")

		err := st.WithTx(ctx, func(tx store.Tx) error {
			require.NoError(t, tx.AccessTokens().SetAccessToken(ctx, domain.AccessToken{
				Token: tok, ClientID: c.ID, Expires: tx.Now().Add(time.Hour),
			}))
			return boom
		})
		require.ErrorIs(t, err, boom)

		_, err = st.AccessTokens().GetAccessToken(ctx, tok)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("commit keeps writes", func(t *testing.T) {
		clock := NewClock(epoch)
		st := open(t, clock)
		c := SeedClient(t, st)
		tok := newToken(t)

		require.NoError(t, st.WithTx(ctx, func(tx store.Tx) error {
			return tx.RefreshTokens().SetRefreshToken(ctx, domain.RefreshToken{
				Token: tok, ClientID: c.ID, UserID: "u1", Expires: tx.Now().Add(time.Hour),
			})
		}))

		_, err := st.RefreshTokens().GetRefreshToken(ctx, tok)
		require.NoError(t, err)
	})
}
