package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/aussiebroadwan/gatekeeper/internal/oauth/domain"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/argon2"
)

func TestAuthenticateCollapsesFailures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	f.addUser(t, "disabled@example.com", testPassword, func(u *domain.User) { u.Enabled = false })
	f.addUser(t, "unverified@example.com", testPassword, func(u *domain.User) { u.Verified = false })

	v := f.srv.Verifier()
	tests := []struct {
		name     string
		email    string
		password string
	}{
		{"unknown user", "nobody@example.com", testPassword},
		{"disabled user", "disabled@example.com", testPassword},
		{"unverified user", "unverified@example.com", testPassword},
		{"wrong password", testEmail, "wrong"},
		{"empty password", testEmail, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Authenticate(ctx, tt.email, tt.password)
			require.ErrorIs(t, err, ErrInvalidCredentials)
			require.Equal(t, ErrInvalidCredentials.Error(), err.Error())
		})
	}

	u, err := v.Authenticate(ctx, "  ALICE@example.com ", testPassword)
	require.NoError(t, err)
	require.Equal(t, f.user.ID, u.ID)
}

func TestAuthenticateUnverifiedAllowedWhenNotRequired(t *testing.T) {
	t.Parallel()
	f := newFixture(t, func(c *Config) { c.RequireVerification = false })
	f.addUser(t, "new@example.com", testPassword, func(u *domain.User) { u.Verified = false })

	_, err := f.srv.Verifier().Authenticate(context.Background(), "new@example.com", testPassword)
	require.NoError(t, err)
}

func TestReauthenticate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	v := f.srv.Verifier()

	u, err := v.Reauthenticate(ctx, f.user.ID)
	require.NoError(t, err)
	require.Equal(t, f.user.ID, u.ID)

	tests := []struct {
		name              string
		enabled, verified bool
	}{
		{"disabled", false, true},
		{"unverified", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, f.st.Users().SetUserStatus(ctx, f.user.ID, tt.enabled, tt.verified))
			_, err := v.Reauthenticate(ctx, f.user.ID)
			require.ErrorIs(t, err, ErrInvalidCredentials)
		})
	}

	_, err = v.Reauthenticate(ctx, "missing")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestCheckUserCredentials(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	v := f.srv.Verifier()

	ok, err := v.CheckUserCredentials(ctx, testEmail, testPassword)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = v.CheckUserCredentials(ctx, testEmail, "nope")
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = v.CheckUserCredentials(ctx, "ghost@example.com", testPassword)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestVerifyPasswordUsesCompare(t *testing.T) {
	t.Parallel()

	var calls int
	v := &CredentialVerifier{Compare: func(password, hash string) error {
		calls++
		if password == hash {
			return errors.New("plain text comparison must not pass")
		}
		return nil
	}}

	require.True(t, v.VerifyPassword("pw", "$2a$10$hash"))
	require.False(t, v.VerifyPassword("same", "same"))
	require.Equal(t, 2, calls)
}

func TestAuthenticateUpgradesLegacyHash(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	legacy := f.addUser(t, "legacy@example.com", "unused", func(u *domain.User) {
		u.PasswordHash = argon2idHash("legacy-password")
	})

	_, err := f.srv.Verifier().Authenticate(ctx, legacy.Email, "legacy-password")
	require.NoError(t, err)

	got, err := f.st.Users().GetUserByID(ctx, legacy.ID)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(got.PasswordHash, "$2a$"), "hash should be re-encoded with bcrypt")

	_, err = f.srv.Verifier().Authenticate(ctx, legacy.Email, "legacy-password")
	require.NoError(t, err)
}

func TestAuthenticateRehashFailureStillLogsIn(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	legacy := f.addUser(t, "legacy@example.com", "unused", func(u *domain.User) {
		u.PasswordHash = argon2idHash("legacy-password")
	})
	v := f.srv.Verifier()
	v.Rehash = func(string) (string, error) { return "", errors.New("no entropy") }

	_, err := v.Authenticate(ctx, legacy.Email, "legacy-password")
	require.NoError(t, err)

	got, err := f.st.Users().GetUserByID(ctx, legacy.ID)
	require.NoError(t, err)
	require.Equal(t, legacy.PasswordHash, got.PasswordHash)
}

func argon2idHash(password string) string {
	salt := []byte("0123456789abcdef")
	key := argon2.IDKey([]byte(password), salt, 1, 8*1024, 1, 32)
	return fmt.Sprintf("$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		8*1024, 1, 1,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)
}
