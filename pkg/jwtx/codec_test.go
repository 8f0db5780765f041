package jwtx_test

import (
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

var secret = []byte(strings.Repeat("s", jwtx.MinSecretSize))

func TestNewHS256RejectsShortSecret(t *testing.T) {
	t.Parallel()

	_, err := jwtx.NewHS256([]byte("short"), "gatekeeper")
	require.ErrorIs(t, err, jwtx.ErrShortSecret)
}

func TestSignVerifyRoundTrip(t *testing.T) {
	t.Parallel()

	now := time.Now()
	c, err := jwtx.NewHS256(secret, "gatekeeper")
	require.NoError(t, err)

	tok, err := c.Sign(jwtx.NewSessionClaims("sess-1", "user-1", "gatekeeper", time.Hour, now))
	require.NoError(t, err)
	require.Equal(t, 2, strings.Count(tok, "."))

	claims, err := c.Verify(tok)
	require.NoError(t, err)
	require.Equal(t, "sess-1", claims.SID)
	require.Equal(t, "user-1", claims.Subject)
}

func TestVerifyFailures(t *testing.T) {
	t.Parallel()

	now := time.Now()
	good, err := jwtx.NewHS256(secret, "gatekeeper")
	require.NoError(t, err)

	other, err := jwtx.NewHS256([]byte(strings.Repeat("x", jwtx.MinSecretSize)), "gatekeeper")
	require.NoError(t, err)
	forged, err := other.Sign(jwtx.NewSessionClaims("s", "u", "gatekeeper", time.Hour, now))
	require.NoError(t, err)

	expired, err := good.Sign(jwtx.NewSessionClaims("s", "u", "gatekeeper", time.Minute, now.Add(-time.Hour)))
	require.NoError(t, err)

	wrongIss, err := good.Sign(jwtx.NewSessionClaims("s", "u", "someone-else", time.Hour, now))
	require.NoError(t, err)

	noSID, err := good.Sign(jwtx.NewSessionClaims("", "u", "gatekeeper", time.Hour, now))
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwtx.NewSessionClaims("s", "u", "gatekeeper", time.Hour, now))
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"garbage", "not-a-jwt", jwtx.ErrMalformed},
		{"wrong secret", forged, jwtx.ErrInvalidSig},
		{"expired", expired, jwtx.ErrExpired},
		{"wrong issuer", wrongIss, jwtx.ErrIssuer},
		{"missing sid", noSID, jwtx.ErrInvalidClaim},
		{"alg none", unsigned, jwtx.ErrInvalidSig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := good.Verify(tt.token)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestVerifyUsesInjectedClock(t *testing.T) {
	t.Parallel()

	issued := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	c, err := jwtx.NewHS256(secret, "gatekeeper", jwtx.WithClock(func() time.Time { return issued.Add(30 * time.Minute) }))
	require.NoError(t, err)

	tok, err := c.Sign(jwtx.NewSessionClaims("s", "u", "gatekeeper", time.Hour, issued))
	require.NoError(t, err)

	_, err = c.Verify(tok)
	require.NoError(t, err)
}
