package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformed    = errors.New("jwtx: malformed token")
	ErrInvalidSig   = errors.New("jwtx: invalid signature")
	ErrIssuer       = errors.New("jwtx: issuer mismatch")
	ErrExpired      = errors.New("jwtx: token expired")
	ErrNotYetValid  = errors.New("jwtx: token not yet valid")
	ErrInvalidClaim = errors.New("jwtx: invalid claims")
	ErrShortSecret  = errors.New("jwtx: secret must be at least 32 bytes")
)

// MinSecretSize is the shortest HMAC secret NewHS256 accepts.
const MinSecretSize = 32

// HS256 signs and verifies session tokens with a shared secret.
type HS256 struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// Option configures an HS256 codec.
type Option func(*HS256)

// WithClock overrides the time source used for validation.
func WithClock(now func() time.Time) Option {
	return func(c *HS256) { c.now = now }
}

// NewHS256 returns a codec keyed by secret. Tokens it verifies must carry
// issuer as their iss claim.
func NewHS256(secret []byte, issuer string, opts ...Option) (*HS256, error) {
	if len(secret) < MinSecretSize {
		return nil, ErrShortSecret
	}
	c := &HS256{
		secret: secret,
		issuer: issuer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Issuer returns the iss value this codec expects.
func (c *HS256) Issuer() string { return c.issuer }

// Sign serialises claims as a compact JWS.
func (c *HS256) Sign(claims SessionClaims) (string, error) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := tok.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("jwtx: sign: %w", err)
	}
	return s, nil
}

// Verify parses token, checks its signature, issuer and validity window,
// and returns its claims.
func (c *HS256) Verify(token string) (SessionClaims, error) {
	var claims SessionClaims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return SessionClaims{}, classify(err)
	}
	if claims.SID == "" {
		return SessionClaims{}, ErrInvalidClaim
	}
	return claims, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrInvalidSig
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return ErrNotYetValid
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return ErrIssuer
	default:
		return fmt.Errorf("%w: %w", ErrInvalidClaim, err)
	}
}
