package jwtx

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims are carried in the browser session cookie. The cookie only
// points at a server-side session; it grants nothing on its own.
type SessionClaims struct {
	jwt.RegisteredClaims

	// SID is the server-side session identifier.
	SID string `json:"sid"`
}

// NewSessionClaims builds claims for sid owned by subject, valid for ttl
// from now.
func NewSessionClaims(sid, subject, issuer string, ttl time.Duration, now time.Time) SessionClaims {
	return SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		SID: sid,
	}
}
