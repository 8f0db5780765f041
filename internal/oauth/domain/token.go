package domain

import "time"

// TokenTypeBearer is the only token type issued.
const TokenTypeBearer = "bearer"

// AccessToken is a stored access token. Token holds the value the caller
// presented; only its fingerprint is persisted. Expired rows stay in
// storage and never authorize.
type AccessToken struct {
	Token    string
	ClientID string
	UserID   string // empty when not bound to a user
	Expires  time.Time
	Scope    string // space-delimited, empty when none
}

// RefreshToken is a stored refresh token bound to one client and user.
type RefreshToken struct {
	Token    string
	ClientID string
	UserID   string
	Expires  time.Time
	Scope    string
}

// TokenResult is what the token endpoint returns on success.
type TokenResult struct {
	AccessToken  string
	TokenType    string
	ExpiresIn    int // seconds
	RefreshToken string
	Scope        string
}

// Principal is the authenticated caller behind a bearer token.
type Principal struct {
	UserID      string
	ClientID    string
	Scope       string
	AccessToken string
}
