package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/oauth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface implemented by each driver. Work
// is split into sub-repositories; multi-step writes go through WithTx.
//
// Every Get on a token, refresh token or authorization code treats a row
// whose expiry is at or before Now as missing. Such rows are kept for audit.
type Store interface {
	AccessTokens() AccessTokens
	RefreshTokens() RefreshTokens
	AuthorizationCodes() AuthorizationCodes
	Clients() Clients
	Users() Users

	// Now is the clock all expiry decisions are made against.
	Now() time.Time

	ApplyMigrations() error

	// Tx starts a read/write transaction. The caller must Commit or Rollback.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn in a transaction, committing when fn returns nil and
	// rolling back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error
	Ping(ctx context.Context) error
}

// Tx is a Store scoped to one transaction.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type AccessTokens interface {
	GetAccessToken(ctx context.Context, token string) (domain.AccessToken, error)

	// SetAccessToken inserts t or, when the token already exists, replaces
	// its fields in the same statement.
	SetAccessToken(ctx context.Context, t domain.AccessToken) error
}

type RefreshTokens interface {
	GetRefreshToken(ctx context.Context, token string) (domain.RefreshToken, error)
	SetRefreshToken(ctx context.Context, t domain.RefreshToken) error

	// UnsetRefreshToken deletes the row outright. Used on rotation.
	UnsetRefreshToken(ctx context.Context, token string) error
}

type AuthorizationCodes interface {
	GetAuthorizationCode(ctx context.Context, code string) (domain.AuthorizationCode, error)
	SetAuthorizationCode(ctx context.Context, c domain.AuthorizationCode) error

	// ExpireAuthorizationCode sets the code's expiry to Now, but only while
	// it is still live. It returns ErrNotFound when no live code matched, so
	// of two concurrent exchanges exactly one succeeds.
	ExpireAuthorizationCode(ctx context.Context, code string) error
}

type Clients interface {
	GetClientDetails(ctx context.Context, clientID string) (domain.Client, error)

	// CheckClientCredentials reports whether secret authenticates the
	// client. Unknown clients yield false with no error.
	CheckClientCredentials(ctx context.Context, clientID, secret string) (bool, error)

	// CheckRestrictedGrantType reports whether the client may use
	// grantType. Unknown clients yield false with no error.
	CheckRestrictedGrantType(ctx context.Context, clientID, grantType string) (bool, error)

	CreateClient(ctx context.Context, c domain.Client) error
	ListClients(ctx context.Context) ([]domain.Client, error)
}

type Users interface {
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)
	GetUserByID(ctx context.Context, id string) (domain.User, error)
	CreateUser(ctx context.Context, u domain.User) error
	UpdatePasswordHash(ctx context.Context, userID, hash string) error

	// SetUserStatus replaces the enabled and verified flags.
	SetUserStatus(ctx context.Context, userID string, enabled, verified bool) error
	TouchLastLogin(ctx context.Context, userID string, at time.Time) error
}
