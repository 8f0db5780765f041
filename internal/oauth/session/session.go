// Package session keeps the "signed in" marker that lets the authorize
// endpoint skip the login form for a returning user.
package session

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("session: not found")

// Session is a server-side login marker.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Store persists sessions. Implementations drop sessions at ExpiresAt.
type Store interface {
	Save(ctx context.Context, s Session) error
	// Get returns ErrNotFound for unknown and expired sessions.
	Get(ctx context.Context, id string) (Session, error)
	Delete(ctx context.Context, id string) error
	// DeleteUser removes every session belonging to userID.
	DeleteUser(ctx context.Context, userID string) error
	Ping(ctx context.Context) error
	Close() error
}
