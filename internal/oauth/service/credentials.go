package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/aussiebroadwan/gatekeeper/internal/oauth/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/oauth/store"
	"github.com/aussiebroadwan/gatekeeper/pkg/cryptox"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
)

// CredentialVerifier checks user passwords and client credentials against
// the store.
type CredentialVerifier struct {
	Store store.Store

	// RequireVerification rejects users whose email is not verified.
	RequireVerification bool

	// Compare checks a candidate password against a stored hash. It
	// defaults to cryptox.VerifyPassword.
	Compare func(password, hash string) error

	// Rehash produces the replacement for an outdated hash. It defaults
	// to cryptox.HashPassword.
	Rehash func(password string) (string, error)

	dummyOnce sync.Once
	dummyHash string
}

// NewCredentialVerifier returns a verifier using the default hashing.
func NewCredentialVerifier(st store.Store, requireVerification bool) *CredentialVerifier {
	return &CredentialVerifier{
		Store:               st,
		RequireVerification: requireVerification,
		Compare:             cryptox.VerifyPassword,
		Rehash:              cryptox.HashPassword,
	}
}

// VerifyPassword reports whether candidate matches storedHash.
func (v *CredentialVerifier) VerifyPassword(candidate, storedHash string) bool {
	compare := v.Compare
	if compare == nil {
		compare = cryptox.VerifyPassword
	}
	return compare(candidate, storedHash) == nil
}

// CheckUserCredentials reports whether email and password identify a user.
// It does not look at the enabled or verified flags.
func (v *CredentialVerifier) CheckUserCredentials(ctx context.Context, email, password string) (bool, error) {
	user, err := v.Store.Users().GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		v.burnComparison(password)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return v.VerifyPassword(password, user.PasswordHash), nil
}

// Authenticate returns the user identified by email and password. Every
// failure (unknown user, disabled, unverified, wrong password) is
// ErrInvalidCredentials; only storage failures differ.
func (v *CredentialVerifier) Authenticate(ctx context.Context, email, password string) (domain.User, error) {
	log := slogx.FromContext(ctx)

	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return domain.User{}, ErrInvalidCredentials
	}

	user, err := v.Store.Users().GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		v.burnComparison(password)
		log.Info("login rejected", slog.String("reason", "unknown_user"))
		return domain.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return domain.User{}, err
	}

	if !v.VerifyPassword(password, user.PasswordHash) {
		log.Info("login rejected", slog.String("reason", "bad_password"), slog.String("user_id", user.ID))
		return domain.User{}, ErrInvalidCredentials
	}
	if reason := v.standing(user); reason != "" {
		log.Info("login rejected", slog.String("reason", reason), slog.String("user_id", user.ID))
		return domain.User{}, ErrInvalidCredentials
	}

	if cryptox.NeedsRehash(user.PasswordHash) {
		v.upgradeHash(ctx, user, password)
	}
	return user, nil
}

// Reauthenticate re-reads the user behind a live session. A user that no
// longer exists, was disabled or is unverified while verification is
// required yields ErrInvalidCredentials.
func (v *CredentialVerifier) Reauthenticate(ctx context.Context, userID string) (domain.User, error) {
	user, err := v.Store.Users().GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		slogx.FromContext(ctx).Info("session rejected", slog.String("reason", "unknown_user"), slog.String("user_id", userID))
		return domain.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return domain.User{}, err
	}
	if reason := v.standing(user); reason != "" {
		slogx.FromContext(ctx).Info("session rejected", slog.String("reason", reason), slog.String("user_id", user.ID))
		return domain.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// standing names why user may not sign in, or returns "" when it may.
func (v *CredentialVerifier) standing(user domain.User) string {
	switch {
	case !user.Enabled:
		return "disabled"
	case v.RequireVerification && !user.Verified:
		return "unverified"
	}
	return ""
}

// CheckClient reports whether secret authenticates clientID.
func (v *CredentialVerifier) CheckClient(ctx context.Context, clientID, secret string) (bool, error) {
	return v.Store.Clients().CheckClientCredentials(ctx, clientID, secret)
}

// CheckGrantType reports whether clientID may use grantType.
func (v *CredentialVerifier) CheckGrantType(ctx context.Context, clientID, grantType string) (bool, error) {
	return v.Store.Clients().CheckRestrictedGrantType(ctx, clientID, grantType)
}

// upgradeHash re-encodes the password with the current algorithm. A
// failure leaves the old hash in place and the login still succeeds.
func (v *CredentialVerifier) upgradeHash(ctx context.Context, user domain.User, password string) {
	log := slogx.FromContext(ctx)

	rehash := v.Rehash
	if rehash == nil {
		rehash = cryptox.HashPassword
	}
	hash, err := rehash(password)
	if err != nil {
		log.Warn("password rehash failed", slog.String("user_id", user.ID), slog.Any("error", err))
		return
	}
	if err := v.Store.Users().UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		log.Warn("password rehash not stored", slog.String("user_id", user.ID), slog.Any("error", err))
		return
	}
	log.Info("password hash upgraded", slog.String("user_id", user.ID))
}

// burnComparison spends the same work as a real password check so an
// unknown email takes as long as a wrong password.
func (v *CredentialVerifier) burnComparison(password string) {
	v.dummyOnce.Do(func() {
		v.dummyHash, _ = cryptox.HashPassword("gatekeeper-timing-equaliser")
	})
	if v.dummyHash != "" {
		v.VerifyPassword(password, v.dummyHash)
	}
}
