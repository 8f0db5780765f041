package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/oauth/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/oauth/store"
)

type usersRepo struct {
	q dbtx
}

const userColumns = `id, email, password_hash, enabled, verified, last_login, created_at`

func (r *usersRepo) getUser(ctx context.Context, where string, arg any) (domain.User, error) {
	var (
		u                    domain.User
		lastLogin, createdAt sqlTime
	)
	err := r.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM oauth_users WHERE `+where, arg).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Enabled, &u.Verified, &lastLogin, &createdAt)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	u.LastLogin = lastLogin.ptr()
	u.CreatedAt = createdAt.Time
	return u, nil
}

// Emails are stored and looked up lower-cased.
func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.getUser(ctx, `email = ?`, normaliseEmail(email))
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	return r.getUser(ctx, `id = ?`, id)
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	var lastLogin any
	if u.LastLogin != nil {
		lastLogin = formatTime(*u.LastLogin)
	}
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO oauth_users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID,
		normaliseEmail(u.Email),
		u.PasswordHash,
		u.Enabled,
		u.Verified,
		lastLogin,
		formatTime(u.CreatedAt),
	)
	return mapConstraint(err)
}

func (r *usersRepo) UpdatePasswordHash(ctx context.Context, userID, hash string) error {
	return r.updateOne(ctx, `UPDATE oauth_users SET password_hash = ? WHERE id = ?`, hash, userID)
}

func (r *usersRepo) SetUserStatus(ctx context.Context, userID string, enabled, verified bool) error {
	return r.updateOne(ctx, `UPDATE oauth_users SET enabled = ?, verified = ? WHERE id = ?`, enabled, verified, userID)
}

func (r *usersRepo) TouchLastLogin(ctx context.Context, userID string, at time.Time) error {
	return r.updateOne(ctx, `UPDATE oauth_users SET last_login = ? WHERE id = ?`, formatTime(at), userID)
}

func (r *usersRepo) updateOne(ctx context.Context, query string, args ...any) error {
	res, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
