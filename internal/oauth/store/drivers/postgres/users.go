package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/oauth/domain"
	"github.com/jackc/pgx/v5/pgtype"
)

type usersRepo struct {
	q querier
}

const (
	userColumns        = `id, email, password_hash, enabled, verified, last_login, created_at`
	getUserByEmail     = `SELECT ` + userColumns + ` FROM oauth_users WHERE email = $1`
	getUserByID        = `SELECT ` + userColumns + ` FROM oauth_users WHERE id = $1`
	createUser         = `INSERT INTO oauth_users (` + userColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	updatePasswordHash = `UPDATE oauth_users SET password_hash = $1 WHERE id = $2`
	touchLastLogin     = `UPDATE oauth_users SET last_login = $1 WHERE id = $2`
	setUserStatus      = `UPDATE oauth_users SET enabled = $1, verified = $2 WHERE id = $3`
)

func (r *usersRepo) getUser(ctx context.Context, query string, arg any) (domain.User, error) {
	var (
		u         domain.User
		lastLogin pgtype.Timestamptz
	)
	err := r.q.QueryRow(ctx, query, arg).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Enabled, &u.Verified, &lastLogin, &u.CreatedAt)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	if lastLogin.Valid {
		t := lastLogin.Time.UTC()
		u.LastLogin = &t
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return u, nil
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.getUser(ctx, getUserByEmail, normaliseEmail(email))
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	return r.getUser(ctx, getUserByID, id)
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	var lastLogin any
	if u.LastLogin != nil {
		lastLogin = u.LastLogin.UTC()
	}
	_, err := r.q.Exec(ctx, createUser,
		u.ID,
		normaliseEmail(u.Email),
		u.PasswordHash,
		u.Enabled,
		u.Verified,
		lastLogin,
		u.CreatedAt.UTC(),
	)
	return mapConstraint(err)
}

func (r *usersRepo) UpdatePasswordHash(ctx context.Context, userID, hash string) error {
	tag, err := r.q.Exec(ctx, updatePasswordHash, hash, userID)
	if err != nil {
		return err
	}
	return affectedOne(tag)
}

func (r *usersRepo) SetUserStatus(ctx context.Context, userID string, enabled, verified bool) error {
	tag, err := r.q.Exec(ctx, setUserStatus, enabled, verified, userID)
	if err != nil {
		return err
	}
	return affectedOne(tag)
}

func (r *usersRepo) TouchLastLogin(ctx context.Context, userID string, at time.Time) error {
	tag, err := r.q.Exec(ctx, touchLastLogin, at.UTC(), userID)
	if err != nil {
		return err
	}
	return affectedOne(tag)
}
