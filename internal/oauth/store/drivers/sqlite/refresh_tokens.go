package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/oauth/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/oauth/store"
	"github.com/aussiebroadwan/gatekeeper/pkg/cryptox"
)

type refreshTokensRepo struct {
	q   dbtx
	now func() time.Time
}

const getRefreshToken = `
SELECT client_id, user_id, expires, scope
FROM oauth_refresh_tokens
WHERE refresh_token = ?`

func (r *refreshTokensRepo) GetRefreshToken(ctx context.Context, token string) (domain.RefreshToken, error) {
	var (
		clientID      string
		userID, scope sql.NullString
		expires       sqlTime
	)
	err := r.q.QueryRowContext(ctx, getRefreshToken, cryptox.FingerprintToken(token)).
		Scan(&clientID, &userID, &expires, &scope)
	if err != nil {
		return domain.RefreshToken{}, mapNotFound(err)
	}
	if !expires.Time.After(r.now()) {
		return domain.RefreshToken{}, store.ErrNotFound
	}

	return domain.RefreshToken{
		Token:    token,
		ClientID: clientID,
		UserID:   userID.String,
		Expires:  expires.Time,
		Scope:    scope.String,
	}, nil
}

const setRefreshToken = `
INSERT INTO oauth_refresh_tokens (refresh_token, client_id, user_id, expires, scope)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (refresh_token) DO UPDATE SET
    client_id = excluded.client_id,
    user_id   = excluded.user_id,
    expires   = excluded.expires,
    scope     = excluded.scope`

func (r *refreshTokensRepo) SetRefreshToken(ctx context.Context, t domain.RefreshToken) error {
	_, err := r.q.ExecContext(ctx, setRefreshToken,
		cryptox.FingerprintToken(t.Token),
		t.ClientID,
		nullString(t.UserID),
		formatTime(t.Expires),
		nullString(t.Scope),
	)
	return err
}

func (r *refreshTokensRepo) UnsetRefreshToken(ctx context.Context, token string) error {
	_, err := r.q.ExecContext(ctx,
		`DELETE FROM oauth_refresh_tokens WHERE refresh_token = ?`,
		cryptox.FingerprintToken(token),
	)
	return err
}
