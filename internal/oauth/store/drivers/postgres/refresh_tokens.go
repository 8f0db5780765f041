package postgres

import (
	"context"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/oauth/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/oauth/store"
	"github.com/aussiebroadwan/gatekeeper/pkg/cryptox"
	"github.com/jackc/pgx/v5/pgtype"
)

type refreshTokensRepo struct {
	q   querier
	now func() time.Time
}

const getRefreshToken = `SELECT client_id, user_id, expires, scope FROM oauth_refresh_tokens WHERE refresh_token = $1`

func (r *refreshTokensRepo) GetRefreshToken(ctx context.Context, token string) (domain.RefreshToken, error) {
	var (
		clientID      string
		userID, scope pgtype.Text
		expires       time.Time
	)
	err := r.q.QueryRow(ctx, getRefreshToken, cryptox.FingerprintToken(token)).
		Scan(&clientID, &userID, &expires, &scope)
	if err != nil {
		return domain.RefreshToken{}, mapNotFound(err)
	}
	if !expires.After(r.now()) {
		return domain.RefreshToken{}, store.ErrNotFound
	}

	return domain.RefreshToken{
		Token:    token,
		ClientID: clientID,
		UserID:   userID.String,
		Expires:  expires.UTC(),
		Scope:    scope.String,
	}, nil
}

const setRefreshToken = `INSERT INTO oauth_refresh_tokens (refresh_token, client_id, user_id, expires, scope)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (refresh_token) DO UPDATE SET
    client_id = EXCLUDED.client_id,
    user_id   = EXCLUDED.user_id,
    expires   = EXCLUDED.expires,
    scope     = EXCLUDED.scope`

func (r *refreshTokensRepo) SetRefreshToken(ctx context.Context, t domain.RefreshToken) error {
	_, err := r.q.Exec(ctx, setRefreshToken,
		cryptox.FingerprintToken(t.Token),
		t.ClientID,
		nullable(t.UserID),
		t.Expires.UTC(),
		nullable(t.Scope),
	)
	return err
}

const unsetRefreshToken = `DELETE FROM oauth_refresh_tokens WHERE refresh_token = $1`

func (r *refreshTokensRepo) UnsetRefreshToken(ctx context.Context, token string) error {
	_, err := r.q.Exec(ctx, unsetRefreshToken, cryptox.FingerprintToken(token))
	return err
}
