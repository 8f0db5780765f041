package postgres

import (
	"context"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/oauth/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/oauth/store"
	"github.com/aussiebroadwan/gatekeeper/pkg/cryptox"
	"github.com/jackc/pgx/v5/pgtype"
)

type accessTokensRepo struct {
	q   querier
	now func() time.Time
}

const getAccessToken = `SELECT client_id, user_id, expires, scope FROM oauth_access_tokens WHERE access_token = $1`

func (r *accessTokensRepo) GetAccessToken(ctx context.Context, token string) (domain.AccessToken, error) {
	var (
		clientID      string
		userID, scope pgtype.Text
		expires       time.Time
	)
	err := r.q.QueryRow(ctx, getAccessToken, cryptox.FingerprintToken(token)).
		Scan(&clientID, &userID, &expires, &scope)
	if err != nil {
		return domain.AccessToken{}, mapNotFound(err)
	}
	if !expires.After(r.now()) {
		return domain.AccessToken{}, store.ErrNotFound
	}

	return domain.AccessToken{
		Token:    token,
		ClientID: clientID,
		UserID:   userID.String,
		Expires:  expires.UTC(),
		Scope:    scope.String,
	}, nil
}

const setAccessToken = `INSERT INTO oauth_access_tokens (access_token, client_id, user_id, expires, scope)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (access_token) DO UPDATE SET
    client_id = EXCLUDED.client_id,
    user_id   = EXCLUDED.user_id,
    expires   = EXCLUDED.expires,
    scope     = EXCLUDED.scope`

func (r *accessTokensRepo) SetAccessToken(ctx context.Context, t domain.AccessToken) error {
	_, err := r.q.Exec(ctx, setAccessToken,
		cryptox.FingerprintToken(t.Token),
		t.ClientID,
		nullable(t.UserID),
		t.Expires.UTC(),
		nullable(t.Scope),
	)
	return err
}
