package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/oauth/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/oauth/store"
	"github.com/aussiebroadwan/gatekeeper/pkg/cryptox"
)

type accessTokensRepo struct {
	q   dbtx
	now func() time.Time
}

const getAccessToken = `
SELECT client_id, user_id, expires, scope
FROM oauth_access_tokens
WHERE access_token = ?`

func (r *accessTokensRepo) GetAccessToken(ctx context.Context, token string) (domain.AccessToken, error) {
	var (
		clientID      string
		userID, scope sql.NullString
		expires       sqlTime
	)
	err := r.q.QueryRowContext(ctx, getAccessToken, cryptox.FingerprintToken(token)).
		Scan(&clientID, &userID, &expires, &scope)
	if err != nil {
		return domain.AccessToken{}, mapNotFound(err)
	}
	if !expires.Time.After(r.now()) {
		return domain.AccessToken{}, store.ErrNotFound
	}

	return domain.AccessToken{
		Token:    token,
		ClientID: clientID,
		UserID:   userID.String,
		Expires:  expires.Time,
		Scope:    scope.String,
	}, nil
}

const setAccessToken = `
INSERT INTO oauth_access_tokens (access_token, client_id, user_id, expires, scope)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (access_token) DO UPDATE SET
    client_id = excluded.client_id,
    user_id   = excluded.user_id,
    expires   = excluded.expires,
    scope     = excluded.scope`

func (r *accessTokensRepo) SetAccessToken(ctx context.Context, t domain.AccessToken) error {
	_, err := r.q.ExecContext(ctx, setAccessToken,
		cryptox.FingerprintToken(t.Token),
		t.ClientID,
		nullString(t.UserID),
		formatTime(t.Expires),
		nullString(t.Scope),
	)
	return err
}
