package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/oauth/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/oauth/store"
	"github.com/aussiebroadwan/gatekeeper/pkg/cryptox"
)

type authorizationCodesRepo struct {
	q   dbtx
	now func() time.Time
}

const getAuthorizationCode = `
SELECT client_id, user_id, redirect_uri, expires, scope, code_challenge, code_challenge_method
FROM oauth_authorization_codes
WHERE authorization_code = ?`

func (r *authorizationCodesRepo) GetAuthorizationCode(ctx context.Context, code string) (domain.AuthorizationCode, error) {
	var (
		clientID                   string
		userID, redirectURI, scope sql.NullString
		challenge, challengeMethod sql.NullString
		expires                    sqlTime
	)
	err := r.q.QueryRowContext(ctx, getAuthorizationCode, cryptox.FingerprintToken(code)).
		Scan(&clientID, &userID, &redirectURI, &expires, &scope, &challenge, &challengeMethod)
	if err != nil {
		return domain.AuthorizationCode{}, mapNotFound(err)
	}
	if !expires.Time.After(r.now()) {
		return domain.AuthorizationCode{}, store.ErrNotFound
	}

	return domain.AuthorizationCode{
		Code:                code,
		ClientID:            clientID,
		UserID:              userID.String,
		RedirectURI:         redirectURI.String,
		Expires:             expires.Time,
		Scope:               scope.String,
		CodeChallenge:       challenge.String,
		CodeChallengeMethod: challengeMethod.String,
	}, nil
}

const setAuthorizationCode = `
INSERT INTO oauth_authorization_codes
    (authorization_code, client_id, user_id, redirect_uri, expires, scope, code_challenge, code_challenge_method)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (authorization_code) DO UPDATE SET
    client_id             = excluded.client_id,
    user_id               = excluded.user_id,
    redirect_uri          = excluded.redirect_uri,
    expires               = excluded.expires,
    scope                 = excluded.scope,
    code_challenge        = excluded.code_challenge,
    code_challenge_method = excluded.code_challenge_method`

func (r *authorizationCodesRepo) SetAuthorizationCode(ctx context.Context, c domain.AuthorizationCode) error {
	_, err := r.q.ExecContext(ctx, setAuthorizationCode,
		cryptox.FingerprintToken(c.Code),
		c.ClientID,
		nullString(c.UserID),
		nullString(c.RedirectURI),
		formatTime(c.Expires),
		nullString(c.Scope),
		nullString(c.CodeChallenge),
		nullString(c.CodeChallengeMethod),
	)
	return err
}

const expireAuthorizationCode = `
UPDATE oauth_authorization_codes
SET expires = ?
WHERE authorization_code = ? AND expires > ?`

func (r *authorizationCodesRepo) ExpireAuthorizationCode(ctx context.Context, code string) error {
	now := formatTime(r.now())
	res, err := r.q.ExecContext(ctx, expireAuthorizationCode, now, cryptox.FingerprintToken(code), now)
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
