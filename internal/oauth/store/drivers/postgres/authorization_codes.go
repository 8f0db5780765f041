package postgres

import (
	"context"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/oauth/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/oauth/store"
	"github.com/aussiebroadwan/gatekeeper/pkg/cryptox"
	"github.com/jackc/pgx/v5/pgtype"
)

type authorizationCodesRepo struct {
	q   querier
	now func() time.Time
}

const getAuthorizationCode = `SELECT client_id, user_id, redirect_uri, expires, scope, code_challenge, code_challenge_method
FROM oauth_authorization_codes WHERE authorization_code = $1`

func (r *authorizationCodesRepo) GetAuthorizationCode(ctx context.Context, code string) (domain.AuthorizationCode, error) {
	var (
		clientID                   string
		userID, redirectURI, scope pgtype.Text
		challenge, challengeMethod pgtype.Text
		expires                    time.Time
	)
	err := r.q.QueryRow(ctx, getAuthorizationCode, cryptox.FingerprintToken(code)).
		Scan(&clientID, &userID, &redirectURI, &expires, &scope, &challenge, &challengeMethod)
	if err != nil {
		return domain.AuthorizationCode{}, mapNotFound(err)
	}
	if !expires.After(r.now()) {
		return domain.AuthorizationCode{}, store.ErrNotFound
	}

	return domain.AuthorizationCode{
		Code:                code,
		ClientID:            clientID,
		UserID:              userID.String,
		RedirectURI:         redirectURI.String,
		Expires:             expires.UTC(),
		Scope:               scope.String,
		CodeChallenge:       challenge.String,
		CodeChallengeMethod: challengeMethod.String,
	}, nil
}

const setAuthorizationCode = `INSERT INTO oauth_authorization_codes
    (authorization_code, client_id, user_id, redirect_uri, expires, scope, code_challenge, code_challenge_method)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (authorization_code) DO UPDATE SET
    client_id             = EXCLUDED.client_id,
    user_id               = EXCLUDED.user_id,
    redirect_uri          = EXCLUDED.redirect_uri,
    expires               = EXCLUDED.expires,
    scope                 = EXCLUDED.scope,
    code_challenge        = EXCLUDED.code_challenge,
    code_challenge_method = EXCLUDED.code_challenge_method`

func (r *authorizationCodesRepo) SetAuthorizationCode(ctx context.Context, c domain.AuthorizationCode) error {
	_, err := r.q.Exec(ctx, setAuthorizationCode,
		cryptox.FingerprintToken(c.Code),
		c.ClientID,
		nullable(c.UserID),
		nullable(c.RedirectURI),
		c.Expires.UTC(),
		nullable(c.Scope),
		nullable(c.CodeChallenge),
		nullable(c.CodeChallengeMethod),
	)
	return err
}

// The row lock taken by UPDATE makes a concurrent exchange wait and then
// re-check the predicate, so only one caller sees a row affected.
const expireAuthorizationCode = `UPDATE oauth_authorization_codes SET expires = $1
WHERE authorization_code = $2 AND expires > $1`

func (r *authorizationCodesRepo) ExpireAuthorizationCode(ctx context.Context, code string) error {
	tag, err := r.q.Exec(ctx, expireAuthorizationCode, r.now(), cryptox.FingerprintToken(code))
	if err != nil {
		return err
	}
	return affectedOne(tag)
}
