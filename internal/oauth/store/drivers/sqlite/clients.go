package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/aussiebroadwan/gatekeeper/internal/oauth/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/oauth/store"
)

type clientsRepo struct {
	q dbtx
}

const clientColumns = `client_id, client_secret, grant_types, redirect_uri, scope, user_id`

type clientScanner interface {
	Scan(dest ...any) error
}

func scanClient(row clientScanner) (domain.Client, error) {
	var (
		id                                   string
		secret, grantTypes, redirects, scope sql.NullString
		userID                               sql.NullString
	)
	if err := row.Scan(&id, &secret, &grantTypes, &redirects, &scope, &userID); err != nil {
		return domain.Client{}, err
	}
	return domain.Client{
		ID:           id,
		Secret:       secret.String,
		GrantTypes:   splitFields(grantTypes),
		RedirectURIs: splitFields(redirects),
		Scope:        scope.String,
		UserID:       userID.String,
	}, nil
}

func (r *clientsRepo) GetClientDetails(ctx context.Context, clientID string) (domain.Client, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+clientColumns+` FROM oauth_clients WHERE client_id = ?`, clientID)
	c, err := scanClient(row)
	if err != nil {
		return domain.Client{}, mapNotFound(err)
	}
	return c, nil
}

func (r *clientsRepo) CheckClientCredentials(ctx context.Context, clientID, secret string) (bool, error) {
	c, err := r.GetClientDetails(ctx, clientID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return store.SecretMatches(c, secret), nil
}

func (r *clientsRepo) CheckRestrictedGrantType(ctx context.Context, clientID, grantType string) (bool, error) {
	c, err := r.GetClientDetails(ctx, clientID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return c.AllowsGrantType(grantType), nil
}

func (r *clientsRepo) CreateClient(ctx context.Context, c domain.Client) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO oauth_clients (`+clientColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID,
		nullString(c.Secret),
		joinFields(c.GrantTypes),
		joinFields(c.RedirectURIs),
		nullString(c.Scope),
		nullString(c.UserID),
	)
	return mapConstraint(err)
}

func (r *clientsRepo) ListClients(ctx context.Context) ([]domain.Client, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+clientColumns+` FROM oauth_clients ORDER BY client_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
