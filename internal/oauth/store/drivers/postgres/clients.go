package postgres

import (
	"context"
	"errors"

	"github.com/aussiebroadwan/gatekeeper/internal/oauth/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/oauth/store"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

type clientsRepo struct {
	q querier
}

const (
	getClient    = `SELECT client_id, client_secret, grant_types, redirect_uri, scope, user_id FROM oauth_clients WHERE client_id = $1`
	listClients  = `SELECT client_id, client_secret, grant_types, redirect_uri, scope, user_id FROM oauth_clients ORDER BY client_id`
	createClient = `INSERT INTO oauth_clients (client_id, client_secret, grant_types, redirect_uri, scope, user_id)
VALUES ($1, $2, $3, $4, $5, $6)`
)

func scanClient(row pgx.Row) (domain.Client, error) {
	var (
		id                                   string
		secret, grantTypes, redirects, scope pgtype.Text
		userID                               pgtype.Text
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
	c, err := scanClient(r.q.QueryRow(ctx, getClient, clientID))
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
	_, err := r.q.Exec(ctx, createClient,
		c.ID,
		nullable(c.Secret),
		joinFields(c.GrantTypes),
		joinFields(c.RedirectURIs),
		nullable(c.Scope),
		nullable(c.UserID),
	)
	return mapConstraint(err)
}

func (r *clientsRepo) ListClients(ctx context.Context) ([]domain.Client, error) {
	rows, err := r.q.Query(ctx, listClients)
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
