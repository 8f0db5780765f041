package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/oauth/store"
)

type txStore struct {
	tx  *sql.Tx
	now func() time.Time
}

func (t *txStore) Commit() error   { return t.tx.Commit() }
func (t *txStore) Rollback() error { return t.tx.Rollback() }

// Close is a no-op; the outer Store owns the connection.
func (t *txStore) Close() error { return nil }

func (t *txStore) Ping(context.Context) error { return nil }

func (t *txStore) Now() time.Time { return t.now().UTC() }

// Nested transactions are not supported.
func (t *txStore) Tx(context.Context) (store.Tx, error) { return nil, sql.ErrTxDone }

func (t *txStore) WithTx(context.Context, func(store.Tx) error) error { return sql.ErrTxDone }

func (t *txStore) ApplyMigrations() error { return nil }

func (t *txStore) AccessTokens() store.AccessTokens { return &accessTokensRepo{q: t.tx, now: t.Now} }
func (t *txStore) RefreshTokens() store.RefreshTokens {
	return &refreshTokensRepo{q: t.tx, now: t.Now}
}
func (t *txStore) AuthorizationCodes() store.AuthorizationCodes {
	return &authorizationCodesRepo{q: t.tx, now: t.Now}
}
func (t *txStore) Clients() store.Clients { return &clientsRepo{q: t.tx} }
func (t *txStore) Users() store.Users     { return &usersRepo{q: t.tx} }
