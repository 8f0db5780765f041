package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/oauth/store"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is satisfied by the pool and by pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Pool is the subset of *pgxpool.Pool the store uses, so tests can
// substitute pgxmock.
type Pool interface {
	querier
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

type Store struct {
	pool Pool
	// real is set when the store owns a live pgxpool; migrations need it.
	real *pgxpool.Pool
	now  func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces the wall clock used for expiry decisions.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore connects to the database at dsn.
func NewStore(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	s := NewStoreFromPool(pool, opts...)
	s.real = pool
	return s, nil
}

// NewStoreFromPool wraps an existing pool. ApplyMigrations is unavailable
// unless the pool is a *pgxpool.Pool.
func NewStoreFromPool(pool Pool, opts ...Option) *Store {
	s := &Store{pool: pool, now: time.Now}
	if p, ok := pool.(*pgxpool.Pool); ok {
		s.real = p
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *Store) Now() time.Time { return s.now().UTC() }

func (s *Store) Tx(ctx context.Context) (store.Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &txStore{tx: tx, now: s.now}, nil
}

func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.Tx(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) AccessTokens() store.AccessTokens { return &accessTokensRepo{q: s.pool, now: s.Now} }
func (s *Store) RefreshTokens() store.RefreshTokens {
	return &refreshTokensRepo{q: s.pool, now: s.Now}
}
func (s *Store) AuthorizationCodes() store.AuthorizationCodes {
	return &authorizationCodesRepo{q: s.pool, now: s.Now}
}
func (s *Store) Clients() store.Clients { return &clientsRepo{q: s.pool} }
func (s *Store) Users() store.Users     { return &usersRepo{q: s.pool} }

type txStore struct {
	tx  pgx.Tx
	now func() time.Time
}

// Commit and Rollback take no context in the store interface; the
// transaction's own context already bounds them.
func (t *txStore) Commit() error { return t.tx.Commit(context.Background()) }

func (t *txStore) Rollback() error {
	err := t.tx.Rollback(context.Background())
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

func (t *txStore) Close() error                                       { return nil }
func (t *txStore) Ping(context.Context) error                         { return nil }
func (t *txStore) Now() time.Time                                     { return t.now().UTC() }
func (t *txStore) ApplyMigrations() error                             { return nil }
func (t *txStore) Tx(context.Context) (store.Tx, error)               { return nil, pgx.ErrTxClosed }
func (t *txStore) WithTx(context.Context, func(store.Tx) error) error { return pgx.ErrTxClosed }

func (t *txStore) AccessTokens() store.AccessTokens { return &accessTokensRepo{q: t.tx, now: t.Now} }
func (t *txStore) RefreshTokens() store.RefreshTokens {
	return &refreshTokensRepo{q: t.tx, now: t.Now}
}
func (t *txStore) AuthorizationCodes() store.AuthorizationCodes {
	return &authorizationCodesRepo{q: t.tx, now: t.Now}
}
func (t *txStore) Clients() store.Clients { return &clientsRepo{q: t.tx} }
func (t *txStore) Users() store.Users     { return &usersRepo{q: t.tx} }

func mapNotFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

func mapConstraint(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return store.ErrAlreadyExists
	}
	return err
}

// nullable maps the empty string to SQL NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func joinFields(v []string) any {
	return nullable(strings.Join(v, " "))
}

func splitFields(t pgtype.Text) []string {
	if !t.Valid {
		return nil
	}
	return strings.Fields(t.String)
}

func affectedOne(tag pgconn.CommandTag) error {
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
