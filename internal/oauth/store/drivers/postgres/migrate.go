package postgres

import (
	"errors"

	"github.com/aussiebroadwan/gatekeeper/internal/oauth/store/drivers/postgres/migrations"
	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/stdlib"
)

var errNoPool = errors.New("postgres: migrations need a live connection pool")

// ApplyMigrations brings the schema up to date from the embedded
// migrations.
func (s *Store) ApplyMigrations() error {
	if s.real == nil {
		return errNoPool
	}

	// The *sql.DB borrows connections from the pool and holds no idle ones.
	db := stdlib.OpenDBFromPool(s.real)

	driver, err := migratepgx.WithInstance(db, &migratepgx.Config{})
	if err != nil {
		return err
	}

	src, err := iofs.New(migrations.Migrations, ".")
	if err != nil {
		return err
	}

	m, err := migrate.NewWithInstance("iofs", src, "pgx5", driver)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
