package migrations

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// RunPostgresMigrations applies all pending embedded migrations to the
// database at dsn.
func RunPostgresMigrations(dsn string) error {
	m, err := newPostgresMigrate(dsn)
	if err != nil {
		return err
	}
	defer closeMigrate(m)

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply postgres migrations: %w", err)
	}
	return nil
}

// RollbackPostgresMigration reverts the last applied migration.
func RollbackPostgresMigration(dsn string) error {
	m, err := newPostgresMigrate(dsn)
	if err != nil {
		return err
	}
	defer closeMigrate(m)

	if err := m.Steps(-1); err != nil {
		return fmt.Errorf("rollback postgres migration: %w", err)
	}
	return nil
}

// PostgresVersion returns the applied schema version and whether the last
// migration left the schema dirty. Zero means nothing has been applied.
func PostgresVersion(dsn string) (uint, bool, error) {
	m, err := newPostgresMigrate(dsn)
	if err != nil {
		return 0, false, err
	}
	defer closeMigrate(m)

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read postgres schema version: %w", err)
	}
	return version, dirty, nil
}

func newPostgresMigrate(dsn string) (*migrate.Migrate, error) {
	src, err := iofs.New(PostgresFS, "postgres")
	if err != nil {
		return nil, fmt.Errorf("open embedded postgres migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, pgx5URL(dsn))
	if err != nil {
		return nil, fmt.Errorf("create postgres migrator: %w", err)
	}
	return m, nil
}

func closeMigrate(m *migrate.Migrate) {
	_, _ = m.Close()
}

// pgx5URL rewrites a postgres:// DSN to the scheme of the pgx/v5 driver.
func pgx5URL(dsn string) string {
	for _, prefix := range []string{"postgresql://", "postgres://"} {
		if strings.HasPrefix(dsn, prefix) {
			return "pgx5://" + strings.TrimPrefix(dsn, prefix)
		}
	}
	return dsn
}
