package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

// RunMigrations applies every pending migration for the dialect.
func RunMigrations(d Dialect, dsn string) error {
	m, err := newMigrate(d, dsn)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// MigrationVersion reports the applied schema version; zero when none is applied.
func MigrationVersion(d Dialect, dsn string) (version uint, dirty bool, err error) {
	m, err := newMigrate(d, dsn)
	if err != nil {
		return 0, false, err
	}
	defer m.Close()

	version, dirty, err = m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read migration version: %w", err)
	}
	return version, dirty, nil
}

// newMigrate opens a dedicated connection: the migrate driver closes the
// handle it is given, so it must never share the store's pool.
func newMigrate(d Dialect, dsn string) (*migrate.Migrate, error) {
	migrateDB, err := sql.Open(d.DriverName(), d.DSN(dsn))
	if err != nil {
		return nil, fmt.Errorf("open migration database: %w", err)
	}

	var driver database.Driver
	switch d {
	case SQLite:
		driver, err = sqlite.WithInstance(migrateDB, &sqlite.Config{})
	case Postgres:
		driver, err = pgxmigrate.WithInstance(migrateDB, &pgxmigrate.Config{})
	default:
		err = fmt.Errorf("unsupported dialect %q", d)
	}
	if err != nil {
		migrateDB.Close()
		return nil, fmt.Errorf("create %s migration driver: %w", d, err)
	}

	src, err := iofs.New(migrationsFS, "migrations/"+string(d))
	if err != nil {
		driver.Close()
		return nil, fmt.Errorf("create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, string(d), driver)
	if err != nil {
		driver.Close()
		return nil, fmt.Errorf("create migrate instance: %w", err)
	}
	return m, nil
}
