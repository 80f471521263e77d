package db

import (
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
)

// RunMigrations applies pending schema migrations for the team, opt-in and
// mood tables. A dirty schema is forced back to its last version and retried.
func RunMigrations(databaseURL, migrationsPath string) error {
	conn, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer conn.Close()

	driver, err := postgres.WithInstance(conn, &postgres.Config{MigrationsTable: "meetup_bot_migrations"})
	if err != nil {
		return fmt.Errorf("create postgres driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsPath, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	before, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		log.Println("[DB] Fresh database, applying all migrations")
	case err != nil:
		return fmt.Errorf("read migration version: %w", err)
	case dirty:
		log.Printf("[DB] ⚠️ Schema is dirty at version %d, forcing clean state", before)
		if err := m.Force(int(before)); err != nil {
			return fmt.Errorf("force version %d: %w", before, err)
		}
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Printf("[DB] Schema up to date at version %d", before)
			return nil
		}
		return fmt.Errorf("apply migrations: %w", err)
	}

	after, _, _ := m.Version()
	log.Printf("[DB] ✅ Schema migrated to version %d", after)
	return nil
}
