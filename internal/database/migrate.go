package database

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// RunMigrations brings the memory_entries schema up to date, applying
// any pending up-migrations from migrationsPath.
func RunMigrations(dsn, migrationsPath string) error {
	m, err := migrate.New("file://"+migrationsPath, dsn)
	if err != nil {
		return fmt.Errorf("opening migration source %s: %w", migrationsPath, err)
	}
	defer m.Close()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			slog.Info("memory schema already up to date")
			return nil
		}
		return fmt.Errorf("migrating memory schema: %w", err)
	}

	ver, dirty, _ := m.Version()
	slog.Info("memory schema migrated", "version", ver, "dirty", dirty)
	return nil
}
