package database

import (
	"database/sql"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"
)

// RunMigrations brings the conversation-history schema up to date from the
// SQL files in migrationsPath. Calling it again once current is a no-op.
// It needs a *sql.DB rather than the pgx pool; open one with the pgx stdlib
// driver just for this call.
func RunMigrations(db *sql.DB, migrationsPath string, logger *zap.Logger) error {
	log := logger.Named("migrations")

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("creating migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationsPath),
		"postgres", driver)
	if err != nil {
		return fmt.Errorf("creating migration instance for %s: %w", migrationsPath, err)
	}

	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil {
			log.Warn("Failed to close migration source", zap.Error(srcErr))
		}
		if dbErr != nil {
			log.Warn("Failed to close migration database handle", zap.Error(dbErr))
		}
	}()

	err = m.Up()
	if err == migrate.ErrNoChange {
		log.Info("Conversation store schema already up to date")
		return nil
	}
	if err != nil {
		return fmt.Errorf("applying migrations from %s: %w", migrationsPath, err)
	}

	version, _, _ := m.Version()
	log.Info("Applied conversation store migrations",
		zap.Uint("version", version),
		zap.String("path", migrationsPath))
	return nil
}
