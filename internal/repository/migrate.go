package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"armoree/backend/internal/logging"

	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

const (
	migrationsSchema = "public"
	migrationsTable  = "armoree_schema_migrations"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// migratePublic applies the shared (public schema) migrations. Every
// migration is written with IF NOT EXISTS so running against a database that
// already has the tables is a no-op.
func migratePublic(ctx context.Context, pool *pgxpool.Pool, logger *logging.Logger) error {
	db := stdlib.OpenDBFromPool(pool)

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to read embedded migrations: %w", err)
	}

	// Pin the migrations table to public; tenant transactions change search_path.
	driver, err := pgxmigrate.WithInstance(db, &pgxmigrate.Config{
		MigrationsTable: migrationsTable,
		SchemaName:      migrationsSchema,
	})
	if err != nil {
		return fmt.Errorf("failed to create migrate driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration engine: %w", err)
	}
	defer func() {
		srcErr, dstErr := m.Close()
		if srcErr != nil {
			logger.Error("Source error when closing migrations", "error", srcErr)
		}
		if dstErr != nil {
			logger.Error("Destination error when closing migrations", "error", dstErr)
		}
	}()

	logger.Debug("Running public schema migrations")
	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	logger.Debug("Public schema migrated", "changes", !errors.Is(err, migrate.ErrNoChange))
	return nil
}
