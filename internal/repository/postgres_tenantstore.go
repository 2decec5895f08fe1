package repository

import (
	"context"
	"errors"
	"fmt"

	"armoree/backend/internal/logging"
	"armoree/backend/internal/tenancy"
	"armoree/backend/pkg/models"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresTenantStore is a PostgreSQL implementation of the TenantStore interface.
type PostgresTenantStore struct {
	db     *pgxpool.Pool
	logger *logging.Logger
}

var _ TenantStore = (*PostgresTenantStore)(nil)

// NewPostgresTenantStore creates a new PostgresTenantStore.
func NewPostgresTenantStore(db *pgxpool.Pool, logger *logging.Logger) *PostgresTenantStore {
	return &PostgresTenantStore{db: db, logger: logger}
}

// EnsurePublicTables creates public.user_tenants when it does not exist yet.
func (s *PostgresTenantStore) EnsurePublicTables(ctx context.Context) error {
	return migratePublic(ctx, s.db, s.logger)
}

// ProvisionTenant creates the schema, applies ddl inside it and inserts the
// mapping row in a single transaction. Postgres DDL is transactional, so a
// failure at any step leaves neither the schema nor the mapping behind.
func (s *PostgresTenantStore) ProvisionTenant(ctx context.Context, userID, schemaName, ddl string) (*models.TenantMapping, error) {
	ident := pgx.Identifier{schemaName}.Sanitize()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin provisioning transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Error("failed to roll back provisioning", "schema", schemaName, "error", rbErr)
		}
	}()

	if _, err := tx.Exec(ctx, "CREATE SCHEMA "+ident); err != nil {
		if isPgError(err, pgerrcode.DuplicateSchema) {
			return nil, fmt.Errorf("%w: %s", ErrSchemaExists, schemaName)
		}
		return nil, fmt.Errorf("failed to create schema %s: %w", schemaName, err)
	}

	if _, err := tx.Exec(ctx, "SET LOCAL search_path TO "+ident); err != nil {
		return nil, fmt.Errorf("failed to switch to schema %s: %w", schemaName, err)
	}

	if _, err := tx.Exec(ctx, ddl); err != nil {
		return nil, fmt.Errorf("failed to apply tenant template to %s: %w", schemaName, err)
	}

	if _, err := tx.Exec(ctx, "SET LOCAL search_path TO public"); err != nil {
		return nil, fmt.Errorf("failed to restore search_path: %w", err)
	}

	mapping := models.TenantMapping{UserID: userID, SchemaName: schemaName}
	err = tx.QueryRow(ctx,
		"INSERT INTO public.user_tenants (user_id, schema_name) VALUES ($1, $2) RETURNING id, created_at",
		userID, schemaName,
	).Scan(&mapping.ID, &mapping.CreatedAt)
	if err != nil {
		if isPgError(err, pgerrcode.UniqueViolation) {
			return nil, fmt.Errorf("%w: %s", ErrTenantAlreadyRegistered, userID)
		}
		return nil, fmt.Errorf("failed to record tenant mapping: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit tenant provisioning: %w", err)
	}

	return &mapping, nil
}

// GetTenantMapping returns the mapping row for userID.
func (s *PostgresTenantStore) GetTenantMapping(ctx context.Context, userID string) (*models.TenantMapping, error) {
	rows, err := s.db.Query(ctx,
		"SELECT id, user_id, schema_name, created_at FROM public.user_tenants WHERE user_id = $1 LIMIT 2",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query tenant mapping: %w", err)
	}

	mapping, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[models.TenantMapping])
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, ErrTenantNotFound
	case errors.Is(err, pgx.ErrTooManyRows):
		return nil, ErrAmbiguousTenant
	case err != nil:
		return nil, fmt.Errorf("failed to read tenant mapping: %w", err)
	}

	return &mapping, nil
}

// WithTenant runs fn inside a transaction scoped to the resolved schema.
// Anything but a Resolved resolution is refused before touching the database.
func (s *PostgresTenantStore) WithTenant(ctx context.Context, res tenancy.Resolution, fn func(pgx.Tx) error) error {
	schemaName, err := res.Require()
	if err != nil {
		return err
	}

	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "SET LOCAL search_path TO "+pgx.Identifier{schemaName}.Sanitize()); err != nil {
			return fmt.Errorf("failed to switch to schema %s: %w", schemaName, err)
		}
		return fn(tx)
	})
}

// ListTenantTables lists the base tables of the resolved tenant's schema.
func (s *PostgresTenantStore) ListTenantTables(ctx context.Context, res tenancy.Resolution) ([]string, error) {
	var tables []string
	err := s.WithTenant(ctx, res, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx,
			"SELECT table_name::text FROM information_schema.tables WHERE table_schema = current_schema() AND table_type = 'BASE TABLE' ORDER BY table_name",
		)
		if err != nil {
			return err
		}
		tables, err = pgx.CollectRows(rows, pgx.RowTo[string])
		return err
	})
	if err != nil {
		return nil, err
	}
	return tables, nil
}

// Ping checks that the database is reachable.
func (s *PostgresTenantStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func isPgError(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
