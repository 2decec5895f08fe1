package repository

import (
	"context"
	"errors"

	"armoree/backend/internal/tenancy"
	"armoree/backend/pkg/models"

	"github.com/jackc/pgx/v5"
)

var (
	// ErrTenantNotFound is returned when a user has no mapping row.
	ErrTenantNotFound = errors.New("no tenant registered for user")
	// ErrTenantAlreadyRegistered is returned when the user already owns a schema.
	ErrTenantAlreadyRegistered = errors.New("user already has a tenant")
	// ErrAmbiguousTenant is returned when more than one mapping row matches a user.
	ErrAmbiguousTenant = errors.New("multiple tenants registered for user")
	// ErrSchemaExists is returned when the derived schema name is already taken.
	ErrSchemaExists = errors.New("tenant schema already exists")
)

// TenantStore provisions tenant schemas and looks up the user to schema mapping.
type TenantStore interface {
	// EnsurePublicTables creates the shared mapping table when it is missing.
	EnsurePublicTables(ctx context.Context) error
	// ProvisionTenant creates schemaName, applies the DDL template inside it
	// and records the mapping for userID, all or nothing.
	ProvisionTenant(ctx context.Context, userID, schemaName, ddl string) (*models.TenantMapping, error)
	// GetTenantMapping returns the single mapping row for userID.
	GetTenantMapping(ctx context.Context, userID string) (*models.TenantMapping, error)
	// ListTenantTables lists the tables of the resolved tenant's schema.
	ListTenantTables(ctx context.Context, res tenancy.Resolution) ([]string, error)
	// WithTenant runs fn in a transaction whose search_path is the resolved schema.
	WithTenant(ctx context.Context, res tenancy.Resolution, fn func(pgx.Tx) error) error
	// Ping checks connectivity.
	Ping(ctx context.Context) error
}
