package services

import (
	"context"

	"armoree/backend/internal/repository"
	"armoree/backend/internal/tenancy"
	"armoree/backend/pkg/models"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/mock"
)

// MockTenantStore satisfies repository.TenantStore
type MockTenantStore struct {
	mock.Mock
}

var _ repository.TenantStore = (*MockTenantStore)(nil)

func (m *MockTenantStore) EnsurePublicTables(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockTenantStore) ProvisionTenant(ctx context.Context, userID, schemaName, ddl string) (*models.TenantMapping, error) {
	args := m.Called(ctx, userID, schemaName, ddl)
	if fn, ok := args.Get(0).(func(context.Context, string, string, string) *models.TenantMapping); ok {
		return fn(ctx, userID, schemaName, ddl), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TenantMapping), args.Error(1)
}

func (m *MockTenantStore) GetTenantMapping(ctx context.Context, userID string) (*models.TenantMapping, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TenantMapping), args.Error(1)
}

func (m *MockTenantStore) ListTenantTables(ctx context.Context, res tenancy.Resolution) ([]string, error) {
	args := m.Called(ctx, res)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockTenantStore) WithTenant(ctx context.Context, res tenancy.Resolution, fn func(pgx.Tx) error) error {
	args := m.Called(ctx, res, fn)
	return args.Error(0)
}

func (m *MockTenantStore) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
