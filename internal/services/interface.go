package services

import (
	"context"
	"errors"

	"armoree/backend/internal/tenancy"
	"armoree/backend/pkg/models"
)

// ErrInvalidRequest marks registration input that fails validation.
var ErrInvalidRequest = errors.New("invalid tenant registration")

// TenantRegistrar provisions a schema for a newly signed-up organization.
type TenantRegistrar interface {
	RegisterTenant(ctx context.Context, tenantName, userID string) (*models.RegisterTenantResponse, error)
}

// TenantResolver maps a session to the tenant schema it owns.
type TenantResolver interface {
	Resolve(ctx context.Context, session *tenancy.Session) tenancy.Resolution
}
