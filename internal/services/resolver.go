package services

import (
	"context"
	"errors"
	"time"

	"armoree/backend/internal/logging"
	"armoree/backend/internal/repository"
	"armoree/backend/internal/tenancy"
)

// Resolver looks up the schema owned by an authenticated user.
type Resolver struct {
	store   repository.TenantStore
	cache   *MappingCache
	timeout time.Duration
	logger  *logging.Logger
}

var _ TenantResolver = (*Resolver)(nil)

// NewResolver creates a new Resolver. Each lookup is bounded by timeout;
// cache may be nil.
func NewResolver(store repository.TenantStore, cache *MappingCache, timeout time.Duration, logger *logging.Logger) *Resolver {
	return &Resolver{
		store:   store,
		cache:   cache,
		timeout: timeout,
		logger:  logger,
	}
}

// Resolve never returns an error: lookup failures are logged and reported
// as a Failed resolution, a missing mapping as Unresolved.
func (r *Resolver) Resolve(ctx context.Context, session *tenancy.Session) tenancy.Resolution {
	if session == nil || session.UserID == "" {
		return tenancy.NewUnauthenticated()
	}
	userID := session.UserID

	if schemaName, ok := r.cache.Get(userID); ok {
		return tenancy.NewResolved(userID, schemaName)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	mapping, err := r.store.GetTenantMapping(ctx, userID)
	switch {
	case errors.Is(err, repository.ErrTenantNotFound):
		r.logger.Warn("no tenant mapping for user", "user_id", userID)
		return tenancy.NewUnresolved(userID)
	case err != nil:
		r.logger.Error("tenant lookup failed", "user_id", userID, "error", err)
		return tenancy.NewFailed(userID, err)
	}

	r.cache.Set(userID, mapping.SchemaName)
	return tenancy.NewResolved(userID, mapping.SchemaName)
}
