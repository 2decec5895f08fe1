// Package app wires the tenant service components from configuration.
package app

import (
	"context"
	"fmt"

	"armoree/backend/internal/config"
	"armoree/backend/internal/logging"
	"armoree/backend/internal/repository"
	"armoree/backend/internal/services"

	"github.com/jackc/pgx/v5/pgxpool"
)

// App holds the long-lived components shared by the HTTP server and the
// operator CLI.
type App struct {
	Config    *config.Config
	Logger    *logging.Logger
	Pool      *pgxpool.Pool
	Store     *repository.PostgresTenantStore
	Cache     *services.MappingCache
	Registrar *services.Registrar
	Resolver  *services.Resolver

	// TablesReady reports whether the startup bootstrap check succeeded.
	TablesReady bool
}

// New connects to Postgres, runs the public table bootstrap and builds the
// registrar and resolver. A failed bootstrap is logged but does not fail New.
func New(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*App, error) {
	pool, err := repository.Connect(ctx, cfg.DatabaseURL(), cfg.DB.ConnectTimeout, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	logger.Info("Database connected", "host", cfg.DB.Host, "name", cfg.DB.Name)

	store := repository.NewPostgresTenantStore(pool, logger)
	ready := services.EnsurePublicTables(ctx, store, logger)

	cache := services.NewMappingCache(cfg.Tenant.CacheSize, cfg.Tenant.CacheTTL)
	templates := services.NewTemplateSource(cfg.Tenant.TemplatePath)

	return &App{
		Config:      cfg,
		Logger:      logger,
		Pool:        pool,
		Store:       store,
		Cache:       cache,
		Registrar:   services.NewRegistrar(store, templates, services.NewSchemaNamer(nil), cache, logger),
		Resolver:    services.NewResolver(store, cache, cfg.Tenant.ResolveTimeout, logger),
		TablesReady: ready,
	}, nil
}

// Close releases the connection pool.
func (a *App) Close() {
	a.Pool.Close()
}
