package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"armoree/backend/internal/logging"
	"armoree/backend/internal/repository"
	"armoree/backend/pkg/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const instrumentationName = "armoree/backend/internal/services"

// Registrar provisions tenant schemas.
type Registrar struct {
	store     repository.TenantStore
	templates TemplateSource
	namer     *SchemaNamer
	cache     *MappingCache
	logger    *logging.Logger

	provisioned metric.Int64Counter
	failures    metric.Int64Counter
	duration    metric.Float64Histogram
}

var _ TenantRegistrar = (*Registrar)(nil)

// NewRegistrar creates a new Registrar. cache may be nil.
func NewRegistrar(store repository.TenantStore, templates TemplateSource, namer *SchemaNamer, cache *MappingCache, logger *logging.Logger) *Registrar {
	meter := otel.Meter(instrumentationName)

	provisioned, err := meter.Int64Counter("armoree.tenants.provisioned",
		metric.WithDescription("Tenant schemas provisioned"))
	if err != nil {
		logger.Warn("failed to create provisioned counter", "error", err)
		provisioned = noop.Int64Counter{}
	}
	failures, err := meter.Int64Counter("armoree.tenants.provision_failures",
		metric.WithDescription("Tenant provisioning attempts that failed"))
	if err != nil {
		logger.Warn("failed to create failures counter", "error", err)
		failures = noop.Int64Counter{}
	}
	duration, err := meter.Float64Histogram("armoree.tenants.provision.duration",
		metric.WithDescription("Time spent provisioning a tenant schema"),
		metric.WithUnit("s"))
	if err != nil {
		logger.Warn("failed to create duration histogram", "error", err)
		duration = noop.Float64Histogram{}
	}

	return &Registrar{
		store:       store,
		templates:   templates,
		namer:       namer,
		cache:       cache,
		logger:      logger,
		provisioned: provisioned,
		failures:    failures,
		duration:    duration,
	}
}

// RegisterTenant creates a schema for tenantName, applies the tenant DDL
// template inside it and maps userID to it. Nothing is retried; the first
// failure is returned and the provisioning transaction is rolled back.
func (r *Registrar) RegisterTenant(ctx context.Context, tenantName, userID string) (*models.RegisterTenantResponse, error) {
	tenantName = strings.TrimSpace(tenantName)
	userID = strings.TrimSpace(userID)
	if tenantName == "" || userID == "" {
		return nil, fmt.Errorf("%w: tenant name and user id are required", ErrInvalidRequest)
	}

	schemaName := r.namer.Next(tenantName)

	ctx, span := otel.Tracer(instrumentationName).Start(ctx, "RegisterTenant")
	defer span.End()
	span.SetAttributes(
		attribute.String("armoree.tenant.schema", schemaName),
		attribute.String("armoree.user.id", userID),
	)

	start := time.Now()
	mapping, err := r.provision(ctx, userID, schemaName)
	r.duration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.failures.Add(ctx, 1)
		r.logger.Error("tenant provisioning failed", "tenant", tenantName, "user_id", userID, "schema", schemaName, "error", err)
		return nil, err
	}

	r.provisioned.Add(ctx, 1)
	r.cache.Set(mapping.UserID, mapping.SchemaName)
	r.logger.Info("tenant provisioned", "tenant", tenantName, "user_id", userID, "schema", mapping.SchemaName)

	return &models.RegisterTenantResponse{
		Success:    true,
		SchemaName: mapping.SchemaName,
		Message:    fmt.Sprintf("Tenant %q registered with schema %s", tenantName, mapping.SchemaName),
	}, nil
}

func (r *Registrar) provision(ctx context.Context, userID, schemaName string) (*models.TenantMapping, error) {
	ddl, err := r.templates.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load tenant template: %w", err)
	}
	if strings.TrimSpace(ddl) == "" {
		return nil, ErrEmptyTemplate
	}

	return r.store.ProvisionTenant(ctx, userID, schemaName, ddl)
}
