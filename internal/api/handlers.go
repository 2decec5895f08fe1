// Package api contains the HTTP handlers for the Armoree tenant service
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"armoree/backend/internal/logging"
	"armoree/backend/internal/services"
	"armoree/backend/internal/tenancy"
	"armoree/backend/pkg/models"

	"github.com/labstack/echo/v4"
)

const (
	msgMissingFields  = "Tenant name and User ID are required"
	msgInvalidBody    = "Invalid request body"
	msgAuthRequired   = "authentication required"
	readinessTimeout  = 2 * time.Second
	healthMessageText = "Armoree tenant service is running"
)

// TenantStore is the part of the repository the handlers read from.
type TenantStore interface {
	EnsurePublicTables(ctx context.Context) error
	ListTenantTables(ctx context.Context, res tenancy.Resolution) ([]string, error)
	Ping(ctx context.Context) error
}

// Handler contains HTTP handlers for the tenant service REST API
type Handler struct {
	registrar   services.TenantRegistrar
	store       TenantStore
	tablesReady atomic.Bool
	logger      *logging.Logger
}

// NewHandler creates a new Handler with required dependencies. tablesReady is
// the outcome of the startup bootstrap; while it is false, /readyz retries it.
func NewHandler(registrar services.TenantRegistrar, store TenantStore, tablesReady bool, logger *logging.Logger) *Handler {
	h := &Handler{
		registrar: registrar,
		store:     store,
		logger:    logger,
	}
	h.tablesReady.Store(tablesReady)
	return h
}

// HealthStatus represents the health check response
type HealthStatus struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// HandleHealth returns basic health status (always returns 200 OK)
// (GET /)
func (h *Handler) HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthStatus{Status: "ok", Message: healthMessageText})
}

// HandleReady reports whether the database answers and the shared mapping
// table exists.
// (GET /readyz)
func (h *Handler) HandleReady(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), readinessTimeout)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		h.logger.Warn("readiness check failed", "error", err)
		return c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{Error: "database unavailable"})
	}

	if !h.tablesReady.Load() {
		if err := h.store.EnsurePublicTables(ctx); err != nil {
			h.logger.Warn("public tables still missing", "error", err)
			return c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{Error: "public tables not ready"})
		}
		h.tablesReady.Store(true)
		h.logger.Info("public tables ready")
	}

	return c.JSON(http.StatusOK, HealthStatus{Status: "ready", Message: healthMessageText})
}

// RegisterTenant provisions a schema for a new organization
// (POST /api/register-tenant)
func (h *Handler) RegisterTenant(c echo.Context) error {
	var req models.RegisterTenantRequest
	if err := c.Bind(&req); err != nil {
		h.logger.Warn("invalid register-tenant body", "error", err)
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: msgInvalidBody})
	}

	if strings.TrimSpace(req.TenantName) == "" || strings.TrimSpace(req.UserID) == "" {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: msgMissingFields})
	}

	email, present, valid := req.ContactEmail()
	if present && !valid {
		h.logger.Warn("ignoring malformed email on tenant registration", "user_id", req.UserID, "email", *req.Email)
	}
	h.logger.Info("registering tenant", "tenant", req.TenantName, "user_id", req.UserID, "email", string(email))

	resp, err := h.registrar.RegisterTenant(c.Request().Context(), req.TenantName, req.UserID)
	if err != nil {
		if errors.Is(err, services.ErrInvalidRequest) {
			return c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: msgMissingFields})
		}
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: err.Error()})
	}

	return c.JSON(http.StatusOK, resp)
}

// GetTenant reports the tenant the caller resolved to
// (GET /api/tenant)
func (h *Handler) GetTenant(c echo.Context) error {
	res, _ := tenancy.FromContext(c.Request().Context())
	if res.State == tenancy.Unauthenticated {
		return c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: msgAuthRequired})
	}

	return c.JSON(http.StatusOK, models.TenantInfo{
		UserID:     res.UserID,
		SchemaName: res.SchemaName,
		State:      res.State.String(),
	})
}

// ListTenantTables lists the tables of the caller's schema
// (GET /api/tenant/tables)
func (h *Handler) ListTenantTables(c echo.Context) error {
	res, _ := tenancy.FromContext(c.Request().Context())

	tables, err := h.store.ListTenantTables(c.Request().Context(), res)
	if err != nil {
		if errors.Is(err, tenancy.ErrNotResolved) {
			return c.JSON(http.StatusForbidden, models.ErrorResponse{Error: err.Error()})
		}
		h.logger.Error("failed to list tenant tables", "schema", res.SchemaName, "error", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: err.Error()})
	}

	return c.JSON(http.StatusOK, models.TenantTables{SchemaName: res.SchemaName, Tables: tables})
}
