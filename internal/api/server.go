package api

import (
	"errors"
	"net/http"

	"armoree/backend/internal/auth"
	"armoree/backend/internal/logging"
	"armoree/backend/internal/metrics"
	"armoree/backend/pkg/models"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
)

const serviceName = "armoree"

// NewEcho creates the Echo instance with the shared middleware stack:
// tracing, request ids, request logging, panic recovery, metrics and CORS.
func NewEcho(logger *logging.Logger, m *metrics.HTTPMetrics) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(logger)

	e.Use(otelecho.Middleware(serviceName))
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			args := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"request_id", v.RequestID,
			}
			if v.Error != nil {
				logger.Error("HTTP request", append(args, "error", v.Error)...)
				return nil
			}
			logger.Info("HTTP request", args...)
			return nil
		},
	}))
	if m != nil {
		e.Use(m.Middleware())
	}
	// Inside the metrics middleware so recovered panics are counted as 500s.
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization},
	}))

	return e
}

// RegisterHandlers mounts the REST API. resolveTenant runs before every
// /api/tenant route and stores the caller's tenant resolution in the context.
func RegisterHandlers(e *echo.Echo, h *Handler, resolveTenant echo.MiddlewareFunc) {
	e.GET("/", h.HandleHealth)
	e.GET("/readyz", h.HandleReady)
	e.POST("/api/register-tenant", h.RegisterTenant)

	tenantGroup := e.Group("/api/tenant", resolveTenant)
	tenantGroup.GET("", h.GetTenant)
	tenantGroup.GET("/tables", h.ListTenantTables, echo.WrapMiddleware(auth.RequireTenant))
}

// RegisterDocs mounts the OpenAPI document and Swagger UI.
func RegisterDocs(e *echo.Echo, issuer, swaggerClientID string) {
	e.GET("/openapi.yaml", echo.WrapHandler(SpecHandler(issuer)))
	e.GET("/docs", echo.WrapHandler(SwaggerHandler(swaggerClientID)))
	e.GET("/docs/oauth2-redirect.html", echo.WrapHandler(OAuth2RedirectHandler()))
}

// errorHandler renders every error as {"error": "..."}.
func errorHandler(logger *logging.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		msg := http.StatusText(code)

		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if m, ok := he.Message.(string); ok {
				msg = m
			} else {
				msg = http.StatusText(code)
			}
		} else {
			logger.Error("unhandled error", "error", err)
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(code)
		} else {
			writeErr = c.JSON(code, models.ErrorResponse{Error: msg})
		}
		if writeErr != nil {
			logger.Error("failed to write error response", "error", writeErr)
		}
	}
}
