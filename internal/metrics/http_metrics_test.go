package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMiddlewareRecordsRequests(t *testing.T) {
	m := NewHTTPMetrics()

	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/ok", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/fail", func(c echo.Context) error { return echo.NewHTTPError(http.StatusBadRequest, "nope") })

	for _, path := range []string{"/ok", "/ok", "/fail"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues(http.MethodGet, "/ok", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues(http.MethodGet, "/fail", "400")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.statusCategory.WithLabelValues("2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.statusCategory.WithLabelValues("4xx")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := NewHTTPMetrics()
	m.requests.WithLabelValues(http.MethodGet, "/", "200").Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "armoree_http_requests_total")
}

func TestStatusCategory(t *testing.T) {
	assert.Equal(t, "2xx", statusCategory(204))
	assert.Equal(t, "4xx", statusCategory(404))
	assert.Equal(t, "5xx", statusCategory(503))
	assert.Equal(t, "", statusCategory(302))
}
