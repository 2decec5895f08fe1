package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"armoree/backend/internal/config"
	"armoree/backend/internal/tenancy"

	"github.com/coreos/go-oidc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testIssuer = "https://test-issuer.com"

// NoOpLogger for testing
type NoOpLogger struct{}

func (l *NoOpLogger) Debug(msg string, args ...any) {}
func (l *NoOpLogger) Info(msg string, args ...any)  {}
func (l *NoOpLogger) Warn(msg string, args ...any)  {}
func (l *NoOpLogger) Error(msg string, args ...any) {}

// MockKeySet satisfies oidc.KeySet to bypass signature verification
type MockKeySet struct{}

func (m *MockKeySet) VerifySignature(ctx context.Context, jwtToken string) ([]byte, error) {
	parts := strings.Split(jwtToken, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("malformed jwt")
	}
	return base64.RawURLEncoding.DecodeString(parts[1])
}

// MockResolver satisfies services.TenantResolver
type MockResolver struct {
	mock.Mock
}

func (m *MockResolver) Resolve(ctx context.Context, session *tenancy.Session) tenancy.Resolution {
	args := m.Called(ctx, session)
	return args.Get(0).(tenancy.Resolution)
}

func fakeToken(t *testing.T, claims map[string]any) string {
	t.Helper()

	headerBytes, err := json.Marshal(map[string]any{"alg": "RS256", "typ": "JWT", "kid": "test-key"})
	require.NoError(t, err)
	payload, err := json.Marshal(claims)
	require.NoError(t, err)

	return base64.RawURLEncoding.EncodeToString(headerBytes) + "." +
		base64.RawURLEncoding.EncodeToString(payload) + "." +
		base64.RawURLEncoding.EncodeToString([]byte("fakesignature"))
}

func validClaims(sub string) map[string]any {
	return map[string]any{
		"iss":   testIssuer,
		"aud":   "api://armoree",
		"sub":   sub,
		"exp":   time.Now().Add(time.Hour).Unix(),
		"iat":   time.Now().Add(-1 * time.Minute).Unix(),
		"email": sub + "@unit.example",
	}
}

func newTestAuth(resolver *MockResolver) *Auth {
	return &Auth{
		verifier: oidc.NewVerifier(testIssuer, &MockKeySet{}, &oidc.Config{SkipClientIDCheck: true}),
		resolver: resolver,
		logger:   &NoOpLogger{},
	}
}

func TestResolveTenant_BearerToken(t *testing.T) {
	resolver := new(MockResolver)
	resolver.On("Resolve", mock.Anything, &tenancy.Session{UserID: "user-123", Email: "user-123@unit.example"}).
		Return(tenancy.NewResolved("user-123", "tenant_alphasquad_1700000000000"))

	req := httptest.NewRequest(http.MethodGet, "/api/tenant", nil)
	req.Header.Set("Authorization", "Bearer "+fakeToken(t, validClaims("user-123")))
	rec := httptest.NewRecorder()

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res, ok := tenancy.FromContext(r.Context())
		assert.True(t, ok, "resolution should be in context")
		assert.Equal(t, tenancy.Resolved, res.State)
		assert.Equal(t, "tenant_alphasquad_1700000000000", res.SchemaName)
		w.WriteHeader(http.StatusOK)
	})

	newTestAuth(resolver).ResolveTenant(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Logf("Response Body: %s", rec.Body.String())
	}
	assert.Equal(t, http.StatusOK, rec.Code)
	resolver.AssertExpectations(t)
}

func TestResolveTenant_NoSession(t *testing.T) {
	resolver := new(MockResolver)
	resolver.On("Resolve", mock.Anything, (*tenancy.Session)(nil)).Return(tenancy.NewUnauthenticated())

	req := httptest.NewRequest(http.MethodGet, "/api/tenant", nil)
	rec := httptest.NewRecorder()

	var got tenancy.Resolution
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = tenancy.FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	newTestAuth(resolver).ResolveTenant(next).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, tenancy.Unauthenticated, got.State)
}

func TestResolveTenant_InvalidToken(t *testing.T) {
	resolver := new(MockResolver)

	expired := validClaims("user-123")
	expired["exp"] = time.Now().Add(-time.Hour).Unix()

	for name, header := range map[string]string{
		"expired":    "Bearer " + fakeToken(t, expired),
		"not bearer": "Basic dXNlcjpwYXNz",
		"garbage":    "Bearer not-a-jwt",
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/tenant", nil)
			req.Header.Set("Authorization", header)
			rec := httptest.NewRecorder()

			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("next handler must not run")
			})
			newTestAuth(resolver).ResolveTenant(next).ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
	resolver.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything)
}

func TestResolveTenant_BypassMode(t *testing.T) {
	resolver := new(MockResolver)
	resolver.On("Resolve", mock.Anything, mock.MatchedBy(func(s *tenancy.Session) bool {
		return s != nil && s.UserID == "officer-7"
	})).Return(tenancy.NewUnresolved("officer-7"))

	cfg := &config.Config{
		Environment:   "DEV",
		DevModeBypass: true,
	}
	a, err := New(context.Background(), cfg, resolver, &NoOpLogger{})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/tenant", nil)
	req.Header.Set(DevUserHeader, "officer-7")
	rec := httptest.NewRecorder()

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res, _ := tenancy.FromContext(r.Context())
		assert.Equal(t, tenancy.Unresolved, res.State)
		w.WriteHeader(http.StatusOK)
	})
	a.ResolveTenant(next).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	resolver.AssertExpectations(t)
}

func TestNew_RequiresIssuerOutsideBypass(t *testing.T) {
	cfg := &config.Config{Environment: "PROD", DevModeBypass: true}
	_, err := New(context.Background(), cfg, new(MockResolver), &NoOpLogger{})
	assert.ErrorIs(t, err, errIncompleteConfig)
}

func TestRequireTenant(t *testing.T) {
	cases := []struct {
		name string
		res  *tenancy.Resolution
		code int
	}{
		{"resolved", &tenancy.Resolution{State: tenancy.Resolved, UserID: "u", SchemaName: "tenant_a_1"}, http.StatusOK},
		{"missing", nil, http.StatusUnauthorized},
		{"unauthenticated", &tenancy.Resolution{State: tenancy.Unauthenticated}, http.StatusUnauthorized},
		{"unresolved", &tenancy.Resolution{State: tenancy.Unresolved, UserID: "u"}, http.StatusForbidden},
		{"failed", &tenancy.Resolution{State: tenancy.Failed, UserID: "u", Err: fmt.Errorf("boom")}, http.StatusForbidden},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/tenant/tables", nil)
			if tc.res != nil {
				req = req.WithContext(tenancy.WithResolution(req.Context(), *tc.res))
			}
			rec := httptest.NewRecorder()

			RequireTenant(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})).ServeHTTP(rec, req)

			assert.Equal(t, tc.code, rec.Code)
		})
	}
}
