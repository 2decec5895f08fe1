package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"armoree/backend/internal/tenancy"
	"armoree/backend/pkg/models"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRegistrar struct {
	mock.Mock
}

func (m *MockRegistrar) RegisterTenant(ctx context.Context, tenantName, userID string) (*models.RegisterTenantResponse, error) {
	args := m.Called(ctx, tenantName, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RegisterTenantResponse), args.Error(1)
}

type MockResolver struct {
	mock.Mock
}

func (m *MockResolver) Resolve(ctx context.Context, session *tenancy.Session) tenancy.Resolution {
	args := m.Called(ctx, session)
	return args.Get(0).(tenancy.Resolution)
}

func callRequest(args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return text.Text
}

func TestServerRegistersTools(t *testing.T) {
	s := NewServer(&MockRegistrar{}, &MockResolver{})
	assert.NotNil(t, s.GetMCPServer())
}

func TestHandleRegisterTenant(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		registrar := &MockRegistrar{}
		registrar.On("RegisterTenant", mock.Anything, "Alpha Squad", "user-123").Return(&models.RegisterTenantResponse{
			Success:    true,
			SchemaName: "tenant_alphasquad_1",
			Message:    "ok",
		}, nil)
		s := NewServer(registrar, &MockResolver{})

		res, err := s.handleRegisterTenant(context.Background(), callRequest(map[string]interface{}{
			"tenantName": "Alpha Squad",
			"userId":     "user-123",
		}))

		require.NoError(t, err)
		assert.False(t, res.IsError)
		var body models.RegisterTenantResponse
		require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &body))
		assert.Equal(t, "tenant_alphasquad_1", body.SchemaName)
		registrar.AssertExpectations(t)
	})

	t.Run("missing arguments", func(t *testing.T) {
		registrar := &MockRegistrar{}
		s := NewServer(registrar, &MockResolver{})

		res, err := s.handleRegisterTenant(context.Background(), callRequest(map[string]interface{}{
			"tenantName": "Alpha Squad",
		}))

		require.NoError(t, err)
		assert.True(t, res.IsError)
		registrar.AssertNotCalled(t, "RegisterTenant", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("provisioning failure", func(t *testing.T) {
		registrar := &MockRegistrar{}
		registrar.On("RegisterTenant", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, errors.New("tenant already registered"))
		s := NewServer(registrar, &MockResolver{})

		res, err := s.handleRegisterTenant(context.Background(), callRequest(map[string]interface{}{
			"tenantName": "Alpha Squad",
			"userId":     "user-123",
		}))

		require.NoError(t, err)
		assert.True(t, res.IsError)
		assert.Contains(t, resultText(t, res), "tenant already registered")
	})
}

func TestHandleLookupTenant(t *testing.T) {
	t.Run("resolved", func(t *testing.T) {
		resolver := &MockResolver{}
		resolver.On("Resolve", mock.Anything, &tenancy.Session{UserID: "user-123"}).
			Return(tenancy.NewResolved("user-123", "tenant_alpha_1"))
		s := NewServer(&MockRegistrar{}, resolver)

		res, err := s.handleLookupTenant(context.Background(), callRequest(map[string]interface{}{
			"userId": "user-123",
		}))

		require.NoError(t, err)
		assert.False(t, res.IsError)
		var info models.TenantInfo
		require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &info))
		assert.Equal(t, "tenant_alpha_1", info.SchemaName)
		assert.Equal(t, "resolved", info.State)
	})

	t.Run("unresolved", func(t *testing.T) {
		resolver := &MockResolver{}
		resolver.On("Resolve", mock.Anything, mock.Anything).Return(tenancy.NewUnresolved("user-404"))
		s := NewServer(&MockRegistrar{}, resolver)

		res, err := s.handleLookupTenant(context.Background(), callRequest(map[string]interface{}{
			"userId": "user-404",
		}))

		require.NoError(t, err)
		assert.False(t, res.IsError)
		var info models.TenantInfo
		require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &info))
		assert.Equal(t, "unresolved", info.State)
		assert.Empty(t, info.SchemaName)
	})

	t.Run("failed", func(t *testing.T) {
		resolver := &MockResolver{}
		resolver.On("Resolve", mock.Anything, mock.Anything).
			Return(tenancy.NewFailed("user-123", context.DeadlineExceeded))
		s := NewServer(&MockRegistrar{}, resolver)

		res, err := s.handleLookupTenant(context.Background(), callRequest(map[string]interface{}{
			"userId": "user-123",
		}))

		require.NoError(t, err)
		assert.True(t, res.IsError)
	})

	t.Run("invalid arguments", func(t *testing.T) {
		s := NewServer(&MockRegistrar{}, &MockResolver{})

		res, err := s.handleLookupTenant(context.Background(), mcp.CallToolRequest{})

		require.NoError(t, err)
		assert.True(t, res.IsError)
	})
}

func TestMountHTTPHandlers(t *testing.T) {
	s := NewServer(&MockRegistrar{}, &MockResolver{})
	mux := http.NewServeMux()
	MountHTTPHandlers(mux, s.GetMCPServer())

	t.Run("initialize over streamable HTTP", func(t *testing.T) {
		body := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{` +
			`"protocolVersion":"2025-03-26","capabilities":{},"clientInfo":{"name":"ops","version":"1.0.0"}}}`
		req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json, text/event-stream")
		rec := httptest.NewRecorder()

		mux.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Contains(t, rec.Body.String(), "Armoree Tenants")
	})

	t.Run("sse message endpoint requires a session", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/mcp/message", strings.NewReader(`{}`))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()

		mux.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
