// Package mcp exposes tenant provisioning and lookup as MCP tools.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"armoree/backend/internal/services"
	"armoree/backend/internal/tenancy"
	"armoree/backend/pkg/models"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type Server struct {
	mcpServer *server.MCPServer
	registrar services.TenantRegistrar
	resolver  services.TenantResolver
}

func NewServer(registrar services.TenantRegistrar, resolver services.TenantResolver) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"Armoree Tenants",
			"1.0.0",
			server.WithToolCapabilities(true),
		),
		registrar: registrar,
		resolver:  resolver,
	}

	s.registerTools()
	return s
}

func (s *Server) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"register_tenant",
			mcp.WithDescription("Provision a new tenant schema for an organization"),
			mcp.WithString("tenantName", mcp.Required(), mcp.Description("Display name of the organization")),
			mcp.WithString("userId", mcp.Required(), mcp.Description("Identity provider subject of the owning user")),
		),
		s.handleRegisterTenant,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"lookup_tenant",
			mcp.WithDescription("Look up the tenant schema registered for a user"),
			mcp.WithString("userId", mcp.Required(), mcp.Description("Identity provider subject of the user")),
		),
		s.handleLookupTenant,
	)
}

func (s *Server) handleRegisterTenant(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	tenantName := stringArg(args, "tenantName")
	userID := stringArg(args, "userId")
	if tenantName == "" || userID == "" {
		return mcp.NewToolResultError("Missing required parameters: tenantName, userId"), nil
	}

	resp, err := s.registrar.RegisterTenant(ctx, tenantName, userID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to register tenant: %v", err)), nil
	}

	jsonBytes, _ := json.Marshal(resp)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleLookupTenant(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	userID := stringArg(args, "userId")
	if userID == "" {
		return mcp.NewToolResultError("Missing required parameter: userId"), nil
	}

	res := s.resolver.Resolve(ctx, &tenancy.Session{UserID: userID})
	if res.State == tenancy.Failed {
		err := res.Err
		if err == nil {
			err = errors.New("lookup failed")
		}
		return mcp.NewToolResultError(fmt.Sprintf("Failed to look up tenant: %v", err)), nil
	}

	jsonBytes, _ := json.Marshal(models.TenantInfo{
		UserID:     userID,
		SchemaName: res.SchemaName,
		State:      res.State.String(),
	})
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func stringArg(args map[string]interface{}, key string) string {
	v, _ := args[key].(string)
	return strings.TrimSpace(v)
}

// MountHTTPHandlers registers the streamable HTTP transport on /mcp and the
// SSE transport on /mcp/sse and /mcp/message.
func MountHTTPHandlers(mux *http.ServeMux, mcpServer *server.MCPServer) {
	sseServer := server.NewSSEServer(mcpServer, server.WithStaticBasePath("/mcp"))
	streamable := server.NewStreamableHTTPServer(mcpServer, server.WithEndpointPath("/mcp"))

	mux.Handle("/mcp", streamable)
	mux.HandleFunc("/mcp/sse", sseServer.ServeHTTP)
	mux.HandleFunc("/mcp/message", sseServer.ServeHTTP)
}
