// Package models defines the wire and storage types of the Armoree tenant service
package models

import (
	"encoding/json"
	"strings"
	"time"

	openapi_types "github.com/oapi-codegen/runtime/types"
)

// TenantMapping links an authenticated user to the schema that holds their
// organization's tables. One row per user, written once at registration.
type TenantMapping struct {
	ID         int64     `json:"id" db:"id"`
	UserID     string    `json:"user_id" db:"user_id"`
	SchemaName string    `json:"schema_name" db:"schema_name"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// RegisterTenantRequest is the body of POST /api/register-tenant
type RegisterTenantRequest struct {
	TenantName string  `json:"tenantName"`
	UserID     string  `json:"userId"`
	Email      *string `json:"email,omitempty"`
}

// ContactEmail returns the optional email when it is a well-formed address.
// A blank or malformed value never rejects the request.
func (r RegisterTenantRequest) ContactEmail() (email openapi_types.Email, present, valid bool) {
	if r.Email == nil || strings.TrimSpace(*r.Email) == "" {
		return "", false, false
	}

	raw, err := json.Marshal(strings.TrimSpace(*r.Email))
	if err != nil {
		return "", true, false
	}
	if err := json.Unmarshal(raw, &email); err != nil {
		return "", true, false
	}
	return email, true, true
}

// RegisterTenantResponse is returned once a tenant schema has been provisioned
type RegisterTenantResponse struct {
	Success    bool   `json:"success"`
	SchemaName string `json:"schemaName"`
	Message    string `json:"message"`
}

// TenantInfo describes the tenant the caller resolved to
type TenantInfo struct {
	UserID     string `json:"userId"`
	SchemaName string `json:"schemaName,omitempty"`
	State      string `json:"state"`
}

// TenantTables lists the tables present in a tenant schema
type TenantTables struct {
	SchemaName string   `json:"schemaName"`
	Tables     []string `json:"tables"`
}

// ErrorResponse is the JSON body of every non-2xx response
type ErrorResponse struct {
	Error string `json:"error"`
}
