package services

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
)

//go:embed templates/tenant_schema.sql
var embeddedTenantSchema string

// ErrEmptyTemplate is returned when the DDL template has no statements.
var ErrEmptyTemplate = errors.New("tenant DDL template is empty")

// TemplateSource yields the DDL applied to every new tenant schema.
type TemplateSource interface {
	Load(ctx context.Context) (string, error)
}

// EmbeddedTemplate serves the template compiled into the binary.
type EmbeddedTemplate struct{}

// Load returns the embedded template.
func (EmbeddedTemplate) Load(context.Context) (string, error) {
	return embeddedTenantSchema, nil
}

// FileTemplate reads the template from disk on every registration, so an
// operator can change it without a restart. Existing tenants are not migrated.
type FileTemplate struct {
	Path string
}

// Load reads the template file.
func (f FileTemplate) Load(context.Context) (string, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return "", fmt.Errorf("failed to read tenant template %s: %w", f.Path, err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", fmt.Errorf("%w: %s", ErrEmptyTemplate, f.Path)
	}
	return string(data), nil
}

// NewTemplateSource returns a FileTemplate for a non-empty path and the
// embedded template otherwise.
func NewTemplateSource(path string) TemplateSource {
	if path == "" {
		return EmbeddedTemplate{}
	}
	return FileTemplate{Path: path}
}
