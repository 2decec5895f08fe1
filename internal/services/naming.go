package services

import (
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	schemaPrefix = "tenant_"

	// Postgres identifiers are capped at 63 bytes. Prefix, separator and a
	// 13 digit millisecond timestamp take 21 of them.
	maxSanitizedNameLen = 42
)

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)

// SanitizeTenantName lower-cases name and strips every character outside [a-z0-9].
func SanitizeTenantName(name string) string {
	s := nonAlphanumeric.ReplaceAllString(strings.ToLower(name), "")
	if len(s) > maxSanitizedNameLen {
		s = s[:maxSanitizedNameLen]
	}
	return s
}

// SchemaNamer derives schema names of the form tenant_<name>_<epoch millis>.
// The millisecond suffix never repeats within a process, so two tenants with
// the same display name always get distinct schemas.
type SchemaNamer struct {
	mu   sync.Mutex
	now  func() time.Time
	last int64
}

// NewSchemaNamer creates a SchemaNamer reading time from now. A nil now uses time.Now.
func NewSchemaNamer(now func() time.Time) *SchemaNamer {
	if now == nil {
		now = time.Now
	}
	return &SchemaNamer{now: now}
}

// Next returns the schema name for tenantName.
func (n *SchemaNamer) Next(tenantName string) string {
	return schemaPrefix + SanitizeTenantName(tenantName) + "_" + strconv.FormatInt(n.tick(), 10)
}

func (n *SchemaNamer) tick() int64 {
	n.mu.Lock()
	defer n.mu.Unlock()

	ms := n.now().UnixMilli()
	if ms <= n.last {
		ms = n.last + 1
	}
	n.last = ms
	return ms
}
