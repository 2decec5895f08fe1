// Package tenancy carries the tenant a request resolved to.
//
// A Resolution is attached to the request context by the auth middleware and
// must be checked before any tenant-scoped query is issued. There is no
// process-wide "current tenant".
package tenancy

import (
	"context"
	"errors"
)

// State is the outcome of resolving a user to a tenant schema.
type State int

const (
	// Unresolved means the user is authenticated but owns no tenant schema.
	Unresolved State = iota
	// Resolved means SchemaName is the schema owned by UserID.
	Resolved
	// Unauthenticated means the request carried no session.
	Unauthenticated
	// Failed means the lookup itself errored; Err holds the cause.
	Failed
)

func (s State) String() string {
	switch s {
	case Unresolved:
		return "unresolved"
	case Resolved:
		return "resolved"
	case Unauthenticated:
		return "unauthenticated"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// ErrNotResolved is returned by Require when the resolution is anything but Resolved.
var ErrNotResolved = errors.New("tenant not resolved")

// Resolution is the tagged result of a tenant lookup.
type Resolution struct {
	State      State
	UserID     string
	SchemaName string
	Err        error
}

// NewResolved returns a Resolved resolution for the user and schema.
func NewResolved(userID, schemaName string) Resolution {
	return Resolution{State: Resolved, UserID: userID, SchemaName: schemaName}
}

// NewUnresolved returns a resolution for an authenticated user without a tenant.
func NewUnresolved(userID string) Resolution {
	return Resolution{State: Unresolved, UserID: userID}
}

// NewUnauthenticated returns the resolution used when no session is present.
func NewUnauthenticated() Resolution {
	return Resolution{State: Unauthenticated}
}

// NewFailed returns a resolution recording a lookup error.
func NewFailed(userID string, err error) Resolution {
	return Resolution{State: Failed, UserID: userID, Err: err}
}

// IsResolved reports whether the resolution names a usable schema.
func (r Resolution) IsResolved() bool {
	return r.State == Resolved && r.SchemaName != ""
}

// Require returns the schema name, or an error wrapping ErrNotResolved.
func (r Resolution) Require() (string, error) {
	if !r.IsResolved() {
		if r.Err != nil {
			return "", errors.Join(ErrNotResolved, r.Err)
		}
		return "", ErrNotResolved
	}
	return r.SchemaName, nil
}

type contextKey struct{}

// WithResolution returns a copy of ctx carrying res.
func WithResolution(ctx context.Context, res Resolution) context.Context {
	return context.WithValue(ctx, contextKey{}, res)
}

// FromContext returns the resolution stored in ctx. A context without one
// yields an Unauthenticated resolution and false.
func FromContext(ctx context.Context) (Resolution, bool) {
	res, ok := ctx.Value(contextKey{}).(Resolution)
	if !ok {
		return NewUnauthenticated(), false
	}
	return res, true
}
