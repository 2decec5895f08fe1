package tenancy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolutionRequire(t *testing.T) {
	schema, err := NewResolved("user-123", "tenant_alphasquad_1700000000000").Require()
	require.NoError(t, err)
	assert.Equal(t, "tenant_alphasquad_1700000000000", schema)

	_, err = NewUnresolved("user-123").Require()
	assert.ErrorIs(t, err, ErrNotResolved)

	_, err = NewUnauthenticated().Require()
	assert.ErrorIs(t, err, ErrNotResolved)

	cause := errors.New("connection refused")
	_, err = NewFailed("user-123", cause).Require()
	assert.ErrorIs(t, err, ErrNotResolved)
	assert.ErrorIs(t, err, cause)
}

func TestResolvedWithoutSchemaIsNotUsable(t *testing.T) {
	res := Resolution{State: Resolved, UserID: "user-123"}
	assert.False(t, res.IsResolved())
}

func TestContextRoundTrip(t *testing.T) {
	ctx := context.Background()

	res, ok := FromContext(ctx)
	assert.False(t, ok)
	assert.Equal(t, Unauthenticated, res.State)

	ctx = WithResolution(ctx, NewResolved("user-123", "tenant_x_1"))
	res, ok = FromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, Resolved, res.State)
	assert.Equal(t, "tenant_x_1", res.SchemaName)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "unresolved", Unresolved.String())
	assert.Equal(t, "resolved", Resolved.String())
	assert.Equal(t, "unauthenticated", Unauthenticated.String())
	assert.Equal(t, "failed", Failed.String())
	assert.Equal(t, "unknown", State(42).String())
}
