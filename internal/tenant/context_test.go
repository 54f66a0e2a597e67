package tenant

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zayar/simplecashflow/internal/apierror"
)

func TestTenantContext(t *testing.T) {
	ctx := context.Background()

	_, ok := FromContext(ctx)
	assert.False(t, ok)

	ctx = WithID(ctx, 42)
	id, ok := FromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, int64(42), id)

	id, err := MustFromContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestMustFromContextRefusesMissingTenant(t *testing.T) {
	_, err := MustFromContext(context.Background())
	assert.True(t, apierror.IsKind(err, apierror.KindTenant))

	_, err = MustFromContext(WithID(context.Background(), 0))
	assert.True(t, apierror.IsKind(err, apierror.KindTenant))
}
