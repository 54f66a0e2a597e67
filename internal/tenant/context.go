package tenant

import (
	"context"

	"github.com/zayar/simplecashflow/internal/apierror"
)

type contextKey string

const tenantKey contextKey = "tenant_id"

// WithID tags the context with the request's tenant id.
func WithID(ctx context.Context, tenantID int64) context.Context {
	return context.WithValue(ctx, tenantKey, tenantID)
}

// FromContext retrieves the tenant id from the context.
func FromContext(ctx context.Context) (int64, bool) {
	v, ok := ctx.Value(tenantKey).(int64)
	return v, ok
}

// MustFromContext retrieves the tenant id or fails with a TENANT error.
// Writes without a resolvable tenant are refused.
func MustFromContext(ctx context.Context) (int64, error) {
	id, ok := FromContext(ctx)
	if !ok || id == 0 {
		return 0, apierror.New(apierror.KindTenant, "no tenant in request context")
	}
	return id, nil
}
