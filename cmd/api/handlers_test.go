package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zayar/simplecashflow/internal/apierror"
	"github.com/zayar/simplecashflow/internal/auth"
	"github.com/zayar/simplecashflow/internal/tenant"
)

func TestRespondError(t *testing.T) {
	rec := httptest.NewRecorder()
	respondError(rec, http.StatusBadRequest, "invalid tax rate")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"invalid tax rate"}`, rec.Body.String())

	// 5xx messages are scrubbed before leaving the process.
	rec = httptest.NewRecorder()
	respondError(rec, http.StatusInternalServerError, "pq: duplicate key value")
	assert.JSONEq(t, `{"error":"An internal error occurred"}`, rec.Body.String())
}

func TestRespondServiceErrorMapsKinds(t *testing.T) {
	rec := httptest.NewRecorder()
	respondServiceError(rec, apierror.New(apierror.KindPeriodClosed, "closed"))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = httptest.NewRecorder()
	respondServiceError(rec, apierror.New(apierror.KindIdempotencyConflict, "conflict"))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = httptest.NewRecorder()
	respondServiceError(rec, apierror.New(apierror.KindTenant, "cross-tenant"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func tenantRequest(t *testing.T, claims *auth.Claims, pathTenant string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/companies/"+pathTenant+"/invoices", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("tenantID", pathTenant)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	if claims != nil {
		ctx = context.WithValue(ctx, auth.ClaimsContextKey, claims)
	}
	return req.WithContext(ctx)
}

func TestTenantContextRejectsCrossTenant(t *testing.T) {
	h := &Handlers{}
	var reached bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { reached = true })

	// Tenant B calling tenant A's route is refused before any handler.
	rec := httptest.NewRecorder()
	h.TenantContext(next).ServeHTTP(rec, tenantRequest(t, &auth.Claims{UserID: "u1", TenantID: 2}, "1"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, reached)

	// Matching tenant passes and tags the context.
	var got int64
	next = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		got, _ = tenant.FromContext(r.Context())
	})
	rec = httptest.NewRecorder()
	h.TenantContext(next).ServeHTTP(rec, tenantRequest(t, &auth.Claims{UserID: "u1", TenantID: 1}, "1"))
	require.True(t, reached)
	assert.Equal(t, int64(1), got)
}

func TestTenantContextRequiresAuth(t *testing.T) {
	h := &Handlers{}
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	})
	rec := httptest.NewRecorder()
	h.TenantContext(next).ServeHTTP(rec, tenantRequest(t, nil, "1"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTenantContextRejectsBadTenantID(t *testing.T) {
	h := &Handlers{}
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	})
	rec := httptest.NewRecorder()
	h.TenantContext(next).ServeHTTP(rec, tenantRequest(t, &auth.Claims{TenantID: 1}, "not-a-number"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestParseQueryDate(t *testing.T) {
	fallback := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	req := httptest.NewRequest(http.MethodGet, "/reports/profit-loss", nil)
	got, ok := parseQueryDate(req, "from", fallback)
	assert.True(t, ok)
	assert.Equal(t, fallback, got)

	req = httptest.NewRequest(http.MethodGet, "/reports/profit-loss?from=2025-03-15", nil)
	got, ok = parseQueryDate(req, "from", fallback)
	assert.True(t, ok)
	assert.Equal(t, time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC), got)

	req = httptest.NewRequest(http.MethodGet, "/reports/profit-loss?from=15/03/2025", nil)
	_, ok = parseQueryDate(req, "from", fallback)
	assert.False(t, ok)
}
