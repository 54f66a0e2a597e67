package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTokenService() *TokenService {
	return NewTokenService("test-secret", "shared-integration-key", 15*time.Minute, time.Hour)
}

func TestAccessTokenRoundTrip(t *testing.T) {
	s := newTestTokenService()

	token, err := s.GenerateAccessToken("user-1", "user@example.com", 42)
	require.NoError(t, err)

	claims, err := s.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "user@example.com", claims.Email)
	assert.Equal(t, int64(42), claims.TenantID)
}

func TestValidateAccessTokenRejectsWrongSecret(t *testing.T) {
	s := newTestTokenService()
	other := NewTokenService("different-secret", "", 15*time.Minute, time.Hour)

	token, err := s.GenerateAccessToken("user-1", "user@example.com", 42)
	require.NoError(t, err)

	_, err = other.ValidateAccessToken(token)
	assert.Error(t, err)
}

func TestInvoiceLinkRoundTrip(t *testing.T) {
	s := newTestTokenService()

	token, err := s.MintInvoiceLink(7, "inv-123")
	require.NoError(t, err)

	claims, err := s.ValidateInvoiceLink(token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.TenantID)
	assert.Equal(t, "inv-123", claims.InvoiceID)
}

func TestInvoiceLinkExpiry(t *testing.T) {
	s := NewTokenService("test-secret", "", 15*time.Minute, -time.Minute)

	token, err := s.MintInvoiceLink(7, "inv-123")
	require.NoError(t, err)

	_, err = s.ValidateInvoiceLink(token)
	assert.Error(t, err)
}

func TestVerifyIntegrationKey(t *testing.T) {
	s := newTestTokenService()
	assert.True(t, s.VerifyIntegrationKey("shared-integration-key"))
	assert.False(t, s.VerifyIntegrationKey("wrong"))
	assert.False(t, s.VerifyIntegrationKey(""))

	// A service configured without a key refuses everything.
	unconfigured := NewTokenService("secret", "", time.Minute, time.Minute)
	assert.False(t, unconfigured.VerifyIntegrationKey("anything"))
}

func TestMiddleware(t *testing.T) {
	s := newTestTokenService()

	var gotClaims *Claims
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotClaims, _ = GetClaims(r.Context())
	})

	token, err := s.GenerateAccessToken("user-1", "user@example.com", 42)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.Middleware(next).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, gotClaims)
	assert.Equal(t, int64(42), gotClaims.TenantID)

	// Missing and malformed headers are rejected.
	rec = httptest.NewRecorder()
	s.Middleware(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Token abc")
	rec = httptest.NewRecorder()
	s.Middleware(next).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
