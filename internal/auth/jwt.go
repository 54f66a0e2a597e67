package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims represents the JWT claims
type Claims struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	TenantID int64  `json:"tenant_id,omitempty"`
	jwt.RegisteredClaims
}

// LinkClaims are the claims of a signed public invoice link.
type LinkClaims struct {
	TenantID  int64  `json:"tenant_id"`
	InvoiceID string `json:"invoice_id"`
	jwt.RegisteredClaims
}

// TokenService handles JWT token operations
type TokenService struct {
	secretKey      []byte
	integrationKey string
	accessExpiry   time.Duration
	linkExpiry     time.Duration
}

// NewTokenService creates a new token service
func NewTokenService(secretKey, integrationKey string, accessExpiry, linkExpiry time.Duration) *TokenService {
	return &TokenService{
		secretKey:      []byte(secretKey),
		integrationKey: integrationKey,
		accessExpiry:   accessExpiry,
		linkExpiry:     linkExpiry,
	}
}

// GenerateAccessToken generates a new access token
func (s *TokenService) GenerateAccessToken(userID, email string, tenantID int64) (string, error) {
	claims := &Claims{
		UserID:   userID,
		Email:    email,
		TenantID: tenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.accessExpiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Subject:   userID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secretKey)
}

// ValidateAccessToken validates an access token and returns the claims
func (s *TokenService) ValidateAccessToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secretKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	return claims, nil
}

// MintInvoiceLink mints a signed token for anonymous invoice view.
func (s *TokenService) MintInvoiceLink(tenantID int64, invoiceID string) (string, error) {
	claims := &LinkClaims{
		TenantID:  tenantID,
		InvoiceID: invoiceID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.linkExpiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Subject:   invoiceID,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secretKey)
}

// ValidateInvoiceLink validates a public invoice link token.
func (s *TokenService) ValidateInvoiceLink(tokenString string) (*LinkClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &LinkClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secretKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse link token: %w", err)
	}
	claims, ok := token.Claims.(*LinkClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid link token claims")
	}
	return claims, nil
}

// VerifyIntegrationKey checks the shared secret carried by external POS
// requests.
func (s *TokenService) VerifyIntegrationKey(key string) bool {
	if s.integrationKey == "" || key == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(s.integrationKey), []byte(key)) == 1
}

// Context key type
type contextKey string

const (
	// ClaimsContextKey is the context key for JWT claims
	ClaimsContextKey contextKey = "claims"
)

// GetClaims retrieves the JWT claims from the context
func GetClaims(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ClaimsContextKey).(*Claims)
	return claims, ok
}

// Middleware creates an authentication middleware
func (s *TokenService) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header required", http.StatusUnauthorized)
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			http.Error(w, "Invalid authorization header format", http.StatusUnauthorized)
			return
		}

		claims, err := s.ValidateAccessToken(parts[1])
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// IntegrationMiddleware authenticates external POS requests by shared
// secret.
func (s *TokenService) IntegrationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.VerifyIntegrationKey(r.Header.Get("X-Integration-Key")) {
			http.Error(w, "Invalid integration key", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
