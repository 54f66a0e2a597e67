package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zayar/simplecashflow/internal/apierror"
	"github.com/zayar/simplecashflow/internal/auth"
	"github.com/zayar/simplecashflow/internal/idempotency"
	"github.com/zayar/simplecashflow/internal/integration"
	"github.com/zayar/simplecashflow/internal/inventory"
	"github.com/zayar/simplecashflow/internal/ledger"
	"github.com/zayar/simplecashflow/internal/purchases"
	"github.com/zayar/simplecashflow/internal/reports"
	"github.com/zayar/simplecashflow/internal/sales"
	"github.com/zayar/simplecashflow/internal/tenant"
)

const maxBodyBytes = 1 << 20

// Handlers contains all HTTP handlers
type Handlers struct {
	pool               *pgxpool.Pool
	tokenService       *auth.TokenService
	tenantService      *tenant.Service
	ledgerService      *ledger.Service
	inventoryService   *inventory.Service
	salesService       *sales.Service
	purchasesService   *purchases.Service
	integrationService *integration.Service
	reportsService     *reports.Service
	idempotencyStore   *idempotency.Store
}

// JSON helper functions
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	// Sanitize error messages for 5xx errors to prevent information leakage
	if status >= 500 {
		message = apierror.Sanitize(message)
	}
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps a core error to its HTTP status.
func respondServiceError(w http.ResponseWriter, err error) {
	respondError(w, apierror.HTTPStatus(err), err.Error())
}

func readBody(r *http.Request) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
}

// TenantContext verifies the caller's claim against the path tenant and
// tags the request context. Cross-tenant calls are refused before any
// repository runs.
func (h *Handlers) TenantContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.GetClaims(r.Context())
		if !ok {
			respondError(w, http.StatusUnauthorized, "Authentication required")
			return
		}

		tenantID, err := strconv.ParseInt(chi.URLParam(r, "tenantID"), 10, 64)
		if err != nil || tenantID <= 0 {
			respondError(w, http.StatusBadRequest, "Invalid tenant id")
			return
		}
		if claims.TenantID != tenantID {
			respondError(w, http.StatusForbidden, "Access denied to this tenant")
			return
		}

		next.ServeHTTP(w, r.WithContext(tenant.WithID(r.Context(), tenantID)))
	})
}

// IntegrationTenantContext tags external POS requests, which carry the
// shared secret instead of user claims.
func (h *Handlers) IntegrationTenantContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := strconv.ParseInt(chi.URLParam(r, "tenantID"), 10, 64)
		if err != nil || tenantID <= 0 {
			respondError(w, http.StatusBadRequest, "Invalid tenant id")
			return
		}
		next.ServeHTTP(w, r.WithContext(tenant.WithID(r.Context(), tenantID)))
	})
}

func (h *Handlers) tenantFrom(w http.ResponseWriter, r *http.Request) (int64, bool) {
	tenantID, err := tenant.MustFromContext(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return 0, false
	}
	return tenantID, true
}

// idempotent routes a write through the at-most-once gate. The stored
// response is returned verbatim on replay.
func (h *Handlers) idempotent(w http.ResponseWriter, r *http.Request, tenantID int64, body []byte, status int, build func(ctx context.Context) (interface{}, error)) {
	key := r.Header.Get("Idempotency-Key")
	fingerprint := idempotency.Fingerprint(tenantID, r.Method+" "+r.URL.Path, body)

	result, err := h.idempotencyStore.Run(r.Context(), tenantID, key, fingerprint, build)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if result.Replay {
		w.Header().Set("Idempotency-Replay", "true")
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write(result.Response)
}

// CreateCompany bootstraps a tenant with the default chart of accounts.
func (h *Handlers) CreateCompany(w http.ResponseWriter, r *http.Request) {
	var req tenant.CreateCompanyRequest
	body, err := readBody(r)
	if err != nil || json.Unmarshal(body, &req) != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	company, err := h.tenantService.CreateCompany(r.Context(), &req)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, company)
}

// GetCompany returns the company record.
func (h *Handlers) GetCompany(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFrom(w, r)
	if !ok {
		return
	}
	company, err := h.tenantService.GetCompany(r.Context(), tenantID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, company)
}

// SetPeriodClose moves the tenant's ledger cutoff.
func (h *Handlers) SetPeriodClose(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFrom(w, r)
	if !ok {
		return
	}
	var req struct {
		ClosedThrough string `json:"closed_through"`
	}
	body, err := readBody(r)
	if err != nil || json.Unmarshal(body, &req) != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	through, err := time.Parse("2006-01-02", req.ClosedThrough)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid closed_through date, want YYYY-MM-DD")
		return
	}
	if err := h.ledgerService.SetClosedThrough(r.Context(), tenantID, through); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"closed_through": req.ClosedThrough})
}

// ListAccounts lists the chart of accounts.
func (h *Handlers) ListAccounts(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFrom(w, r)
	if !ok {
		return
	}
	activeOnly := r.URL.Query().Get("active") == "true"
	accounts, err := h.ledgerService.ListAccounts(r.Context(), tenantID, activeOnly)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, accounts)
}

// CreateAccount creates a chart-of-accounts entry.
func (h *Handlers) CreateAccount(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFrom(w, r)
	if !ok {
		return
	}
	var req ledger.CreateAccountRequest
	body, err := readBody(r)
	if err != nil || json.Unmarshal(body, &req) != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	h.idempotent(w, r, tenantID, body, http.StatusCreated, func(ctx context.Context) (interface{}, error) {
		return h.ledgerService.CreateAccount(ctx, tenantID, &req)
	})
}

// GetAccount returns one account.
func (h *Handlers) GetAccount(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFrom(w, r)
	if !ok {
		return
	}
	account, err := h.ledgerService.GetAccount(r.Context(), tenantID, chi.URLParam(r, "accountID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, account)
}

// DeactivateAccount deactivates an account; accounts with lines cannot
// be deleted.
func (h *Handlers) DeactivateAccount(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFrom(w, r)
	if !ok {
		return
	}
	if err := h.ledgerService.DeactivateAccount(r.Context(), tenantID, chi.URLParam(r, "accountID")); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"deactivated": true})
}

// DeleteAccount removes an unused account; accounts with journal lines
// are refused.
func (h *Handlers) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFrom(w, r)
	if !ok {
		return
	}
	if err := h.ledgerService.DeleteAccount(r.Context(), tenantID, chi.URLParam(r, "accountID")); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// CreateCustomer creates a customer.
func (h *Handlers) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFrom(w, r)
	if !ok {
		return
	}
	var req sales.CreateCustomerRequest
	body, err := readBody(r)
	if err != nil || json.Unmarshal(body, &req) != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	h.idempotent(w, r, tenantID, body, http.StatusCreated, func(ctx context.Context) (interface{}, error) {
		return h.salesService.CreateCustomer(ctx, tenantID, &req)
	})
}

// CreateVendor creates a vendor.
func (h *Handlers) CreateVendor(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFrom(w, r)
	if !ok {
		return
	}
	var req purchases.CreateVendorRequest
	body, err := readBody(r)
	if err != nil || json.Unmarshal(body, &req) != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	h.idempotent(w, r, tenantID, body, http.StatusCreated, func(ctx context.Context) (interface{}, error) {
		return h.purchasesService.CreateVendor(ctx, tenantID, &req)
	})
}

// ListItems lists items.
func (h *Handlers) ListItems(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFrom(w, r)
	if !ok {
		return
	}
	items, err := h.inventoryService.ListItems(r.Context(), tenantID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, items)
}

// CreateItem creates an item.
func (h *Handlers) CreateItem(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFrom(w, r)
	if !ok {
		return
	}
	var req inventory.CreateItemRequest
	body, err := readBody(r)
	if err != nil || json.Unmarshal(body, &req) != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	h.idempotent(w, r, tenantID, body, http.StatusCreated, func(ctx context.Context) (interface{}, error) {
		return h.inventoryService.CreateItem(ctx, tenantID, &req)
	})
}
