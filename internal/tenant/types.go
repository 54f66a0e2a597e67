package tenant

import (
	"time"
)

// Company is the tenant record. The resolved system account ids are
// cached here so posting paths do not look them up per request.
type Company struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	BaseCurrency string    `json:"base_currency"`
	IsActive     bool      `json:"is_active"`

	DefaultLocationID *string `json:"default_location_id,omitempty"`

	// System account ids, provisioned by Service.CreateCompany.
	ARAccountID              string `json:"ar_account_id"`
	APAccountID              string `json:"ap_account_id"`
	CashAccountID            string `json:"cash_account_id"`
	SalesAccountID           string `json:"sales_account_id"`
	TaxPayableAccountID      string `json:"tax_payable_account_id"`
	InventoryAccountID       string `json:"inventory_account_id"`
	CogsAccountID            string `json:"cogs_account_id"`
	CustomerAdvanceAccountID string `json:"customer_advance_account_id"`
	VendorAdvanceAccountID   string `json:"vendor_advance_account_id"`
	OpeningBalanceAccountID  string `json:"opening_balance_account_id"`

	CreatedAt time.Time `json:"created_at"`
}

// PeriodClose is the per-tenant ledger cutoff. ClosedThrough is
// inclusive: no journal entry may be dated on or before it.
type PeriodClose struct {
	TenantID      int64      `json:"tenant_id"`
	ClosedThrough *time.Time `json:"closed_through,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// CreateCompanyRequest is the request to bootstrap a tenant.
type CreateCompanyRequest struct {
	Name         string `json:"name"`
	BaseCurrency string `json:"base_currency,omitempty"`
}
