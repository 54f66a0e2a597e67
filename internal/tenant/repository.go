package tenant

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zayar/simplecashflow/internal/apierror"
	"github.com/zayar/simplecashflow/internal/database"
)

// RepositoryInterface defines the contract for company data access
type RepositoryInterface interface {
	CreateCompany(ctx context.Context, q database.Queryer, c *Company) error
	GetCompany(ctx context.Context, q database.Queryer, tenantID int64) (*Company, error)
	UpdateSystemRefs(ctx context.Context, q database.Queryer, c *Company) error
}

// Repository provides access to company data
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new tenant repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const companyColumns = `
	id, name, base_currency, is_active, default_location_id,
	ar_account_id, ap_account_id, cash_account_id, sales_account_id,
	tax_payable_account_id, inventory_account_id, cogs_account_id,
	customer_advance_account_id, vendor_advance_account_id, opening_balance_account_id, created_at`

// CreateCompany inserts the company row and assigns its id.
func (r *Repository) CreateCompany(ctx context.Context, q database.Queryer, c *Company) error {
	err := q.QueryRow(ctx, `
		INSERT INTO companies (name, base_currency, is_active, created_at)
		VALUES ($1, $2, true, now())
		RETURNING id, created_at
	`, c.Name, c.BaseCurrency).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return fmt.Errorf("create company: %w", err)
	}
	c.IsActive = true
	return nil
}

// GetCompany retrieves a company by id.
func (r *Repository) GetCompany(ctx context.Context, q database.Queryer, tenantID int64) (*Company, error) {
	var c Company
	err := q.QueryRow(ctx, `SELECT `+companyColumns+` FROM companies WHERE id = $1`, tenantID).Scan(
		&c.ID, &c.Name, &c.BaseCurrency, &c.IsActive, &c.DefaultLocationID,
		&c.ARAccountID, &c.APAccountID, &c.CashAccountID, &c.SalesAccountID,
		&c.TaxPayableAccountID, &c.InventoryAccountID, &c.CogsAccountID,
		&c.CustomerAdvanceAccountID, &c.VendorAdvanceAccountID, &c.OpeningBalanceAccountID, &c.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, apierror.New(apierror.KindNotFound, "company not found: %d", tenantID)
	}
	if err != nil {
		return nil, fmt.Errorf("get company: %w", err)
	}
	return &c, nil
}

// UpdateSystemRefs persists the resolved system account ids and default
// location on the company row.
func (r *Repository) UpdateSystemRefs(ctx context.Context, q database.Queryer, c *Company) error {
	_, err := q.Exec(ctx, `
		UPDATE companies SET
			default_location_id = $2,
			ar_account_id = $3, ap_account_id = $4, cash_account_id = $5,
			sales_account_id = $6, tax_payable_account_id = $7,
			inventory_account_id = $8, cogs_account_id = $9,
			customer_advance_account_id = $10, vendor_advance_account_id = $11,
			opening_balance_account_id = $12
		WHERE id = $1
	`, c.ID, c.DefaultLocationID,
		c.ARAccountID, c.APAccountID, c.CashAccountID,
		c.SalesAccountID, c.TaxPayableAccountID,
		c.InventoryAccountID, c.CogsAccountID,
		c.CustomerAdvanceAccountID, c.VendorAdvanceAccountID, c.OpeningBalanceAccountID)
	if err != nil {
		return fmt.Errorf("update company system refs: %w", err)
	}
	return nil
}
