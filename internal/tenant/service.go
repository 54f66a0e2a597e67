package tenant

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/zayar/simplecashflow/internal/apierror"
	"github.com/zayar/simplecashflow/internal/database"
	"github.com/zayar/simplecashflow/internal/ledger"
	"github.com/zayar/simplecashflow/internal/money"
)

// LocationCreator provisions a stock location inside the bootstrap
// transaction. Implemented by the inventory repository.
type LocationCreator interface {
	CreateLocation(ctx context.Context, q database.Queryer, tenantID int64, name string, isDefault bool) (string, error)
}

// Service provides company operations
type Service struct {
	db        *pgxpool.Pool
	repo      RepositoryInterface
	ledger    *ledger.Service
	locations LocationCreator
}

// NewService creates a new tenant service
func NewService(db *pgxpool.Pool, ledgerService *ledger.Service, locations LocationCreator) *Service {
	return &Service{
		db:        db,
		repo:      NewRepository(db),
		ledger:    ledgerService,
		locations: locations,
	}
}

// GetCompany retrieves a company by id.
func (s *Service) GetCompany(ctx context.Context, tenantID int64) (*Company, error) {
	return s.repo.GetCompany(ctx, s.db, tenantID)
}

// systemAccount describes one auto-provisioned account.
type systemAccount struct {
	code string
	name string
	typ  ledger.AccountType
	dest func(c *Company, id string)
}

var systemAccounts = []systemAccount{
	{"1000", "Cash", ledger.AccountTypeAsset, func(c *Company, id string) { c.CashAccountID = id }},
	{"1100", "Accounts Receivable", ledger.AccountTypeAsset, func(c *Company, id string) { c.ARAccountID = id }},
	{"1200", "Inventory Asset", ledger.AccountTypeAsset, func(c *Company, id string) { c.InventoryAccountID = id }},
	{"1300", "Vendor Advances", ledger.AccountTypeAsset, func(c *Company, id string) { c.VendorAdvanceAccountID = id }},
	{"2000", "Accounts Payable", ledger.AccountTypeLiability, func(c *Company, id string) { c.APAccountID = id }},
	{"2100", "Tax Payable", ledger.AccountTypeLiability, func(c *Company, id string) { c.TaxPayableAccountID = id }},
	{"2200", "Customer Advances", ledger.AccountTypeLiability, func(c *Company, id string) { c.CustomerAdvanceAccountID = id }},
	{"3000", "Owner Equity", ledger.AccountTypeEquity, func(c *Company, id string) {}},
	{"3900", "Opening Balance", ledger.AccountTypeEquity, func(c *Company, id string) { c.OpeningBalanceAccountID = id }},
	{"4000", "Sales Income", ledger.AccountTypeIncome, func(c *Company, id string) { c.SalesAccountID = id }},
	{"5000", "Cost of Goods Sold", ledger.AccountTypeExpense, func(c *Company, id string) { c.CogsAccountID = id }},
}

// CreateCompany bootstraps a tenant: the company row, the default chart
// of accounts, a default stock location, and the cached system account
// ids used by the posting paths.
func (s *Service) CreateCompany(ctx context.Context, req *CreateCompanyRequest) (*Company, error) {
	if req.Name == "" {
		return nil, apierror.New(apierror.KindValidation, "company name is required")
	}
	currency := req.BaseCurrency
	if currency == "" {
		currency = "MMK"
	}
	if !money.ValidCurrency(currency) {
		return nil, apierror.New(apierror.KindValidation, "invalid currency code: %s", currency)
	}

	company := &Company{Name: req.Name, BaseCurrency: currency}
	err := database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		if err := s.repo.CreateCompany(ctx, tx, company); err != nil {
			return err
		}

		for _, sa := range systemAccounts {
			account, err := s.ledger.EnsureSystemAccount(ctx, tx, company.ID, sa.code, sa.name, sa.typ)
			if err != nil {
				return err
			}
			sa.dest(company, account.ID)
		}

		locationID, err := s.locations.CreateLocation(ctx, tx, company.ID, "Main", true)
		if err != nil {
			return err
		}
		company.DefaultLocationID = &locationID

		return s.repo.UpdateSystemRefs(ctx, tx, company)
	})
	if err != nil {
		return nil, err
	}

	log.Info().Int64("tenant_id", company.ID).Str("name", company.Name).Msg("company bootstrapped")
	return company, nil
}
