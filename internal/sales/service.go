package sales

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/zayar/simplecashflow/internal/apierror"
	"github.com/zayar/simplecashflow/internal/database"
	"github.com/zayar/simplecashflow/internal/inventory"
	"github.com/zayar/simplecashflow/internal/ledger"
	"github.com/zayar/simplecashflow/internal/money"
	"github.com/zayar/simplecashflow/internal/outbox"
)

// timeNow is overridable in tests.
var timeNow = time.Now

// Service provides AR operations
type Service struct {
	db        *pgxpool.Pool
	repo      RepositoryInterface
	ledger    *ledger.Service
	inventory *inventory.Service
	events    outbox.Appender
}

// NewService creates a new sales service
func NewService(db *pgxpool.Pool, ledgerService *ledger.Service, inventoryService *inventory.Service, events outbox.Appender) *Service {
	return &Service{
		db:        db,
		repo:      NewRepository(db),
		ledger:    ledgerService,
		inventory: inventoryService,
		events:    events,
	}
}

// NewServiceWithRepository creates a sales service with a custom repository
func NewServiceWithRepository(repo RepositoryInterface, ledgerService *ledger.Service, inventoryService *inventory.Service, events outbox.Appender) *Service {
	return &Service{repo: repo, ledger: ledgerService, inventory: inventoryService, events: events}
}

// Repo exposes the repository for composing services.
func (s *Service) Repo() RepositoryInterface { return s.repo }

// CreateCustomer creates a customer.
func (s *Service) CreateCustomer(ctx context.Context, tenantID int64, req *CreateCustomerRequest) (*Customer, error) {
	if req.Name == "" {
		return nil, apierror.New(apierror.KindValidation, "customer name is required")
	}
	if req.Currency != nil && !money.ValidCurrency(*req.Currency) {
		return nil, apierror.New(apierror.KindValidation, "invalid currency code: %s", *req.Currency)
	}
	c := &Customer{
		TenantID: tenantID,
		Name:     req.Name,
		Phone:    req.Phone,
		Email:    req.Email,
		Currency: req.Currency,
	}
	if err := s.repo.CreateCustomer(ctx, database.QueryerFromContext(ctx, s.db), c); err != nil {
		return nil, err
	}
	return c, nil
}

// GetCustomer retrieves a customer by id.
func (s *Service) GetCustomer(ctx context.Context, tenantID int64, customerID string) (*Customer, error) {
	return s.repo.GetCustomerByID(ctx, s.db, tenantID, customerID)
}

// GetInvoice retrieves an invoice with lines.
func (s *Service) GetInvoice(ctx context.Context, tenantID int64, invoiceID string) (*Invoice, error) {
	return s.repo.GetInvoiceByID(ctx, s.db, tenantID, invoiceID, false)
}

// parseDate parses a YYYY-MM-DD document date.
func parseDate(value, field string) (time.Time, error) {
	d, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, apierror.New(apierror.KindValidation, "invalid %s %q, want YYYY-MM-DD", field, value)
	}
	return money.DateOnly(d), nil
}

// requireAssetAccount validates that the bank account is a tenant-owned
// ASSET account.
func (s *Service) requireAssetAccount(ctx context.Context, q database.Queryer, tenantID int64, accountID string) error {
	account, err := s.ledger.Repo().GetAccountByID(ctx, q, tenantID, accountID)
	if err != nil {
		return err
	}
	if account.Type != ledger.AccountTypeAsset {
		return apierror.New(apierror.KindValidation, "account %s is not an asset account", account.Code)
	}
	if !account.IsActive {
		return apierror.New(apierror.KindValidation, "account %s is inactive", account.Code)
	}
	return nil
}

// convertToBase rounds the income buckets and tax into base currency at
// the given rate; the base total is the sum of the rounded components so
// the posting always balances.
func convertToBase(t Totals, rate decimal.Decimal) Totals {
	out := Totals{ByIncomeAccount: make(map[string]decimal.Decimal, len(t.ByIncomeAccount))}
	for accountID, amount := range t.ByIncomeAccount {
		converted := money.RoundMoney(amount.Mul(rate))
		out.ByIncomeAccount[accountID] = converted
		out.Subtotal = out.Subtotal.Add(converted)
	}
	out.Tax = money.RoundMoney(t.Tax.Mul(rate))
	out.Total = out.Subtotal.Add(out.Tax)
	return out
}

// resolveDocumentLines validates the customer, items and rates of a
// document and returns computed lines.
func (s *Service) resolveDocumentLines(ctx context.Context, q database.Queryer, tenantID int64, customerID string, lines []LineInput) ([]ComputedLine, error) {
	if customerID == "" {
		return nil, apierror.New(apierror.KindValidation, "customer id is required")
	}
	if _, err := s.repo.GetCustomerByID(ctx, q, tenantID, customerID); err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, apierror.New(apierror.KindValidation, "at least one line is required")
	}

	computed := make([]ComputedLine, 0, len(lines))
	for _, in := range lines {
		item, err := s.inventory.Repo().GetItemByID(ctx, q, tenantID, in.ItemID)
		if err != nil {
			return nil, err
		}
		line, err := ComputeLine(in, item.IncomeAccountID)
		if err != nil {
			return nil, err
		}
		if line.Description == "" {
			line.Description = item.Name
		}
		computed = append(computed, line)
	}
	return computed, nil
}

func toInvoiceLines(computed []ComputedLine) []InvoiceLine {
	lines := make([]InvoiceLine, 0, len(computed))
	for _, c := range computed {
		lines = append(lines, InvoiceLine{
			ItemID:          c.ItemID,
			Description:     c.Description,
			Quantity:        c.Quantity,
			UnitPrice:       c.UnitPrice,
			DiscountAmount:  c.DiscountAmount,
			TaxRate:         c.TaxRate,
			TaxAmount:       c.TaxAmount,
			LineTotal:       c.LineTotal,
			IncomeAccountID: c.IncomeAccountID,
		})
	}
	return lines
}
