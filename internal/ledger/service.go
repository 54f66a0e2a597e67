package ledger

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zayar/simplecashflow/internal/apierror"
	"github.com/zayar/simplecashflow/internal/database"
	"github.com/zayar/simplecashflow/internal/money"
	"github.com/zayar/simplecashflow/internal/outbox"
)

// Service provides chart-of-accounts and posting operations
type Service struct {
	db     *pgxpool.Pool
	repo   RepositoryInterface
	events outbox.Appender
}

// NewService creates a new ledger service
func NewService(db *pgxpool.Pool, events outbox.Appender) *Service {
	return &Service{
		db:     db,
		repo:   NewRepository(db),
		events: events,
	}
}

// NewServiceWithRepository creates a ledger service with a custom repository
func NewServiceWithRepository(repo RepositoryInterface, events outbox.Appender) *Service {
	return &Service{repo: repo, events: events}
}

// Repo exposes the repository for composing services.
func (s *Service) Repo() RepositoryInterface { return s.repo }

// GetAccount retrieves an account by ID
func (s *Service) GetAccount(ctx context.Context, tenantID int64, accountID string) (*Account, error) {
	return s.repo.GetAccountByID(ctx, s.db, tenantID, accountID)
}

// ListAccounts retrieves all accounts for a tenant
func (s *Service) ListAccounts(ctx context.Context, tenantID int64, activeOnly bool) ([]Account, error) {
	return s.repo.ListAccounts(ctx, s.db, tenantID, activeOnly)
}

// CreateAccount creates a new account. The normal balance is always
// derived from the type; the request carries no normal balance.
func (s *Service) CreateAccount(ctx context.Context, tenantID int64, req *CreateAccountRequest) (*Account, error) {
	if req.Code == "" || req.Name == "" {
		return nil, apierror.New(apierror.KindValidation, "account code and name are required")
	}
	if !ValidAccountType(req.Type) {
		return nil, apierror.New(apierror.KindValidation, "invalid account type: %s", req.Type)
	}

	account := &Account{
		TenantID:      tenantID,
		Code:          req.Code,
		Name:          req.Name,
		Type:          req.Type,
		NormalBalance: NormalBalanceFor(req.Type),
		IsActive:      true,
		CreatedAt:     time.Now(),
	}
	if err := s.repo.CreateAccount(ctx, database.QueryerFromContext(ctx, s.db), account); err != nil {
		return nil, err
	}
	return account, nil
}

// DeactivateAccount deactivates an account. Accounts with posted lines
// cannot be deleted; deactivation is the only removal path.
func (s *Service) DeactivateAccount(ctx context.Context, tenantID int64, accountID string) error {
	return s.repo.SetAccountActive(ctx, s.db, tenantID, accountID, false)
}

// DeleteAccount removes an account that has never been posted to. Once
// any journal line references it, deletion is refused; deactivate
// instead.
func (s *Service) DeleteAccount(ctx context.Context, tenantID int64, accountID string) error {
	q := database.QueryerFromContext(ctx, s.db)
	account, err := s.repo.GetAccountByID(ctx, q, tenantID, accountID)
	if err != nil {
		return err
	}
	if account.IsSystem {
		return apierror.New(apierror.KindState, "system account %s cannot be deleted", account.Code)
	}
	used, err := s.repo.AccountHasLines(ctx, q, tenantID, accountID)
	if err != nil {
		return err
	}
	if used {
		return apierror.New(apierror.KindState,
			"account %s has journal lines and cannot be deleted; deactivate it instead", account.Code)
	}
	return s.repo.DeleteAccount(ctx, q, tenantID, accountID)
}

// EnsureSystemAccount returns the tenant's account with the given code,
// creating it on demand.
func (s *Service) EnsureSystemAccount(ctx context.Context, q database.Queryer, tenantID int64, code, name string, accountType AccountType) (*Account, error) {
	existing, err := s.repo.GetAccountByCode(ctx, q, tenantID, code)
	if err == nil {
		return existing, nil
	}
	if !apierror.IsKind(err, apierror.KindNotFound) {
		return nil, err
	}

	account := &Account{
		TenantID:      tenantID,
		Code:          code,
		Name:          name,
		Type:          accountType,
		NormalBalance: NormalBalanceFor(accountType),
		IsActive:      true,
		IsSystem:      true,
		CreatedAt:     time.Now(),
	}
	if err := s.repo.CreateAccount(ctx, q, account); err != nil {
		return nil, err
	}
	return account, nil
}

// GetJournalEntry retrieves a journal entry by ID
func (s *Service) GetJournalEntry(ctx context.Context, tenantID int64, entryID string) (*JournalEntry, error) {
	return s.repo.GetJournalEntryByID(ctx, s.db, tenantID, entryID)
}

// ClosedThrough returns the tenant's period-close cutoff.
func (s *Service) ClosedThrough(ctx context.Context, tenantID int64) (*time.Time, error) {
	return s.repo.GetClosedThrough(ctx, s.db, tenantID)
}

// SetClosedThrough moves the tenant's period-close cutoff.
func (s *Service) SetClosedThrough(ctx context.Context, tenantID int64, through time.Time) error {
	return s.repo.SetClosedThrough(ctx, s.db, tenantID, money.DateOnly(through))
}

// AssertOpen fails with PERIOD_CLOSED unless date is strictly after the
// tenant's cutoff.
func (s *Service) AssertOpen(ctx context.Context, q database.Queryer, tenantID int64, date time.Time) error {
	closed, err := s.repo.GetClosedThrough(ctx, q, tenantID)
	if err != nil {
		return err
	}
	return AssertOpenAgainst(closed, date)
}

// AssertOpenAgainst applies the period-close rule to a known cutoff.
func AssertOpenAgainst(closedThrough *time.Time, date time.Time) error {
	if closedThrough == nil {
		return nil
	}
	if !money.DateOnly(date).After(money.DateOnly(*closedThrough)) {
		return apierror.New(apierror.KindPeriodClosed,
			"transaction date %s falls in a closed period (closed through %s)",
			money.DateOnly(date).Format("2006-01-02"), money.DateOnly(*closedThrough).Format("2006-01-02"))
	}
	return nil
}
