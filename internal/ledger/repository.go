package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zayar/simplecashflow/internal/apierror"
	"github.com/zayar/simplecashflow/internal/database"
)

// RepositoryInterface defines the contract for ledger data access
type RepositoryInterface interface {
	GetAccountByID(ctx context.Context, q database.Queryer, tenantID int64, accountID string) (*Account, error)
	GetAccountByCode(ctx context.Context, q database.Queryer, tenantID int64, code string) (*Account, error)
	ListAccounts(ctx context.Context, q database.Queryer, tenantID int64, activeOnly bool) ([]Account, error)
	CreateAccount(ctx context.Context, q database.Queryer, a *Account) error
	SetAccountActive(ctx context.Context, q database.Queryer, tenantID int64, accountID string, active bool) error
	AccountHasLines(ctx context.Context, q database.Queryer, tenantID int64, accountID string) (bool, error)
	DeleteAccount(ctx context.Context, q database.Queryer, tenantID int64, accountID string) error
	CountAccountsOwned(ctx context.Context, q database.Queryer, tenantID int64, accountIDs []string) (int, error)
	GetJournalEntryByID(ctx context.Context, q database.Queryer, tenantID int64, entryID string) (*JournalEntry, error)
	InsertJournalEntry(ctx context.Context, q database.Queryer, je *JournalEntry) error
	GetClosedThrough(ctx context.Context, q database.Queryer, tenantID int64) (*time.Time, error)
	SetClosedThrough(ctx context.Context, q database.Queryer, tenantID int64, through time.Time) error
}

// Repository provides access to ledger data
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new ledger repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const accountColumns = `id, tenant_id, code, name, type, normal_balance, is_active, is_system, created_at`

// GetAccountByID retrieves an account by ID
func (r *Repository) GetAccountByID(ctx context.Context, q database.Queryer, tenantID int64, accountID string) (*Account, error) {
	var a Account
	err := q.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE id = $1 AND tenant_id = $2
	`, accountID, tenantID).Scan(
		&a.ID, &a.TenantID, &a.Code, &a.Name, &a.Type,
		&a.NormalBalance, &a.IsActive, &a.IsSystem, &a.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, apierror.New(apierror.KindNotFound, "account not found: %s", accountID)
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return &a, nil
}

// GetAccountByCode retrieves an account by its tenant-scoped code.
func (r *Repository) GetAccountByCode(ctx context.Context, q database.Queryer, tenantID int64, code string) (*Account, error) {
	var a Account
	err := q.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE tenant_id = $1 AND code = $2
	`, tenantID, code).Scan(
		&a.ID, &a.TenantID, &a.Code, &a.Name, &a.Type,
		&a.NormalBalance, &a.IsActive, &a.IsSystem, &a.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, apierror.New(apierror.KindNotFound, "account not found: code %s", code)
	}
	if err != nil {
		return nil, fmt.Errorf("get account by code: %w", err)
	}
	return &a, nil
}

// ListAccounts retrieves all accounts for a tenant
func (r *Repository) ListAccounts(ctx context.Context, q database.Queryer, tenantID int64, activeOnly bool) ([]Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE tenant_id = $1`
	if activeOnly {
		query += " AND is_active = true"
	}
	query += " ORDER BY code"

	rows, err := q.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(
			&a.ID, &a.TenantID, &a.Code, &a.Name, &a.Type,
			&a.NormalBalance, &a.IsActive, &a.IsSystem, &a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// CreateAccount creates a new account
func (r *Repository) CreateAccount(ctx context.Context, q database.Queryer, a *Account) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}

	_, err := q.Exec(ctx, `
		INSERT INTO accounts (id, tenant_id, code, name, type, normal_balance, is_active, is_system, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, a.ID, a.TenantID, a.Code, a.Name, a.Type, a.NormalBalance, a.IsActive, a.IsSystem, a.CreatedAt)
	if database.IsUniqueViolation(err) {
		return apierror.New(apierror.KindValidation, "account code %s already exists", a.Code)
	}
	if err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

// SetAccountActive toggles an account's active flag.
func (r *Repository) SetAccountActive(ctx context.Context, q database.Queryer, tenantID int64, accountID string, active bool) error {
	tag, err := q.Exec(ctx, `
		UPDATE accounts SET is_active = $3 WHERE id = $1 AND tenant_id = $2
	`, accountID, tenantID, active)
	if err != nil {
		return fmt.Errorf("set account active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apierror.New(apierror.KindNotFound, "account not found: %s", accountID)
	}
	return nil
}

// AccountHasLines reports whether any journal line references the account.
func (r *Repository) AccountHasLines(ctx context.Context, q database.Queryer, tenantID int64, accountID string) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM journal_lines WHERE account_id = $1 AND tenant_id = $2)
	`, accountID, tenantID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("account has lines: %w", err)
	}
	return exists, nil
}

// DeleteAccount removes an account row. Callers verify it is unused.
func (r *Repository) DeleteAccount(ctx context.Context, q database.Queryer, tenantID int64, accountID string) error {
	tag, err := q.Exec(ctx, `
		DELETE FROM accounts WHERE id = $1 AND tenant_id = $2
	`, accountID, tenantID)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apierror.New(apierror.KindNotFound, "account not found: %s", accountID)
	}
	return nil
}

// CountAccountsOwned counts how many of the given ids are active accounts
// of the tenant.
func (r *Repository) CountAccountsOwned(ctx context.Context, q database.Queryer, tenantID int64, accountIDs []string) (int, error) {
	var n int
	err := q.QueryRow(ctx, `
		SELECT COUNT(DISTINCT id) FROM accounts
		WHERE tenant_id = $1 AND is_active = true AND id = ANY($2)
	`, tenantID, accountIDs).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count owned accounts: %w", err)
	}
	return n, nil
}

// GetJournalEntryByID retrieves a journal entry with its lines
func (r *Repository) GetJournalEntryByID(ctx context.Context, q database.Queryer, tenantID int64, entryID string) (*JournalEntry, error) {
	var je JournalEntry
	err := q.QueryRow(ctx, `
		SELECT id, tenant_id, entry_date, description, location_id, created_by_user_id, created_at
		FROM journal_entries
		WHERE id = $1 AND tenant_id = $2
	`, entryID, tenantID).Scan(
		&je.ID, &je.TenantID, &je.EntryDate, &je.Description, &je.LocationID, &je.CreatedByUserID, &je.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, apierror.New(apierror.KindNotFound, "journal entry not found: %s", entryID)
	}
	if err != nil {
		return nil, fmt.Errorf("get journal entry: %w", err)
	}

	rows, err := q.Query(ctx, `
		SELECT id, entry_id, tenant_id, account_id, debit, credit
		FROM journal_lines
		WHERE entry_id = $1 AND tenant_id = $2
		ORDER BY id
	`, entryID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("get journal lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var line JournalLine
		if err := rows.Scan(&line.ID, &line.EntryID, &line.TenantID, &line.AccountID, &line.Debit, &line.Credit); err != nil {
			return nil, fmt.Errorf("scan journal line: %w", err)
		}
		je.Lines = append(je.Lines, line)
	}
	return &je, rows.Err()
}

// InsertJournalEntry inserts the entry and its lines within the caller's
// transaction.
func (r *Repository) InsertJournalEntry(ctx context.Context, q database.Queryer, je *JournalEntry) error {
	if je.ID == "" {
		je.ID = uuid.New().String()
	}
	if je.CreatedAt.IsZero() {
		je.CreatedAt = time.Now()
	}

	_, err := q.Exec(ctx, `
		INSERT INTO journal_entries (id, tenant_id, entry_date, description, location_id, created_by_user_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, je.ID, je.TenantID, je.EntryDate, je.Description, je.LocationID, je.CreatedByUserID, je.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert journal entry: %w", err)
	}

	for i := range je.Lines {
		line := &je.Lines[i]
		if line.ID == "" {
			line.ID = uuid.New().String()
		}
		line.TenantID = je.TenantID
		line.EntryID = je.ID

		_, err = q.Exec(ctx, `
			INSERT INTO journal_lines (id, entry_id, tenant_id, account_id, debit, credit)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, line.ID, line.EntryID, line.TenantID, line.AccountID, line.Debit, line.Credit)
		if err != nil {
			return fmt.Errorf("insert journal line: %w", err)
		}
	}
	return nil
}

// GetClosedThrough returns the tenant's inclusive period-close cutoff,
// or nil when no period is closed.
func (r *Repository) GetClosedThrough(ctx context.Context, q database.Queryer, tenantID int64) (*time.Time, error) {
	var closed *time.Time
	err := q.QueryRow(ctx, `
		SELECT closed_through FROM period_closes WHERE tenant_id = $1
	`, tenantID).Scan(&closed)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get closed through: %w", err)
	}
	return closed, nil
}

// SetClosedThrough upserts the tenant's period-close cutoff.
func (r *Repository) SetClosedThrough(ctx context.Context, q database.Queryer, tenantID int64, through time.Time) error {
	_, err := q.Exec(ctx, `
		INSERT INTO period_closes (tenant_id, closed_through, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (tenant_id) DO UPDATE SET closed_through = EXCLUDED.closed_through, updated_at = now()
	`, tenantID, through)
	if err != nil {
		return fmt.Errorf("set closed through: %w", err)
	}
	return nil
}
