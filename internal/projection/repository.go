// Package projection maintains the read-optimised AccountBalance and
// DailySummary tables from journal.entry.created events, with per-event
// deduplication.
package projection

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/zayar/simplecashflow/internal/database"
)

// AccountBalance is one projected (tenant, day, account) aggregate.
type AccountBalance struct {
	TenantID    int64           `json:"tenant_id"`
	Day         time.Time       `json:"day"`
	AccountID   string          `json:"account_id"`
	DebitTotal  decimal.Decimal `json:"debit_total"`
	CreditTotal decimal.Decimal `json:"credit_total"`
}

// DailySummary is one projected (tenant, day) income/expense aggregate.
type DailySummary struct {
	TenantID     int64           `json:"tenant_id"`
	Day          time.Time       `json:"day"`
	TotalIncome  decimal.Decimal `json:"total_income"`
	TotalExpense decimal.Decimal `json:"total_expense"`
}

// Repository provides access to projection tables.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new projection repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// MarkProcessed inserts the (tenant, event) dedupe row; false when the
// event was already applied.
func (r *Repository) MarkProcessed(ctx context.Context, q database.Queryer, tenantID int64, eventID string) (bool, error) {
	tag, err := q.Exec(ctx, `
		INSERT INTO processed_events (tenant_id, event_id, processed_at)
		VALUES ($1, $2, now())
		ON CONFLICT (tenant_id, event_id) DO NOTHING
	`, tenantID, eventID)
	if err != nil {
		return false, fmt.Errorf("mark processed: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// AddToAccountBalance upsert-adds debit and credit into the (day,
// account) row.
func (r *Repository) AddToAccountBalance(ctx context.Context, q database.Queryer, b *AccountBalance) error {
	_, err := q.Exec(ctx, `
		INSERT INTO account_balances (tenant_id, day, account_id, debit_total, credit_total)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (tenant_id, day, account_id) DO UPDATE
		SET debit_total = account_balances.debit_total + EXCLUDED.debit_total,
		    credit_total = account_balances.credit_total + EXCLUDED.credit_total
	`, b.TenantID, b.Day, b.AccountID, b.DebitTotal, b.CreditTotal)
	if err != nil {
		return fmt.Errorf("add to account balance: %w", err)
	}
	return nil
}

// AddToDailySummary upsert-adds income and expense into the day row.
func (r *Repository) AddToDailySummary(ctx context.Context, q database.Queryer, s *DailySummary) error {
	_, err := q.Exec(ctx, `
		INSERT INTO daily_summaries (tenant_id, day, total_income, total_expense)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tenant_id, day) DO UPDATE
		SET total_income = daily_summaries.total_income + EXCLUDED.total_income,
		    total_expense = daily_summaries.total_expense + EXCLUDED.total_expense
	`, s.TenantID, s.Day, s.TotalIncome, s.TotalExpense)
	if err != nil {
		return fmt.Errorf("add to daily summary: %w", err)
	}
	return nil
}

// ClearRange deletes projection rows in [from, to] for a tenant.
func (r *Repository) ClearRange(ctx context.Context, q database.Queryer, tenantID int64, from, to time.Time) error {
	if _, err := q.Exec(ctx, `
		DELETE FROM account_balances WHERE tenant_id = $1 AND day >= $2 AND day <= $3
	`, tenantID, from, to); err != nil {
		return fmt.Errorf("clear account balances: %w", err)
	}
	if _, err := q.Exec(ctx, `
		DELETE FROM daily_summaries WHERE tenant_id = $1 AND day >= $2 AND day <= $3
	`, tenantID, from, to); err != nil {
		return fmt.Errorf("clear daily summaries: %w", err)
	}
	return nil
}
