// Package reports serves pure read projections: P&L, balance sheet,
// AR/AP summaries and aging, and account drilldowns. Reports never
// write.
package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/zayar/simplecashflow/internal/apierror"
	"github.com/zayar/simplecashflow/internal/ledger"
	"github.com/zayar/simplecashflow/internal/money"
)

// Service provides report reads
type Service struct {
	db *pgxpool.Pool
}

// NewService creates a new reports service
func NewService(db *pgxpool.Pool) *Service {
	return &Service{db: db}
}

// ProfitLoss sums AccountBalance by INCOME/EXPENSE over [from, to],
// netted per account.
func (s *Service) ProfitLoss(ctx context.Context, tenantID int64, from, to time.Time) (*ProfitLoss, error) {
	from, to = money.DateOnly(from), money.DateOnly(to)

	rows, err := s.db.Query(ctx, `
		SELECT a.id, a.code, a.name, a.type,
		       CASE WHEN a.type = 'INCOME'
		            THEN COALESCE(SUM(ab.credit_total - ab.debit_total), 0)
		            ELSE COALESCE(SUM(ab.debit_total - ab.credit_total), 0)
		       END AS amount
		FROM accounts a
		JOIN account_balances ab ON ab.account_id = a.id AND ab.tenant_id = a.tenant_id
		WHERE a.tenant_id = $1 AND a.type IN ('INCOME', 'EXPENSE')
		  AND ab.day >= $2 AND ab.day <= $3
		GROUP BY a.id, a.code, a.name, a.type
		HAVING COALESCE(SUM(ab.debit_total), 0) <> 0 OR COALESCE(SUM(ab.credit_total), 0) <> 0
		ORDER BY a.code
	`, tenantID, from, to)
	if err != nil {
		return nil, fmt.Errorf("profit loss: %w", err)
	}
	defer rows.Close()

	report := &ProfitLoss{TenantID: tenantID, From: from, To: to, GeneratedAt: time.Now()}
	for rows.Next() {
		var line AccountLine
		if err := rows.Scan(&line.AccountID, &line.AccountCode, &line.AccountName, &line.AccountType, &line.Amount); err != nil {
			return nil, fmt.Errorf("scan profit loss line: %w", err)
		}
		if line.AccountType == ledger.AccountTypeIncome {
			report.Income = append(report.Income, line)
			report.TotalIncome = report.TotalIncome.Add(line.Amount)
		} else {
			report.Expenses = append(report.Expenses, line)
			report.TotalExpense = report.TotalExpense.Add(line.Amount)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	report.NetProfit = report.TotalIncome.Sub(report.TotalExpense)
	return report, nil
}

// BalanceSheet computes the running balance per account to asOf:
// ASSET/EXPENSE as debit − credit, others credit − debit.
func (s *Service) BalanceSheet(ctx context.Context, tenantID int64, asOf time.Time) (*BalanceSheet, error) {
	asOf = money.DateOnly(asOf)

	rows, err := s.db.Query(ctx, `
		SELECT a.id, a.code, a.name, a.type,
		       CASE WHEN a.type IN ('ASSET', 'EXPENSE')
		            THEN COALESCE(SUM(ab.debit_total - ab.credit_total), 0)
		            ELSE COALESCE(SUM(ab.credit_total - ab.debit_total), 0)
		       END AS amount
		FROM accounts a
		JOIN account_balances ab ON ab.account_id = a.id AND ab.tenant_id = a.tenant_id
		WHERE a.tenant_id = $1 AND ab.day <= $2
		GROUP BY a.id, a.code, a.name, a.type
		HAVING COALESCE(SUM(ab.debit_total), 0) <> 0 OR COALESCE(SUM(ab.credit_total), 0) <> 0
		ORDER BY a.code
	`, tenantID, asOf)
	if err != nil {
		return nil, fmt.Errorf("balance sheet: %w", err)
	}
	defer rows.Close()

	report := &BalanceSheet{TenantID: tenantID, AsOf: asOf, GeneratedAt: time.Now()}
	for rows.Next() {
		var line AccountLine
		if err := rows.Scan(&line.AccountID, &line.AccountCode, &line.AccountName, &line.AccountType, &line.Amount); err != nil {
			return nil, fmt.Errorf("scan balance sheet line: %w", err)
		}
		switch line.AccountType {
		case ledger.AccountTypeAsset:
			report.Assets = append(report.Assets, line)
			report.TotalAssets = report.TotalAssets.Add(line.Amount)
		case ledger.AccountTypeLiability:
			report.Liabilities = append(report.Liabilities, line)
			report.TotalLiabilities = report.TotalLiabilities.Add(line.Amount)
		case ledger.AccountTypeEquity:
			report.Equity = append(report.Equity, line)
			report.TotalEquity = report.TotalEquity.Add(line.Amount)
		case ledger.AccountTypeIncome:
			report.RetainedEarnings = report.RetainedEarnings.Add(line.Amount)
		case ledger.AccountTypeExpense:
			report.RetainedEarnings = report.RetainedEarnings.Sub(line.Amount)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	report.TotalEquity = report.TotalEquity.Add(report.RetainedEarnings)
	report.IsBalanced = report.TotalAssets.Equal(report.TotalLiabilities.Add(report.TotalEquity))
	return report, nil
}

// ReceivablesSummary lists outstanding balances per customer from
// document totals minus applied payments, credits and advances.
func (s *Service) ReceivablesSummary(ctx context.Context, tenantID int64) (*Summary, error) {
	return s.summary(ctx, tenantID, `
		SELECT c.id, c.name, COUNT(i.id), COALESCE(SUM(i.total - i.amount_paid), 0)
		FROM customers c
		JOIN invoices i ON i.customer_id = c.id AND i.tenant_id = c.tenant_id
		WHERE c.tenant_id = $1 AND i.status IN ('POSTED', 'PARTIAL')
		GROUP BY c.id, c.name
		ORDER BY c.name
	`)
}

// PayablesSummary lists outstanding balances per vendor.
func (s *Service) PayablesSummary(ctx context.Context, tenantID int64) (*Summary, error) {
	return s.summary(ctx, tenantID, `
		SELECT v.id, v.name, COUNT(b.id), COALESCE(SUM(b.total - b.amount_paid), 0)
		FROM vendors v
		JOIN purchase_bills b ON b.vendor_id = v.id AND b.tenant_id = v.tenant_id
		WHERE v.tenant_id = $1 AND b.status IN ('POSTED', 'PARTIAL')
		GROUP BY v.id, v.name
		ORDER BY v.name
	`)
}

func (s *Service) summary(ctx context.Context, tenantID int64, query string) (*Summary, error) {
	rows, err := s.db.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	defer rows.Close()

	report := &Summary{TenantID: tenantID, GeneratedAt: time.Now()}
	for rows.Next() {
		var row SummaryRow
		if err := rows.Scan(&row.CounterpartyID, &row.CounterpartyName, &row.OpenDocuments, &row.Outstanding); err != nil {
			return nil, fmt.Errorf("scan summary row: %w", err)
		}
		report.Rows = append(report.Rows, row)
		report.Total = report.Total.Add(row.Outstanding)
	}
	return report, rows.Err()
}

// ReceivablesAging buckets open invoices by age against asOf.
func (s *Service) ReceivablesAging(ctx context.Context, tenantID int64, asOf time.Time) (*AgingReport, error) {
	return s.aging(ctx, tenantID, asOf, `
		SELECT id, number, customer_id, invoice_date, due_date, total, total - amount_paid
		FROM invoices
		WHERE tenant_id = $1 AND status IN ('POSTED', 'PARTIAL')
		ORDER BY invoice_date, id
	`)
}

// PayablesAging buckets open bills by age against asOf.
func (s *Service) PayablesAging(ctx context.Context, tenantID int64, asOf time.Time) (*AgingReport, error) {
	return s.aging(ctx, tenantID, asOf, `
		SELECT id, number, vendor_id, bill_date, due_date, total, total - amount_paid
		FROM purchase_bills
		WHERE tenant_id = $1 AND status IN ('POSTED', 'PARTIAL')
		ORDER BY bill_date, id
	`)
}

func (s *Service) aging(ctx context.Context, tenantID int64, asOf time.Time, query string) (*AgingReport, error) {
	asOf = money.DateOnly(asOf)
	rows, err := s.db.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("aging: %w", err)
	}
	defer rows.Close()

	report := &AgingReport{
		TenantID:    tenantID,
		AsOf:        asOf,
		Totals:      make(map[AgingBucket]decimal.Decimal),
		GeneratedAt: time.Now(),
	}
	for rows.Next() {
		var row AgingRow
		if err := rows.Scan(&row.DocumentID, &row.Number, &row.CounterpartyID, &row.DocumentDate,
			&row.DueDate, &row.Total, &row.Remaining); err != nil {
			return nil, fmt.Errorf("scan aging row: %w", err)
		}
		ageFrom := row.DocumentDate
		if row.DueDate != nil {
			ageFrom = *row.DueDate
		}
		row.DaysPastDue = int(asOf.Sub(money.DateOnly(ageFrom)).Hours() / 24)
		row.Bucket = BucketFor(row.DaysPastDue)
		report.Rows = append(report.Rows, row)
		report.Totals[row.Bucket] = report.Totals[row.Bucket].Add(row.Remaining)
		report.GrandTotal = report.GrandTotal.Add(row.Remaining)
	}
	return report, rows.Err()
}

// AccountTransactions builds the drilldown for one account: opening
// balance as sign on the account's normal balance, then per-entry lines
// in (date, id) order.
func (s *Service) AccountTransactions(ctx context.Context, tenantID int64, accountID string, from, to time.Time) (*AccountTransactions, error) {
	from, to = money.DateOnly(from), money.DateOnly(to)

	var report AccountTransactions
	err := s.db.QueryRow(ctx, `
		SELECT id, code, name, type FROM accounts WHERE id = $1 AND tenant_id = $2
	`, accountID, tenantID).Scan(&report.AccountID, &report.AccountCode, &report.AccountName, &report.AccountType)
	if err == pgx.ErrNoRows {
		return nil, apierror.New(apierror.KindNotFound, "account not found: %s", accountID)
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	report.TenantID = tenantID
	report.From = from
	report.To = to
	report.GeneratedAt = time.Now()

	debitNormal := report.AccountType.IsDebitNormal()

	var openDebit, openCredit decimal.Decimal
	err = s.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(jl.debit), 0), COALESCE(SUM(jl.credit), 0)
		FROM journal_lines jl
		JOIN journal_entries je ON je.id = jl.entry_id AND je.tenant_id = jl.tenant_id
		WHERE jl.tenant_id = $1 AND jl.account_id = $2 AND je.entry_date < $3
	`, tenantID, accountID, from).Scan(&openDebit, &openCredit)
	if err != nil {
		return nil, fmt.Errorf("opening balance: %w", err)
	}
	if debitNormal {
		report.OpeningBalance = openDebit.Sub(openCredit)
	} else {
		report.OpeningBalance = openCredit.Sub(openDebit)
	}

	rows, err := s.db.Query(ctx, `
		SELECT je.id, je.entry_date, je.description, jl.debit, jl.credit
		FROM journal_lines jl
		JOIN journal_entries je ON je.id = jl.entry_id AND je.tenant_id = jl.tenant_id
		WHERE jl.tenant_id = $1 AND jl.account_id = $2 AND je.entry_date >= $3 AND je.entry_date <= $4
		ORDER BY je.entry_date, je.id, jl.id
	`, tenantID, accountID, from, to)
	if err != nil {
		return nil, fmt.Errorf("account transactions: %w", err)
	}
	defer rows.Close()

	running := report.OpeningBalance
	for rows.Next() {
		var line TransactionLine
		if err := rows.Scan(&line.EntryID, &line.EntryDate, &line.Description, &line.Debit, &line.Credit); err != nil {
			return nil, fmt.Errorf("scan transaction line: %w", err)
		}
		if debitNormal {
			running = running.Add(line.Debit).Sub(line.Credit)
		} else {
			running = running.Add(line.Credit).Sub(line.Debit)
		}
		line.Balance = running
		report.Lines = append(report.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	report.ClosingBalance = running
	return &report, nil
}
