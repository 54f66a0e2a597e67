package projection

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"github.com/zayar/simplecashflow/internal/database"
	"github.com/zayar/simplecashflow/internal/money"
	"github.com/zayar/simplecashflow/internal/outbox"
)

// Rebuild clears the projections in [from, to] and recomputes them from
// the ledger, then pre-marks every journal.entry.created event in range
// as processed so the live worker does not double-apply.
func (w *Worker) Rebuild(ctx context.Context, tenantID int64, from, to time.Time) error {
	from = money.DateOnly(from)
	to = money.DateOnly(to)

	err := database.WithTx(ctx, w.db, func(tx pgx.Tx) error {
		if err := w.repo.ClearRange(ctx, tx, tenantID, from, to); err != nil {
			return err
		}

		// Recompute AccountBalance straight off the journal lines.
		if _, err := tx.Exec(ctx, `
			INSERT INTO account_balances (tenant_id, day, account_id, debit_total, credit_total)
			SELECT jl.tenant_id, je.entry_date, jl.account_id, SUM(jl.debit), SUM(jl.credit)
			FROM journal_lines jl
			JOIN journal_entries je ON je.id = jl.entry_id AND je.tenant_id = jl.tenant_id
			WHERE jl.tenant_id = $1 AND je.entry_date >= $2 AND je.entry_date <= $3
			GROUP BY jl.tenant_id, je.entry_date, jl.account_id
		`, tenantID, from, to); err != nil {
			return fmt.Errorf("rebuild account balances: %w", err)
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO daily_summaries (tenant_id, day, total_income, total_expense)
			SELECT jl.tenant_id, je.entry_date,
			       SUM(CASE WHEN a.type = 'INCOME' THEN jl.credit - jl.debit ELSE 0 END),
			       SUM(CASE WHEN a.type = 'EXPENSE' THEN jl.debit - jl.credit ELSE 0 END)
			FROM journal_lines jl
			JOIN journal_entries je ON je.id = jl.entry_id AND je.tenant_id = jl.tenant_id
			JOIN accounts a ON a.id = jl.account_id AND a.tenant_id = jl.tenant_id
			WHERE jl.tenant_id = $1 AND je.entry_date >= $2 AND je.entry_date <= $3
			GROUP BY jl.tenant_id, je.entry_date
			HAVING SUM(CASE WHEN a.type = 'INCOME' THEN jl.credit - jl.debit ELSE 0 END) <> 0
			    OR SUM(CASE WHEN a.type = 'EXPENSE' THEN jl.debit - jl.credit ELSE 0 END) <> 0
		`, tenantID, from, to); err != nil {
			return fmt.Errorf("rebuild daily summaries: %w", err)
		}

		// Pre-mark in-range events so the live worker skips them.
		if _, err := tx.Exec(ctx, `
			INSERT INTO processed_events (tenant_id, event_id, processed_at)
			SELECT e.tenant_id, e.event_id, now()
			FROM outbox_events e
			JOIN journal_entries je ON je.id = e.aggregate_id AND je.tenant_id = e.tenant_id
			WHERE e.tenant_id = $1 AND e.event_type = $2
			  AND je.entry_date >= $3 AND je.entry_date <= $4
			ON CONFLICT (tenant_id, event_id) DO NOTHING
		`, tenantID, outbox.EventJournalEntryCreated, from, to); err != nil {
			return fmt.Errorf("pre-mark processed events: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Info().
		Int64("tenant_id", tenantID).
		Time("from", from).
		Time("to", to).
		Msg("projections rebuilt")
	return nil
}
