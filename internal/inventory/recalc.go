package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/zayar/simplecashflow/internal/database"
	"github.com/zayar/simplecashflow/internal/ledger"
	"github.com/zayar/simplecashflow/internal/money"
)

// RunRecalcForward replays weighted-average costs for every (location,
// item) with activity on or after fromDate, rewrites revalued OUT
// moves, refreshes StockBalance snapshots and posts one compensating
// journal entry per affected source entry, anchored so repeated recalcs
// are net-zero. Sources inside the closed period are suppressed and
// logged, never silently dated out.
func (s *Service) RunRecalcForward(ctx context.Context, tenantID int64, fromDate time.Time) error {
	fromDate = money.DateOnly(fromDate)

	return database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		// One recalc per tenant at a time.
		if err := database.AdvisoryXactLock(ctx, tx, fmt.Sprintf("inv-recalc:%d", tenantID)); err != nil {
			return err
		}

		closedThrough, err := s.ledger.Repo().GetClosedThrough(ctx, tx, tenantID)
		if err != nil {
			return err
		}
		if closedThrough != nil && !fromDate.After(money.DateOnly(*closedThrough)) {
			fromDate = money.DateOnly(closedThrough.AddDate(0, 0, 1))
		}

		pairs, err := s.repo.AffectedPairs(ctx, tx, tenantID, fromDate)
		if err != nil {
			return err
		}
		if len(pairs) == 0 {
			return nil
		}

		// Deltas aggregated per source journal entry across all pairs.
		deltaByEntry := make(map[string]decimal.Decimal)
		storedByEntry := make(map[string]decimal.Decimal)

		for _, pair := range pairs {
			locationID, itemID := pair[0], pair[1]
			baseline, err := s.repo.BaselineBefore(ctx, tx, tenantID, locationID, itemID, fromDate)
			if err != nil {
				return err
			}
			moves, err := s.repo.MovesOnOrAfter(ctx, tx, tenantID, locationID, itemID, fromDate)
			if err != nil {
				return err
			}

			final, changes, err := ReplayMoves(baseline, moves)
			if err != nil {
				return err
			}

			for _, ch := range changes {
				if err := s.repo.UpdateMoveCosts(ctx, tx, tenantID, ch.MoveID, ch.DesiredUnitCost, ch.DesiredTotal); err != nil {
					return err
				}
				if ch.JournalEntryID == nil {
					continue
				}
				id := *ch.JournalEntryID
				deltaByEntry[id] = deltaByEntry[id].Add(ch.Delta())
				storedByEntry[id] = storedByEntry[id].Add(ch.StoredTotal)
			}

			balance := final.Snapshot(tenantID, locationID, itemID)
			if err := s.repo.UpsertBalance(ctx, tx, &balance); err != nil {
				return err
			}
		}

		refs, err := s.repo.GetCompanyRefs(ctx, tx, tenantID)
		if err != nil {
			return err
		}

		for entryID := range deltaByEntry {
			if err := s.compensate(ctx, tx, tenantID, entryID, deltaByEntry[entryID], storedByEntry[entryID], refs, closedThrough); err != nil {
				return err
			}
		}
		return nil
	})
}

// compensate posts one Dr COGS / Cr Inventory (or swapped) entry dated
// on the source entry's date for the change in its computed cost. The
// anchor carries the cumulative computed cost; stored move costs are
// rewritten in the same transaction, so the pair can never diverge.
func (s *Service) compensate(ctx context.Context, tx pgx.Tx, tenantID int64, sourceEntryID string, delta, storedCogs decimal.Decimal, refs *CompanyRefs, closedThrough *time.Time) error {
	adjustment := money.RoundMoney(delta)
	if adjustment.IsZero() {
		return nil
	}
	anchor, err := s.repo.GetAnchor(ctx, tx, tenantID, sourceEntryID)
	if err != nil {
		return err
	}
	base := storedCogs
	if anchor != nil {
		base = anchor.LastComputedCogs
	}

	sourceDate, err := s.repo.SourceEntryDate(ctx, tx, tenantID, sourceEntryID)
	if err != nil {
		return err
	}
	if closedThrough != nil && !money.DateOnly(sourceDate).After(money.DateOnly(*closedThrough)) {
		log.Warn().
			Int64("tenant_id", tenantID).
			Str("source_entry_id", sourceEntryID).
			Str("adjustment", adjustment.String()).
			Time("source_date", sourceDate).
			Msg("inventory recalc adjustment suppressed: source entry in closed period")
		return nil
	}

	lines := []ledger.LineInput{
		{AccountID: refs.CogsAccountID, Debit: adjustment},
		{AccountID: refs.InventoryAccountID, Credit: adjustment},
	}
	if adjustment.IsNegative() {
		abs := adjustment.Abs()
		lines = []ledger.LineInput{
			{AccountID: refs.InventoryAccountID, Debit: abs},
			{AccountID: refs.CogsAccountID, Credit: abs},
		}
	}

	if _, err := s.ledger.PostJournalEntry(ctx, tx, &ledger.PostRequest{
		TenantID:    tenantID,
		Date:        sourceDate,
		Description: "Inventory valuation adjustment",
		Lines:       lines,
		// Account ids come from the company row; skip per-line lookups.
		SkipAccountValidation: true,
		CorrelationID:         fmt.Sprintf("inventory-recalc:%d:%s", tenantID, sourceEntryID),
		CausationID:           &sourceEntryID,
	}); err != nil {
		return err
	}

	if err := s.repo.UpsertAnchor(ctx, tx, &ValuationAnchor{
		TenantID:             tenantID,
		SourceJournalEntryID: sourceEntryID,
		LastComputedCogs:     base.Add(adjustment),
	}); err != nil {
		return err
	}

	log.Info().
		Int64("tenant_id", tenantID).
		Str("source_entry_id", sourceEntryID).
		Str("adjustment", adjustment.String()).
		Msg("inventory valuation adjustment posted")
	return nil
}
