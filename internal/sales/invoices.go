package sales

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/zayar/simplecashflow/internal/apierror"
	"github.com/zayar/simplecashflow/internal/database"
	"github.com/zayar/simplecashflow/internal/inventory"
	"github.com/zayar/simplecashflow/internal/ledger"
	"github.com/zayar/simplecashflow/internal/money"
	"github.com/zayar/simplecashflow/internal/outbox"
)

// invoicePayload is the invoice lifecycle event payload.
type invoicePayload struct {
	InvoiceID      string          `json:"invoice_id"`
	Number         string          `json:"number"`
	CustomerID     string          `json:"customer_id"`
	Total          decimal.Decimal `json:"total"`
	JournalEntryID *string         `json:"journal_entry_id,omitempty"`
}

// CreateInvoice validates and writes a DRAFT invoice with computed
// totals. No journal entry exists until the invoice posts.
func (s *Service) CreateInvoice(ctx context.Context, tenantID int64, req *CreateInvoiceRequest) (*Invoice, error) {
	invoiceDate, err := parseDate(req.InvoiceDate, "invoice date")
	if err != nil {
		return nil, err
	}
	var dueDate *time.Time
	if req.DueDate != nil {
		d, err := parseDate(*req.DueDate, "due date")
		if err != nil {
			return nil, err
		}
		dueDate = &d
	}
	rate := decimal.NewFromInt(1)
	if req.ExchangeRate != nil {
		rate, err = money.Parse(req.ExchangeRate)
		if err != nil || !rate.IsPositive() {
			return nil, apierror.New(apierror.KindValidation, "exchange rate must be a positive number")
		}
		rate = money.RoundFX(rate)
	}
	if req.Currency != nil && !money.ValidCurrency(*req.Currency) {
		return nil, apierror.New(apierror.KindValidation, "invalid currency code: %s", *req.Currency)
	}

	var invoice *Invoice
	err = database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		computed, err := s.resolveDocumentLines(ctx, tx, tenantID, req.CustomerID, req.Lines)
		if err != nil {
			return err
		}
		totals := convertToBase(SumTotals(computed), rate)

		number, err := s.repo.NextInvoiceNumber(ctx, tx, tenantID)
		if err != nil {
			return err
		}

		invoice = &Invoice{
			TenantID:     tenantID,
			CustomerID:   req.CustomerID,
			Number:       number,
			Status:       StatusDraft,
			InvoiceDate:  invoiceDate,
			DueDate:      dueDate,
			Currency:     req.Currency,
			ExchangeRate: rate,
			Subtotal:     totals.Subtotal,
			TaxAmount:    totals.Tax,
			Total:        totals.Total,
			AmountPaid:   decimal.Zero,
			LocationID:   req.LocationID,
			Lines:        toInvoiceLines(computed),
		}
		return s.repo.InsertInvoice(ctx, tx, invoice)
	})
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

// PostInvoice posts a DRAFT invoice: recomputes totals against the
// stored ones, builds the AR / income / tax (/ COGS-inventory) entry,
// writes stock OUT moves for tracked items and flips the status.
func (s *Service) PostInvoice(ctx context.Context, tenantID int64, invoiceID string) (*Invoice, error) {
	var invoice *Invoice
	var recalcFrom *time.Time

	err := database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		inv, err := s.repo.GetInvoiceByID(ctx, tx, tenantID, invoiceID, true)
		if err != nil {
			return err
		}
		if inv.Status != StatusDraft {
			return apierror.New(apierror.KindState, "only draft invoices can be posted, current status: %s", inv.Status)
		}

		// Defensive recomputation against prior partial updates.
		recomputed := convertToBase(RecomputeFromStored(inv.Lines), inv.ExchangeRate)
		if !recomputed.Subtotal.Equal(inv.Subtotal) || !recomputed.Tax.Equal(inv.TaxAmount) || !recomputed.Total.Equal(inv.Total) {
			return apierror.New(apierror.KindIntegrity,
				"invoice %s totals mismatch: stored %s, recomputed %s", inv.Number, inv.Total, recomputed.Total)
		}

		refs, err := s.repo.GetCompanyRefs(ctx, tx, tenantID)
		if err != nil {
			return err
		}

		lines := []ledger.LineInput{{AccountID: refs.ARAccountID, Debit: inv.Total}}
		for accountID, amount := range recomputed.ByIncomeAccount {
			lines = append(lines, ledger.LineInput{AccountID: accountID, Credit: amount})
		}
		if recomputed.Tax.IsPositive() {
			lines = append(lines, ledger.LineInput{AccountID: refs.TaxPayableAccountID, Credit: recomputed.Tax})
		}

		cogsLines, needsRecalc, from, err := s.issueStock(ctx, tx, inv, inventory.RefInvoice)
		if err != nil {
			return err
		}
		lines = append(lines, cogsLines...)
		if needsRecalc {
			recalcFrom = &from
		}

		entry, err := s.ledger.PostJournalEntry(ctx, tx, &ledger.PostRequest{
			TenantID:    tenantID,
			Date:        inv.InvoiceDate,
			Description: "Invoice " + inv.Number,
			LocationID:  inv.LocationID,
			Lines:       lines,
		})
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `
			UPDATE stock_moves SET journal_entry_id = $3
			WHERE tenant_id = $1 AND reference_type = $4 AND reference_id = $2 AND journal_entry_id IS NULL
		`, tenantID, inv.ID, entry.ID, inventory.RefInvoice); err != nil {
			return apierror.Wrap(apierror.KindResource, err, "link invoice stock moves")
		}

		inv.Status = StatusPosted
		inv.JournalEntryID = &entry.ID
		if err := s.repo.UpdateInvoicePosted(ctx, tx, inv); err != nil {
			return err
		}

		event, err := outbox.NewEvent(tenantID, outbox.EventInvoicePosted, "Invoice", inv.ID, "", nil,
			invoicePayload{InvoiceID: inv.ID, Number: inv.Number, CustomerID: inv.CustomerID, Total: inv.Total, JournalEntryID: inv.JournalEntryID})
		if err != nil {
			return apierror.Wrap(apierror.KindIntegrity, err, "build invoice.posted event")
		}
		if err := s.events.Append(ctx, tx, event); err != nil {
			return err
		}

		invoice = inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	if recalcFrom != nil {
		if err := s.inventory.RunRecalcForward(ctx, tenantID, *recalcFrom); err != nil {
			return nil, err
		}
	}
	return invoice, nil
}

// issueStock writes OUT moves for the invoice's inventory-tracked lines
// and returns the aggregated Dr COGS / Cr Inventory posting lines.
func (s *Service) issueStock(ctx context.Context, tx pgx.Tx, inv *Invoice, referenceType string) ([]ledger.LineInput, bool, time.Time, error) {
	invRepo := s.inventory.Repo()
	totalCogs := decimal.Zero
	needsRecalc := false
	var recalcFrom time.Time

	for _, line := range inv.Lines {
		item, err := invRepo.GetItemByID(ctx, tx, inv.TenantID, line.ItemID)
		if err != nil {
			return nil, false, time.Time{}, err
		}
		if !item.TrackInventory {
			continue
		}
		locationID, err := s.inventory.ResolveLocation(ctx, tx, inv.TenantID, inv.LocationID, item)
		if err != nil {
			return nil, false, time.Time{}, err
		}

		result, err := s.inventory.ApplyMove(ctx, tx, &inventory.StockMove{
			TenantID:      inv.TenantID,
			Date:          inv.InvoiceDate,
			LocationID:    *locationID,
			ItemID:        item.ID,
			Direction:     inventory.DirectionOut,
			Quantity:      line.Quantity,
			ReferenceType: referenceType,
			ReferenceID:   inv.ID,
		})
		if err != nil {
			return nil, false, time.Time{}, err
		}
		totalCogs = totalCogs.Add(result.Move.TotalCostApplied)
		if result.NeedsRecalc && (!needsRecalc || result.RecalcFrom.Before(recalcFrom)) {
			needsRecalc = true
			recalcFrom = result.RecalcFrom
		}
	}

	if totalCogs.IsZero() {
		return nil, needsRecalc, recalcFrom, nil
	}
	refs, err := invRepo.GetCompanyRefs(ctx, tx, inv.TenantID)
	if err != nil {
		return nil, false, time.Time{}, err
	}
	return []ledger.LineInput{
		{AccountID: refs.CogsAccountID, Debit: money.RoundMoney(totalCogs)},
		{AccountID: refs.InventoryAccountID, Credit: money.RoundMoney(totalCogs)},
	}, needsRecalc, recalcFrom, nil
}

// VoidInvoice voids a posted invoice: reverses any live payments, posts
// the reversing entry, restores inventory at historical cost and marks
// the invoice VOID. VOID is terminal.
func (s *Service) VoidInvoice(ctx context.Context, tenantID int64, invoiceID string) (*Invoice, error) {
	var invoice *Invoice
	err := database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		inv, err := s.repo.GetInvoiceByID(ctx, tx, tenantID, invoiceID, true)
		if err != nil {
			return err
		}
		switch inv.Status {
		case StatusPosted, StatusPartial, StatusPaid:
		default:
			return apierror.New(apierror.KindState, "invoice in status %s cannot be voided", inv.Status)
		}
		if inv.JournalEntryID == nil {
			return apierror.New(apierror.KindIntegrity, "posted invoice %s has no journal entry", inv.Number)
		}

		// Reverse live payments first so the AR account nets to zero.
		payments, err := s.repo.ListPaymentsByInvoice(ctx, tx, tenantID, inv.ID)
		if err != nil {
			return err
		}
		for i := range payments {
			if payments[i].ReversedAt != nil {
				continue
			}
			if err := s.reversePaymentTx(ctx, tx, tenantID, &payments[i]); err != nil {
				return err
			}
		}

		original, err := s.ledger.Repo().GetJournalEntryByID(ctx, tx, tenantID, *inv.JournalEntryID)
		if err != nil {
			return err
		}
		reversal := ledger.ReversalOf(original, time.Now(), "Void invoice "+inv.Number, "")
		if _, err := s.ledger.PostJournalEntry(ctx, tx, reversal); err != nil {
			return err
		}

		// Restore stock at the historical unit cost of the original
		// OUT moves.
		moves, err := s.inventory.Repo().MovesByReference(ctx, tx, tenantID, inventory.RefInvoice, inv.ID)
		if err != nil {
			return err
		}
		for _, m := range moves {
			if m.Direction != inventory.DirectionOut {
				continue
			}
			if _, err := s.inventory.ApplyMove(ctx, tx, &inventory.StockMove{
				TenantID:         tenantID,
				Date:             money.DateOnly(time.Now()),
				LocationID:       m.LocationID,
				ItemID:           m.ItemID,
				Direction:        inventory.DirectionIn,
				Quantity:         m.Quantity,
				UnitCostApplied:  m.UnitCostApplied,
				TotalCostApplied: m.TotalCostApplied,
				ReferenceType:    inventory.RefInvoiceVoid,
				ReferenceID:      inv.ID,
			}); err != nil {
				return err
			}
		}

		paid, err := s.repo.SumPaidForInvoice(ctx, tx, tenantID, inv.ID)
		if err != nil {
			return err
		}
		inv.AmountPaid = paid
		inv.Status = StatusVoid
		if err := s.repo.UpdateInvoicePaymentState(ctx, tx, inv); err != nil {
			return err
		}

		event, err := outbox.NewEvent(tenantID, outbox.EventInvoiceVoided, "Invoice", inv.ID, "", nil,
			invoicePayload{InvoiceID: inv.ID, Number: inv.Number, CustomerID: inv.CustomerID, Total: inv.Total, JournalEntryID: inv.JournalEntryID})
		if err != nil {
			return apierror.Wrap(apierror.KindIntegrity, err, "build invoice.voided event")
		}
		if err := s.events.Append(ctx, tx, event); err != nil {
			return err
		}

		invoice = inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Int64("tenant_id", tenantID).Str("invoice_id", invoiceID).Msg("invoice voided")
	return invoice, nil
}
