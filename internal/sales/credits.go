package sales

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/zayar/simplecashflow/internal/apierror"
	"github.com/zayar/simplecashflow/internal/database"
	"github.com/zayar/simplecashflow/internal/ledger"
	"github.com/zayar/simplecashflow/internal/money"
	"github.com/zayar/simplecashflow/internal/outbox"
)

// creditNotePayload is the credit_note.posted event payload.
type creditNotePayload struct {
	CreditNoteID   string          `json:"credit_note_id"`
	Number         string          `json:"number"`
	CustomerID     string          `json:"customer_id"`
	Total          decimal.Decimal `json:"total"`
	JournalEntryID *string         `json:"journal_entry_id,omitempty"`
}

// IssueCreditNote computes totals, posts Dr Income (bucketed) / Dr Tax
// Payable / Cr AR and writes the credit note. Credit notes post on
// issue.
func (s *Service) IssueCreditNote(ctx context.Context, tenantID int64, req *CreateCreditNoteRequest) (*CreditNote, error) {
	noteDate, err := parseDate(req.NoteDate, "note date")
	if err != nil {
		return nil, err
	}

	var note *CreditNote
	err = database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		computed, err := s.resolveDocumentLines(ctx, tx, tenantID, req.CustomerID, req.Lines)
		if err != nil {
			return err
		}
		totals := SumTotals(computed)

		refs, err := s.repo.GetCompanyRefs(ctx, tx, tenantID)
		if err != nil {
			return err
		}

		lines := make([]ledger.LineInput, 0, len(totals.ByIncomeAccount)+2)
		for accountID, amount := range totals.ByIncomeAccount {
			lines = append(lines, ledger.LineInput{AccountID: accountID, Debit: amount})
		}
		if totals.Tax.IsPositive() {
			lines = append(lines, ledger.LineInput{AccountID: refs.TaxPayableAccountID, Debit: totals.Tax})
		}
		lines = append(lines, ledger.LineInput{AccountID: refs.ARAccountID, Credit: totals.Total})

		number, err := s.repo.NextCreditNoteNumber(ctx, tx, tenantID)
		if err != nil {
			return err
		}

		entry, err := s.ledger.PostJournalEntry(ctx, tx, &ledger.PostRequest{
			TenantID:    tenantID,
			Date:        noteDate,
			Description: "Credit note " + number,
			LocationID:  req.LocationID,
			Lines:       lines,
		})
		if err != nil {
			return err
		}

		note = &CreditNote{
			TenantID:       tenantID,
			CustomerID:     req.CustomerID,
			Number:         number,
			Status:         StatusPosted,
			NoteDate:       noteDate,
			Subtotal:       totals.Subtotal,
			TaxAmount:      totals.Tax,
			Total:          totals.Total,
			AmountApplied:  decimal.Zero,
			JournalEntryID: &entry.ID,
			LocationID:     req.LocationID,
			Lines:          toInvoiceLines(computed),
		}
		if err := s.repo.InsertCreditNote(ctx, tx, note); err != nil {
			return err
		}

		event, err := outbox.NewEvent(tenantID, outbox.EventCreditNotePosted, "CreditNote", note.ID, "", nil,
			creditNotePayload{CreditNoteID: note.ID, Number: note.Number, CustomerID: note.CustomerID, Total: note.Total, JournalEntryID: note.JournalEntryID})
		if err != nil {
			return apierror.Wrap(apierror.KindIntegrity, err, "build credit_note.posted event")
		}
		return s.events.Append(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}
	return note, nil
}

// GetCreditNote retrieves a credit note with lines.
func (s *Service) GetCreditNote(ctx context.Context, tenantID int64, creditNoteID string) (*CreditNote, error) {
	return s.repo.GetCreditNoteByID(ctx, s.db, tenantID, creditNoteID, false)
}

// ApplyCreditNote allocates part of a credit note to an invoice. The
// AR movement already happened at issue; application only shifts the
// invoice's effective balance.
func (s *Service) ApplyCreditNote(ctx context.Context, tenantID int64, creditNoteID string, req *ApplyRequest) (*CreditNote, error) {
	amount, err := money.Parse(req.Amount)
	if err != nil || !amount.IsPositive() {
		return nil, apierror.New(apierror.KindValidation, "application amount must be a positive number")
	}
	amount = money.RoundMoney(amount)

	var note *CreditNote
	err = database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		cn, err := s.repo.GetCreditNoteByID(ctx, tx, tenantID, creditNoteID, true)
		if err != nil {
			return err
		}
		if cn.Status != StatusPosted {
			return apierror.New(apierror.KindState, "credit note in status %s cannot be applied", cn.Status)
		}
		remaining := cn.Total.Sub(cn.AmountApplied)
		if amount.GreaterThan(remaining) {
			return apierror.New(apierror.KindValidation,
				"application %s exceeds credit note remaining %s", amount, remaining)
		}

		inv, err := s.repo.GetInvoiceByID(ctx, tx, tenantID, req.InvoiceID, true)
		if err != nil {
			return err
		}
		if inv.Status != StatusPosted && inv.Status != StatusPartial {
			return apierror.New(apierror.KindState, "invoice in status %s cannot accept applications", inv.Status)
		}
		if inv.CustomerID != cn.CustomerID {
			return apierror.New(apierror.KindValidation, "credit note and invoice belong to different customers")
		}
		if amount.GreaterThan(inv.Remaining()) {
			return apierror.New(apierror.KindValidation,
				"application %s exceeds invoice remaining %s", amount, inv.Remaining())
		}

		if err := s.repo.InsertCreditNoteApplication(ctx, tx, &CreditNoteApplication{
			TenantID:     tenantID,
			CreditNoteID: cn.ID,
			InvoiceID:    inv.ID,
			Amount:       amount,
		}); err != nil {
			return err
		}

		cn.AmountApplied = cn.AmountApplied.Add(amount)
		if err := s.repo.UpdateCreditNoteApplied(ctx, tx, cn); err != nil {
			return err
		}
		if err := s.refreshInvoicePaymentState(ctx, tx, inv); err != nil {
			return err
		}
		note = cn
		return nil
	})
	if err != nil {
		return nil, err
	}
	return note, nil
}
