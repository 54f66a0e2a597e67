package sales

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/zayar/simplecashflow/internal/apierror"
	"github.com/zayar/simplecashflow/internal/database"
	"github.com/zayar/simplecashflow/internal/ledger"
	"github.com/zayar/simplecashflow/internal/money"
	"github.com/zayar/simplecashflow/internal/outbox"
)

// paymentPayload is the payment lifecycle event payload.
type paymentPayload struct {
	PaymentID      string          `json:"payment_id"`
	InvoiceID      string          `json:"invoice_id"`
	Amount         decimal.Decimal `json:"amount"`
	JournalEntryID string          `json:"journal_entry_id"`
}

// RecordPayment posts Dr Bank / Cr AR in base currency, inserts the
// payment and recomputes the invoice's paid aggregate and status.
func (s *Service) RecordPayment(ctx context.Context, tenantID int64, invoiceID string, req *RecordPaymentRequest) (*Payment, error) {
	paymentDate, err := parseDate(req.PaymentDate, "payment date")
	if err != nil {
		return nil, err
	}
	amount, err := money.Parse(req.Amount)
	if err != nil || !amount.IsPositive() {
		return nil, apierror.New(apierror.KindValidation, "payment amount must be a positive number")
	}
	amount = money.RoundMoney(amount)

	var payment *Payment
	err = database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		inv, err := s.repo.GetInvoiceByID(ctx, tx, tenantID, invoiceID, true)
		if err != nil {
			return err
		}
		if inv.Status != StatusPosted && inv.Status != StatusPartial {
			return apierror.New(apierror.KindState, "invoice in status %s cannot accept payments", inv.Status)
		}
		if amount.GreaterThan(inv.Remaining()) {
			return apierror.New(apierror.KindValidation,
				"payment %s exceeds remaining balance %s", amount, inv.Remaining())
		}
		if err := s.requireAssetAccount(ctx, tx, tenantID, req.BankAccountID); err != nil {
			return err
		}

		refs, err := s.repo.GetCompanyRefs(ctx, tx, tenantID)
		if err != nil {
			return err
		}

		entry, err := s.ledger.PostJournalEntry(ctx, tx, &ledger.PostRequest{
			TenantID:    tenantID,
			Date:        paymentDate,
			Description: "Payment for invoice " + inv.Number,
			Lines: []ledger.LineInput{
				{AccountID: req.BankAccountID, Debit: amount},
				{AccountID: refs.ARAccountID, Credit: amount},
			},
		})
		if err != nil {
			return err
		}

		payment = &Payment{
			TenantID:       tenantID,
			InvoiceID:      inv.ID,
			PaymentDate:    paymentDate,
			Amount:         amount,
			BankAccountID:  req.BankAccountID,
			JournalEntryID: entry.ID,
		}
		if err := s.repo.InsertPayment(ctx, tx, payment); err != nil {
			return err
		}

		if err := s.refreshInvoicePaymentState(ctx, tx, inv); err != nil {
			return err
		}

		event, err := outbox.NewEvent(tenantID, outbox.EventPaymentRecorded, "Payment", payment.ID, "", nil,
			paymentPayload{PaymentID: payment.ID, InvoiceID: inv.ID, Amount: amount, JournalEntryID: entry.ID})
		if err != nil {
			return apierror.Wrap(apierror.KindIntegrity, err, "build payment.recorded event")
		}
		return s.events.Append(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// VoidPayment reverses a payment with a swapped-sides entry and
// recomputes the invoice state.
func (s *Service) VoidPayment(ctx context.Context, tenantID int64, invoiceID, paymentID string) (*Payment, error) {
	var payment *Payment
	err := database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		inv, err := s.repo.GetInvoiceByID(ctx, tx, tenantID, invoiceID, true)
		if err != nil {
			return err
		}
		p, err := s.repo.GetPaymentByID(ctx, tx, tenantID, paymentID)
		if err != nil {
			return err
		}
		if p.InvoiceID != inv.ID {
			return apierror.New(apierror.KindNotFound, "payment %s does not belong to invoice %s", paymentID, invoiceID)
		}
		if p.ReversedAt != nil {
			return apierror.New(apierror.KindState, "payment %s already reversed", paymentID)
		}

		if err := s.reversePaymentTx(ctx, tx, tenantID, p); err != nil {
			return err
		}
		if err := s.refreshInvoicePaymentState(ctx, tx, inv); err != nil {
			return err
		}
		payment = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// reversePaymentTx posts the swapped Dr/Cr entry for a payment and marks
// it reversed. Callers hold the invoice row lock.
func (s *Service) reversePaymentTx(ctx context.Context, tx pgx.Tx, tenantID int64, p *Payment) error {
	original, err := s.ledger.Repo().GetJournalEntryByID(ctx, tx, tenantID, p.JournalEntryID)
	if err != nil {
		return err
	}
	reversal := ledger.ReversalOf(original, time.Now(), "Reverse payment on invoice", "")
	entry, err := s.ledger.PostJournalEntry(ctx, tx, reversal)
	if err != nil {
		return err
	}
	if err := s.repo.MarkPaymentReversed(ctx, tx, tenantID, p.ID, entry.ID); err != nil {
		return err
	}
	now := time.Now()
	p.ReversedAt = &now
	p.ReversalJournalEntryID = &entry.ID

	event, err := outbox.NewEvent(tenantID, outbox.EventPaymentReversed, "Payment", p.ID, "", nil,
		paymentPayload{PaymentID: p.ID, InvoiceID: p.InvoiceID, Amount: p.Amount, JournalEntryID: entry.ID})
	if err != nil {
		return apierror.Wrap(apierror.KindIntegrity, err, "build payment.reversed event")
	}
	return s.events.Append(ctx, tx, event)
}

// refreshInvoicePaymentState recomputes amountPaid from the aggregates
// and derives the status. The cached column is never trusted for
// transitions.
func (s *Service) refreshInvoicePaymentState(ctx context.Context, tx pgx.Tx, inv *Invoice) error {
	paid, err := s.repo.SumPaidForInvoice(ctx, tx, inv.TenantID, inv.ID)
	if err != nil {
		return err
	}
	inv.AmountPaid = paid
	inv.Status = DeriveStatus(paid, inv.Total)
	return s.repo.UpdateInvoicePaymentState(ctx, tx, inv)
}
