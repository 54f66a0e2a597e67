package sales

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/zayar/simplecashflow/internal/apierror"
	"github.com/zayar/simplecashflow/internal/database"
	"github.com/zayar/simplecashflow/internal/ledger"
	"github.com/zayar/simplecashflow/internal/money"
)

// ReceiveAdvance records money received ahead of any invoice:
// Dr Bank / Cr Customer Advance liability.
func (s *Service) ReceiveAdvance(ctx context.Context, tenantID int64, req *ReceiveAdvanceRequest) (*CustomerAdvance, error) {
	receivedDate, err := parseDate(req.ReceivedDate, "received date")
	if err != nil {
		return nil, err
	}
	amount, err := money.Parse(req.Amount)
	if err != nil || !amount.IsPositive() {
		return nil, apierror.New(apierror.KindValidation, "advance amount must be a positive number")
	}
	amount = money.RoundMoney(amount)

	var advance *CustomerAdvance
	err = database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		if _, err := s.repo.GetCustomerByID(ctx, tx, tenantID, req.CustomerID); err != nil {
			return err
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
			Date:        receivedDate,
			Description: "Customer advance received",
			Lines: []ledger.LineInput{
				{AccountID: req.BankAccountID, Debit: amount},
				{AccountID: refs.CustomerAdvanceAccountID, Credit: amount},
			},
		})
		if err != nil {
			return err
		}

		advance = &CustomerAdvance{
			TenantID:       tenantID,
			CustomerID:     req.CustomerID,
			ReceivedDate:   receivedDate,
			Amount:         amount,
			AmountApplied:  decimal.Zero,
			BankAccountID:  req.BankAccountID,
			JournalEntryID: entry.ID,
		}
		return s.repo.InsertAdvance(ctx, tx, advance)
	})
	if err != nil {
		return nil, err
	}
	return advance, nil
}

// ApplyAdvance settles part of an invoice from an advance:
// Dr Customer Advance liability / Cr AR plus the application row.
func (s *Service) ApplyAdvance(ctx context.Context, tenantID int64, advanceID string, req *ApplyRequest) (*CustomerAdvance, error) {
	amount, err := money.Parse(req.Amount)
	if err != nil || !amount.IsPositive() {
		return nil, apierror.New(apierror.KindValidation, "application amount must be a positive number")
	}
	amount = money.RoundMoney(amount)

	var advance *CustomerAdvance
	err = database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		adv, err := s.repo.GetAdvanceByID(ctx, tx, tenantID, advanceID, true)
		if err != nil {
			return err
		}
		remaining := adv.Amount.Sub(adv.AmountApplied)
		if amount.GreaterThan(remaining) {
			return apierror.New(apierror.KindValidation,
				"application %s exceeds advance remaining %s", amount, remaining)
		}

		inv, err := s.repo.GetInvoiceByID(ctx, tx, tenantID, req.InvoiceID, true)
		if err != nil {
			return err
		}
		if inv.Status != StatusPosted && inv.Status != StatusPartial {
			return apierror.New(apierror.KindState, "invoice in status %s cannot accept applications", inv.Status)
		}
		if inv.CustomerID != adv.CustomerID {
			return apierror.New(apierror.KindValidation, "advance and invoice belong to different customers")
		}
		if amount.GreaterThan(inv.Remaining()) {
			return apierror.New(apierror.KindValidation,
				"application %s exceeds invoice remaining %s", amount, inv.Remaining())
		}

		refs, err := s.repo.GetCompanyRefs(ctx, tx, tenantID)
		if err != nil {
			return err
		}
		if _, err := s.ledger.PostJournalEntry(ctx, tx, &ledger.PostRequest{
			TenantID:    tenantID,
			Date:        money.DateOnly(timeNow()),
			Description: "Customer advance applied to invoice " + inv.Number,
			Lines: []ledger.LineInput{
				{AccountID: refs.CustomerAdvanceAccountID, Debit: amount},
				{AccountID: refs.ARAccountID, Credit: amount},
			},
		}); err != nil {
			return err
		}

		if err := s.repo.InsertAdvanceApplication(ctx, tx, &CustomerAdvanceApplication{
			TenantID:  tenantID,
			AdvanceID: adv.ID,
			InvoiceID: inv.ID,
			Amount:    amount,
		}); err != nil {
			return err
		}

		adv.AmountApplied = adv.AmountApplied.Add(amount)
		if err := s.repo.UpdateAdvanceApplied(ctx, tx, adv); err != nil {
			return err
		}
		if err := s.refreshInvoicePaymentState(ctx, tx, inv); err != nil {
			return err
		}
		advance = adv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return advance, nil
}
