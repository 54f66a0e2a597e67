package purchases

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/zayar/simplecashflow/internal/apierror"
	"github.com/zayar/simplecashflow/internal/database"
	"github.com/zayar/simplecashflow/internal/ledger"
	"github.com/zayar/simplecashflow/internal/money"
	"github.com/zayar/simplecashflow/internal/outbox"
)

// billPaymentPayload is the bill_payment.recorded event payload.
type billPaymentPayload struct {
	PaymentID      string          `json:"payment_id"`
	BillID         string          `json:"bill_id"`
	Amount         decimal.Decimal `json:"amount"`
	JournalEntryID string          `json:"journal_entry_id"`
}

func (s *Service) requireAssetAccount(ctx context.Context, q database.Queryer, tenantID int64, accountID string) error {
	account, err := s.ledger.Repo().GetAccountByID(ctx, q, tenantID, accountID)
	if err != nil {
		return err
	}
	if account.Type != ledger.AccountTypeAsset {
		return apierror.New(apierror.KindValidation, "account %s is not an asset account", account.Code)
	}
	if !account.IsActive {
		return apierror.New(apierror.KindValidation, "account %s is inactive", account.Code)
	}
	return nil
}

// RecordBillPayment posts Dr AP / Cr Bank and recomputes the bill state.
func (s *Service) RecordBillPayment(ctx context.Context, tenantID int64, billID string, req *RecordBillPaymentRequest) (*BillPayment, error) {
	paymentDate, err := parseDate(req.PaymentDate, "payment date")
	if err != nil {
		return nil, err
	}
	amount, err := money.Parse(req.Amount)
	if err != nil || !amount.IsPositive() {
		return nil, apierror.New(apierror.KindValidation, "payment amount must be a positive number")
	}
	amount = money.RoundMoney(amount)

	var payment *BillPayment
	err = database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		b, err := s.repo.GetBillByID(ctx, tx, tenantID, billID, true)
		if err != nil {
			return err
		}
		if b.Status != StatusPosted && b.Status != StatusPartial {
			return apierror.New(apierror.KindState, "bill in status %s cannot accept payments", b.Status)
		}
		if amount.GreaterThan(b.Remaining()) {
			return apierror.New(apierror.KindValidation,
				"payment %s exceeds remaining balance %s", amount, b.Remaining())
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
			Description: "Payment for bill " + b.Number,
			Lines: []ledger.LineInput{
				{AccountID: refs.APAccountID, Debit: amount},
				{AccountID: req.BankAccountID, Credit: amount},
			},
		})
		if err != nil {
			return err
		}

		payment = &BillPayment{
			TenantID:       tenantID,
			BillID:         b.ID,
			PaymentDate:    paymentDate,
			Amount:         amount,
			BankAccountID:  req.BankAccountID,
			JournalEntryID: entry.ID,
		}
		if err := s.repo.InsertBillPayment(ctx, tx, payment); err != nil {
			return err
		}
		if err := s.refreshBillPaymentState(ctx, tx, b); err != nil {
			return err
		}

		event, err := outbox.NewEvent(tenantID, outbox.EventBillPaymentRecorded, "PurchaseBillPayment", payment.ID, "", nil,
			billPaymentPayload{PaymentID: payment.ID, BillID: b.ID, Amount: amount, JournalEntryID: entry.ID})
		if err != nil {
			return apierror.Wrap(apierror.KindIntegrity, err, "build bill_payment.recorded event")
		}
		return s.events.Append(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// VoidBillPayment reverses a bill payment and recomputes the bill state.
func (s *Service) VoidBillPayment(ctx context.Context, tenantID int64, billID, paymentID string) (*BillPayment, error) {
	var payment *BillPayment
	err := database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		b, err := s.repo.GetBillByID(ctx, tx, tenantID, billID, true)
		if err != nil {
			return err
		}
		p, err := s.repo.GetBillPaymentByID(ctx, tx, tenantID, paymentID)
		if err != nil {
			return err
		}
		if p.BillID != b.ID {
			return apierror.New(apierror.KindNotFound, "payment %s does not belong to bill %s", paymentID, billID)
		}
		if p.ReversedAt != nil {
			return apierror.New(apierror.KindState, "bill payment %s already reversed", paymentID)
		}
		if err := s.reverseBillPaymentTx(ctx, tx, tenantID, p); err != nil {
			return err
		}
		if err := s.refreshBillPaymentState(ctx, tx, b); err != nil {
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

func (s *Service) reverseBillPaymentTx(ctx context.Context, tx pgx.Tx, tenantID int64, p *BillPayment) error {
	original, err := s.ledger.Repo().GetJournalEntryByID(ctx, tx, tenantID, p.JournalEntryID)
	if err != nil {
		return err
	}
	entry, err := s.ledger.PostJournalEntry(ctx, tx, ledger.ReversalOf(original, time.Now(), "Reverse bill payment", ""))
	if err != nil {
		return err
	}
	if err := s.repo.MarkBillPaymentReversed(ctx, tx, tenantID, p.ID, entry.ID); err != nil {
		return err
	}
	now := time.Now()
	p.ReversedAt = &now
	p.ReversalJournalEntryID = &entry.ID
	return nil
}

func (s *Service) refreshBillPaymentState(ctx context.Context, tx pgx.Tx, b *PurchaseBill) error {
	paid, err := s.repo.SumPaidForBill(ctx, tx, b.TenantID, b.ID)
	if err != nil {
		return err
	}
	b.AmountPaid = paid
	b.Status = DeriveBillStatus(paid, b.Total)
	return s.repo.UpdateBillPaymentState(ctx, tx, b)
}

// DeriveBillStatus maps the payment aggregate to the bill status.
func DeriveBillStatus(amountPaid, total decimal.Decimal) BillStatus {
	switch {
	case amountPaid.LessThanOrEqual(decimal.Zero):
		return StatusPosted
	case amountPaid.LessThan(total):
		return StatusPartial
	default:
		return StatusPaid
	}
}

// IssueVendorCredit posts Dr AP / Cr Expense for a credit received from
// a vendor.
func (s *Service) IssueVendorCredit(ctx context.Context, tenantID int64, req *CreateVendorCreditRequest) (*VendorCredit, error) {
	creditDate, err := parseDate(req.CreditDate, "credit date")
	if err != nil {
		return nil, err
	}
	amount, err := money.Parse(req.Amount)
	if err != nil || !amount.IsPositive() {
		return nil, apierror.New(apierror.KindValidation, "credit amount must be a positive number")
	}
	amount = money.RoundMoney(amount)
	if req.ExpenseAccountID == "" {
		return nil, apierror.New(apierror.KindValidation, "expense account id is required")
	}

	var credit *VendorCredit
	err = database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		if _, err := s.repo.GetVendorByID(ctx, tx, tenantID, req.VendorID); err != nil {
			return err
		}
		refs, err := s.repo.GetCompanyRefs(ctx, tx, tenantID)
		if err != nil {
			return err
		}

		var seq int
		if err := tx.QueryRow(ctx, `
			SELECT COALESCE(MAX(CAST(SUBSTRING(number FROM 4) AS INTEGER)), 0) + 1
			FROM vendor_credits WHERE tenant_id = $1
		`, tenantID).Scan(&seq); err != nil {
			return fmt.Errorf("next vendor credit number: %w", err)
		}

		entry, err := s.ledger.PostJournalEntry(ctx, tx, &ledger.PostRequest{
			TenantID:    tenantID,
			Date:        creditDate,
			Description: "Vendor credit",
			Lines: []ledger.LineInput{
				{AccountID: refs.APAccountID, Debit: amount},
				{AccountID: req.ExpenseAccountID, Credit: amount},
			},
		})
		if err != nil {
			return err
		}

		credit = &VendorCredit{
			TenantID:         tenantID,
			VendorID:         req.VendorID,
			Number:           fmt.Sprintf("VC-%05d", seq),
			CreditDate:       creditDate,
			Total:            amount,
			AmountApplied:    decimal.Zero,
			ExpenseAccountID: req.ExpenseAccountID,
			JournalEntryID:   entry.ID,
		}
		return s.repo.InsertVendorCredit(ctx, tx, credit)
	})
	if err != nil {
		return nil, err
	}
	return credit, nil
}

// ApplyVendorCredit allocates part of a vendor credit to a bill.
func (s *Service) ApplyVendorCredit(ctx context.Context, tenantID int64, creditID string, req *ApplyRequest) (*VendorCredit, error) {
	amount, err := money.Parse(req.Amount)
	if err != nil || !amount.IsPositive() {
		return nil, apierror.New(apierror.KindValidation, "application amount must be a positive number")
	}
	amount = money.RoundMoney(amount)

	var credit *VendorCredit
	err = database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		vc, err := s.repo.GetVendorCreditByID(ctx, tx, tenantID, creditID, true)
		if err != nil {
			return err
		}
		remaining := vc.Total.Sub(vc.AmountApplied)
		if amount.GreaterThan(remaining) {
			return apierror.New(apierror.KindValidation,
				"application %s exceeds vendor credit remaining %s", amount, remaining)
		}

		b, err := s.repo.GetBillByID(ctx, tx, tenantID, req.BillID, true)
		if err != nil {
			return err
		}
		if b.Status != StatusPosted && b.Status != StatusPartial {
			return apierror.New(apierror.KindState, "bill in status %s cannot accept applications", b.Status)
		}
		if b.VendorID != vc.VendorID {
			return apierror.New(apierror.KindValidation, "vendor credit and bill belong to different vendors")
		}
		if amount.GreaterThan(b.Remaining()) {
			return apierror.New(apierror.KindValidation,
				"application %s exceeds bill remaining %s", amount, b.Remaining())
		}

		if err := s.repo.InsertVendorCreditApplication(ctx, tx, &VendorCreditApplication{
			TenantID:       tenantID,
			VendorCreditID: vc.ID,
			BillID:         b.ID,
			Amount:         amount,
		}); err != nil {
			return err
		}
		vc.AmountApplied = vc.AmountApplied.Add(amount)
		if err := s.repo.UpdateVendorCreditApplied(ctx, tx, vc); err != nil {
			return err
		}
		if err := s.refreshBillPaymentState(ctx, tx, b); err != nil {
			return err
		}
		credit = vc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return credit, nil
}

// PayVendorAdvance records a prepayment: Dr Vendor Advance / Cr Bank.
func (s *Service) PayVendorAdvance(ctx context.Context, tenantID int64, req *PayAdvanceRequest) (*VendorAdvance, error) {
	paidDate, err := parseDate(req.PaidDate, "paid date")
	if err != nil {
		return nil, err
	}
	amount, err := money.Parse(req.Amount)
	if err != nil || !amount.IsPositive() {
		return nil, apierror.New(apierror.KindValidation, "advance amount must be a positive number")
	}
	amount = money.RoundMoney(amount)

	var advance *VendorAdvance
	err = database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		if _, err := s.repo.GetVendorByID(ctx, tx, tenantID, req.VendorID); err != nil {
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
			Date:        paidDate,
			Description: "Vendor advance paid",
			Lines: []ledger.LineInput{
				{AccountID: refs.VendorAdvanceAccountID, Debit: amount},
				{AccountID: req.BankAccountID, Credit: amount},
			},
		})
		if err != nil {
			return err
		}

		advance = &VendorAdvance{
			TenantID:       tenantID,
			VendorID:       req.VendorID,
			PaidDate:       paidDate,
			Amount:         amount,
			AmountApplied:  decimal.Zero,
			BankAccountID:  req.BankAccountID,
			JournalEntryID: entry.ID,
		}
		return s.repo.InsertVendorAdvance(ctx, tx, advance)
	})
	if err != nil {
		return nil, err
	}
	return advance, nil
}

// ApplyVendorAdvance settles part of a bill from an advance:
// Dr AP / Cr Vendor Advance.
func (s *Service) ApplyVendorAdvance(ctx context.Context, tenantID int64, advanceID string, req *ApplyRequest) (*VendorAdvance, error) {
	amount, err := money.Parse(req.Amount)
	if err != nil || !amount.IsPositive() {
		return nil, apierror.New(apierror.KindValidation, "application amount must be a positive number")
	}
	amount = money.RoundMoney(amount)

	var advance *VendorAdvance
	err = database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		adv, err := s.repo.GetVendorAdvanceByID(ctx, tx, tenantID, advanceID, true)
		if err != nil {
			return err
		}
		remaining := adv.Amount.Sub(adv.AmountApplied)
		if amount.GreaterThan(remaining) {
			return apierror.New(apierror.KindValidation,
				"application %s exceeds advance remaining %s", amount, remaining)
		}

		b, err := s.repo.GetBillByID(ctx, tx, tenantID, req.BillID, true)
		if err != nil {
			return err
		}
		if b.Status != StatusPosted && b.Status != StatusPartial {
			return apierror.New(apierror.KindState, "bill in status %s cannot accept applications", b.Status)
		}
		if b.VendorID != adv.VendorID {
			return apierror.New(apierror.KindValidation, "advance and bill belong to different vendors")
		}
		if amount.GreaterThan(b.Remaining()) {
			return apierror.New(apierror.KindValidation,
				"application %s exceeds bill remaining %s", amount, b.Remaining())
		}

		refs, err := s.repo.GetCompanyRefs(ctx, tx, tenantID)
		if err != nil {
			return err
		}
		if _, err := s.ledger.PostJournalEntry(ctx, tx, &ledger.PostRequest{
			TenantID:    tenantID,
			Date:        money.DateOnly(time.Now()),
			Description: "Vendor advance applied to bill " + b.Number,
			Lines: []ledger.LineInput{
				{AccountID: refs.APAccountID, Debit: amount},
				{AccountID: refs.VendorAdvanceAccountID, Credit: amount},
			},
		}); err != nil {
			return err
		}

		if err := s.repo.InsertVendorAdvanceApplication(ctx, tx, &VendorAdvanceApplication{
			TenantID:  tenantID,
			AdvanceID: adv.ID,
			BillID:    b.ID,
			Amount:    amount,
		}); err != nil {
			return err
		}
		adv.AmountApplied = adv.AmountApplied.Add(amount)
		if err := s.repo.UpdateVendorAdvanceApplied(ctx, tx, adv); err != nil {
			return err
		}
		if err := s.refreshBillPaymentState(ctx, tx, b); err != nil {
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
