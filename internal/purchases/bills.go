package purchases

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/zayar/simplecashflow/internal/apierror"
	"github.com/zayar/simplecashflow/internal/database"
	"github.com/zayar/simplecashflow/internal/inventory"
	"github.com/zayar/simplecashflow/internal/ledger"
	"github.com/zayar/simplecashflow/internal/money"
	"github.com/zayar/simplecashflow/internal/outbox"
)

// Service provides AP operations
type Service struct {
	db        *pgxpool.Pool
	repo      RepositoryInterface
	ledger    *ledger.Service
	inventory *inventory.Service
	events    outbox.Appender
}

// NewService creates a new purchases service
func NewService(db *pgxpool.Pool, ledgerService *ledger.Service, inventoryService *inventory.Service, events outbox.Appender) *Service {
	return &Service{
		db:        db,
		repo:      NewRepository(db),
		ledger:    ledgerService,
		inventory: inventoryService,
		events:    events,
	}
}

// NewServiceWithRepository creates a purchases service with a custom repository
func NewServiceWithRepository(repo RepositoryInterface, ledgerService *ledger.Service, inventoryService *inventory.Service, events outbox.Appender) *Service {
	return &Service{repo: repo, ledger: ledgerService, inventory: inventoryService, events: events}
}

// billPayload is the bill lifecycle event payload.
type billPayload struct {
	BillID         string          `json:"bill_id"`
	Number         string          `json:"number"`
	VendorID       string          `json:"vendor_id"`
	Total          decimal.Decimal `json:"total"`
	JournalEntryID *string         `json:"journal_entry_id,omitempty"`
}

func parseDate(value, field string) (time.Time, error) {
	d, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, apierror.New(apierror.KindValidation, "invalid %s %q, want YYYY-MM-DD", field, value)
	}
	return money.DateOnly(d), nil
}

// CreateVendor creates a vendor.
func (s *Service) CreateVendor(ctx context.Context, tenantID int64, req *CreateVendorRequest) (*Vendor, error) {
	if req.Name == "" {
		return nil, apierror.New(apierror.KindValidation, "vendor name is required")
	}
	v := &Vendor{TenantID: tenantID, Name: req.Name, Phone: req.Phone, Email: req.Email, Currency: req.Currency}
	if err := s.repo.CreateVendor(ctx, database.QueryerFromContext(ctx, s.db), v); err != nil {
		return nil, err
	}
	return v, nil
}

// GetBill retrieves a bill with lines.
func (s *Service) GetBill(ctx context.Context, tenantID int64, billID string) (*PurchaseBill, error) {
	return s.repo.GetBillByID(ctx, s.db, tenantID, billID, false)
}

// CreateBill validates and writes a DRAFT purchase bill.
func (s *Service) CreateBill(ctx context.Context, tenantID int64, req *CreateBillRequest) (*PurchaseBill, error) {
	billDate, err := parseDate(req.BillDate, "bill date")
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

	var bill *PurchaseBill
	err = database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		if _, err := s.repo.GetVendorByID(ctx, tx, tenantID, req.VendorID); err != nil {
			return err
		}
		if len(req.Lines) == 0 {
			return apierror.New(apierror.KindValidation, "at least one line is required")
		}

		computed := make([]ComputedBillLine, 0, len(req.Lines))
		for _, in := range req.Lines {
			item, err := s.inventory.Repo().GetItemByID(ctx, tx, tenantID, in.ItemID)
			if err != nil {
				return err
			}
			expenseAccountID := ""
			if item.ExpenseAccountID != nil {
				expenseAccountID = *item.ExpenseAccountID
			}
			if !item.TrackInventory && expenseAccountID == "" {
				return apierror.New(apierror.KindValidation,
					"item %s has no expense account for purchase", item.Name)
			}
			line, err := ComputeBillLine(in, expenseAccountID, item.TrackInventory)
			if err != nil {
				return err
			}
			if line.Description == "" {
				line.Description = item.Name
			}
			computed = append(computed, line)
		}
		totals := SumBillTotals(computed)

		number, err := s.repo.NextBillNumber(ctx, tx, tenantID)
		if err != nil {
			return err
		}

		bill = &PurchaseBill{
			TenantID:   tenantID,
			VendorID:   req.VendorID,
			Number:     number,
			Status:     StatusDraft,
			BillDate:   billDate,
			DueDate:    dueDate,
			Subtotal:   totals.Subtotal,
			TaxAmount:  totals.Tax,
			Total:      totals.Total,
			AmountPaid: decimal.Zero,
			LocationID: req.LocationID,
		}
		for _, c := range computed {
			bill.Lines = append(bill.Lines, BillLine{
				ItemID:           c.ItemID,
				Description:      c.Description,
				Quantity:         c.Quantity,
				UnitCost:         c.UnitCost,
				TaxRate:          c.TaxRate,
				TaxAmount:        c.TaxAmount,
				LineTotal:        c.LineTotal,
				ExpenseAccountID: c.ExpenseAccountID,
				TrackInventory:   c.TrackInventory,
			})
		}
		return s.repo.InsertBill(ctx, tx, bill)
	})
	if err != nil {
		return nil, err
	}
	return bill, nil
}

// PostBill posts a DRAFT bill: Dr Inventory for tracked items at the
// bill unit cost, Dr Expense for the rest, Dr Tax Payable for the input
// tax, Cr AP; stock IN moves use the bill's unit cost. There is no
// separate tax receivable account: input tax is netted in Tax Payable.
func (s *Service) PostBill(ctx context.Context, tenantID int64, billID string) (*PurchaseBill, error) {
	var bill *PurchaseBill
	var recalcFrom *time.Time

	err := database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		b, err := s.repo.GetBillByID(ctx, tx, tenantID, billID, true)
		if err != nil {
			return err
		}
		if b.Status != StatusDraft {
			return apierror.New(apierror.KindState, "only draft bills can be posted, current status: %s", b.Status)
		}

		computed := make([]ComputedBillLine, 0, len(b.Lines))
		for _, l := range b.Lines {
			computed = append(computed, ComputedBillLine{
				ItemID:           l.ItemID,
				Quantity:         l.Quantity,
				UnitCost:         l.UnitCost,
				TaxRate:          l.TaxRate,
				TaxAmount:        money.RoundMoney(l.Quantity.Mul(l.UnitCost).Mul(l.TaxRate)),
				LineTotal:        money.RoundMoney(l.Quantity.Mul(l.UnitCost)),
				ExpenseAccountID: l.ExpenseAccountID,
				TrackInventory:   l.TrackInventory,
			})
		}
		totals := SumBillTotals(computed)
		if !totals.Subtotal.Equal(b.Subtotal) || !totals.Tax.Equal(b.TaxAmount) || !totals.Total.Equal(b.Total) {
			return apierror.New(apierror.KindIntegrity,
				"bill %s totals mismatch: stored %s, recomputed %s", b.Number, b.Total, totals.Total)
		}

		refs, err := s.repo.GetCompanyRefs(ctx, tx, tenantID)
		if err != nil {
			return err
		}

		var lines []ledger.LineInput
		if totals.InventoryAmount.IsPositive() {
			lines = append(lines, ledger.LineInput{AccountID: refs.InventoryAccountID, Debit: totals.InventoryAmount})
		}
		for accountID, amount := range totals.ByExpenseAccount {
			lines = append(lines, ledger.LineInput{AccountID: accountID, Debit: amount})
		}
		if totals.Tax.IsPositive() {
			lines = append(lines, ledger.LineInput{AccountID: refs.TaxPayableAccountID, Debit: totals.Tax})
		}
		lines = append(lines, ledger.LineInput{AccountID: refs.APAccountID, Credit: totals.Total})

		// Receive stock at the bill's unit cost.
		for _, l := range b.Lines {
			if !l.TrackInventory {
				continue
			}
			item, err := s.inventory.Repo().GetItemByID(ctx, tx, tenantID, l.ItemID)
			if err != nil {
				return err
			}
			locationID, err := s.inventory.ResolveLocation(ctx, tx, tenantID, b.LocationID, item)
			if err != nil {
				return err
			}
			result, err := s.inventory.ApplyMove(ctx, tx, &inventory.StockMove{
				TenantID:        tenantID,
				Date:            b.BillDate,
				LocationID:      *locationID,
				ItemID:          item.ID,
				Direction:       inventory.DirectionIn,
				Quantity:        l.Quantity,
				UnitCostApplied: l.UnitCost,
				ReferenceType:   inventory.RefPurchaseBill,
				ReferenceID:     b.ID,
			})
			if err != nil {
				return err
			}
			if result.NeedsRecalc && (recalcFrom == nil || result.RecalcFrom.Before(*recalcFrom)) {
				from := result.RecalcFrom
				recalcFrom = &from
			}
		}

		entry, err := s.ledger.PostJournalEntry(ctx, tx, &ledger.PostRequest{
			TenantID:    tenantID,
			Date:        b.BillDate,
			Description: "Purchase bill " + b.Number,
			LocationID:  b.LocationID,
			Lines:       lines,
		})
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `
			UPDATE stock_moves SET journal_entry_id = $3
			WHERE tenant_id = $1 AND reference_type = $4 AND reference_id = $2 AND journal_entry_id IS NULL
		`, tenantID, b.ID, entry.ID, inventory.RefPurchaseBill); err != nil {
			return apierror.Wrap(apierror.KindResource, err, "link bill stock moves")
		}

		b.Status = StatusPosted
		b.JournalEntryID = &entry.ID
		if err := s.repo.UpdateBillPosted(ctx, tx, b); err != nil {
			return err
		}

		event, err := outbox.NewEvent(tenantID, outbox.EventBillPosted, "PurchaseBill", b.ID, "", nil,
			billPayload{BillID: b.ID, Number: b.Number, VendorID: b.VendorID, Total: b.Total, JournalEntryID: b.JournalEntryID})
		if err != nil {
			return apierror.Wrap(apierror.KindIntegrity, err, "build bill.posted event")
		}
		if err := s.events.Append(ctx, tx, event); err != nil {
			return err
		}

		bill = b
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
	return bill, nil
}

// VoidBill voids a posted bill: reverses live payments, posts the
// reversing entry and removes received stock at its historical cost.
func (s *Service) VoidBill(ctx context.Context, tenantID int64, billID string) (*PurchaseBill, error) {
	var bill *PurchaseBill
	err := database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		b, err := s.repo.GetBillByID(ctx, tx, tenantID, billID, true)
		if err != nil {
			return err
		}
		switch b.Status {
		case StatusPosted, StatusPartial, StatusPaid:
		default:
			return apierror.New(apierror.KindState, "bill in status %s cannot be voided", b.Status)
		}
		if b.JournalEntryID == nil {
			return apierror.New(apierror.KindIntegrity, "posted bill %s has no journal entry", b.Number)
		}

		payments, err := s.repo.ListBillPayments(ctx, tx, tenantID, b.ID)
		if err != nil {
			return err
		}
		for i := range payments {
			if payments[i].ReversedAt != nil {
				continue
			}
			if err := s.reverseBillPaymentTx(ctx, tx, tenantID, &payments[i]); err != nil {
				return err
			}
		}

		original, err := s.ledger.Repo().GetJournalEntryByID(ctx, tx, tenantID, *b.JournalEntryID)
		if err != nil {
			return err
		}
		if _, err := s.ledger.PostJournalEntry(ctx, tx, ledger.ReversalOf(original, time.Now(), "Void purchase bill "+b.Number, "")); err != nil {
			return err
		}

		moves, err := s.inventory.Repo().MovesByReference(ctx, tx, tenantID, inventory.RefPurchaseBill, b.ID)
		if err != nil {
			return err
		}
		for _, m := range moves {
			if m.Direction != inventory.DirectionIn {
				continue
			}
			if _, err := s.inventory.ApplyMove(ctx, tx, &inventory.StockMove{
				TenantID:         tenantID,
				Date:             money.DateOnly(time.Now()),
				LocationID:       m.LocationID,
				ItemID:           m.ItemID,
				Direction:        inventory.DirectionOut,
				Quantity:         m.Quantity,
				UnitCostApplied:  m.UnitCostApplied,
				TotalCostApplied: m.TotalCostApplied,
				ReferenceType:    inventory.RefPurchaseBillVoid,
				ReferenceID:      b.ID,
			}); err != nil {
				return err
			}
		}

		paid, err := s.repo.SumPaidForBill(ctx, tx, tenantID, b.ID)
		if err != nil {
			return err
		}
		b.AmountPaid = paid
		b.Status = StatusVoid
		if err := s.repo.UpdateBillPaymentState(ctx, tx, b); err != nil {
			return err
		}
		bill = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Int64("tenant_id", tenantID).Str("bill_id", billID).Msg("purchase bill voided")
	return bill, nil
}
