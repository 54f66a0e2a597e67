package purchases

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/zayar/simplecashflow/internal/apierror"
	"github.com/zayar/simplecashflow/internal/money"
	"github.com/zayar/simplecashflow/internal/sales"
)

// BillStatus mirrors the invoice lifecycle on the AP side.
type BillStatus = sales.InvoiceStatus

const (
	StatusDraft   = sales.StatusDraft
	StatusPosted  = sales.StatusPosted
	StatusPartial = sales.StatusPartial
	StatusPaid    = sales.StatusPaid
	StatusVoid    = sales.StatusVoid
)

// Vendor is an AP counterparty.
type Vendor struct {
	ID        string    `json:"id"`
	TenantID  int64     `json:"tenant_id"`
	Name      string    `json:"name"`
	Phone     *string   `json:"phone,omitempty"`
	Email     *string   `json:"email,omitempty"`
	Currency  *string   `json:"currency,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// PurchaseBill is an AP document with Dr Expense-or-Inventory / Cr AP
// semantics.
type PurchaseBill struct {
	ID             string          `json:"id"`
	TenantID       int64           `json:"tenant_id"`
	VendorID       string          `json:"vendor_id"`
	Number         string          `json:"number"`
	Status         BillStatus      `json:"status"`
	BillDate       time.Time       `json:"bill_date"`
	DueDate        *time.Time      `json:"due_date,omitempty"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	Total          decimal.Decimal `json:"total"`
	AmountPaid     decimal.Decimal `json:"amount_paid"`
	JournalEntryID *string         `json:"journal_entry_id,omitempty"`
	LocationID     *string         `json:"location_id,omitempty"`
	Lines          []BillLine      `json:"lines,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Remaining is the unpaid balance.
func (b *PurchaseBill) Remaining() decimal.Decimal {
	return b.Total.Sub(b.AmountPaid)
}

// BillLine is one bill row. Inventory-tracked items capitalise into the
// inventory account at the bill unit cost; services hit the expense
// account.
type BillLine struct {
	ID               string          `json:"id"`
	BillID           string          `json:"bill_id"`
	ItemID           string          `json:"item_id"`
	Description      string          `json:"description"`
	Quantity         decimal.Decimal `json:"quantity"`
	UnitCost         decimal.Decimal `json:"unit_cost"`
	TaxRate          decimal.Decimal `json:"tax_rate"`
	TaxAmount        decimal.Decimal `json:"tax_amount"`
	LineTotal        decimal.Decimal `json:"line_total"`
	ExpenseAccountID string          `json:"expense_account_id"`
	TrackInventory   bool            `json:"track_inventory"`
}

// BillPayment is one payment against a bill: Dr AP / Cr Bank.
type BillPayment struct {
	ID                     string          `json:"id"`
	TenantID               int64           `json:"tenant_id"`
	BillID                 string          `json:"bill_id"`
	PaymentDate            time.Time       `json:"payment_date"`
	Amount                 decimal.Decimal `json:"amount"`
	BankAccountID          string          `json:"bank_account_id"`
	JournalEntryID         string          `json:"journal_entry_id"`
	ReversedAt             *time.Time      `json:"reversed_at,omitempty"`
	ReversalJournalEntryID *string         `json:"reversal_journal_entry_id,omitempty"`
	CreatedAt              time.Time       `json:"created_at"`
}

// VendorCredit reduces the balance owed to a vendor.
type VendorCredit struct {
	ID             string          `json:"id"`
	TenantID       int64           `json:"tenant_id"`
	VendorID       string          `json:"vendor_id"`
	Number         string          `json:"number"`
	CreditDate     time.Time       `json:"credit_date"`
	Total          decimal.Decimal `json:"total"`
	AmountApplied  decimal.Decimal `json:"amount_applied"`
	ExpenseAccountID string        `json:"expense_account_id"`
	JournalEntryID string          `json:"journal_entry_id"`
	CreatedAt      time.Time       `json:"created_at"`
}

// VendorCreditApplication links a vendor credit to a bill.
type VendorCreditApplication struct {
	ID             string          `json:"id"`
	TenantID       int64           `json:"tenant_id"`
	VendorCreditID string          `json:"vendor_credit_id"`
	BillID         string          `json:"bill_id"`
	Amount         decimal.Decimal `json:"amount"`
	AppliedAt      time.Time       `json:"applied_at"`
}

// VendorAdvance is a prepayment to a vendor: Dr Vendor Advance asset /
// Cr Bank.
type VendorAdvance struct {
	ID             string          `json:"id"`
	TenantID       int64           `json:"tenant_id"`
	VendorID       string          `json:"vendor_id"`
	PaidDate       time.Time       `json:"paid_date"`
	Amount         decimal.Decimal `json:"amount"`
	AmountApplied  decimal.Decimal `json:"amount_applied"`
	BankAccountID  string          `json:"bank_account_id"`
	JournalEntryID string          `json:"journal_entry_id"`
	CreatedAt      time.Time       `json:"created_at"`
}

// VendorAdvanceApplication links a vendor advance to a bill.
type VendorAdvanceApplication struct {
	ID        string          `json:"id"`
	TenantID  int64           `json:"tenant_id"`
	AdvanceID string          `json:"advance_id"`
	BillID    string          `json:"bill_id"`
	Amount    decimal.Decimal `json:"amount"`
	AppliedAt time.Time       `json:"applied_at"`
}

// BillLineInput is one raw bill line.
type BillLineInput struct {
	ItemID      string      `json:"item_id"`
	Description string      `json:"description,omitempty"`
	Quantity    interface{} `json:"quantity"`
	UnitCost    interface{} `json:"unit_cost"`
	TaxRate     interface{} `json:"tax_rate,omitempty"`
}

// CreateBillRequest creates a DRAFT purchase bill.
type CreateBillRequest struct {
	VendorID   string          `json:"vendor_id"`
	BillDate   string          `json:"bill_date"`
	DueDate    *string         `json:"due_date,omitempty"`
	LocationID *string         `json:"location_id,omitempty"`
	Lines      []BillLineInput `json:"lines"`
}

// RecordBillPaymentRequest records a payment against a bill.
type RecordBillPaymentRequest struct {
	PaymentDate   string      `json:"payment_date"`
	Amount        interface{} `json:"amount"`
	BankAccountID string      `json:"bank_account_id"`
}

// CreateVendorCreditRequest issues a vendor credit.
type CreateVendorCreditRequest struct {
	VendorID         string      `json:"vendor_id"`
	CreditDate       string      `json:"credit_date"`
	Amount           interface{} `json:"amount"`
	ExpenseAccountID string      `json:"expense_account_id"`
}

// ApplyRequest applies a vendor credit or advance to a bill.
type ApplyRequest struct {
	BillID string      `json:"bill_id"`
	Amount interface{} `json:"amount"`
}

// PayAdvanceRequest records a vendor advance.
type PayAdvanceRequest struct {
	VendorID      string      `json:"vendor_id"`
	PaidDate      string      `json:"paid_date"`
	Amount        interface{} `json:"amount"`
	BankAccountID string      `json:"bank_account_id"`
}

// CreateVendorRequest creates a vendor.
type CreateVendorRequest struct {
	Name     string  `json:"name"`
	Phone    *string `json:"phone,omitempty"`
	Email    *string `json:"email,omitempty"`
	Currency *string `json:"currency,omitempty"`
}

// ComputedBillLine pairs a parsed bill line with its computed amounts.
type ComputedBillLine struct {
	ItemID           string
	Description      string
	Quantity         decimal.Decimal
	UnitCost         decimal.Decimal
	TaxRate          decimal.Decimal
	TaxAmount        decimal.Decimal
	LineTotal        decimal.Decimal
	ExpenseAccountID string
	TrackInventory   bool
}

// ComputeBillLine validates and computes one bill line.
func ComputeBillLine(in BillLineInput, expenseAccountID string, trackInventory bool) (ComputedBillLine, error) {
	qty, err := money.Parse(in.Quantity)
	if err != nil || !qty.IsPositive() {
		return ComputedBillLine{}, apierror.New(apierror.KindValidation, "line quantity must be a positive number")
	}
	unitCost, err := money.Parse(in.UnitCost)
	if err != nil || unitCost.IsNegative() {
		return ComputedBillLine{}, apierror.New(apierror.KindValidation, "line unit cost must be a non-negative number")
	}
	taxRate, err := money.ParseRate(in.TaxRate)
	if err != nil {
		return ComputedBillLine{}, apierror.Wrap(apierror.KindValidation, err, "invalid tax rate")
	}

	lineTotal := money.RoundMoney(qty.Mul(unitCost))
	taxAmount := money.RoundMoney(lineTotal.Mul(taxRate))
	return ComputedBillLine{
		ItemID:           in.ItemID,
		Description:      in.Description,
		Quantity:         qty,
		UnitCost:         money.RoundMoney(unitCost),
		TaxRate:          taxRate,
		TaxAmount:        taxAmount,
		LineTotal:        lineTotal,
		ExpenseAccountID: expenseAccountID,
		TrackInventory:   trackInventory,
	}, nil
}

// BillTotals are the computed bill amounts, with debit buckets split by
// destination account.
type BillTotals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
	// ByExpenseAccount buckets non-tracked lines per expense account.
	ByExpenseAccount map[string]decimal.Decimal
	// InventoryAmount is the aggregate cost of tracked lines.
	InventoryAmount decimal.Decimal
}

// SumBillTotals folds computed lines into bill totals.
func SumBillTotals(lines []ComputedBillLine) BillTotals {
	t := BillTotals{ByExpenseAccount: make(map[string]decimal.Decimal)}
	for _, l := range lines {
		t.Subtotal = t.Subtotal.Add(l.LineTotal)
		t.Tax = t.Tax.Add(l.TaxAmount)
		if l.TrackInventory {
			t.InventoryAmount = t.InventoryAmount.Add(l.LineTotal)
		} else {
			t.ByExpenseAccount[l.ExpenseAccountID] = t.ByExpenseAccount[l.ExpenseAccountID].Add(l.LineTotal)
		}
	}
	t.Subtotal = money.RoundMoney(t.Subtotal)
	t.Tax = money.RoundMoney(t.Tax)
	t.InventoryAmount = money.RoundMoney(t.InventoryAmount)
	t.Total = t.Subtotal.Add(t.Tax)
	return t
}
