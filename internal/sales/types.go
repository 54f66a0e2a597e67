package sales

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/zayar/simplecashflow/internal/apierror"
	"github.com/zayar/simplecashflow/internal/money"
)

// InvoiceStatus is the invoice lifecycle state. POSTED, PARTIAL and PAID
// are derived purely from payment aggregates; VOID is terminal.
type InvoiceStatus string

const (
	StatusDraft   InvoiceStatus = "DRAFT"
	StatusPosted  InvoiceStatus = "POSTED"
	StatusPartial InvoiceStatus = "PARTIAL"
	StatusPaid    InvoiceStatus = "PAID"
	StatusVoid    InvoiceStatus = "VOID"
)

// DeriveStatus maps the payment aggregate to the status of a non-draft,
// non-void invoice.
func DeriveStatus(amountPaid, total decimal.Decimal) InvoiceStatus {
	switch {
	case amountPaid.LessThanOrEqual(decimal.Zero):
		return StatusPosted
	case amountPaid.LessThan(total):
		return StatusPartial
	default:
		return StatusPaid
	}
}

// Customer is an AR counterparty.
type Customer struct {
	ID        string    `json:"id"`
	TenantID  int64     `json:"tenant_id"`
	Name      string    `json:"name"`
	Phone     *string   `json:"phone,omitempty"`
	Email     *string   `json:"email,omitempty"`
	Currency  *string   `json:"currency,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Invoice is an AR document. Monetary fields are in base currency; when
// the customer currency differs the caller converts with the stored FX
// rate before amounts land here.
type Invoice struct {
	ID             string          `json:"id"`
	TenantID       int64           `json:"tenant_id"`
	CustomerID     string          `json:"customer_id"`
	Number         string          `json:"number"`
	Status         InvoiceStatus   `json:"status"`
	InvoiceDate    time.Time       `json:"invoice_date"`
	DueDate        *time.Time      `json:"due_date,omitempty"`
	Currency       *string         `json:"currency,omitempty"`
	ExchangeRate   decimal.Decimal `json:"exchange_rate"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	Total          decimal.Decimal `json:"total"`
	AmountPaid     decimal.Decimal `json:"amount_paid"`
	JournalEntryID *string         `json:"journal_entry_id,omitempty"`
	LocationID     *string         `json:"location_id,omitempty"`
	Lines          []InvoiceLine   `json:"lines,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Remaining is the unpaid balance.
func (i *Invoice) Remaining() decimal.Decimal {
	return i.Total.Sub(i.AmountPaid)
}

// InvoiceLine is one invoice row. lineTotal = quantity*unitPrice −
// discountAmount; taxAmount = lineTotal * taxRate.
type InvoiceLine struct {
	ID              string          `json:"id"`
	InvoiceID       string          `json:"invoice_id"`
	ItemID          string          `json:"item_id"`
	Description     string          `json:"description"`
	Quantity        decimal.Decimal `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	TaxRate         decimal.Decimal `json:"tax_rate"`
	TaxAmount       decimal.Decimal `json:"tax_amount"`
	LineTotal       decimal.Decimal `json:"line_total"`
	IncomeAccountID string          `json:"income_account_id"`
}

// Payment is one cash receipt against an invoice, in base currency.
type Payment struct {
	ID                     string          `json:"id"`
	TenantID               int64           `json:"tenant_id"`
	InvoiceID              string          `json:"invoice_id"`
	PaymentDate            time.Time       `json:"payment_date"`
	Amount                 decimal.Decimal `json:"amount"`
	BankAccountID          string          `json:"bank_account_id"`
	JournalEntryID         string          `json:"journal_entry_id"`
	ReversedAt             *time.Time      `json:"reversed_at,omitempty"`
	ReversalJournalEntryID *string         `json:"reversal_journal_entry_id,omitempty"`
	CreatedAt              time.Time       `json:"created_at"`
}

// CreditNote reduces a customer's balance. Issuing posts immediately.
type CreditNote struct {
	ID             string          `json:"id"`
	TenantID       int64           `json:"tenant_id"`
	CustomerID     string          `json:"customer_id"`
	Number         string          `json:"number"`
	Status         InvoiceStatus   `json:"status"`
	NoteDate       time.Time       `json:"note_date"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	Total          decimal.Decimal `json:"total"`
	AmountApplied  decimal.Decimal `json:"amount_applied"`
	JournalEntryID *string         `json:"journal_entry_id,omitempty"`
	LocationID     *string         `json:"location_id,omitempty"`
	Lines          []InvoiceLine   `json:"lines,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// CreditNoteApplication links a credit note to an invoice.
type CreditNoteApplication struct {
	ID           string          `json:"id"`
	TenantID     int64           `json:"tenant_id"`
	CreditNoteID string          `json:"credit_note_id"`
	InvoiceID    string          `json:"invoice_id"`
	Amount       decimal.Decimal `json:"amount"`
	AppliedAt    time.Time       `json:"applied_at"`
}

// CustomerAdvance is cash received before any invoice exists.
type CustomerAdvance struct {
	ID             string          `json:"id"`
	TenantID       int64           `json:"tenant_id"`
	CustomerID     string          `json:"customer_id"`
	ReceivedDate   time.Time       `json:"received_date"`
	Amount         decimal.Decimal `json:"amount"`
	AmountApplied  decimal.Decimal `json:"amount_applied"`
	BankAccountID  string          `json:"bank_account_id"`
	JournalEntryID string          `json:"journal_entry_id"`
	CreatedAt      time.Time       `json:"created_at"`
}

// CustomerAdvanceApplication links an advance to an invoice.
type CustomerAdvanceApplication struct {
	ID        string          `json:"id"`
	TenantID  int64           `json:"tenant_id"`
	AdvanceID string          `json:"advance_id"`
	InvoiceID string          `json:"invoice_id"`
	Amount    decimal.Decimal `json:"amount"`
	AppliedAt time.Time       `json:"applied_at"`
}

// LineInput is one raw invoice or credit note line.
type LineInput struct {
	ItemID         string      `json:"item_id"`
	Description    string      `json:"description,omitempty"`
	Quantity       interface{} `json:"quantity"`
	UnitPrice      interface{} `json:"unit_price"`
	DiscountAmount interface{} `json:"discount_amount,omitempty"`
	TaxRate        interface{} `json:"tax_rate,omitempty"`
}

// CreateInvoiceRequest creates a DRAFT invoice.
type CreateInvoiceRequest struct {
	CustomerID   string      `json:"customer_id"`
	InvoiceDate  string      `json:"invoice_date"`
	DueDate      *string     `json:"due_date,omitempty"`
	Currency     *string     `json:"currency,omitempty"`
	ExchangeRate interface{} `json:"exchange_rate,omitempty"`
	LocationID   *string     `json:"location_id,omitempty"`
	Lines        []LineInput `json:"lines"`
}

// RecordPaymentRequest records a payment against an invoice.
type RecordPaymentRequest struct {
	PaymentDate   string      `json:"payment_date"`
	Amount        interface{} `json:"amount"`
	BankAccountID string      `json:"bank_account_id"`
}

// CreateCreditNoteRequest issues a credit note.
type CreateCreditNoteRequest struct {
	CustomerID string      `json:"customer_id"`
	NoteDate   string      `json:"note_date"`
	LocationID *string     `json:"location_id,omitempty"`
	Lines      []LineInput `json:"lines"`
}

// ApplyRequest applies a credit note or advance to an invoice.
type ApplyRequest struct {
	InvoiceID string      `json:"invoice_id"`
	Amount    interface{} `json:"amount"`
}

// ReceiveAdvanceRequest records a customer advance.
type ReceiveAdvanceRequest struct {
	CustomerID    string      `json:"customer_id"`
	ReceivedDate  string      `json:"received_date"`
	Amount        interface{} `json:"amount"`
	BankAccountID string      `json:"bank_account_id"`
}

// CreateCustomerRequest creates a customer.
type CreateCustomerRequest struct {
	Name     string  `json:"name"`
	Phone    *string `json:"phone,omitempty"`
	Email    *string `json:"email,omitempty"`
	Currency *string `json:"currency,omitempty"`
}

// Totals are the computed document amounts.
type Totals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
	// ByIncomeAccount buckets the net (pre-tax) amount per income account.
	ByIncomeAccount map[string]decimal.Decimal
}

// ComputedLine pairs a parsed line with its computed amounts.
type ComputedLine struct {
	ItemID          string
	Description     string
	Quantity        decimal.Decimal
	UnitPrice       decimal.Decimal
	DiscountAmount  decimal.Decimal
	TaxRate         decimal.Decimal
	TaxAmount       decimal.Decimal
	LineTotal       decimal.Decimal
	IncomeAccountID string
}

// ComputeLine validates and computes one line. incomeAccountID comes
// from the item.
func ComputeLine(in LineInput, incomeAccountID string) (ComputedLine, error) {
	qty, err := money.Parse(in.Quantity)
	if err != nil || !qty.IsPositive() {
		return ComputedLine{}, apierror.New(apierror.KindValidation, "line quantity must be a positive number")
	}
	unitPrice, err := money.Parse(in.UnitPrice)
	if err != nil || unitPrice.IsNegative() {
		return ComputedLine{}, apierror.New(apierror.KindValidation, "line unit price must be a non-negative number")
	}
	discount, err := money.Parse(in.DiscountAmount)
	if err != nil || discount.IsNegative() {
		return ComputedLine{}, apierror.New(apierror.KindValidation, "line discount must be a non-negative number")
	}
	taxRate, err := money.ParseRate(in.TaxRate)
	if err != nil {
		return ComputedLine{}, apierror.Wrap(apierror.KindValidation, err, "invalid tax rate")
	}

	gross := qty.Mul(unitPrice)
	if discount.GreaterThan(gross) {
		return ComputedLine{}, apierror.New(apierror.KindValidation,
			"line discount %s exceeds line subtotal %s", discount, gross)
	}
	lineTotal := money.RoundMoney(gross.Sub(discount))
	taxAmount := money.RoundMoney(lineTotal.Mul(taxRate))

	return ComputedLine{
		ItemID:          in.ItemID,
		Description:     in.Description,
		Quantity:        qty,
		UnitPrice:       money.RoundMoney(unitPrice),
		DiscountAmount:  money.RoundMoney(discount),
		TaxRate:         taxRate,
		TaxAmount:       taxAmount,
		LineTotal:       lineTotal,
		IncomeAccountID: incomeAccountID,
	}, nil
}

// SumTotals folds computed lines into document totals and income buckets.
func SumTotals(lines []ComputedLine) Totals {
	t := Totals{
		Subtotal:        decimal.Zero,
		Tax:             decimal.Zero,
		ByIncomeAccount: make(map[string]decimal.Decimal),
	}
	for _, l := range lines {
		t.Subtotal = t.Subtotal.Add(l.LineTotal)
		t.Tax = t.Tax.Add(l.TaxAmount)
		t.ByIncomeAccount[l.IncomeAccountID] = t.ByIncomeAccount[l.IncomeAccountID].Add(l.LineTotal)
	}
	t.Subtotal = money.RoundMoney(t.Subtotal)
	t.Tax = money.RoundMoney(t.Tax)
	t.Total = t.Subtotal.Add(t.Tax)
	return t
}

// RecomputeFromStored recomputes totals from persisted lines, used by
// the post path to detect drifted documents.
func RecomputeFromStored(lines []InvoiceLine) Totals {
	computed := make([]ComputedLine, 0, len(lines))
	for _, l := range lines {
		computed = append(computed, ComputedLine{
			ItemID:          l.ItemID,
			Quantity:        l.Quantity,
			UnitPrice:       l.UnitPrice,
			DiscountAmount:  l.DiscountAmount,
			TaxRate:         l.TaxRate,
			TaxAmount:       money.RoundMoney(l.Quantity.Mul(l.UnitPrice).Sub(l.DiscountAmount).Mul(l.TaxRate)),
			LineTotal:       money.RoundMoney(l.Quantity.Mul(l.UnitPrice).Sub(l.DiscountAmount)),
			IncomeAccountID: l.IncomeAccountID,
		})
	}
	return SumTotals(computed)
}
