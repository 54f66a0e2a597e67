package reports

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/zayar/simplecashflow/internal/ledger"
)

// AccountLine is one account's contribution to a report.
type AccountLine struct {
	AccountID   string             `json:"account_id"`
	AccountCode string             `json:"account_code"`
	AccountName string             `json:"account_name"`
	AccountType ledger.AccountType `json:"account_type"`
	Amount      decimal.Decimal    `json:"amount"`
}

// ProfitLoss is the income statement over a period.
type ProfitLoss struct {
	TenantID     int64           `json:"tenant_id"`
	From         time.Time       `json:"from"`
	To           time.Time       `json:"to"`
	Income       []AccountLine   `json:"income"`
	Expenses     []AccountLine   `json:"expenses"`
	TotalIncome  decimal.Decimal `json:"total_income"`
	TotalExpense decimal.Decimal `json:"total_expense"`
	NetProfit    decimal.Decimal `json:"net_profit"`
	GeneratedAt  time.Time       `json:"generated_at"`
}

// BalanceSheet is the financial position as of a date.
type BalanceSheet struct {
	TenantID         int64           `json:"tenant_id"`
	AsOf             time.Time       `json:"as_of"`
	Assets           []AccountLine   `json:"assets"`
	Liabilities      []AccountLine   `json:"liabilities"`
	Equity           []AccountLine   `json:"equity"`
	TotalAssets      decimal.Decimal `json:"total_assets"`
	TotalLiabilities decimal.Decimal `json:"total_liabilities"`
	TotalEquity      decimal.Decimal `json:"total_equity"`
	RetainedEarnings decimal.Decimal `json:"retained_earnings"`
	IsBalanced       bool            `json:"is_balanced"`
	GeneratedAt      time.Time       `json:"generated_at"`
}

// AgingBucket is one aging band of an open document.
type AgingBucket string

const (
	AgingCurrent AgingBucket = "CURRENT"
	Aging1To30   AgingBucket = "1_30"
	Aging31To60  AgingBucket = "31_60"
	Aging61To90  AgingBucket = "61_90"
	AgingOver90  AgingBucket = "OVER_90"
)

// BucketFor assigns an age in days to its aging band.
func BucketFor(daysPastDue int) AgingBucket {
	switch {
	case daysPastDue <= 0:
		return AgingCurrent
	case daysPastDue <= 30:
		return Aging1To30
	case daysPastDue <= 60:
		return Aging31To60
	case daysPastDue <= 90:
		return Aging61To90
	default:
		return AgingOver90
	}
}

// AgingRow is one open document with its remaining balance and band.
type AgingRow struct {
	DocumentID     string          `json:"document_id"`
	Number         string          `json:"number"`
	CounterpartyID string          `json:"counterparty_id"`
	DocumentDate   time.Time       `json:"document_date"`
	DueDate        *time.Time      `json:"due_date,omitempty"`
	Total          decimal.Decimal `json:"total"`
	Remaining      decimal.Decimal `json:"remaining"`
	DaysPastDue    int             `json:"days_past_due"`
	Bucket         AgingBucket     `json:"bucket"`
}

// AgingReport is the AR or AP aging as of a date.
type AgingReport struct {
	TenantID    int64                           `json:"tenant_id"`
	AsOf        time.Time                       `json:"as_of"`
	Rows        []AgingRow                      `json:"rows"`
	Totals      map[AgingBucket]decimal.Decimal `json:"totals"`
	GrandTotal  decimal.Decimal                 `json:"grand_total"`
	GeneratedAt time.Time                       `json:"generated_at"`
}

// SummaryRow is an open-balance summary per counterparty.
type SummaryRow struct {
	CounterpartyID   string          `json:"counterparty_id"`
	CounterpartyName string          `json:"counterparty_name"`
	OpenDocuments    int             `json:"open_documents"`
	Outstanding      decimal.Decimal `json:"outstanding"`
}

// Summary is the AR or AP position per counterparty.
type Summary struct {
	TenantID    int64           `json:"tenant_id"`
	Rows        []SummaryRow    `json:"rows"`
	Total       decimal.Decimal `json:"total"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// TransactionLine is one entry touching an account.
type TransactionLine struct {
	EntryID     string          `json:"entry_id"`
	EntryDate   time.Time       `json:"entry_date"`
	Description string          `json:"description"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Balance     decimal.Decimal `json:"balance"`
}

// AccountTransactions is the drilldown for one account over a period:
// opening balance signed on the account's normal balance, then per-entry
// lines in (date, id) order.
type AccountTransactions struct {
	TenantID       int64              `json:"tenant_id"`
	AccountID      string             `json:"account_id"`
	AccountCode    string             `json:"account_code"`
	AccountName    string             `json:"account_name"`
	AccountType    ledger.AccountType `json:"account_type"`
	From           time.Time          `json:"from"`
	To             time.Time          `json:"to"`
	OpeningBalance decimal.Decimal    `json:"opening_balance"`
	ClosingBalance decimal.Decimal    `json:"closing_balance"`
	Lines          []TransactionLine  `json:"lines"`
	GeneratedAt    time.Time          `json:"generated_at"`
}
