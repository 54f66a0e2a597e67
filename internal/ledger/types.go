package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/zayar/simplecashflow/internal/apierror"
	"github.com/zayar/simplecashflow/internal/money"
)

// AccountType represents the type of account in the chart of accounts
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeIncome    AccountType = "INCOME"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// NormalBalance is the side an account type naturally carries.
type NormalBalance string

const (
	NormalDebit  NormalBalance = "DEBIT"
	NormalCredit NormalBalance = "CREDIT"
)

// IsDebitNormal returns true if account type normally has debit balance
func (t AccountType) IsDebitNormal() bool {
	return t == AccountTypeAsset || t == AccountTypeExpense
}

// NormalBalanceFor returns the normal balance implied by the account type.
func NormalBalanceFor(t AccountType) NormalBalance {
	if t.IsDebitNormal() {
		return NormalDebit
	}
	return NormalCredit
}

// ValidAccountType reports whether t is one of the fixed account types.
func ValidAccountType(t AccountType) bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeIncome, AccountTypeExpense:
		return true
	}
	return false
}

// Account represents a GL account in the chart of accounts
type Account struct {
	ID            string        `json:"id"`
	TenantID      int64         `json:"tenant_id"`
	Code          string        `json:"code"`
	Name          string        `json:"name"`
	Type          AccountType   `json:"type"`
	NormalBalance NormalBalance `json:"normal_balance"`
	IsActive      bool          `json:"is_active"`
	IsSystem      bool          `json:"is_system"`
	CreatedAt     time.Time     `json:"created_at"`
}

// JournalEntry represents an immutable accounting transaction.
// Corrections are separate reversing entries.
type JournalEntry struct {
	ID              string        `json:"id"`
	TenantID        int64         `json:"tenant_id"`
	EntryDate       time.Time     `json:"entry_date"`
	Description     string        `json:"description"`
	LocationID      *string       `json:"location_id,omitempty"`
	CreatedByUserID *string       `json:"created_by_user_id,omitempty"`
	Lines           []JournalLine `json:"lines"`
	CreatedAt       time.Time     `json:"created_at"`
}

// JournalLine represents a single debit or credit in a journal entry
type JournalLine struct {
	ID        string          `json:"id"`
	EntryID   string          `json:"entry_id"`
	TenantID  int64           `json:"tenant_id"`
	AccountID string          `json:"account_id"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
}

// LineInput is one posting line supplied to the posting engine.
type LineInput struct {
	AccountID string          `json:"account_id"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
}

// PostRequest is the posting engine input. All higher-level mutations
// compose one or more of these within a single database transaction.
type PostRequest struct {
	TenantID        int64
	Date            time.Time
	Description     string
	LocationID      *string
	CreatedByUserID *string
	Lines           []LineInput

	// SkipAccountValidation is set by the inventory COGS adjustment
	// path, which supplies trusted account ids, and by ReversalOf, whose
	// lines reuse the accounts of an already posted entry. Reversals
	// therefore post even when one of those accounts has since been
	// deactivated.
	SkipAccountValidation bool

	CorrelationID string
	CausationID   *string
}

// ValidateLines checks the §4.4 line contract and returns rounded totals.
func ValidateLines(lines []LineInput) (totalDebit, totalCredit decimal.Decimal, err error) {
	if len(lines) < 2 {
		return decimal.Zero, decimal.Zero, apierror.New(apierror.KindValidation, "journal entry requires at least two lines")
	}
	for i, l := range lines {
		if l.AccountID == "" {
			return decimal.Zero, decimal.Zero, apierror.New(apierror.KindValidation, "line %d: account id required", i)
		}
		if l.Debit.IsNegative() || l.Credit.IsNegative() {
			return decimal.Zero, decimal.Zero, apierror.New(apierror.KindValidation, "line %d: amounts cannot be negative", i)
		}
		debitPos := l.Debit.IsPositive()
		creditPos := l.Credit.IsPositive()
		if debitPos == creditPos {
			return decimal.Zero, decimal.Zero, apierror.New(apierror.KindValidation, "line %d: exactly one of debit or credit must be positive", i)
		}
		totalDebit = totalDebit.Add(l.Debit)
		totalCredit = totalCredit.Add(l.Credit)
	}
	totalDebit = money.RoundMoney(totalDebit)
	totalCredit = money.RoundMoney(totalCredit)
	if !totalDebit.Equal(totalCredit) {
		return decimal.Zero, decimal.Zero, apierror.New(apierror.KindImbalance,
			"journal entry does not balance: debits=%s credits=%s", totalDebit, totalCredit)
	}
	if totalDebit.IsZero() {
		return decimal.Zero, decimal.Zero, apierror.New(apierror.KindValidation, "journal entry cannot have zero amounts")
	}
	return totalDebit, totalCredit, nil
}

// TotalDebits returns the sum of all debit amounts
func (je *JournalEntry) TotalDebits() decimal.Decimal {
	total := decimal.Zero
	for _, line := range je.Lines {
		total = total.Add(line.Debit)
	}
	return total
}

// TotalCredits returns the sum of all credit amounts
func (je *JournalEntry) TotalCredits() decimal.Decimal {
	total := decimal.Zero
	for _, line := range je.Lines {
		total = total.Add(line.Credit)
	}
	return total
}

// IsBalanced returns true if debits equal credits
func (je *JournalEntry) IsBalanced() bool {
	return je.TotalDebits().Equal(je.TotalCredits())
}

// CreateAccountRequest is the request to create an account
type CreateAccountRequest struct {
	Code string      `json:"code"`
	Name string      `json:"name"`
	Type AccountType `json:"type"`
}
