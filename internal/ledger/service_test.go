package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zayar/simplecashflow/internal/apierror"
	"github.com/zayar/simplecashflow/internal/database"
	"github.com/zayar/simplecashflow/internal/outbox"
)

// MockRepository is an in-memory Repository for testing
type MockRepository struct {
	mu            sync.RWMutex
	Accounts      map[string]*Account
	Entries       map[string]*JournalEntry
	ClosedThrough map[int64]*time.Time
	LinesByAcct   map[string]bool
}

// NewMockRepository creates a new mock repository
func NewMockRepository() *MockRepository {
	return &MockRepository{
		Accounts:      make(map[string]*Account),
		Entries:       make(map[string]*JournalEntry),
		ClosedThrough: make(map[int64]*time.Time),
		LinesByAcct:   make(map[string]bool),
	}
}

func (m *MockRepository) GetAccountByID(ctx context.Context, q database.Queryer, tenantID int64, accountID string) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.Accounts[accountID]
	if !ok || a.TenantID != tenantID {
		return nil, apierror.New(apierror.KindNotFound, "account not found: %s", accountID)
	}
	return a, nil
}

func (m *MockRepository) GetAccountByCode(ctx context.Context, q database.Queryer, tenantID int64, code string) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.Accounts {
		if a.TenantID == tenantID && a.Code == code {
			return a, nil
		}
	}
	return nil, apierror.New(apierror.KindNotFound, "account not found: code %s", code)
}

func (m *MockRepository) ListAccounts(ctx context.Context, q database.Queryer, tenantID int64, activeOnly bool) ([]Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Account
	for _, a := range m.Accounts {
		if a.TenantID != tenantID || (activeOnly && !a.IsActive) {
			continue
		}
		out = append(out, *a)
	}
	return out, nil
}

func (m *MockRepository) CreateAccount(ctx context.Context, q database.Queryer, a *Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.Accounts {
		if existing.TenantID == a.TenantID && existing.Code == a.Code {
			return apierror.New(apierror.KindValidation, "account code %s already exists", a.Code)
		}
	}
	if a.ID == "" {
		a.ID = "acct-" + a.Code
	}
	m.Accounts[a.ID] = a
	return nil
}

func (m *MockRepository) SetAccountActive(ctx context.Context, q database.Queryer, tenantID int64, accountID string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.Accounts[accountID]
	if !ok || a.TenantID != tenantID {
		return apierror.New(apierror.KindNotFound, "account not found: %s", accountID)
	}
	a.IsActive = active
	return nil
}

func (m *MockRepository) AccountHasLines(ctx context.Context, q database.Queryer, tenantID int64, accountID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LinesByAcct[accountID], nil
}

func (m *MockRepository) DeleteAccount(ctx context.Context, q database.Queryer, tenantID int64, accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.Accounts[accountID]
	if !ok || a.TenantID != tenantID {
		return apierror.New(apierror.KindNotFound, "account not found: %s", accountID)
	}
	delete(m.Accounts, accountID)
	return nil
}

func (m *MockRepository) CountAccountsOwned(ctx context.Context, q database.Queryer, tenantID int64, accountIDs []string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, id := range accountIDs {
		if a, ok := m.Accounts[id]; ok && a.TenantID == tenantID && a.IsActive {
			n++
		}
	}
	return n, nil
}

func (m *MockRepository) GetJournalEntryByID(ctx context.Context, q database.Queryer, tenantID int64, entryID string) (*JournalEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.Entries[entryID]
	if !ok || e.TenantID != tenantID {
		return nil, apierror.New(apierror.KindNotFound, "journal entry not found: %s", entryID)
	}
	return e, nil
}

func (m *MockRepository) InsertJournalEntry(ctx context.Context, q database.Queryer, je *JournalEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if je.ID == "" {
		je.ID = "je-" + time.Now().Format("150405.000000000")
	}
	for i := range je.Lines {
		je.Lines[i].EntryID = je.ID
		je.Lines[i].TenantID = je.TenantID
		m.LinesByAcct[je.Lines[i].AccountID] = true
	}
	m.Entries[je.ID] = je
	return nil
}

func (m *MockRepository) GetClosedThrough(ctx context.Context, q database.Queryer, tenantID int64) (*time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ClosedThrough[tenantID], nil
}

func (m *MockRepository) SetClosedThrough(ctx context.Context, q database.Queryer, tenantID int64, through time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ClosedThrough[tenantID] = &through
	return nil
}

// mockAppender records appended events.
type mockAppender struct {
	mu     sync.Mutex
	events []*outbox.Event
}

func (m *mockAppender) Append(ctx context.Context, q database.Queryer, e *outbox.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

func newTestService() (*Service, *MockRepository, *mockAppender) {
	repo := NewMockRepository()
	events := &mockAppender{}
	return NewServiceWithRepository(repo, events), repo, events
}

func seedAccount(repo *MockRepository, tenantID int64, id, code string, accountType AccountType) {
	repo.Accounts[id] = &Account{
		ID:            id,
		TenantID:      tenantID,
		Code:          code,
		Name:          code,
		Type:          accountType,
		NormalBalance: NormalBalanceFor(accountType),
		IsActive:      true,
	}
}

func TestCreateAccount(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	account, err := svc.CreateAccount(ctx, 1, &CreateAccountRequest{Code: "6000", Name: "Rent", Type: AccountTypeExpense})
	require.NoError(t, err)
	assert.Equal(t, NormalDebit, account.NormalBalance)
	assert.True(t, account.IsActive)

	// Duplicate code for the same tenant is rejected.
	_, err = svc.CreateAccount(ctx, 1, &CreateAccountRequest{Code: "6000", Name: "Rent 2", Type: AccountTypeExpense})
	assert.True(t, apierror.IsKind(err, apierror.KindValidation))

	_, err = svc.CreateAccount(ctx, 1, &CreateAccountRequest{Code: "", Name: "x", Type: AccountTypeAsset})
	assert.True(t, apierror.IsKind(err, apierror.KindValidation))

	_, err = svc.CreateAccount(ctx, 1, &CreateAccountRequest{Code: "7000", Name: "x", Type: AccountType("REVENUE")})
	assert.True(t, apierror.IsKind(err, apierror.KindValidation))
}

func TestDeleteAccount(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	seedAccount(repo, 1, "rent", "6000", AccountTypeExpense)
	seedAccount(repo, 1, "cash", "1000", AccountTypeAsset)
	repo.LinesByAcct["cash"] = true

	// Unused account deletes cleanly.
	require.NoError(t, svc.DeleteAccount(ctx, 1, "rent"))
	assert.NotContains(t, repo.Accounts, "rent")

	// Accounts with journal lines are refused.
	err := svc.DeleteAccount(ctx, 1, "cash")
	assert.True(t, apierror.IsKind(err, apierror.KindState))

	// System accounts are refused.
	seedAccount(repo, 1, "ar", "1100", AccountTypeAsset)
	repo.Accounts["ar"].IsSystem = true
	err = svc.DeleteAccount(ctx, 1, "ar")
	assert.True(t, apierror.IsKind(err, apierror.KindState))
}

func TestPostJournalEntry(t *testing.T) {
	svc, repo, events := newTestService()
	ctx := context.Background()
	seedAccount(repo, 1, "cash", "1000", AccountTypeAsset)
	seedAccount(repo, 1, "sales", "4000", AccountTypeIncome)

	entry, err := svc.PostJournalEntry(ctx, nil, &PostRequest{
		TenantID:    1,
		Date:        time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
		Description: "Cash sale",
		Lines: []LineInput{
			{AccountID: "cash", Debit: d("1000")},
			{AccountID: "sales", Credit: d("1000")},
		},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, entry.ID)
	assert.True(t, entry.IsBalanced())

	require.Len(t, events.events, 1)
	e := events.events[0]
	assert.Equal(t, outbox.EventJournalEntryCreated, e.EventType)
	assert.Equal(t, "JournalEntry", e.AggregateType)
	assert.Equal(t, entry.ID, e.AggregateID)
	assert.Equal(t, int64(1), e.TenantID)
}

func TestPostJournalEntryImbalance(t *testing.T) {
	svc, repo, _ := newTestService()
	seedAccount(repo, 1, "cash", "1000", AccountTypeAsset)
	seedAccount(repo, 1, "sales", "4000", AccountTypeIncome)

	_, err := svc.PostJournalEntry(context.Background(), nil, &PostRequest{
		TenantID: 1,
		Date:     time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
		Lines: []LineInput{
			{AccountID: "cash", Debit: d("1000")},
			{AccountID: "sales", Credit: d("999")},
		},
	})
	assert.True(t, apierror.IsKind(err, apierror.KindImbalance))
}

func TestPostJournalEntryCrossTenantAccount(t *testing.T) {
	svc, repo, _ := newTestService()
	seedAccount(repo, 1, "cash", "1000", AccountTypeAsset)
	seedAccount(repo, 2, "other", "1000", AccountTypeAsset)

	_, err := svc.PostJournalEntry(context.Background(), nil, &PostRequest{
		TenantID: 1,
		Date:     time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
		Lines: []LineInput{
			{AccountID: "cash", Debit: d("10")},
			{AccountID: "other", Credit: d("10")},
		},
	})
	assert.True(t, apierror.IsKind(err, apierror.KindTenant))
}

func TestPostJournalEntryPeriodClosed(t *testing.T) {
	svc, repo, _ := newTestService()
	seedAccount(repo, 1, "cash", "1000", AccountTypeAsset)
	seedAccount(repo, 1, "sales", "4000", AccountTypeIncome)
	closed := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
	repo.ClosedThrough[1] = &closed

	_, err := svc.PostJournalEntry(context.Background(), nil, &PostRequest{
		TenantID: 1,
		Date:     time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
		Lines: []LineInput{
			{AccountID: "cash", Debit: d("10")},
			{AccountID: "sales", Credit: d("10")},
		},
	})
	assert.True(t, apierror.IsKind(err, apierror.KindPeriodClosed))

	// Strictly after the cutoff is accepted.
	_, err = svc.PostJournalEntry(context.Background(), nil, &PostRequest{
		TenantID: 1,
		Date:     time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		Lines: []LineInput{
			{AccountID: "cash", Debit: d("10")},
			{AccountID: "sales", Credit: d("10")},
		},
	})
	assert.NoError(t, err)
}

func TestPostJournalEntryNoTenant(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.PostJournalEntry(context.Background(), nil, &PostRequest{
		Date: time.Now(),
		Lines: []LineInput{
			{AccountID: "a", Debit: d("1")},
			{AccountID: "b", Credit: d("1")},
		},
	})
	assert.True(t, apierror.IsKind(err, apierror.KindTenant))
}

func TestEnsureSystemAccountIdempotent(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	first, err := svc.EnsureSystemAccount(ctx, nil, 1, "1100", "Accounts Receivable", AccountTypeAsset)
	require.NoError(t, err)
	assert.True(t, first.IsSystem)

	second, err := svc.EnsureSystemAccount(ctx, nil, 1, "1100", "Accounts Receivable", AccountTypeAsset)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, repo.Accounts, 1)
}
