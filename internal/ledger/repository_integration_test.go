//go:build integration

package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zayar/simplecashflow/internal/apierror"
	"github.com/zayar/simplecashflow/internal/ledger"
	"github.com/zayar/simplecashflow/internal/testutil"
)

func TestPostJournalEntryPersistsEntryAndOutboxEvent(t *testing.T) {
	f := testutil.SetupCompany(t)
	ctx := context.Background()

	entry, err := f.Ledger.PostJournalEntry(ctx, f.Pool, &ledger.PostRequest{
		TenantID:    f.Company.ID,
		Date:        time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
		Description: "Cash sale",
		Lines: []ledger.LineInput{
			{AccountID: f.Company.CashAccountID, Debit: decimal.NewFromInt(1000)},
			{AccountID: f.Company.SalesAccountID, Credit: decimal.NewFromInt(1000)},
		},
	})
	require.NoError(t, err)

	loaded, err := f.Ledger.GetJournalEntry(ctx, f.Company.ID, entry.ID)
	require.NoError(t, err)
	assert.Len(t, loaded.Lines, 2)
	assert.True(t, loaded.IsBalanced())

	var eventCount int
	err = f.Pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM outbox_events
		WHERE tenant_id = $1 AND event_type = 'journal.entry.created' AND aggregate_id = $2
	`, f.Company.ID, entry.ID).Scan(&eventCount)
	require.NoError(t, err)
	assert.Equal(t, 1, eventCount)
}

func TestTenantIsolationOnReads(t *testing.T) {
	f := testutil.SetupCompany(t)
	other := testutil.SetupCompany(t)
	ctx := context.Background()

	entry, err := f.Ledger.PostJournalEntry(ctx, f.Pool, &ledger.PostRequest{
		TenantID:    f.Company.ID,
		Date:        time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
		Description: "Tenant A entry",
		Lines: []ledger.LineInput{
			{AccountID: f.Company.CashAccountID, Debit: decimal.NewFromInt(50)},
			{AccountID: f.Company.SalesAccountID, Credit: decimal.NewFromInt(50)},
		},
	})
	require.NoError(t, err)

	// The other tenant cannot see it.
	_, err = other.Ledger.GetJournalEntry(ctx, other.Company.ID, entry.ID)
	assert.True(t, apierror.IsKind(err, apierror.KindNotFound))

	// Nor can it post against tenant A's accounts.
	_, err = other.Ledger.PostJournalEntry(ctx, other.Pool, &ledger.PostRequest{
		TenantID: other.Company.ID,
		Date:     time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
		Lines: []ledger.LineInput{
			{AccountID: f.Company.CashAccountID, Debit: decimal.NewFromInt(1)},
			{AccountID: other.Company.SalesAccountID, Credit: decimal.NewFromInt(1)},
		},
	})
	assert.True(t, apierror.IsKind(err, apierror.KindTenant))
}

func TestPeriodCloseBlocksBackdatedEntries(t *testing.T) {
	f := testutil.SetupCompany(t)
	ctx := context.Background()

	require.NoError(t, f.Ledger.SetClosedThrough(ctx, f.Company.ID, time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)))

	_, err := f.Ledger.PostJournalEntry(ctx, f.Pool, &ledger.PostRequest{
		TenantID: f.Company.ID,
		Date:     time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC),
		Lines: []ledger.LineInput{
			{AccountID: f.Company.CashAccountID, Debit: decimal.NewFromInt(1)},
			{AccountID: f.Company.SalesAccountID, Credit: decimal.NewFromInt(1)},
		},
	})
	assert.True(t, apierror.IsKind(err, apierror.KindPeriodClosed))

	_, err = f.Ledger.PostJournalEntry(ctx, f.Pool, &ledger.PostRequest{
		TenantID: f.Company.ID,
		Date:     time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		Lines: []ledger.LineInput{
			{AccountID: f.Company.CashAccountID, Debit: decimal.NewFromInt(1)},
			{AccountID: f.Company.SalesAccountID, Credit: decimal.NewFromInt(1)},
		},
	})
	assert.NoError(t, err)
}
