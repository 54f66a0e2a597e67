//go:build integration

package sales_test

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zayar/simplecashflow/internal/inventory"
	"github.com/zayar/simplecashflow/internal/outbox"
	"github.com/zayar/simplecashflow/internal/sales"
	"github.com/zayar/simplecashflow/internal/testutil"
)

func newSalesService(f *testutil.Fixture) *sales.Service {
	return sales.NewService(f.Pool, f.Ledger, f.Inventory, outbox.NewRepository(f.Pool))
}

func inventoryItemRequest(name string) *inventory.CreateItemRequest {
	return &inventory.CreateItemRequest{
		Name:         name,
		Type:         inventory.ItemTypeService,
		SellingPrice: "1000",
	}
}

func countJournalEntries(t *testing.T, pool *pgxpool.Pool, tenantID int64) int {
	t.Helper()
	var n int
	require.NoError(t, pool.QueryRow(context.Background(),
		`SELECT COUNT(*) FROM journal_entries WHERE tenant_id = $1`, tenantID).Scan(&n))
	return n
}

func TestCashSaleLifecycle(t *testing.T) {
	f := testutil.SetupCompany(t)
	svc := newSalesService(f)
	ctx := context.Background()

	customer, err := svc.CreateCustomer(ctx, f.Company.ID, &sales.CreateCustomerRequest{Name: "Daw Mya"})
	require.NoError(t, err)

	item, err := f.Inventory.CreateItem(ctx, f.Company.ID, inventoryItemRequest("Consulting"))
	require.NoError(t, err)

	invoice, err := svc.CreateInvoice(ctx, f.Company.ID, &sales.CreateInvoiceRequest{
		CustomerID:  customer.ID,
		InvoiceDate: "2025-03-01",
		Lines: []sales.LineInput{
			{ItemID: item.ID, Quantity: "1", UnitPrice: "1000", TaxRate: "0"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, sales.StatusDraft, invoice.Status)
	assert.True(t, invoice.Total.Equal(decimal.NewFromInt(1000)))
	assert.Nil(t, invoice.JournalEntryID)

	before := countJournalEntries(t, f.Pool, f.Company.ID)

	invoice, err = svc.PostInvoice(ctx, f.Company.ID, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, sales.StatusPosted, invoice.Status)
	require.NotNil(t, invoice.JournalEntryID)

	payment, err := svc.RecordPayment(ctx, f.Company.ID, invoice.ID, &sales.RecordPaymentRequest{
		PaymentDate:   "2025-03-02",
		Amount:        "1000",
		BankAccountID: f.Company.CashAccountID,
	})
	require.NoError(t, err)
	assert.True(t, payment.Amount.Equal(decimal.NewFromInt(1000)))

	invoice, err = svc.GetInvoice(ctx, f.Company.ID, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, sales.StatusPaid, invoice.Status)
	assert.True(t, invoice.AmountPaid.Equal(decimal.NewFromInt(1000)))

	// Post entry plus payment entry.
	assert.Equal(t, before+2, countJournalEntries(t, f.Pool, f.Company.ID))

	// invoice.posted and payment.recorded reached the outbox.
	var eventTypes []string
	rows, err := f.Pool.Query(ctx, `
		SELECT event_type FROM outbox_events
		WHERE tenant_id = $1 AND event_type IN ('invoice.posted', 'payment.recorded')
		ORDER BY occurred_at
	`, f.Company.ID)
	require.NoError(t, err)
	defer rows.Close()
	for rows.Next() {
		var et string
		require.NoError(t, rows.Scan(&et))
		eventTypes = append(eventTypes, et)
	}
	assert.Equal(t, []string{"invoice.posted", "payment.recorded"}, eventTypes)
}

func TestPartialPayVoidRepay(t *testing.T) {
	f := testutil.SetupCompany(t)
	svc := newSalesService(f)
	ctx := context.Background()

	customer, err := svc.CreateCustomer(ctx, f.Company.ID, &sales.CreateCustomerRequest{Name: "U Ba"})
	require.NoError(t, err)
	item, err := f.Inventory.CreateItem(ctx, f.Company.ID, inventoryItemRequest("Repair"))
	require.NoError(t, err)

	invoice, err := svc.CreateInvoice(ctx, f.Company.ID, &sales.CreateInvoiceRequest{
		CustomerID:  customer.ID,
		InvoiceDate: "2025-03-01",
		Lines:       []sales.LineInput{{ItemID: item.ID, Quantity: "1", UnitPrice: "1000", TaxRate: "0"}},
	})
	require.NoError(t, err)
	invoice, err = svc.PostInvoice(ctx, f.Company.ID, invoice.ID)
	require.NoError(t, err)

	first, err := svc.RecordPayment(ctx, f.Company.ID, invoice.ID, &sales.RecordPaymentRequest{
		PaymentDate: "2025-03-02", Amount: "400", BankAccountID: f.Company.CashAccountID,
	})
	require.NoError(t, err)

	invoice, err = svc.GetInvoice(ctx, f.Company.ID, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, sales.StatusPartial, invoice.Status)

	_, err = svc.VoidPayment(ctx, f.Company.ID, invoice.ID, first.ID)
	require.NoError(t, err)

	invoice, err = svc.GetInvoice(ctx, f.Company.ID, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, sales.StatusPosted, invoice.Status)
	assert.True(t, invoice.AmountPaid.IsZero())

	_, err = svc.RecordPayment(ctx, f.Company.ID, invoice.ID, &sales.RecordPaymentRequest{
		PaymentDate: "2025-03-03", Amount: "1000", BankAccountID: f.Company.CashAccountID,
	})
	require.NoError(t, err)

	invoice, err = svc.GetInvoice(ctx, f.Company.ID, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, sales.StatusPaid, invoice.Status)
	assert.True(t, invoice.AmountPaid.Equal(decimal.NewFromInt(1000)))

	// Two payment rows, one reversed; four entries: post, pay,
	// reversal, pay.
	payments, err := svc.Repo().ListPaymentsByInvoice(ctx, f.Pool, f.Company.ID, invoice.ID)
	require.NoError(t, err)
	assert.Len(t, payments, 2)
	reversed := 0
	for _, p := range payments {
		if p.ReversedAt != nil {
			reversed++
		}
	}
	assert.Equal(t, 1, reversed)
	assert.Equal(t, 4, countJournalEntries(t, f.Pool, f.Company.ID))
}
