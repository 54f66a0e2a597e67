package purchases

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/zayar/simplecashflow/internal/apierror"
	"github.com/zayar/simplecashflow/internal/database"
)

// CompanyRefs are the cached posting account ids the AP paths need.
type CompanyRefs struct {
	APAccountID            string
	TaxPayableAccountID    string
	InventoryAccountID     string
	VendorAdvanceAccountID string
	DefaultLocationID      *string
}

// RepositoryInterface defines the contract for AP data access
type RepositoryInterface interface {
	GetCompanyRefs(ctx context.Context, q database.Queryer, tenantID int64) (*CompanyRefs, error)

	CreateVendor(ctx context.Context, q database.Queryer, v *Vendor) error
	GetVendorByID(ctx context.Context, q database.Queryer, tenantID int64, vendorID string) (*Vendor, error)

	NextBillNumber(ctx context.Context, q database.Queryer, tenantID int64) (string, error)
	InsertBill(ctx context.Context, q database.Queryer, b *PurchaseBill) error
	GetBillByID(ctx context.Context, q database.Queryer, tenantID int64, billID string, forUpdate bool) (*PurchaseBill, error)
	UpdateBillPosted(ctx context.Context, q database.Queryer, b *PurchaseBill) error
	UpdateBillPaymentState(ctx context.Context, q database.Queryer, b *PurchaseBill) error

	InsertBillPayment(ctx context.Context, q database.Queryer, p *BillPayment) error
	GetBillPaymentByID(ctx context.Context, q database.Queryer, tenantID int64, paymentID string) (*BillPayment, error)
	ListBillPayments(ctx context.Context, q database.Queryer, tenantID int64, billID string) ([]BillPayment, error)
	MarkBillPaymentReversed(ctx context.Context, q database.Queryer, tenantID int64, paymentID, reversalEntryID string) error
	SumPaidForBill(ctx context.Context, q database.Queryer, tenantID int64, billID string) (decimal.Decimal, error)

	InsertVendorCredit(ctx context.Context, q database.Queryer, vc *VendorCredit) error
	GetVendorCreditByID(ctx context.Context, q database.Queryer, tenantID int64, creditID string, forUpdate bool) (*VendorCredit, error)
	UpdateVendorCreditApplied(ctx context.Context, q database.Queryer, vc *VendorCredit) error
	InsertVendorCreditApplication(ctx context.Context, q database.Queryer, app *VendorCreditApplication) error

	InsertVendorAdvance(ctx context.Context, q database.Queryer, a *VendorAdvance) error
	GetVendorAdvanceByID(ctx context.Context, q database.Queryer, tenantID int64, advanceID string, forUpdate bool) (*VendorAdvance, error)
	UpdateVendorAdvanceApplied(ctx context.Context, q database.Queryer, a *VendorAdvance) error
	InsertVendorAdvanceApplication(ctx context.Context, q database.Queryer, app *VendorAdvanceApplication) error
}

// Repository provides PostgreSQL-backed AP data access.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new purchases repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// GetCompanyRefs loads the cached posting account ids for AP paths.
func (r *Repository) GetCompanyRefs(ctx context.Context, q database.Queryer, tenantID int64) (*CompanyRefs, error) {
	var refs CompanyRefs
	err := q.QueryRow(ctx, `
		SELECT ap_account_id, tax_payable_account_id, inventory_account_id, vendor_advance_account_id, default_location_id
		FROM companies WHERE id = $1
	`, tenantID).Scan(&refs.APAccountID, &refs.TaxPayableAccountID, &refs.InventoryAccountID, &refs.VendorAdvanceAccountID, &refs.DefaultLocationID)
	if err == pgx.ErrNoRows {
		return nil, apierror.New(apierror.KindNotFound, "company not found: %d", tenantID)
	}
	if err != nil {
		return nil, fmt.Errorf("get company refs: %w", err)
	}
	return &refs, nil
}

// CreateVendor creates a vendor.
func (r *Repository) CreateVendor(ctx context.Context, q database.Queryer, v *Vendor) error {
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now()
	}
	_, err := q.Exec(ctx, `
		INSERT INTO vendors (id, tenant_id, name, phone, email, currency, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, v.ID, v.TenantID, v.Name, v.Phone, v.Email, v.Currency, v.CreatedAt)
	if err != nil {
		return fmt.Errorf("create vendor: %w", err)
	}
	return nil
}

// GetVendorByID retrieves a vendor by id.
func (r *Repository) GetVendorByID(ctx context.Context, q database.Queryer, tenantID int64, vendorID string) (*Vendor, error) {
	var v Vendor
	err := q.QueryRow(ctx, `
		SELECT id, tenant_id, name, phone, email, currency, created_at
		FROM vendors WHERE id = $1 AND tenant_id = $2
	`, vendorID, tenantID).Scan(&v.ID, &v.TenantID, &v.Name, &v.Phone, &v.Email, &v.Currency, &v.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, apierror.New(apierror.KindNotFound, "vendor not found: %s", vendorID)
	}
	if err != nil {
		return nil, fmt.Errorf("get vendor: %w", err)
	}
	return &v, nil
}

// NextBillNumber generates the next tenant-scoped bill number.
func (r *Repository) NextBillNumber(ctx context.Context, q database.Queryer, tenantID int64) (string, error) {
	var seq int
	err := q.QueryRow(ctx, `
		SELECT COALESCE(MAX(CAST(SUBSTRING(number FROM 6) AS INTEGER)), 0) + 1
		FROM purchase_bills WHERE tenant_id = $1
	`, tenantID).Scan(&seq)
	if err != nil {
		return "", fmt.Errorf("next bill number: %w", err)
	}
	return fmt.Sprintf("BILL-%05d", seq), nil
}

// InsertBill inserts the bill and its lines.
func (r *Repository) InsertBill(ctx context.Context, q database.Queryer, b *PurchaseBill) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}
	_, err := q.Exec(ctx, `
		INSERT INTO purchase_bills (id, tenant_id, vendor_id, number, status, bill_date, due_date,
		                            subtotal, tax_amount, total, amount_paid, journal_entry_id, location_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, b.ID, b.TenantID, b.VendorID, b.Number, b.Status, b.BillDate, b.DueDate,
		b.Subtotal, b.TaxAmount, b.Total, b.AmountPaid, b.JournalEntryID, b.LocationID, b.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert purchase bill: %w", err)
	}
	for i := range b.Lines {
		line := &b.Lines[i]
		if line.ID == "" {
			line.ID = uuid.New().String()
		}
		line.BillID = b.ID
		_, err := q.Exec(ctx, `
			INSERT INTO purchase_bill_lines (id, bill_id, item_id, description, quantity, unit_cost,
			                                 tax_rate, tax_amount, line_total, expense_account_id, track_inventory)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`, line.ID, line.BillID, line.ItemID, line.Description, line.Quantity, line.UnitCost,
			line.TaxRate, line.TaxAmount, line.LineTotal, line.ExpenseAccountID, line.TrackInventory)
		if err != nil {
			return fmt.Errorf("insert purchase bill line: %w", err)
		}
	}
	return nil
}

// GetBillByID retrieves a bill with lines, optionally locking the header.
func (r *Repository) GetBillByID(ctx context.Context, q database.Queryer, tenantID int64, billID string, forUpdate bool) (*PurchaseBill, error) {
	query := `
		SELECT id, tenant_id, vendor_id, number, status, bill_date, due_date,
		       subtotal, tax_amount, total, amount_paid, journal_entry_id, location_id, created_at
		FROM purchase_bills WHERE id = $1 AND tenant_id = $2`
	if forUpdate {
		query += " FOR UPDATE"
	}
	var b PurchaseBill
	err := q.QueryRow(ctx, query, billID, tenantID).Scan(
		&b.ID, &b.TenantID, &b.VendorID, &b.Number, &b.Status, &b.BillDate, &b.DueDate,
		&b.Subtotal, &b.TaxAmount, &b.Total, &b.AmountPaid, &b.JournalEntryID, &b.LocationID, &b.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, apierror.New(apierror.KindNotFound, "purchase bill not found: %s", billID)
	}
	if err != nil {
		return nil, fmt.Errorf("get purchase bill: %w", err)
	}

	rows, err := q.Query(ctx, `
		SELECT id, bill_id, item_id, description, quantity, unit_cost, tax_rate, tax_amount,
		       line_total, expense_account_id, track_inventory
		FROM purchase_bill_lines WHERE bill_id = $1 ORDER BY id
	`, billID)
	if err != nil {
		return nil, fmt.Errorf("get purchase bill lines: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var l BillLine
		if err := rows.Scan(&l.ID, &l.BillID, &l.ItemID, &l.Description, &l.Quantity, &l.UnitCost,
			&l.TaxRate, &l.TaxAmount, &l.LineTotal, &l.ExpenseAccountID, &l.TrackInventory); err != nil {
			return nil, fmt.Errorf("scan purchase bill line: %w", err)
		}
		b.Lines = append(b.Lines, l)
	}
	return &b, rows.Err()
}

// UpdateBillPosted records the posting outcome on the bill.
func (r *Repository) UpdateBillPosted(ctx context.Context, q database.Queryer, b *PurchaseBill) error {
	_, err := q.Exec(ctx, `
		UPDATE purchase_bills SET status = $3, journal_entry_id = $4 WHERE id = $1 AND tenant_id = $2
	`, b.ID, b.TenantID, b.Status, b.JournalEntryID)
	if err != nil {
		return fmt.Errorf("update bill posted: %w", err)
	}
	return nil
}

// UpdateBillPaymentState persists the recomputed paid aggregate and status.
func (r *Repository) UpdateBillPaymentState(ctx context.Context, q database.Queryer, b *PurchaseBill) error {
	_, err := q.Exec(ctx, `
		UPDATE purchase_bills SET amount_paid = $3, status = $4 WHERE id = $1 AND tenant_id = $2
	`, b.ID, b.TenantID, b.AmountPaid, b.Status)
	if err != nil {
		return fmt.Errorf("update bill payment state: %w", err)
	}
	return nil
}

const billPaymentColumns = `
	id, tenant_id, bill_id, payment_date, amount, bank_account_id, journal_entry_id,
	reversed_at, reversal_journal_entry_id, created_at`

// InsertBillPayment inserts a bill payment row.
func (r *Repository) InsertBillPayment(ctx context.Context, q database.Queryer, p *BillPayment) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	_, err := q.Exec(ctx, `
		INSERT INTO purchase_bill_payments (id, tenant_id, bill_id, payment_date, amount, bank_account_id, journal_entry_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, p.ID, p.TenantID, p.BillID, p.PaymentDate, p.Amount, p.BankAccountID, p.JournalEntryID, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert bill payment: %w", err)
	}
	return nil
}

// GetBillPaymentByID retrieves a bill payment by id.
func (r *Repository) GetBillPaymentByID(ctx context.Context, q database.Queryer, tenantID int64, paymentID string) (*BillPayment, error) {
	var p BillPayment
	err := q.QueryRow(ctx, `SELECT `+billPaymentColumns+` FROM purchase_bill_payments WHERE id = $1 AND tenant_id = $2`,
		paymentID, tenantID).Scan(
		&p.ID, &p.TenantID, &p.BillID, &p.PaymentDate, &p.Amount, &p.BankAccountID, &p.JournalEntryID,
		&p.ReversedAt, &p.ReversalJournalEntryID, &p.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, apierror.New(apierror.KindNotFound, "bill payment not found: %s", paymentID)
	}
	if err != nil {
		return nil, fmt.Errorf("get bill payment: %w", err)
	}
	return &p, nil
}

// ListBillPayments lists payments on a bill.
func (r *Repository) ListBillPayments(ctx context.Context, q database.Queryer, tenantID int64, billID string) ([]BillPayment, error) {
	rows, err := q.Query(ctx, `SELECT `+billPaymentColumns+` FROM purchase_bill_payments WHERE tenant_id = $1 AND bill_id = $2 ORDER BY created_at`,
		tenantID, billID)
	if err != nil {
		return nil, fmt.Errorf("list bill payments: %w", err)
	}
	defer rows.Close()
	var payments []BillPayment
	for rows.Next() {
		var p BillPayment
		if err := rows.Scan(&p.ID, &p.TenantID, &p.BillID, &p.PaymentDate, &p.Amount, &p.BankAccountID,
			&p.JournalEntryID, &p.ReversedAt, &p.ReversalJournalEntryID, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan bill payment: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// MarkBillPaymentReversed records the reversal on the payment row.
func (r *Repository) MarkBillPaymentReversed(ctx context.Context, q database.Queryer, tenantID int64, paymentID, reversalEntryID string) error {
	tag, err := q.Exec(ctx, `
		UPDATE purchase_bill_payments SET reversed_at = now(), reversal_journal_entry_id = $3
		WHERE id = $1 AND tenant_id = $2 AND reversed_at IS NULL
	`, paymentID, tenantID, reversalEntryID)
	if err != nil {
		return fmt.Errorf("mark bill payment reversed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apierror.New(apierror.KindState, "bill payment %s already reversed", paymentID)
	}
	return nil
}

// SumPaidForBill computes the authoritative paid aggregate for a bill.
func (r *Repository) SumPaidForBill(ctx context.Context, q database.Queryer, tenantID int64, billID string) (decimal.Decimal, error) {
	var payments, credits, advances decimal.Decimal
	err := q.QueryRow(ctx, `
		SELECT
			COALESCE((SELECT SUM(amount) FROM purchase_bill_payments
			          WHERE tenant_id = $1 AND bill_id = $2 AND reversed_at IS NULL), 0),
			COALESCE((SELECT SUM(amount) FROM vendor_credit_applications
			          WHERE tenant_id = $1 AND bill_id = $2), 0),
			COALESCE((SELECT SUM(amount) FROM vendor_advance_applications
			          WHERE tenant_id = $1 AND bill_id = $2), 0)
	`, tenantID, billID).Scan(&payments, &credits, &advances)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum paid for bill: %w", err)
	}
	return payments.Add(credits).Add(advances), nil
}

// InsertVendorCredit inserts a vendor credit.
func (r *Repository) InsertVendorCredit(ctx context.Context, q database.Queryer, vc *VendorCredit) error {
	if vc.ID == "" {
		vc.ID = uuid.New().String()
	}
	if vc.CreatedAt.IsZero() {
		vc.CreatedAt = time.Now()
	}
	_, err := q.Exec(ctx, `
		INSERT INTO vendor_credits (id, tenant_id, vendor_id, number, credit_date, total, amount_applied,
		                            expense_account_id, journal_entry_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, vc.ID, vc.TenantID, vc.VendorID, vc.Number, vc.CreditDate, vc.Total, vc.AmountApplied,
		vc.ExpenseAccountID, vc.JournalEntryID, vc.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert vendor credit: %w", err)
	}
	return nil
}

// GetVendorCreditByID retrieves a vendor credit.
func (r *Repository) GetVendorCreditByID(ctx context.Context, q database.Queryer, tenantID int64, creditID string, forUpdate bool) (*VendorCredit, error) {
	query := `
		SELECT id, tenant_id, vendor_id, number, credit_date, total, amount_applied, expense_account_id, journal_entry_id, created_at
		FROM vendor_credits WHERE id = $1 AND tenant_id = $2`
	if forUpdate {
		query += " FOR UPDATE"
	}
	var vc VendorCredit
	err := q.QueryRow(ctx, query, creditID, tenantID).Scan(
		&vc.ID, &vc.TenantID, &vc.VendorID, &vc.Number, &vc.CreditDate, &vc.Total, &vc.AmountApplied,
		&vc.ExpenseAccountID, &vc.JournalEntryID, &vc.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, apierror.New(apierror.KindNotFound, "vendor credit not found: %s", creditID)
	}
	if err != nil {
		return nil, fmt.Errorf("get vendor credit: %w", err)
	}
	return &vc, nil
}

// UpdateVendorCreditApplied persists the applied aggregate.
func (r *Repository) UpdateVendorCreditApplied(ctx context.Context, q database.Queryer, vc *VendorCredit) error {
	_, err := q.Exec(ctx, `
		UPDATE vendor_credits SET amount_applied = $3 WHERE id = $1 AND tenant_id = $2
	`, vc.ID, vc.TenantID, vc.AmountApplied)
	if err != nil {
		return fmt.Errorf("update vendor credit applied: %w", err)
	}
	return nil
}

// InsertVendorCreditApplication links a vendor credit to a bill.
func (r *Repository) InsertVendorCreditApplication(ctx context.Context, q database.Queryer, app *VendorCreditApplication) error {
	if app.ID == "" {
		app.ID = uuid.New().String()
	}
	if app.AppliedAt.IsZero() {
		app.AppliedAt = time.Now()
	}
	_, err := q.Exec(ctx, `
		INSERT INTO vendor_credit_applications (id, tenant_id, vendor_credit_id, bill_id, amount, applied_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, app.ID, app.TenantID, app.VendorCreditID, app.BillID, app.Amount, app.AppliedAt)
	if err != nil {
		return fmt.Errorf("insert vendor credit application: %w", err)
	}
	return nil
}

// InsertVendorAdvance inserts a vendor advance.
func (r *Repository) InsertVendorAdvance(ctx context.Context, q database.Queryer, a *VendorAdvance) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	_, err := q.Exec(ctx, `
		INSERT INTO vendor_advances (id, tenant_id, vendor_id, paid_date, amount, amount_applied,
		                             bank_account_id, journal_entry_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, a.ID, a.TenantID, a.VendorID, a.PaidDate, a.Amount, a.AmountApplied, a.BankAccountID, a.JournalEntryID, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert vendor advance: %w", err)
	}
	return nil
}

// GetVendorAdvanceByID retrieves a vendor advance.
func (r *Repository) GetVendorAdvanceByID(ctx context.Context, q database.Queryer, tenantID int64, advanceID string, forUpdate bool) (*VendorAdvance, error) {
	query := `
		SELECT id, tenant_id, vendor_id, paid_date, amount, amount_applied, bank_account_id, journal_entry_id, created_at
		FROM vendor_advances WHERE id = $1 AND tenant_id = $2`
	if forUpdate {
		query += " FOR UPDATE"
	}
	var a VendorAdvance
	err := q.QueryRow(ctx, query, advanceID, tenantID).Scan(
		&a.ID, &a.TenantID, &a.VendorID, &a.PaidDate, &a.Amount, &a.AmountApplied,
		&a.BankAccountID, &a.JournalEntryID, &a.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, apierror.New(apierror.KindNotFound, "vendor advance not found: %s", advanceID)
	}
	if err != nil {
		return nil, fmt.Errorf("get vendor advance: %w", err)
	}
	return &a, nil
}

// UpdateVendorAdvanceApplied persists the applied aggregate.
func (r *Repository) UpdateVendorAdvanceApplied(ctx context.Context, q database.Queryer, a *VendorAdvance) error {
	_, err := q.Exec(ctx, `
		UPDATE vendor_advances SET amount_applied = $3 WHERE id = $1 AND tenant_id = $2
	`, a.ID, a.TenantID, a.AmountApplied)
	if err != nil {
		return fmt.Errorf("update vendor advance applied: %w", err)
	}
	return nil
}

// InsertVendorAdvanceApplication links a vendor advance to a bill.
func (r *Repository) InsertVendorAdvanceApplication(ctx context.Context, q database.Queryer, app *VendorAdvanceApplication) error {
	if app.ID == "" {
		app.ID = uuid.New().String()
	}
	if app.AppliedAt.IsZero() {
		app.AppliedAt = time.Now()
	}
	_, err := q.Exec(ctx, `
		INSERT INTO vendor_advance_applications (id, tenant_id, advance_id, bill_id, amount, applied_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, app.ID, app.TenantID, app.AdvanceID, app.BillID, app.Amount, app.AppliedAt)
	if err != nil {
		return fmt.Errorf("insert vendor advance application: %w", err)
	}
	return nil
}
