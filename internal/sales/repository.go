package sales

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

// CompanyRefs are the cached posting account ids the AR paths need.
type CompanyRefs struct {
	ARAccountID              string
	TaxPayableAccountID      string
	CustomerAdvanceAccountID string
	BaseCurrency             string
	DefaultLocationID        *string
}

// RepositoryInterface defines the contract for AR data access
type RepositoryInterface interface {
	GetCompanyRefs(ctx context.Context, q database.Queryer, tenantID int64) (*CompanyRefs, error)

	CreateCustomer(ctx context.Context, q database.Queryer, c *Customer) error
	GetCustomerByID(ctx context.Context, q database.Queryer, tenantID int64, customerID string) (*Customer, error)
	GetCustomerByPhone(ctx context.Context, q database.Queryer, tenantID int64, phone string) (*Customer, error)

	NextInvoiceNumber(ctx context.Context, q database.Queryer, tenantID int64) (string, error)
	InsertInvoice(ctx context.Context, q database.Queryer, inv *Invoice) error
	GetInvoiceByID(ctx context.Context, q database.Queryer, tenantID int64, invoiceID string, forUpdate bool) (*Invoice, error)
	UpdateInvoicePosted(ctx context.Context, q database.Queryer, inv *Invoice) error
	UpdateInvoicePaymentState(ctx context.Context, q database.Queryer, inv *Invoice) error

	InsertPayment(ctx context.Context, q database.Queryer, p *Payment) error
	GetPaymentByID(ctx context.Context, q database.Queryer, tenantID int64, paymentID string) (*Payment, error)
	ListPaymentsByInvoice(ctx context.Context, q database.Queryer, tenantID int64, invoiceID string) ([]Payment, error)
	MarkPaymentReversed(ctx context.Context, q database.Queryer, tenantID int64, paymentID, reversalEntryID string) error
	SumPaidForInvoice(ctx context.Context, q database.Queryer, tenantID int64, invoiceID string) (decimal.Decimal, error)

	NextCreditNoteNumber(ctx context.Context, q database.Queryer, tenantID int64) (string, error)
	InsertCreditNote(ctx context.Context, q database.Queryer, cn *CreditNote) error
	GetCreditNoteByID(ctx context.Context, q database.Queryer, tenantID int64, creditNoteID string, forUpdate bool) (*CreditNote, error)
	UpdateCreditNoteApplied(ctx context.Context, q database.Queryer, cn *CreditNote) error
	InsertCreditNoteApplication(ctx context.Context, q database.Queryer, app *CreditNoteApplication) error

	InsertAdvance(ctx context.Context, q database.Queryer, a *CustomerAdvance) error
	GetAdvanceByID(ctx context.Context, q database.Queryer, tenantID int64, advanceID string, forUpdate bool) (*CustomerAdvance, error)
	UpdateAdvanceApplied(ctx context.Context, q database.Queryer, a *CustomerAdvance) error
	InsertAdvanceApplication(ctx context.Context, q database.Queryer, app *CustomerAdvanceApplication) error
}

// Repository provides PostgreSQL-backed AR data access.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new sales repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// GetCompanyRefs loads the cached posting account ids for AR paths.
func (r *Repository) GetCompanyRefs(ctx context.Context, q database.Queryer, tenantID int64) (*CompanyRefs, error) {
	var refs CompanyRefs
	err := q.QueryRow(ctx, `
		SELECT ar_account_id, tax_payable_account_id, customer_advance_account_id, base_currency, default_location_id
		FROM companies WHERE id = $1
	`, tenantID).Scan(&refs.ARAccountID, &refs.TaxPayableAccountID, &refs.CustomerAdvanceAccountID, &refs.BaseCurrency, &refs.DefaultLocationID)
	if err == pgx.ErrNoRows {
		return nil, apierror.New(apierror.KindNotFound, "company not found: %d", tenantID)
	}
	if err != nil {
		return nil, fmt.Errorf("get company refs: %w", err)
	}
	return &refs, nil
}

// CreateCustomer creates a customer.
func (r *Repository) CreateCustomer(ctx context.Context, q database.Queryer, c *Customer) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	_, err := q.Exec(ctx, `
		INSERT INTO customers (id, tenant_id, name, phone, email, currency, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, c.ID, c.TenantID, c.Name, c.Phone, c.Email, c.Currency, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("create customer: %w", err)
	}
	return nil
}

// GetCustomerByID retrieves a customer by id.
func (r *Repository) GetCustomerByID(ctx context.Context, q database.Queryer, tenantID int64, customerID string) (*Customer, error) {
	var c Customer
	err := q.QueryRow(ctx, `
		SELECT id, tenant_id, name, phone, email, currency, created_at
		FROM customers WHERE id = $1 AND tenant_id = $2
	`, customerID, tenantID).Scan(&c.ID, &c.TenantID, &c.Name, &c.Phone, &c.Email, &c.Currency, &c.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, apierror.New(apierror.KindNotFound, "customer not found: %s", customerID)
	}
	if err != nil {
		return nil, fmt.Errorf("get customer: %w", err)
	}
	return &c, nil
}

// GetCustomerByPhone retrieves a customer by phone number.
func (r *Repository) GetCustomerByPhone(ctx context.Context, q database.Queryer, tenantID int64, phone string) (*Customer, error) {
	var c Customer
	err := q.QueryRow(ctx, `
		SELECT id, tenant_id, name, phone, email, currency, created_at
		FROM customers WHERE tenant_id = $1 AND phone = $2
		ORDER BY created_at LIMIT 1
	`, tenantID, phone).Scan(&c.ID, &c.TenantID, &c.Name, &c.Phone, &c.Email, &c.Currency, &c.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, apierror.New(apierror.KindNotFound, "customer not found: phone %s", phone)
	}
	if err != nil {
		return nil, fmt.Errorf("get customer by phone: %w", err)
	}
	return &c, nil
}

func nextNumber(ctx context.Context, q database.Queryer, table, prefix string, tenantID int64) (string, error) {
	var seq int
	err := q.QueryRow(ctx, fmt.Sprintf(`
		SELECT COALESCE(MAX(CAST(SUBSTRING(number FROM %d) AS INTEGER)), 0) + 1
		FROM %s WHERE tenant_id = $1
	`, len(prefix)+1, table), tenantID).Scan(&seq)
	if err != nil {
		return "", fmt.Errorf("next %s number: %w", table, err)
	}
	return fmt.Sprintf("%s%05d", prefix, seq), nil
}

// NextInvoiceNumber generates the next tenant-scoped invoice number.
func (r *Repository) NextInvoiceNumber(ctx context.Context, q database.Queryer, tenantID int64) (string, error) {
	return nextNumber(ctx, q, "invoices", "INV-", tenantID)
}

const invoiceColumns = `
	id, tenant_id, customer_id, number, status, invoice_date, due_date, currency, exchange_rate,
	subtotal, tax_amount, total, amount_paid, journal_entry_id, location_id, created_at`

// InsertInvoice inserts the invoice and its lines.
func (r *Repository) InsertInvoice(ctx context.Context, q database.Queryer, inv *Invoice) error {
	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now()
	}
	_, err := q.Exec(ctx, `
		INSERT INTO invoices (id, tenant_id, customer_id, number, status, invoice_date, due_date, currency,
		                      exchange_rate, subtotal, tax_amount, total, amount_paid, journal_entry_id, location_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`, inv.ID, inv.TenantID, inv.CustomerID, inv.Number, inv.Status, inv.InvoiceDate, inv.DueDate, inv.Currency,
		inv.ExchangeRate, inv.Subtotal, inv.TaxAmount, inv.Total, inv.AmountPaid, inv.JournalEntryID, inv.LocationID, inv.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert invoice: %w", err)
	}
	return r.insertInvoiceLines(ctx, q, inv.ID, inv.Lines)
}

func (r *Repository) insertInvoiceLines(ctx context.Context, q database.Queryer, invoiceID string, lines []InvoiceLine) error {
	for i := range lines {
		line := &lines[i]
		if line.ID == "" {
			line.ID = uuid.New().String()
		}
		line.InvoiceID = invoiceID
		_, err := q.Exec(ctx, `
			INSERT INTO invoice_lines (id, invoice_id, item_id, description, quantity, unit_price,
			                           discount_amount, tax_rate, tax_amount, line_total, income_account_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`, line.ID, line.InvoiceID, line.ItemID, line.Description, line.Quantity, line.UnitPrice,
			line.DiscountAmount, line.TaxRate, line.TaxAmount, line.LineTotal, line.IncomeAccountID)
		if err != nil {
			return fmt.Errorf("insert invoice line: %w", err)
		}
	}
	return nil
}

// GetInvoiceByID retrieves an invoice with its lines, optionally locking
// the header row for update.
func (r *Repository) GetInvoiceByID(ctx context.Context, q database.Queryer, tenantID int64, invoiceID string, forUpdate bool) (*Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1 AND tenant_id = $2`
	if forUpdate {
		query += " FOR UPDATE"
	}
	var inv Invoice
	err := q.QueryRow(ctx, query, invoiceID, tenantID).Scan(
		&inv.ID, &inv.TenantID, &inv.CustomerID, &inv.Number, &inv.Status, &inv.InvoiceDate, &inv.DueDate,
		&inv.Currency, &inv.ExchangeRate, &inv.Subtotal, &inv.TaxAmount, &inv.Total, &inv.AmountPaid,
		&inv.JournalEntryID, &inv.LocationID, &inv.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, apierror.New(apierror.KindNotFound, "invoice not found: %s", invoiceID)
	}
	if err != nil {
		return nil, fmt.Errorf("get invoice: %w", err)
	}

	rows, err := q.Query(ctx, `
		SELECT id, invoice_id, item_id, description, quantity, unit_price, discount_amount,
		       tax_rate, tax_amount, line_total, income_account_id
		FROM invoice_lines WHERE invoice_id = $1 ORDER BY id
	`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("get invoice lines: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var l InvoiceLine
		if err := rows.Scan(&l.ID, &l.InvoiceID, &l.ItemID, &l.Description, &l.Quantity, &l.UnitPrice,
			&l.DiscountAmount, &l.TaxRate, &l.TaxAmount, &l.LineTotal, &l.IncomeAccountID); err != nil {
			return nil, fmt.Errorf("scan invoice line: %w", err)
		}
		inv.Lines = append(inv.Lines, l)
	}
	return &inv, rows.Err()
}

// UpdateInvoicePosted records the posting outcome on the invoice.
func (r *Repository) UpdateInvoicePosted(ctx context.Context, q database.Queryer, inv *Invoice) error {
	_, err := q.Exec(ctx, `
		UPDATE invoices SET status = $3, journal_entry_id = $4
		WHERE id = $1 AND tenant_id = $2
	`, inv.ID, inv.TenantID, inv.Status, inv.JournalEntryID)
	if err != nil {
		return fmt.Errorf("update invoice posted: %w", err)
	}
	return nil
}

// UpdateInvoicePaymentState persists the recomputed payment aggregate
// and derived status.
func (r *Repository) UpdateInvoicePaymentState(ctx context.Context, q database.Queryer, inv *Invoice) error {
	_, err := q.Exec(ctx, `
		UPDATE invoices SET amount_paid = $3, status = $4
		WHERE id = $1 AND tenant_id = $2
	`, inv.ID, inv.TenantID, inv.AmountPaid, inv.Status)
	if err != nil {
		return fmt.Errorf("update invoice payment state: %w", err)
	}
	return nil
}

// InsertPayment inserts a payment row.
func (r *Repository) InsertPayment(ctx context.Context, q database.Queryer, p *Payment) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	_, err := q.Exec(ctx, `
		INSERT INTO payments (id, tenant_id, invoice_id, payment_date, amount, bank_account_id, journal_entry_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, p.ID, p.TenantID, p.InvoiceID, p.PaymentDate, p.Amount, p.BankAccountID, p.JournalEntryID, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

const paymentColumns = `
	id, tenant_id, invoice_id, payment_date, amount, bank_account_id, journal_entry_id,
	reversed_at, reversal_journal_entry_id, created_at`

// GetPaymentByID retrieves a payment by id.
func (r *Repository) GetPaymentByID(ctx context.Context, q database.Queryer, tenantID int64, paymentID string) (*Payment, error) {
	var p Payment
	err := q.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1 AND tenant_id = $2`,
		paymentID, tenantID).Scan(
		&p.ID, &p.TenantID, &p.InvoiceID, &p.PaymentDate, &p.Amount, &p.BankAccountID, &p.JournalEntryID,
		&p.ReversedAt, &p.ReversalJournalEntryID, &p.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, apierror.New(apierror.KindNotFound, "payment not found: %s", paymentID)
	}
	if err != nil {
		return nil, fmt.Errorf("get payment: %w", err)
	}
	return &p, nil
}

// ListPaymentsByInvoice lists all payments on an invoice.
func (r *Repository) ListPaymentsByInvoice(ctx context.Context, q database.Queryer, tenantID int64, invoiceID string) ([]Payment, error) {
	rows, err := q.Query(ctx, `SELECT `+paymentColumns+` FROM payments WHERE tenant_id = $1 AND invoice_id = $2 ORDER BY created_at`,
		tenantID, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()
	var payments []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.TenantID, &p.InvoiceID, &p.PaymentDate, &p.Amount, &p.BankAccountID,
			&p.JournalEntryID, &p.ReversedAt, &p.ReversalJournalEntryID, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// MarkPaymentReversed records the reversal on the payment row.
func (r *Repository) MarkPaymentReversed(ctx context.Context, q database.Queryer, tenantID int64, paymentID, reversalEntryID string) error {
	tag, err := q.Exec(ctx, `
		UPDATE payments SET reversed_at = now(), reversal_journal_entry_id = $3
		WHERE id = $1 AND tenant_id = $2 AND reversed_at IS NULL
	`, paymentID, tenantID, reversalEntryID)
	if err != nil {
		return fmt.Errorf("mark payment reversed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apierror.New(apierror.KindState, "payment %s already reversed", paymentID)
	}
	return nil
}

// SumPaidForInvoice computes the authoritative paid aggregate: non-
// reversed payments plus applied credit notes plus applied advances.
func (r *Repository) SumPaidForInvoice(ctx context.Context, q database.Queryer, tenantID int64, invoiceID string) (decimal.Decimal, error) {
	var payments, credits, advances decimal.Decimal
	err := q.QueryRow(ctx, `
		SELECT
			COALESCE((SELECT SUM(amount) FROM payments
			          WHERE tenant_id = $1 AND invoice_id = $2 AND reversed_at IS NULL), 0),
			COALESCE((SELECT SUM(amount) FROM credit_note_applications
			          WHERE tenant_id = $1 AND invoice_id = $2), 0),
			COALESCE((SELECT SUM(amount) FROM customer_advance_applications
			          WHERE tenant_id = $1 AND invoice_id = $2), 0)
	`, tenantID, invoiceID).Scan(&payments, &credits, &advances)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum paid for invoice: %w", err)
	}
	return payments.Add(credits).Add(advances), nil
}

// NextCreditNoteNumber generates the next tenant-scoped credit note number.
func (r *Repository) NextCreditNoteNumber(ctx context.Context, q database.Queryer, tenantID int64) (string, error) {
	return nextNumber(ctx, q, "credit_notes", "CN-", tenantID)
}

// InsertCreditNote inserts the credit note and its lines.
func (r *Repository) InsertCreditNote(ctx context.Context, q database.Queryer, cn *CreditNote) error {
	if cn.ID == "" {
		cn.ID = uuid.New().String()
	}
	if cn.CreatedAt.IsZero() {
		cn.CreatedAt = time.Now()
	}
	_, err := q.Exec(ctx, `
		INSERT INTO credit_notes (id, tenant_id, customer_id, number, status, note_date, subtotal, tax_amount,
		                          total, amount_applied, journal_entry_id, location_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, cn.ID, cn.TenantID, cn.CustomerID, cn.Number, cn.Status, cn.NoteDate, cn.Subtotal, cn.TaxAmount,
		cn.Total, cn.AmountApplied, cn.JournalEntryID, cn.LocationID, cn.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert credit note: %w", err)
	}
	for i := range cn.Lines {
		line := &cn.Lines[i]
		if line.ID == "" {
			line.ID = uuid.New().String()
		}
		line.InvoiceID = cn.ID
		_, err := q.Exec(ctx, `
			INSERT INTO credit_note_lines (id, credit_note_id, item_id, description, quantity, unit_price,
			                               discount_amount, tax_rate, tax_amount, line_total, income_account_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`, line.ID, cn.ID, line.ItemID, line.Description, line.Quantity, line.UnitPrice,
			line.DiscountAmount, line.TaxRate, line.TaxAmount, line.LineTotal, line.IncomeAccountID)
		if err != nil {
			return fmt.Errorf("insert credit note line: %w", err)
		}
	}
	return nil
}

// GetCreditNoteByID retrieves a credit note with its lines.
func (r *Repository) GetCreditNoteByID(ctx context.Context, q database.Queryer, tenantID int64, creditNoteID string, forUpdate bool) (*CreditNote, error) {
	query := `
		SELECT id, tenant_id, customer_id, number, status, note_date, subtotal, tax_amount,
		       total, amount_applied, journal_entry_id, location_id, created_at
		FROM credit_notes WHERE id = $1 AND tenant_id = $2`
	if forUpdate {
		query += " FOR UPDATE"
	}
	var cn CreditNote
	err := q.QueryRow(ctx, query, creditNoteID, tenantID).Scan(
		&cn.ID, &cn.TenantID, &cn.CustomerID, &cn.Number, &cn.Status, &cn.NoteDate, &cn.Subtotal, &cn.TaxAmount,
		&cn.Total, &cn.AmountApplied, &cn.JournalEntryID, &cn.LocationID, &cn.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, apierror.New(apierror.KindNotFound, "credit note not found: %s", creditNoteID)
	}
	if err != nil {
		return nil, fmt.Errorf("get credit note: %w", err)
	}

	rows, err := q.Query(ctx, `
		SELECT id, credit_note_id, item_id, description, quantity, unit_price, discount_amount,
		       tax_rate, tax_amount, line_total, income_account_id
		FROM credit_note_lines WHERE credit_note_id = $1 ORDER BY id
	`, creditNoteID)
	if err != nil {
		return nil, fmt.Errorf("get credit note lines: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var l InvoiceLine
		if err := rows.Scan(&l.ID, &l.InvoiceID, &l.ItemID, &l.Description, &l.Quantity, &l.UnitPrice,
			&l.DiscountAmount, &l.TaxRate, &l.TaxAmount, &l.LineTotal, &l.IncomeAccountID); err != nil {
			return nil, fmt.Errorf("scan credit note line: %w", err)
		}
		cn.Lines = append(cn.Lines, l)
	}
	return &cn, rows.Err()
}

// UpdateCreditNoteApplied persists the applied aggregate.
func (r *Repository) UpdateCreditNoteApplied(ctx context.Context, q database.Queryer, cn *CreditNote) error {
	_, err := q.Exec(ctx, `
		UPDATE credit_notes SET amount_applied = $3, status = $4
		WHERE id = $1 AND tenant_id = $2
	`, cn.ID, cn.TenantID, cn.AmountApplied, cn.Status)
	if err != nil {
		return fmt.Errorf("update credit note applied: %w", err)
	}
	return nil
}

// InsertCreditNoteApplication links a credit note to an invoice.
func (r *Repository) InsertCreditNoteApplication(ctx context.Context, q database.Queryer, app *CreditNoteApplication) error {
	if app.ID == "" {
		app.ID = uuid.New().String()
	}
	if app.AppliedAt.IsZero() {
		app.AppliedAt = time.Now()
	}
	_, err := q.Exec(ctx, `
		INSERT INTO credit_note_applications (id, tenant_id, credit_note_id, invoice_id, amount, applied_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, app.ID, app.TenantID, app.CreditNoteID, app.InvoiceID, app.Amount, app.AppliedAt)
	if err != nil {
		return fmt.Errorf("insert credit note application: %w", err)
	}
	return nil
}

// InsertAdvance inserts a customer advance.
func (r *Repository) InsertAdvance(ctx context.Context, q database.Queryer, a *CustomerAdvance) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	_, err := q.Exec(ctx, `
		INSERT INTO customer_advances (id, tenant_id, customer_id, received_date, amount, amount_applied,
		                               bank_account_id, journal_entry_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, a.ID, a.TenantID, a.CustomerID, a.ReceivedDate, a.Amount, a.AmountApplied, a.BankAccountID, a.JournalEntryID, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert customer advance: %w", err)
	}
	return nil
}

// GetAdvanceByID retrieves a customer advance.
func (r *Repository) GetAdvanceByID(ctx context.Context, q database.Queryer, tenantID int64, advanceID string, forUpdate bool) (*CustomerAdvance, error) {
	query := `
		SELECT id, tenant_id, customer_id, received_date, amount, amount_applied, bank_account_id, journal_entry_id, created_at
		FROM customer_advances WHERE id = $1 AND tenant_id = $2`
	if forUpdate {
		query += " FOR UPDATE"
	}
	var a CustomerAdvance
	err := q.QueryRow(ctx, query, advanceID, tenantID).Scan(
		&a.ID, &a.TenantID, &a.CustomerID, &a.ReceivedDate, &a.Amount, &a.AmountApplied,
		&a.BankAccountID, &a.JournalEntryID, &a.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, apierror.New(apierror.KindNotFound, "customer advance not found: %s", advanceID)
	}
	if err != nil {
		return nil, fmt.Errorf("get customer advance: %w", err)
	}
	return &a, nil
}

// UpdateAdvanceApplied persists the applied aggregate.
func (r *Repository) UpdateAdvanceApplied(ctx context.Context, q database.Queryer, a *CustomerAdvance) error {
	_, err := q.Exec(ctx, `
		UPDATE customer_advances SET amount_applied = $3 WHERE id = $1 AND tenant_id = $2
	`, a.ID, a.TenantID, a.AmountApplied)
	if err != nil {
		return fmt.Errorf("update customer advance applied: %w", err)
	}
	return nil
}

// InsertAdvanceApplication links an advance to an invoice.
func (r *Repository) InsertAdvanceApplication(ctx context.Context, q database.Queryer, app *CustomerAdvanceApplication) error {
	if app.ID == "" {
		app.ID = uuid.New().String()
	}
	if app.AppliedAt.IsZero() {
		app.AppliedAt = time.Now()
	}
	_, err := q.Exec(ctx, `
		INSERT INTO customer_advance_applications (id, tenant_id, advance_id, invoice_id, amount, applied_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, app.ID, app.TenantID, app.AdvanceID, app.InvoiceID, app.Amount, app.AppliedAt)
	if err != nil {
		return fmt.Errorf("insert customer advance application: %w", err)
	}
	return nil
}
