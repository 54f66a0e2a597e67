package integration

import (
	"time"
)

// IntegrationPiti identifies the external POS integration.
const IntegrationPiti = "piti"

// Entity types recorded in the mapping table.
const (
	EntityTypeSale     = "sale"
	EntityTypeRefund   = "refund"
	EntityTypeCustomer = "customer"
	EntityTypeItem     = "item"
)

// EntityMap links a foreign id to an internal one, unique per
// (tenant, integration, entityType, externalId). It is the dedupe
// anchor for imports.
type EntityMap struct {
	ID          string    `json:"id"`
	TenantID    int64     `json:"tenant_id"`
	Integration string    `json:"integration"`
	EntityType  string    `json:"entity_type"`
	ExternalID  string    `json:"external_id"`
	InternalID  string    `json:"internal_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// SaleCustomer is the customer block of an imported sale.
type SaleCustomer struct {
	ExternalID string  `json:"external_id,omitempty"`
	Name       string  `json:"name"`
	Phone      *string `json:"phone,omitempty"`
}

// SaleLine is one imported sale line. Unit prices are pre-tax.
type SaleLine struct {
	ExternalItemID string      `json:"external_item_id,omitempty"`
	SKU            *string     `json:"sku,omitempty"`
	Name           string      `json:"name"`
	Quantity       interface{} `json:"quantity"`
	UnitPrice      interface{} `json:"unit_price"`
	TaxRate        interface{} `json:"tax_rate,omitempty"`
}

// SalePayment is the optional cash receipt of an imported sale.
type SalePayment struct {
	Amount          interface{} `json:"amount"`
	BankAccountCode string      `json:"bank_account_code,omitempty"`
}

// ImportSaleRequest is the external POS sale import body.
type ImportSaleRequest struct {
	SaleID   string       `json:"sale_id"`
	SaleDate string       `json:"sale_date"`
	Customer SaleCustomer `json:"customer"`
	Lines    []SaleLine   `json:"lines"`
	Payment  *SalePayment `json:"payment,omitempty"`
}

// ImportRefundRequest is the external POS refund import body.
type ImportRefundRequest struct {
	RefundID   string       `json:"refund_id"`
	RefundDate string       `json:"refund_date"`
	Customer   SaleCustomer `json:"customer"`
	Lines      []SaleLine   `json:"lines"`
}

// ImportSaleResult is the import outcome; replays return the original.
type ImportSaleResult struct {
	InvoiceID string `json:"invoice_id"`
	Number    string `json:"number"`
	Replayed  bool   `json:"replayed"`
}

// ImportRefundResult mirrors ImportSaleResult for refunds.
type ImportRefundResult struct {
	CreditNoteID string `json:"credit_note_id"`
	Number       string `json:"number"`
	Replayed     bool   `json:"replayed"`
}
