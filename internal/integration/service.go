package integration

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/zayar/simplecashflow/internal/apierror"
	"github.com/zayar/simplecashflow/internal/database"
	"github.com/zayar/simplecashflow/internal/inventory"
	"github.com/zayar/simplecashflow/internal/ledger"
	"github.com/zayar/simplecashflow/internal/money"
	"github.com/zayar/simplecashflow/internal/sales"
)

// Service imports external POS sales and refunds through the native
// invoicing path. The foreign POS is the source of truth for stock, so
// items provisioned here never track inventory.
type Service struct {
	db        *pgxpool.Pool
	repo      RepositoryInterface
	sales     *sales.Service
	inventory *inventory.Service
	ledger    *ledger.Service
}

// NewService creates a new integration service
func NewService(db *pgxpool.Pool, salesService *sales.Service, inventoryService *inventory.Service, ledgerService *ledger.Service) *Service {
	return &Service{
		db:        db,
		repo:      NewRepository(db),
		sales:     salesService,
		inventory: inventoryService,
		ledger:    ledgerService,
	}
}

// ImportSale idempotently upserts a posted invoice (and optional cash
// receipt) from a foreign sale id.
func (s *Service) ImportSale(ctx context.Context, tenantID int64, req *ImportSaleRequest) (*ImportSaleResult, error) {
	if req.SaleID == "" {
		return nil, apierror.New(apierror.KindValidation, "sale_id is required")
	}
	if len(req.Lines) == 0 {
		return nil, apierror.New(apierror.KindValidation, "at least one line is required")
	}

	// Replay by foreign id: return the previously imported invoice.
	if existing, err := s.repo.Lookup(ctx, database.QueryerFromContext(ctx, s.db), tenantID, IntegrationPiti, EntityTypeSale, req.SaleID); err != nil {
		return nil, err
	} else if existing != nil {
		inv, err := s.sales.GetInvoice(ctx, tenantID, existing.InternalID)
		if err != nil {
			return nil, err
		}
		return &ImportSaleResult{InvoiceID: inv.ID, Number: inv.Number, Replayed: true}, nil
	}

	customerID, err := s.resolveCustomer(ctx, tenantID, &req.Customer)
	if err != nil {
		return nil, err
	}
	lines, err := s.resolveLines(ctx, tenantID, req.Lines)
	if err != nil {
		return nil, err
	}

	invoice, err := s.sales.CreateInvoice(ctx, tenantID, &sales.CreateInvoiceRequest{
		CustomerID:  customerID,
		InvoiceDate: req.SaleDate,
		Lines:       lines,
	})
	if err != nil {
		return nil, err
	}
	invoice, err = s.sales.PostInvoice(ctx, tenantID, invoice.ID)
	if err != nil {
		return nil, err
	}

	if req.Payment != nil {
		bankAccountID, err := s.resolveBankAccount(ctx, tenantID, req.Payment.BankAccountCode)
		if err != nil {
			return nil, err
		}
		if _, err := s.sales.RecordPayment(ctx, tenantID, invoice.ID, &sales.RecordPaymentRequest{
			PaymentDate:   req.SaleDate,
			Amount:        req.Payment.Amount,
			BankAccountID: bankAccountID,
		}); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Record(ctx, database.QueryerFromContext(ctx, s.db), &EntityMap{
		TenantID:    tenantID,
		Integration: IntegrationPiti,
		EntityType:  EntityTypeSale,
		ExternalID:  req.SaleID,
		InternalID:  invoice.ID,
	}); err != nil {
		return nil, err
	}

	log.Info().
		Int64("tenant_id", tenantID).
		Str("sale_id", req.SaleID).
		Str("invoice_id", invoice.ID).
		Msg("external sale imported")
	return &ImportSaleResult{InvoiceID: invoice.ID, Number: invoice.Number}, nil
}

// ImportRefund idempotently upserts a posted credit note from a foreign
// refund id.
func (s *Service) ImportRefund(ctx context.Context, tenantID int64, req *ImportRefundRequest) (*ImportRefundResult, error) {
	if req.RefundID == "" {
		return nil, apierror.New(apierror.KindValidation, "refund_id is required")
	}
	if len(req.Lines) == 0 {
		return nil, apierror.New(apierror.KindValidation, "at least one line is required")
	}

	if existing, err := s.repo.Lookup(ctx, database.QueryerFromContext(ctx, s.db), tenantID, IntegrationPiti, EntityTypeRefund, req.RefundID); err != nil {
		return nil, err
	} else if existing != nil {
		cn, err := s.sales.GetCreditNote(ctx, tenantID, existing.InternalID)
		if err != nil {
			return nil, err
		}
		return &ImportRefundResult{CreditNoteID: cn.ID, Number: cn.Number, Replayed: true}, nil
	}

	customerID, err := s.resolveCustomer(ctx, tenantID, &req.Customer)
	if err != nil {
		return nil, err
	}
	lines, err := s.resolveLines(ctx, tenantID, req.Lines)
	if err != nil {
		return nil, err
	}

	note, err := s.sales.IssueCreditNote(ctx, tenantID, &sales.CreateCreditNoteRequest{
		CustomerID: customerID,
		NoteDate:   req.RefundDate,
		Lines:      lines,
	})
	if err != nil {
		return nil, err
	}

	if err := s.repo.Record(ctx, database.QueryerFromContext(ctx, s.db), &EntityMap{
		TenantID:    tenantID,
		Integration: IntegrationPiti,
		EntityType:  EntityTypeRefund,
		ExternalID:  req.RefundID,
		InternalID:  note.ID,
	}); err != nil {
		return nil, err
	}

	log.Info().
		Int64("tenant_id", tenantID).
		Str("refund_id", req.RefundID).
		Str("credit_note_id", note.ID).
		Msg("external refund imported")
	return &ImportRefundResult{CreditNoteID: note.ID, Number: note.Number}, nil
}

// resolveCustomer maps the foreign customer: by external id, then by
// phone, else creates one, recording the mapping.
func (s *Service) resolveCustomer(ctx context.Context, tenantID int64, c *SaleCustomer) (string, error) {
	if c.Name == "" {
		return "", apierror.New(apierror.KindValidation, "customer name is required")
	}

	if c.ExternalID != "" {
		if m, err := s.repo.Lookup(ctx, database.QueryerFromContext(ctx, s.db), tenantID, IntegrationPiti, EntityTypeCustomer, c.ExternalID); err != nil {
			return "", err
		} else if m != nil {
			return m.InternalID, nil
		}
	}

	if c.Phone != nil && *c.Phone != "" {
		existing, err := s.sales.Repo().GetCustomerByPhone(ctx, database.QueryerFromContext(ctx, s.db), tenantID, *c.Phone)
		if err == nil {
			s.recordMapping(ctx, tenantID, EntityTypeCustomer, c.ExternalID, existing.ID)
			return existing.ID, nil
		}
		if !apierror.IsKind(err, apierror.KindNotFound) {
			return "", err
		}
	}

	created, err := s.sales.CreateCustomer(ctx, tenantID, &sales.CreateCustomerRequest{Name: c.Name, Phone: c.Phone})
	if err != nil {
		return "", err
	}
	s.recordMapping(ctx, tenantID, EntityTypeCustomer, c.ExternalID, created.ID)
	return created.ID, nil
}

// resolveLines maps foreign items to internal ones: by external id,
// then by SKU, else creates them without inventory tracking.
func (s *Service) resolveLines(ctx context.Context, tenantID int64, in []SaleLine) ([]sales.LineInput, error) {
	lines := make([]sales.LineInput, 0, len(in))
	for _, l := range in {
		itemID, err := s.resolveItem(ctx, tenantID, &l)
		if err != nil {
			return nil, err
		}
		lines = append(lines, sales.LineInput{
			ItemID:    itemID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			TaxRate:   l.TaxRate,
		})
	}
	return lines, nil
}

func (s *Service) resolveItem(ctx context.Context, tenantID int64, l *SaleLine) (string, error) {
	if l.Name == "" {
		return "", apierror.New(apierror.KindValidation, "line item name is required")
	}

	if l.ExternalItemID != "" {
		if m, err := s.repo.Lookup(ctx, database.QueryerFromContext(ctx, s.db), tenantID, IntegrationPiti, EntityTypeItem, l.ExternalItemID); err != nil {
			return "", err
		} else if m != nil {
			return m.InternalID, nil
		}
	}

	if l.SKU != nil && *l.SKU != "" {
		existing, err := s.inventory.Repo().GetItemBySKU(ctx, database.QueryerFromContext(ctx, s.db), tenantID, *l.SKU)
		if err == nil {
			s.recordMapping(ctx, tenantID, EntityTypeItem, l.ExternalItemID, existing.ID)
			return existing.ID, nil
		}
		if !apierror.IsKind(err, apierror.KindNotFound) {
			return "", err
		}
	}

	price, err := money.Parse(l.UnitPrice)
	if err != nil {
		return "", apierror.Wrap(apierror.KindValidation, err, "invalid unit price")
	}

	// The foreign POS owns stock; imported items never track inventory.
	created, err := s.inventory.CreateItem(ctx, tenantID, &inventory.CreateItemRequest{
		Name:           l.Name,
		SKU:            l.SKU,
		Type:           inventory.ItemTypeGoods,
		SellingPrice:   price,
		TrackInventory: false,
	})
	if err != nil {
		return "", err
	}
	s.recordMapping(ctx, tenantID, EntityTypeItem, l.ExternalItemID, created.ID)
	return created.ID, nil
}

func (s *Service) recordMapping(ctx context.Context, tenantID int64, entityType, externalID, internalID string) {
	if externalID == "" {
		return
	}
	if err := s.repo.Record(ctx, database.QueryerFromContext(ctx, s.db), &EntityMap{
		TenantID:    tenantID,
		Integration: IntegrationPiti,
		EntityType:  entityType,
		ExternalID:  externalID,
		InternalID:  internalID,
	}); err != nil {
		log.Warn().Err(err).Int64("tenant_id", tenantID).Str("entity_type", entityType).Msg("record entity mapping failed")
	}
}

// resolveBankAccount maps an account code (default Cash 1000) to its id.
func (s *Service) resolveBankAccount(ctx context.Context, tenantID int64, code string) (string, error) {
	if code == "" {
		code = "1000"
	}
	account, err := s.ledger.Repo().GetAccountByCode(ctx, s.db, tenantID, code)
	if err != nil {
		return "", err
	}
	return account.ID, nil
}
