package inventory

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zayar/simplecashflow/internal/apierror"
	"github.com/zayar/simplecashflow/internal/database"
	"github.com/zayar/simplecashflow/internal/ledger"
	"github.com/zayar/simplecashflow/internal/money"
)

// Service provides inventory operations
type Service struct {
	db     *pgxpool.Pool
	repo   Repository
	ledger *ledger.Service
}

// NewService creates a new inventory service with a PostgreSQL repository
func NewService(db *pgxpool.Pool, ledgerService *ledger.Service) *Service {
	return &Service{
		db:     db,
		repo:   NewPostgresRepository(db),
		ledger: ledgerService,
	}
}

// NewServiceWithRepository creates a new inventory service with a custom repository
func NewServiceWithRepository(repo Repository, ledgerService *ledger.Service) *Service {
	return &Service{repo: repo, ledger: ledgerService}
}

// Repo exposes the repository for composing services.
func (s *Service) Repo() Repository { return s.repo }

// CreateItem creates a new item
func (s *Service) CreateItem(ctx context.Context, tenantID int64, req *CreateItemRequest) (*Item, error) {
	if req.Name == "" {
		return nil, apierror.New(apierror.KindValidation, "item name is required")
	}
	itemType := req.Type
	if itemType == "" {
		itemType = ItemTypeGoods
	}
	if itemType != ItemTypeGoods && itemType != ItemTypeService {
		return nil, apierror.New(apierror.KindValidation, "invalid item type: %s", itemType)
	}
	if itemType == ItemTypeService && req.TrackInventory {
		return nil, apierror.New(apierror.KindValidation, "services cannot track inventory")
	}

	sellingPrice, err := money.Parse(req.SellingPrice)
	if err != nil {
		return nil, apierror.Wrap(apierror.KindValidation, err, "invalid selling price")
	}
	costPrice, err := money.Parse(req.CostPrice)
	if err != nil {
		return nil, apierror.Wrap(apierror.KindValidation, err, "invalid cost price")
	}

	incomeAccountID := req.IncomeAccountID
	if incomeAccountID == "" {
		refs, err := s.salesIncomeAccount(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		incomeAccountID = refs
	}

	item := &Item{
		TenantID:          tenantID,
		Name:              req.Name,
		SKU:               req.SKU,
		Type:              itemType,
		SellingPrice:      money.RoundMoney(sellingPrice),
		CostPrice:         money.RoundMoney(costPrice),
		TrackInventory:    req.TrackInventory,
		IncomeAccountID:   incomeAccountID,
		ExpenseAccountID:  req.ExpenseAccountID,
		DefaultLocationID: req.DefaultLocationID,
		ValuationMethod:   ValuationWAC,
		IsActive:          true,
		CreatedAt:         time.Now(),
	}
	if err := s.repo.CreateItem(ctx, database.QueryerFromContext(ctx, s.db), item); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *Service) salesIncomeAccount(ctx context.Context, tenantID int64) (string, error) {
	account, err := s.ledger.Repo().GetAccountByCode(ctx, s.db, tenantID, "4000")
	if err != nil {
		return "", err
	}
	return account.ID, nil
}

// GetItem retrieves an item by ID
func (s *Service) GetItem(ctx context.Context, tenantID int64, itemID string) (*Item, error) {
	return s.repo.GetItemByID(ctx, s.db, tenantID, itemID)
}

// ListItems retrieves all items for a tenant
func (s *Service) ListItems(ctx context.Context, tenantID int64) ([]Item, error) {
	return s.repo.ListItems(ctx, s.db, tenantID)
}

// GetStockBalance reads the snapshot for (location, item).
func (s *Service) GetStockBalance(ctx context.Context, tenantID int64, locationID, itemID string) (*StockBalance, error) {
	return s.repo.GetBalance(ctx, s.db, tenantID, locationID, itemID)
}

// ResolveLocation applies the document → item default → tenant default
// chain. Inventory-tracked items must resolve somewhere.
func (s *Service) ResolveLocation(ctx context.Context, q database.Queryer, tenantID int64, docLocationID *string, item *Item) (*string, error) {
	if docLocationID != nil && *docLocationID != "" {
		if _, err := s.repo.GetLocationByID(ctx, q, tenantID, *docLocationID); err != nil {
			return nil, err
		}
		return docLocationID, nil
	}
	if item.DefaultLocationID != nil && *item.DefaultLocationID != "" {
		return item.DefaultLocationID, nil
	}
	refs, err := s.repo.GetCompanyRefs(ctx, q, tenantID)
	if err != nil {
		return nil, err
	}
	if refs.DefaultLocationID != nil && *refs.DefaultLocationID != "" {
		return refs.DefaultLocationID, nil
	}
	if item.TrackInventory {
		return nil, apierror.New(apierror.KindValidation, "no location resolvable for inventory-tracked item %s", item.ID)
	}
	return nil, nil
}

// MoveResult reports the applied costs plus whether the insert was
// backdated and a forward recalc is required.
type MoveResult struct {
	Move        *StockMove
	Balance     StockBalance
	NeedsRecalc bool
	RecalcFrom  time.Time
}

// ApplyMove inserts a stock move and folds it into the balance snapshot
// under the balance row lock, all within the caller's transaction.
// Non-void OUT moves are valued at the running average, replacing any
// preset cost; void-like moves keep the cost they carry.
func (s *Service) ApplyMove(ctx context.Context, tx pgx.Tx, m *StockMove) (*MoveResult, error) {
	if !m.Quantity.IsPositive() {
		return nil, apierror.New(apierror.KindValidation, "move quantity must be positive")
	}
	m.Date = money.DateOnly(m.Date)

	latest, err := s.repo.LatestMoveDate(ctx, tx, m.TenantID, m.LocationID, m.ItemID)
	if err != nil {
		return nil, err
	}

	state, err := s.repo.LockBalance(ctx, tx, m.TenantID, m.LocationID, m.ItemID)
	if err != nil {
		return nil, err
	}

	switch {
	case IsVoidLike(m.ReferenceType):
		// Void-like moves carry their historical cost.
		state = state.ApplyStored(m)
	case m.Direction == DirectionIn:
		m.TotalCostApplied = money.RoundMoney(m.Quantity.Mul(m.UnitCostApplied))
		state = state.ApplyIn(m.Quantity, m.TotalCostApplied)
	case m.Direction == DirectionOut:
		if state.Qty.LessThan(m.Quantity) {
			return nil, apierror.New(apierror.KindState,
				"insufficient stock for item %s: on hand %s, requested %s", m.ItemID, state.Qty, m.Quantity)
		}
		unitCost, totalCost, next := state.ApplyOut(m.Quantity)
		m.UnitCostApplied = unitCost
		m.TotalCostApplied = totalCost
		state = next
	default:
		return nil, apierror.New(apierror.KindValidation, "invalid direction %q", m.Direction)
	}

	if err := s.repo.InsertMove(ctx, tx, m); err != nil {
		return nil, err
	}

	balance := state.Snapshot(m.TenantID, m.LocationID, m.ItemID)
	if err := s.repo.UpsertBalance(ctx, tx, &balance); err != nil {
		return nil, err
	}

	result := &MoveResult{Move: m, Balance: balance}
	if latest != nil && !m.Date.After(money.DateOnly(*latest)) {
		result.NeedsRecalc = true
		result.RecalcFrom = m.Date
	}
	return result, nil
}

// Adjust performs a direct stock adjustment: the move, the snapshot and
// the offsetting journal entry (inventory vs cost of goods sold), plus a
// forward recalc when the adjustment is backdated.
func (s *Service) Adjust(ctx context.Context, tenantID int64, req *AdjustStockRequest) (*MoveResult, error) {
	if req.Direction != DirectionIn && req.Direction != DirectionOut {
		return nil, apierror.New(apierror.KindValidation, "direction must be IN or OUT")
	}
	qty, err := money.Parse(req.Quantity)
	if err != nil || !qty.IsPositive() {
		return nil, apierror.New(apierror.KindValidation, "quantity must be a positive number")
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, apierror.New(apierror.KindValidation, "invalid date %q, want YYYY-MM-DD", req.Date)
	}

	var result *MoveResult
	err = database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		item, err := s.repo.GetItemByID(ctx, tx, tenantID, req.ItemID)
		if err != nil {
			return err
		}
		if !item.TrackInventory {
			return apierror.New(apierror.KindState, "item %s does not track inventory", item.ID)
		}
		locationID, err := s.ResolveLocation(ctx, tx, tenantID, req.LocationID, item)
		if err != nil {
			return err
		}

		refs, err := s.repo.GetCompanyRefs(ctx, tx, tenantID)
		if err != nil {
			return err
		}

		move := &StockMove{
			TenantID:      tenantID,
			Date:          date,
			LocationID:    *locationID,
			ItemID:        item.ID,
			Direction:     req.Direction,
			Quantity:      qty,
			ReferenceType: RefAdjustment,
			ReferenceID:   item.ID,
		}
		if req.Direction == DirectionIn {
			unitCost, err := money.Parse(req.UnitCost)
			if err != nil {
				return apierror.Wrap(apierror.KindValidation, err, "invalid unit cost")
			}
			if !unitCost.IsPositive() {
				unitCost = item.CostPrice
			}
			move.UnitCostApplied = unitCost
		}

		result, err = s.ApplyMove(ctx, tx, move)
		if err != nil {
			return err
		}

		cost := result.Move.TotalCostApplied
		if cost.IsZero() {
			return nil
		}
		lines := []ledger.LineInput{
			{AccountID: refs.InventoryAccountID, Debit: cost},
			{AccountID: refs.CogsAccountID, Credit: cost},
		}
		if req.Direction == DirectionOut {
			lines = []ledger.LineInput{
				{AccountID: refs.CogsAccountID, Debit: cost},
				{AccountID: refs.InventoryAccountID, Credit: cost},
			}
		}
		entry, err := s.ledger.PostJournalEntry(ctx, tx, &ledger.PostRequest{
			TenantID:    tenantID,
			Date:        date,
			Description: "Inventory adjustment: " + item.Name,
			LocationID:  locationID,
			Lines:       lines,
		})
		if err != nil {
			return err
		}
		result.Move.JournalEntryID = &entry.ID
		if _, err := tx.Exec(ctx, `UPDATE stock_moves SET journal_entry_id = $3 WHERE id = $1 AND tenant_id = $2`,
			result.Move.ID, tenantID, entry.ID); err != nil {
			return apierror.Wrap(apierror.KindResource, err, "link adjustment entry")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.NeedsRecalc {
		if err := s.RunRecalcForward(ctx, tenantID, result.RecalcFrom); err != nil {
			return nil, err
		}
	}
	return result, nil
}
