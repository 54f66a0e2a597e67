package inventory

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

// CompanyRefs are the cached posting account ids the recalc and the
// adjustment path need from the company row.
type CompanyRefs struct {
	InventoryAccountID string
	CogsAccountID      string
	DefaultLocationID  *string
}

// Repository defines the contract for inventory data access
type Repository interface {
	CreateItem(ctx context.Context, q database.Queryer, item *Item) error
	GetItemByID(ctx context.Context, q database.Queryer, tenantID int64, itemID string) (*Item, error)
	GetItemBySKU(ctx context.Context, q database.Queryer, tenantID int64, sku string) (*Item, error)
	ListItems(ctx context.Context, q database.Queryer, tenantID int64) ([]Item, error)
	CreateLocation(ctx context.Context, q database.Queryer, tenantID int64, name string, isDefault bool) (string, error)
	GetLocationByID(ctx context.Context, q database.Queryer, tenantID int64, locationID string) (*Location, error)
	InsertMove(ctx context.Context, q database.Queryer, m *StockMove) error
	LatestMoveDate(ctx context.Context, q database.Queryer, tenantID int64, locationID, itemID string) (*time.Time, error)
	BaselineBefore(ctx context.Context, q database.Queryer, tenantID int64, locationID, itemID string, before time.Time) (BalanceState, error)
	MovesOnOrAfter(ctx context.Context, q database.Queryer, tenantID int64, locationID, itemID string, from time.Time) ([]*StockMove, error)
	MovesByReference(ctx context.Context, q database.Queryer, tenantID int64, referenceType, referenceID string) ([]*StockMove, error)
	AffectedPairs(ctx context.Context, q database.Queryer, tenantID int64, from time.Time) ([][2]string, error)
	UpdateMoveCosts(ctx context.Context, q database.Queryer, tenantID int64, moveID string, unitCost, totalCost decimal.Decimal) error
	LockBalance(ctx context.Context, q database.Queryer, tenantID int64, locationID, itemID string) (BalanceState, error)
	UpsertBalance(ctx context.Context, q database.Queryer, b *StockBalance) error
	GetBalance(ctx context.Context, q database.Queryer, tenantID int64, locationID, itemID string) (*StockBalance, error)
	GetAnchor(ctx context.Context, q database.Queryer, tenantID int64, sourceEntryID string) (*ValuationAnchor, error)
	UpsertAnchor(ctx context.Context, q database.Queryer, a *ValuationAnchor) error
	GetCompanyRefs(ctx context.Context, q database.Queryer, tenantID int64) (*CompanyRefs, error)
	SourceEntryDate(ctx context.Context, q database.Queryer, tenantID int64, entryID string) (time.Time, error)
}

// PostgresRepository provides PostgreSQL-backed inventory data access.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new inventory repository
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const itemColumns = `
	id, tenant_id, name, sku, type, selling_price, cost_price, track_inventory,
	income_account_id, expense_account_id, default_location_id, valuation_method, is_active, created_at`

// CreateItem creates a new item
func (r *PostgresRepository) CreateItem(ctx context.Context, q database.Queryer, item *Item) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}
	_, err := q.Exec(ctx, `
		INSERT INTO items (id, tenant_id, name, sku, type, selling_price, cost_price, track_inventory,
		                   income_account_id, expense_account_id, default_location_id, valuation_method, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, item.ID, item.TenantID, item.Name, item.SKU, item.Type, item.SellingPrice, item.CostPrice,
		item.TrackInventory, item.IncomeAccountID, item.ExpenseAccountID, item.DefaultLocationID,
		item.ValuationMethod, item.IsActive, item.CreatedAt)
	if err != nil {
		return fmt.Errorf("create item: %w", err)
	}
	return nil
}

func scanItem(row pgx.Row, i *Item) error {
	return row.Scan(
		&i.ID, &i.TenantID, &i.Name, &i.SKU, &i.Type, &i.SellingPrice, &i.CostPrice, &i.TrackInventory,
		&i.IncomeAccountID, &i.ExpenseAccountID, &i.DefaultLocationID, &i.ValuationMethod, &i.IsActive, &i.CreatedAt,
	)
}

// GetItemByID retrieves an item by ID
func (r *PostgresRepository) GetItemByID(ctx context.Context, q database.Queryer, tenantID int64, itemID string) (*Item, error) {
	var i Item
	err := scanItem(q.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE id = $1 AND tenant_id = $2`, itemID, tenantID), &i)
	if err == pgx.ErrNoRows {
		return nil, apierror.New(apierror.KindNotFound, "item not found: %s", itemID)
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return &i, nil
}

// GetItemBySKU retrieves an item by SKU.
func (r *PostgresRepository) GetItemBySKU(ctx context.Context, q database.Queryer, tenantID int64, sku string) (*Item, error) {
	var i Item
	err := scanItem(q.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE tenant_id = $1 AND sku = $2`, tenantID, sku), &i)
	if err == pgx.ErrNoRows {
		return nil, apierror.New(apierror.KindNotFound, "item not found: sku %s", sku)
	}
	if err != nil {
		return nil, fmt.Errorf("get item by sku: %w", err)
	}
	return &i, nil
}

// ListItems retrieves all items for a tenant
func (r *PostgresRepository) ListItems(ctx context.Context, q database.Queryer, tenantID int64) ([]Item, error) {
	rows, err := q.Query(ctx, `SELECT `+itemColumns+` FROM items WHERE tenant_id = $1 ORDER BY name`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var i Item
		if err := scanItem(rows, &i); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

// CreateLocation creates a stock location and returns its id.
func (r *PostgresRepository) CreateLocation(ctx context.Context, q database.Queryer, tenantID int64, name string, isDefault bool) (string, error) {
	id := uuid.New().String()
	_, err := q.Exec(ctx, `
		INSERT INTO locations (id, tenant_id, name, is_default, created_at)
		VALUES ($1, $2, $3, $4, now())
	`, id, tenantID, name, isDefault)
	if err != nil {
		return "", fmt.Errorf("create location: %w", err)
	}
	return id, nil
}

// GetLocationByID retrieves a location by ID
func (r *PostgresRepository) GetLocationByID(ctx context.Context, q database.Queryer, tenantID int64, locationID string) (*Location, error) {
	var l Location
	err := q.QueryRow(ctx, `
		SELECT id, tenant_id, name, is_default, created_at FROM locations WHERE id = $1 AND tenant_id = $2
	`, locationID, tenantID).Scan(&l.ID, &l.TenantID, &l.Name, &l.IsDefault, &l.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, apierror.New(apierror.KindNotFound, "location not found: %s", locationID)
	}
	if err != nil {
		return nil, fmt.Errorf("get location: %w", err)
	}
	return &l, nil
}

// InsertMove appends a stock move row.
func (r *PostgresRepository) InsertMove(ctx context.Context, q database.Queryer, m *StockMove) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	_, err := q.Exec(ctx, `
		INSERT INTO stock_moves (id, tenant_id, date, location_id, item_id, direction, quantity,
		                         unit_cost_applied, total_cost_applied, reference_type, reference_id,
		                         journal_entry_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, m.ID, m.TenantID, m.Date, m.LocationID, m.ItemID, m.Direction, m.Quantity,
		m.UnitCostApplied, m.TotalCostApplied, m.ReferenceType, m.ReferenceID, m.JournalEntryID, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert stock move: %w", err)
	}
	return nil
}

// LatestMoveDate returns the newest move date at (location, item), nil
// when no moves exist.
func (r *PostgresRepository) LatestMoveDate(ctx context.Context, q database.Queryer, tenantID int64, locationID, itemID string) (*time.Time, error) {
	var latest *time.Time
	err := q.QueryRow(ctx, `
		SELECT MAX(date) FROM stock_moves WHERE tenant_id = $1 AND location_id = $2 AND item_id = $3
	`, tenantID, locationID, itemID).Scan(&latest)
	if err != nil {
		return nil, fmt.Errorf("latest move date: %w", err)
	}
	return latest, nil
}

// BaselineBefore sums stored quantities and costs strictly before a date.
func (r *PostgresRepository) BaselineBefore(ctx context.Context, q database.Queryer, tenantID int64, locationID, itemID string, before time.Time) (BalanceState, error) {
	var qty, value decimal.Decimal
	err := q.QueryRow(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN direction = 'IN' THEN quantity ELSE -quantity END), 0),
			COALESCE(SUM(CASE WHEN direction = 'IN' THEN total_cost_applied ELSE -total_cost_applied END), 0)
		FROM stock_moves
		WHERE tenant_id = $1 AND location_id = $2 AND item_id = $3 AND date < $4
	`, tenantID, locationID, itemID, before).Scan(&qty, &value)
	if err != nil {
		return BalanceState{}, fmt.Errorf("baseline before: %w", err)
	}
	if !qty.IsPositive() {
		value = decimal.Zero
	}
	return BalanceState{Qty: qty, Value: value}, nil
}

// MovesOnOrAfter loads moves at (location, item) from a date in replay
// order (date ASC, id ASC).
func (r *PostgresRepository) MovesOnOrAfter(ctx context.Context, q database.Queryer, tenantID int64, locationID, itemID string, from time.Time) ([]*StockMove, error) {
	rows, err := q.Query(ctx, `
		SELECT id, tenant_id, date, location_id, item_id, direction, quantity,
		       unit_cost_applied, total_cost_applied, reference_type, reference_id, journal_entry_id, created_at
		FROM stock_moves
		WHERE tenant_id = $1 AND location_id = $2 AND item_id = $3 AND date >= $4
		ORDER BY date ASC, id ASC
	`, tenantID, locationID, itemID, from)
	if err != nil {
		return nil, fmt.Errorf("moves on or after: %w", err)
	}
	defer rows.Close()

	var moves []*StockMove
	for rows.Next() {
		var m StockMove
		if err := rows.Scan(&m.ID, &m.TenantID, &m.Date, &m.LocationID, &m.ItemID, &m.Direction, &m.Quantity,
			&m.UnitCostApplied, &m.TotalCostApplied, &m.ReferenceType, &m.ReferenceID, &m.JournalEntryID, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan stock move: %w", err)
		}
		moves = append(moves, &m)
	}
	return moves, rows.Err()
}

// MovesByReference loads moves created by a specific document.
func (r *PostgresRepository) MovesByReference(ctx context.Context, q database.Queryer, tenantID int64, referenceType, referenceID string) ([]*StockMove, error) {
	rows, err := q.Query(ctx, `
		SELECT id, tenant_id, date, location_id, item_id, direction, quantity,
		       unit_cost_applied, total_cost_applied, reference_type, reference_id, journal_entry_id, created_at
		FROM stock_moves
		WHERE tenant_id = $1 AND reference_type = $2 AND reference_id = $3
		ORDER BY date ASC, id ASC
	`, tenantID, referenceType, referenceID)
	if err != nil {
		return nil, fmt.Errorf("moves by reference: %w", err)
	}
	defer rows.Close()

	var moves []*StockMove
	for rows.Next() {
		var m StockMove
		if err := rows.Scan(&m.ID, &m.TenantID, &m.Date, &m.LocationID, &m.ItemID, &m.Direction, &m.Quantity,
			&m.UnitCostApplied, &m.TotalCostApplied, &m.ReferenceType, &m.ReferenceID, &m.JournalEntryID, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan stock move: %w", err)
		}
		moves = append(moves, &m)
	}
	return moves, rows.Err()
}

// AffectedPairs lists distinct (locationID, itemID) pairs with moves on
// or after the date.
func (r *PostgresRepository) AffectedPairs(ctx context.Context, q database.Queryer, tenantID int64, from time.Time) ([][2]string, error) {
	rows, err := q.Query(ctx, `
		SELECT DISTINCT location_id, item_id FROM stock_moves WHERE tenant_id = $1 AND date >= $2
	`, tenantID, from)
	if err != nil {
		return nil, fmt.Errorf("affected pairs: %w", err)
	}
	defer rows.Close()

	var pairs [][2]string
	for rows.Next() {
		var p [2]string
		if err := rows.Scan(&p[0], &p[1]); err != nil {
			return nil, fmt.Errorf("scan affected pair: %w", err)
		}
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}

// UpdateMoveCosts rewrites a revalued OUT move's stored costs.
func (r *PostgresRepository) UpdateMoveCosts(ctx context.Context, q database.Queryer, tenantID int64, moveID string, unitCost, totalCost decimal.Decimal) error {
	_, err := q.Exec(ctx, `
		UPDATE stock_moves SET unit_cost_applied = $3, total_cost_applied = $4
		WHERE id = $1 AND tenant_id = $2
	`, moveID, tenantID, unitCost, totalCost)
	if err != nil {
		return fmt.Errorf("update move costs: %w", err)
	}
	return nil
}

// LockBalance acquires the row lock on the (location, item) balance so
// concurrent moves serialise, returning the current state. A missing row
// is a zero state; the lock is then the insert's unique constraint.
func (r *PostgresRepository) LockBalance(ctx context.Context, q database.Queryer, tenantID int64, locationID, itemID string) (BalanceState, error) {
	var qty, value decimal.Decimal
	err := q.QueryRow(ctx, `
		SELECT qty_on_hand, inventory_value FROM stock_balances
		WHERE tenant_id = $1 AND location_id = $2 AND item_id = $3
		FOR UPDATE
	`, tenantID, locationID, itemID).Scan(&qty, &value)
	if err == pgx.ErrNoRows {
		return BalanceState{Qty: decimal.Zero, Value: decimal.Zero}, nil
	}
	if err != nil {
		return BalanceState{}, fmt.Errorf("lock stock balance: %w", err)
	}
	return BalanceState{Qty: qty, Value: value}, nil
}

// UpsertBalance writes the snapshot row.
func (r *PostgresRepository) UpsertBalance(ctx context.Context, q database.Queryer, b *StockBalance) error {
	_, err := q.Exec(ctx, `
		INSERT INTO stock_balances (tenant_id, location_id, item_id, qty_on_hand, avg_unit_cost, inventory_value, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (tenant_id, location_id, item_id) DO UPDATE
		SET qty_on_hand = EXCLUDED.qty_on_hand,
		    avg_unit_cost = EXCLUDED.avg_unit_cost,
		    inventory_value = EXCLUDED.inventory_value,
		    updated_at = now()
	`, b.TenantID, b.LocationID, b.ItemID, b.QtyOnHand, b.AvgUnitCost, b.InventoryValue)
	if err != nil {
		return fmt.Errorf("upsert stock balance: %w", err)
	}
	return nil
}

// GetBalance reads the snapshot row.
func (r *PostgresRepository) GetBalance(ctx context.Context, q database.Queryer, tenantID int64, locationID, itemID string) (*StockBalance, error) {
	var b StockBalance
	err := q.QueryRow(ctx, `
		SELECT tenant_id, location_id, item_id, qty_on_hand, avg_unit_cost, inventory_value, updated_at
		FROM stock_balances
		WHERE tenant_id = $1 AND location_id = $2 AND item_id = $3
	`, tenantID, locationID, itemID).Scan(&b.TenantID, &b.LocationID, &b.ItemID, &b.QtyOnHand, &b.AvgUnitCost, &b.InventoryValue, &b.UpdatedAt)
	if err == pgx.ErrNoRows {
		return &StockBalance{TenantID: tenantID, LocationID: locationID, ItemID: itemID,
			QtyOnHand: decimal.Zero, AvgUnitCost: decimal.Zero, InventoryValue: decimal.Zero}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get stock balance: %w", err)
	}
	return &b, nil
}

// GetAnchor reads the valuation anchor for a source journal entry.
func (r *PostgresRepository) GetAnchor(ctx context.Context, q database.Queryer, tenantID int64, sourceEntryID string) (*ValuationAnchor, error) {
	var a ValuationAnchor
	err := q.QueryRow(ctx, `
		SELECT tenant_id, source_journal_entry_id, last_computed_cogs, updated_at
		FROM journal_entry_inventory_valuations
		WHERE tenant_id = $1 AND source_journal_entry_id = $2
	`, tenantID, sourceEntryID).Scan(&a.TenantID, &a.SourceJournalEntryID, &a.LastComputedCogs, &a.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get valuation anchor: %w", err)
	}
	return &a, nil
}

// UpsertAnchor writes the valuation anchor.
func (r *PostgresRepository) UpsertAnchor(ctx context.Context, q database.Queryer, a *ValuationAnchor) error {
	_, err := q.Exec(ctx, `
		INSERT INTO journal_entry_inventory_valuations (tenant_id, source_journal_entry_id, last_computed_cogs, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (tenant_id, source_journal_entry_id) DO UPDATE
		SET last_computed_cogs = EXCLUDED.last_computed_cogs, updated_at = now()
	`, a.TenantID, a.SourceJournalEntryID, a.LastComputedCogs)
	if err != nil {
		return fmt.Errorf("upsert valuation anchor: %w", err)
	}
	return nil
}

// GetCompanyRefs loads the posting account ids cached on the company row.
func (r *PostgresRepository) GetCompanyRefs(ctx context.Context, q database.Queryer, tenantID int64) (*CompanyRefs, error) {
	var refs CompanyRefs
	err := q.QueryRow(ctx, `
		SELECT inventory_account_id, cogs_account_id, default_location_id FROM companies WHERE id = $1
	`, tenantID).Scan(&refs.InventoryAccountID, &refs.CogsAccountID, &refs.DefaultLocationID)
	if err == pgx.ErrNoRows {
		return nil, apierror.New(apierror.KindNotFound, "company not found: %d", tenantID)
	}
	if err != nil {
		return nil, fmt.Errorf("get company refs: %w", err)
	}
	return &refs, nil
}

// SourceEntryDate returns the date of a journal entry.
func (r *PostgresRepository) SourceEntryDate(ctx context.Context, q database.Queryer, tenantID int64, entryID string) (time.Time, error) {
	var d time.Time
	err := q.QueryRow(ctx, `
		SELECT entry_date FROM journal_entries WHERE id = $1 AND tenant_id = $2
	`, entryID, tenantID).Scan(&d)
	if err == pgx.ErrNoRows {
		return time.Time{}, apierror.New(apierror.KindNotFound, "journal entry not found: %s", entryID)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("source entry date: %w", err)
	}
	return d, nil
}
