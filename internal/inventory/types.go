package inventory

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zayar/simplecashflow/internal/apierror"
	"github.com/zayar/simplecashflow/internal/money"
)

// ItemType distinguishes stockable goods from services.
type ItemType string

const (
	ItemTypeGoods   ItemType = "GOODS"
	ItemTypeService ItemType = "SERVICE"
)

// ValuationWAC is the only supported valuation method.
const ValuationWAC = "WAC"

// Item is a sellable or purchasable catalogue entry.
type Item struct {
	ID                string          `json:"id"`
	TenantID          int64           `json:"tenant_id"`
	Name              string          `json:"name"`
	SKU               *string         `json:"sku,omitempty"`
	Type              ItemType        `json:"type"`
	SellingPrice      decimal.Decimal `json:"selling_price"`
	CostPrice         decimal.Decimal `json:"cost_price"`
	TrackInventory    bool            `json:"track_inventory"`
	IncomeAccountID   string          `json:"income_account_id"`
	ExpenseAccountID  *string         `json:"expense_account_id,omitempty"`
	DefaultLocationID *string         `json:"default_location_id,omitempty"`
	ValuationMethod   string          `json:"valuation_method"`
	IsActive          bool            `json:"is_active"`
	CreatedAt         time.Time       `json:"created_at"`
}

// Location is a stock-keeping place.
type Location struct {
	ID        string    `json:"id"`
	TenantID  int64     `json:"tenant_id"`
	Name      string    `json:"name"`
	IsDefault bool      `json:"is_default"`
	CreatedAt time.Time `json:"created_at"`
}

// Direction of a stock move.
type Direction string

const (
	DirectionIn  Direction = "IN"
	DirectionOut Direction = "OUT"
)

// Reference types recorded on stock moves.
const (
	RefInvoice          = "Invoice"
	RefInvoiceVoid      = "InvoiceVoid"
	RefCreditNote       = "CreditNote"
	RefCreditNoteVoid   = "CreditNoteVoid"
	RefPurchaseBill     = "PurchaseBill"
	RefPurchaseBillVoid = "PurchaseBillVoid"
	RefAdjustment       = "Adjustment"
)

// IsVoidLike reports whether the reference type preserves historical
// cost on replay.
func IsVoidLike(referenceType string) bool {
	return strings.HasSuffix(referenceType, "Void")
}

// StockMove is one append-only audit row. unitCostApplied and
// totalCostApplied reflect the cost used at the time the move posted.
type StockMove struct {
	ID               string          `json:"id"`
	TenantID         int64           `json:"tenant_id"`
	Date             time.Time       `json:"date"`
	LocationID       string          `json:"location_id"`
	ItemID           string          `json:"item_id"`
	Direction        Direction       `json:"direction"`
	Quantity         decimal.Decimal `json:"quantity"`
	UnitCostApplied  decimal.Decimal `json:"unit_cost_applied"`
	TotalCostApplied decimal.Decimal `json:"total_cost_applied"`
	ReferenceType    string          `json:"reference_type"`
	ReferenceID      string          `json:"reference_id"`
	JournalEntryID   *string         `json:"journal_entry_id,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// StockBalance is the current snapshot per (tenant, location, item). It
// is a projection of StockMove.
type StockBalance struct {
	TenantID       int64           `json:"tenant_id"`
	LocationID     string          `json:"location_id"`
	ItemID         string          `json:"item_id"`
	QtyOnHand      decimal.Decimal `json:"qty_on_hand"`
	AvgUnitCost    decimal.Decimal `json:"avg_unit_cost"`
	InventoryValue decimal.Decimal `json:"inventory_value"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// ValuationAnchor is the idempotency anchor for COGS adjustments emitted
// by the recalc: the last computed cost for a source journal entry.
type ValuationAnchor struct {
	TenantID             int64           `json:"tenant_id"`
	SourceJournalEntryID string          `json:"source_journal_entry_id"`
	LastComputedCogs     decimal.Decimal `json:"last_computed_cogs"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// BalanceState is the running WAC state during replay.
type BalanceState struct {
	Qty   decimal.Decimal
	Value decimal.Decimal
}

// Avg returns the running average unit cost, zero when nothing on hand.
func (b BalanceState) Avg() decimal.Decimal {
	if b.Qty.IsPositive() {
		return b.Value.Div(b.Qty)
	}
	return decimal.Zero
}

// ApplyIn folds an incoming quantity at a total cost into the state.
func (b BalanceState) ApplyIn(qty, totalCost decimal.Decimal) BalanceState {
	return BalanceState{Qty: b.Qty.Add(qty), Value: b.Value.Add(totalCost)}
}

// ApplyOut removes qty at the current average. It returns the applied
// unit cost and rounded total alongside the new state.
func (b BalanceState) ApplyOut(qty decimal.Decimal) (unitCost, totalCost decimal.Decimal, next BalanceState) {
	unitCost = b.Avg()
	totalCost = money.RoundMoney(qty.Mul(unitCost))
	next = BalanceState{Qty: b.Qty.Sub(qty), Value: b.Value.Sub(totalCost)}
	if !next.Qty.IsPositive() {
		next.Value = decimal.Zero
	}
	return unitCost, totalCost, next
}

// ApplyStored folds a move using its stored costs, quantity and value
// only. Void-like moves always take this path.
func (b BalanceState) ApplyStored(m *StockMove) BalanceState {
	if m.Direction == DirectionIn {
		return BalanceState{Qty: b.Qty.Add(m.Quantity), Value: b.Value.Add(m.TotalCostApplied)}
	}
	next := BalanceState{Qty: b.Qty.Sub(m.Quantity), Value: b.Value.Sub(m.TotalCostApplied)}
	if !next.Qty.IsPositive() {
		next.Value = decimal.Zero
	}
	return next
}

// Snapshot renders the state as a StockBalance row.
func (b BalanceState) Snapshot(tenantID int64, locationID, itemID string) StockBalance {
	return StockBalance{
		TenantID:       tenantID,
		LocationID:     locationID,
		ItemID:         itemID,
		QtyOnHand:      b.Qty,
		AvgUnitCost:    b.Avg(),
		InventoryValue: money.RoundMoney(b.Value),
	}
}

// CostChange records a replay-detected revaluation of one OUT move.
type CostChange struct {
	MoveID          string
	JournalEntryID  *string
	DesiredUnitCost decimal.Decimal
	DesiredTotal    decimal.Decimal
	StoredTotal     decimal.Decimal
}

// Delta is desired minus stored cost for the move.
func (c CostChange) Delta() decimal.Decimal {
	return c.DesiredTotal.Sub(c.StoredTotal)
}

// ReplayMoves deterministically replays moves (ordered date ASC, id ASC)
// from a baseline. Non-void-like OUT moves are revalued at the running
// average; differences from stored costs come back as CostChanges.
func ReplayMoves(baseline BalanceState, moves []*StockMove) (BalanceState, []CostChange, error) {
	state := baseline
	var changes []CostChange
	for _, m := range moves {
		if IsVoidLike(m.ReferenceType) {
			state = state.ApplyStored(m)
			continue
		}
		switch m.Direction {
		case DirectionIn:
			state = state.ApplyIn(m.Quantity, m.TotalCostApplied)
		case DirectionOut:
			if state.Qty.LessThan(m.Quantity) {
				return state, nil, apierror.New(apierror.KindIntegrity,
					"replay drives stock negative for item %s at move %s", m.ItemID, m.ID)
			}
			unitCost, totalCost, next := state.ApplyOut(m.Quantity)
			if !totalCost.Equal(m.TotalCostApplied) || !money.RoundMoney(unitCost).Equal(money.RoundMoney(m.UnitCostApplied)) {
				changes = append(changes, CostChange{
					MoveID:          m.ID,
					JournalEntryID:  m.JournalEntryID,
					DesiredUnitCost: unitCost,
					DesiredTotal:    totalCost,
					StoredTotal:     m.TotalCostApplied,
				})
			}
			state = next
		default:
			return state, nil, apierror.New(apierror.KindIntegrity, "unknown direction %q on move %s", m.Direction, m.ID)
		}
	}
	return state, changes, nil
}

// CreateItemRequest is the request to create an item.
type CreateItemRequest struct {
	Name              string      `json:"name"`
	SKU               *string     `json:"sku,omitempty"`
	Type              ItemType    `json:"type"`
	SellingPrice      interface{} `json:"selling_price"`
	CostPrice         interface{} `json:"cost_price,omitempty"`
	TrackInventory    bool        `json:"track_inventory"`
	IncomeAccountID   string      `json:"income_account_id,omitempty"`
	ExpenseAccountID  *string     `json:"expense_account_id,omitempty"`
	DefaultLocationID *string     `json:"default_location_id,omitempty"`
}

// AdjustStockRequest is the direct stock adjustment input.
type AdjustStockRequest struct {
	ItemID     string      `json:"item_id"`
	LocationID *string     `json:"location_id,omitempty"`
	Direction  Direction   `json:"direction"`
	Quantity   interface{} `json:"quantity"`
	UnitCost   interface{} `json:"unit_cost,omitempty"`
	Date       string      `json:"date"`
	Reason     string      `json:"reason,omitempty"`
}
