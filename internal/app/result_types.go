package app

import (
	"github.com/itsyousal/TDHEMS-sub002/internal/core"

	"github.com/shopspring/decimal"
)

// LocationListResult is returned by ListLocations.
type LocationListResult struct {
	Locations []core.Location `json:"locations"`
}

// SKUListResult is returned by ListSKUs.
type SKUListResult struct {
	SKUs []core.SKU `json:"skus"`
}

// SKUResult is a SKU with its stock at every location.
type SKUResult struct {
	SKU   *core.SKU         `json:"sku"`
	Stock []core.StockLevel `json:"stock"`
}

// StockResult is returned by GetStockLevels.
type StockResult struct {
	Levels []core.StockLevel `json:"levels"`
}

// MovementListResult is returned by ListMovements.
type MovementListResult struct {
	InventoryID int                      `json:"inventoryId"`
	Movements   []core.InventoryMovement `json:"movements"`
}

// AdjustResult is returned by AdjustInventory.
type AdjustResult struct {
	InventoryID int             `json:"inventoryId"`
	Quantity    decimal.Decimal `json:"quantity"`
	Available   decimal.Decimal `json:"available"`
}

// PurchaseReceiptResult is returned by ReceivePurchase.
type PurchaseReceiptResult struct {
	Reference string             `json:"reference"`
	Lines     []core.ReceiptLine `json:"lines"`
}

// BatchListResult is returned by ListBatches.
type BatchListResult struct {
	Batches []BatchResult `json:"batches"`
}

// BatchResult pairs a batch with its derived display status.
// BatchResult carries the batch with its lifecycle state in Status. DisplayStatus
// adds the QC outcome for screens that show both in one column.
type BatchResult struct {
	Batch         *core.ProductionBatch `json:"batch"`
	Status        string                `json:"status"`
	DisplayStatus string                `json:"displayStatus"`
}

// TransitionResult is returned by TransitionBatch. Status is always a lifecycle state.
type TransitionResult struct {
	BatchID       int                   `json:"batchId"`
	Status        string                `json:"status"`
	DisplayStatus string                `json:"displayStatus"`
	Batch         *core.ProductionBatch `json:"batch"`
}

// NewTransitionResult builds the response for a batch after a transition.
func NewTransitionResult(b *core.ProductionBatch) *TransitionResult {
	return &TransitionResult{
		BatchID:       b.ID,
		Status:        string(b.LifecycleState),
		DisplayStatus: b.DisplayStatus(),
		Batch:         b,
	}
}

type IngredientListResult struct {
	BatchID     int                    `json:"batchId"`
	Ingredients []core.BatchIngredient `json:"ingredients"`
}

type QCCheckListResult struct {
	BatchID int            `json:"batchId"`
	Checks  []core.QCCheck `json:"checks"`
}

type LotListResult struct {
	Lots []core.InventoryLot `json:"lots"`
}

// VerifyResult is returned by VerifyInvariants. OK is true when no violations were found.
type VerifyResult struct {
	OK         bool             `json:"ok"`
	Violations []core.Violation `json:"violations"`
}

func batchResult(b *core.ProductionBatch) *BatchResult {
	return &BatchResult{Batch: b, Status: string(b.LifecycleState), DisplayStatus: b.DisplayStatus()}
}
