package app

import (
	"context"

	"github.com/itsyousal/TDHEMS-sub002/internal/core"
)

// ApplicationService is the single interface all adapters (CLI, Web) call.
// It decouples presentation from business logic. Implementations must contain
// no display logic of any kind.
//
// Every mutation is authorized through core.Gateway before it runs and its outcome
// recorded after. Reads only require an authenticated actor.
type ApplicationService interface {
	// ListLocations returns the organization's locations.
	ListLocations(ctx context.Context, actor core.Actor) (*LocationListResult, error)

	// CreateLocation registers a new site. Duplicate code or name is a conflict.
	CreateLocation(ctx context.Context, actor core.Actor, req CreateLocationRequest) (*core.Location, error)

	// ListSKUs returns the catalog, optionally filtered by category (RAW or FINISHED).
	ListSKUs(ctx context.Context, actor core.Actor, category string) (*SKUListResult, error)

	// GetSKU returns one SKU with its stock at every location.
	GetSKU(ctx context.Context, actor core.Actor, id int) (*SKUResult, error)

	// CreateSKU creates a SKU and its seed stock atomically.
	CreateSKU(ctx context.Context, actor core.Actor, req CreateSKURequest) (*SKUResult, error)

	// GetStockLevels returns stock levels, optionally filtered by location, SKU or low stock.
	GetStockLevels(ctx context.Context, actor core.Actor, filter core.StockFilter) (*StockResult, error)

	// ListMovements returns the movement journal of one inventory record.
	ListMovements(ctx context.Context, actor core.Actor, inventoryID int) (*MovementListResult, error)

	// AdjustInventory applies a signed correction by SKU code and location. Over-deduction floors at zero.
	AdjustInventory(ctx context.Context, actor core.Actor, req AdjustInventoryRequest) (*AdjustResult, error)

	// ReserveStock earmarks available stock.
	ReserveStock(ctx context.Context, actor core.Actor, req ReservationRequest) (*core.InventoryRecord, error)

	// ReleaseStock returns reserved stock to available.
	ReleaseStock(ctx context.Context, actor core.Actor, req ReservationRequest) (*core.InventoryRecord, error)

	// ReceivePurchase books a supplier delivery. A repeated IdempotencyKey is rejected with a conflict.
	ReceivePurchase(ctx context.Context, actor core.Actor, req PurchaseReceiptRequest) (*PurchaseReceiptResult, error)

	// ListBatches returns batches, optionally filtered by lifecycle state and location.
	ListBatches(ctx context.Context, actor core.Actor, filter core.BatchFilter) (*BatchListResult, error)

	// GetBatch returns one batch with its ingredients.
	GetBatch(ctx context.Context, actor core.Actor, id int) (*BatchResult, error)

	// CreateBatch plans a new batch in state PLANNED.
	CreateBatch(ctx context.Context, actor core.Actor, req CreateBatchRequest) (*BatchResult, error)

	// TransitionBatch applies start, delay or complete to a batch.
	TransitionBatch(ctx context.Context, actor core.Actor, id int, action string) (*TransitionResult, error)

	// RecordYield stores the measured output of a batch before completion.
	RecordYield(ctx context.Context, actor core.Actor, id int, req RecordYieldRequest) (*BatchResult, error)

	// ListIngredients returns the raw materials planned for a batch.
	ListIngredients(ctx context.Context, actor core.Actor, batchID int) (*IngredientListResult, error)

	// AddIngredient adds a raw material to a PLANNED batch.
	AddIngredient(ctx context.Context, actor core.Actor, batchID int, req IngredientRequest) (*core.BatchIngredient, error)

	// RecordUsage records the quantity of a raw material actually used.
	RecordUsage(ctx context.Context, actor core.Actor, batchID, skuID int, req RecordUsageRequest) (*core.BatchIngredient, error)

	// RecordQCCheck appends an inspection and updates the batch QC outcome.
	RecordQCCheck(ctx context.Context, actor core.Actor, batchID int, req QCCheckRequest) (*core.QCCheck, error)

	// ListQCChecks returns the inspection history of a batch.
	ListQCChecks(ctx context.Context, actor core.Actor, batchID int) (*QCCheckListResult, error)

	// ListBatchLots returns the lots produced by a batch (zero or one).
	ListBatchLots(ctx context.Context, actor core.Actor, batchID int) (*LotListResult, error)

	// ListSKULots returns every lot produced of a finished-goods SKU.
	ListSKULots(ctx context.Context, actor core.Actor, skuID int) (*LotListResult, error)

	// GetLot returns a lot by its number.
	GetLot(ctx context.Context, actor core.Actor, lotNumber string) (*core.InventoryLot, error)

	// TraceLot returns the full provenance of a lot.
	TraceLot(ctx context.Context, actor core.Actor, lotNumber string) (*core.LotTrace, error)

	// VerifyInvariants scans the database for ledger and lot-log inconsistencies.
	VerifyInvariants(ctx context.Context) (*VerifyResult, error)
}

// IdempotencyGuard remembers client-supplied idempotency keys.
// Satisfied by *cache.IdempotencyStore.
type IdempotencyGuard interface {
	Claim(ctx context.Context, scope string, orgID int, key string) (bool, error)
	Forget(ctx context.Context, scope string, orgID int, key string) error
}
