package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/itsyousal/TDHEMS-sub002/internal/core"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const purchaseReceiptScope = "purchase-receipt"

type appService struct {
	pool        *pgxpool.Pool
	gate        core.Gateway
	guard       IdempotencyGuard
	log         *zap.Logger
	locations   core.LocationService
	skus        core.SKUService
	inventory   core.InventoryService
	batches     core.BatchService
	ingredients core.IngredientService
	qc          core.QCService
	lots        core.LotService
}

// NewAppService wires the core services over pool. guard may be nil, in which case
// idempotency keys on purchase receipts are ignored.
func NewAppService(pool *pgxpool.Pool, gate core.Gateway, guard IdempotencyGuard, log *zap.Logger) ApplicationService {
	inventory := core.NewInventoryService(pool, log)
	lots := core.NewLotService(pool)
	return &appService{
		pool:        pool,
		gate:        gate,
		guard:       guard,
		log:         log,
		locations:   core.NewLocationService(pool),
		skus:        core.NewSKUService(pool, inventory),
		inventory:   inventory,
		batches:     core.NewBatchService(pool, inventory, lots, log),
		ingredients: core.NewIngredientService(pool),
		qc:          core.NewQCService(pool),
		lots:        lots,
	}
}

// authenticated rejects callers without a resolved identity.
func authenticated(actor core.Actor) error {
	if actor.UserID == 0 || actor.OrganizationID == 0 {
		return fmt.Errorf("%w: no authenticated identity", core.ErrUnauthorized)
	}
	return nil
}

// mutate runs fn between the gateway's Authorize and Record calls.
func (s *appService) mutate(ctx context.Context, actor core.Actor, action, resource string, fn func() error) error {
	if err := s.gate.Authorize(ctx, actor, action); err != nil {
		return err
	}
	err := fn()
	s.gate.Record(ctx, actor, action, resource, err)
	return err
}

// ── Locations & catalog ───────────────────────────────────────────────────────

func (s *appService) ListLocations(ctx context.Context, actor core.Actor) (*LocationListResult, error) {
	if err := authenticated(actor); err != nil {
		return nil, err
	}
	locations, err := s.locations.ListLocations(ctx, actor.OrganizationID)
	if err != nil {
		return nil, err
	}
	return &LocationListResult{Locations: locations}, nil
}

func (s *appService) CreateLocation(ctx context.Context, actor core.Actor, req CreateLocationRequest) (*core.Location, error) {
	var loc *core.Location
	err := s.mutate(ctx, actor, core.PermLocationCreate, "location:"+req.Code, func() error {
		var err error
		loc, err = s.locations.CreateLocation(ctx, actor.OrganizationID, req.Code, req.Name)
		return err
	})
	return loc, err
}

func (s *appService) ListSKUs(ctx context.Context, actor core.Actor, category string) (*SKUListResult, error) {
	if err := authenticated(actor); err != nil {
		return nil, err
	}
	skus, err := s.skus.ListSKUs(ctx, actor.OrganizationID, core.SKUCategory(strings.ToUpper(category)))
	if err != nil {
		return nil, err
	}
	return &SKUListResult{SKUs: skus}, nil
}

func (s *appService) GetSKU(ctx context.Context, actor core.Actor, id int) (*SKUResult, error) {
	if err := authenticated(actor); err != nil {
		return nil, err
	}
	sku, err := s.skus.GetSKU(ctx, actor.OrganizationID, id)
	if err != nil {
		return nil, err
	}
	stock, err := s.inventory.ListStock(ctx, actor.OrganizationID, core.StockFilter{SKUID: sku.ID})
	if err != nil {
		return nil, err
	}
	return &SKUResult{SKU: sku, Stock: stock}, nil
}

func (s *appService) CreateSKU(ctx context.Context, actor core.Actor, req CreateSKURequest) (*SKUResult, error) {
	in := core.SKUInput{
		Code:      req.Code,
		Name:      req.Name,
		Unit:      req.Unit,
		BasePrice: req.BasePrice,
		CostPrice: req.CostPrice,
		Category:  core.SKUCategory(strings.ToUpper(req.Category)),
	}
	for _, l := range req.Locations {
		in.Locations = append(in.Locations, core.SeedStock{
			LocationID:      l.LocationID,
			InitialQuantity: l.CurrentStock,
			ReorderLevel:    l.ReorderPoint,
			ReorderQuantity: l.ReorderQuantity,
		})
	}

	var sku *core.SKU
	err := s.mutate(ctx, actor, core.PermSKUCreate, "sku:"+req.Code, func() error {
		var err error
		sku, err = s.skus.CreateSKU(ctx, actor.OrganizationID, in, actor.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}
	stock, err := s.inventory.ListStock(ctx, actor.OrganizationID, core.StockFilter{SKUID: sku.ID})
	if err != nil {
		return nil, err
	}
	return &SKUResult{SKU: sku, Stock: stock}, nil
}

// ── Inventory ledger ──────────────────────────────────────────────────────────

func (s *appService) GetStockLevels(ctx context.Context, actor core.Actor, filter core.StockFilter) (*StockResult, error) {
	if err := authenticated(actor); err != nil {
		return nil, err
	}
	levels, err := s.inventory.ListStock(ctx, actor.OrganizationID, filter)
	if err != nil {
		return nil, err
	}
	return &StockResult{Levels: levels}, nil
}

func (s *appService) ListMovements(ctx context.Context, actor core.Actor, inventoryID int) (*MovementListResult, error) {
	if err := authenticated(actor); err != nil {
		return nil, err
	}
	movements, err := s.inventory.ListMovements(ctx, actor.OrganizationID, inventoryID)
	if err != nil {
		return nil, err
	}
	return &MovementListResult{InventoryID: inventoryID, Movements: movements}, nil
}

func (s *appService) AdjustInventory(ctx context.Context, actor core.Actor, req AdjustInventoryRequest) (*AdjustResult, error) {
	var rec *core.InventoryRecord
	resource := fmt.Sprintf("sku:%s@location:%d", req.SKU, req.LocationID)
	err := s.mutate(ctx, actor, core.PermInventoryAdjust, resource, func() error {
		var err error
		rec, err = s.inventory.AdjustBySKU(ctx, actor.OrganizationID, req.SKU, req.LocationID, req.Delta,
			core.MovementRef{Reason: req.Reason, UserID: actor.UserID})
		return err
	})
	if err != nil {
		return nil, err
	}
	return &AdjustResult{InventoryID: rec.ID, Quantity: rec.Quantity, Available: rec.AvailableQuantity}, nil
}

func (s *appService) ReserveStock(ctx context.Context, actor core.Actor, req ReservationRequest) (*core.InventoryRecord, error) {
	var rec *core.InventoryRecord
	resource := fmt.Sprintf("sku:%d@location:%d", req.SKUID, req.LocationID)
	err := s.mutate(ctx, actor, core.PermInventoryReserve, resource, func() error {
		var err error
		rec, err = s.inventory.Reserve(ctx, actor.OrganizationID, req.LocationID, req.SKUID, req.Quantity,
			core.MovementRef{ReferenceType: "reservation", ReferenceID: req.Reference, Reason: "reserve", UserID: actor.UserID})
		return err
	})
	return rec, err
}

func (s *appService) ReleaseStock(ctx context.Context, actor core.Actor, req ReservationRequest) (*core.InventoryRecord, error) {
	var rec *core.InventoryRecord
	resource := fmt.Sprintf("sku:%d@location:%d", req.SKUID, req.LocationID)
	err := s.mutate(ctx, actor, core.PermInventoryReserve, resource, func() error {
		var err error
		rec, err = s.inventory.Release(ctx, actor.OrganizationID, req.LocationID, req.SKUID, req.Quantity,
			core.MovementRef{ReferenceType: "reservation", ReferenceID: req.Reference, Reason: "release", UserID: actor.UserID})
		return err
	})
	return rec, err
}

func (s *appService) ReceivePurchase(ctx context.Context, actor core.Actor, req PurchaseReceiptRequest) (*PurchaseReceiptResult, error) {
	receipt := core.PurchaseReceipt{LocationID: req.LocationID, Reference: req.Reference}
	for _, item := range req.Items {
		receipt.Items = append(receipt.Items, core.PurchaseReceiptItem{
			SKUID:     item.SKUID,
			SKUName:   item.SKUName,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}

	var lines []core.ReceiptLine
	err := s.mutate(ctx, actor, core.PermPurchaseReceive, "purchase-receipt:"+req.Reference, func() error {
		key := strings.TrimSpace(req.IdempotencyKey)
		if key != "" && s.guard != nil {
			claimed, err := s.guard.Claim(ctx, purchaseReceiptScope, actor.OrganizationID, key)
			if err != nil {
				return err
			}
			if !claimed {
				return fmt.Errorf("%w: idempotency key %q was already used", core.ErrDuplicate, key)
			}
		}

		var err error
		lines, err = s.inventory.ReceivePurchase(ctx, actor.OrganizationID, receipt, actor.UserID)
		if err != nil && key != "" && s.guard != nil {
			// Nothing was committed, so the client may retry with the same key.
			if ferr := s.guard.Forget(ctx, purchaseReceiptScope, actor.OrganizationID, key); ferr != nil {
				s.log.Warn("failed to release idempotency key", zap.String("key", key), zap.Error(ferr))
			}
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &PurchaseReceiptResult{Reference: req.Reference, Lines: lines}, nil
}

// ── Production batches ────────────────────────────────────────────────────────

func (s *appService) ListBatches(ctx context.Context, actor core.Actor, filter core.BatchFilter) (*BatchListResult, error) {
	if err := authenticated(actor); err != nil {
		return nil, err
	}
	batches, err := s.batches.ListBatches(ctx, actor.OrganizationID, filter)
	if err != nil {
		return nil, err
	}
	result := &BatchListResult{Batches: make([]BatchResult, 0, len(batches))}
	for i := range batches {
		result.Batches = append(result.Batches, *batchResult(&batches[i]))
	}
	return result, nil
}

func (s *appService) GetBatch(ctx context.Context, actor core.Actor, id int) (*BatchResult, error) {
	if err := authenticated(actor); err != nil {
		return nil, err
	}
	b, err := s.batches.GetBatch(ctx, actor.OrganizationID, id)
	if err != nil {
		return nil, err
	}
	return batchResult(b), nil
}

func (s *appService) CreateBatch(ctx context.Context, actor core.Actor, req CreateBatchRequest) (*BatchResult, error) {
	plannedDate, err := parsePlannedDate(req.PlannedDate)
	if err != nil {
		return nil, fmt.Errorf("%w: plannedDate must be YYYY-MM-DD", core.ErrValidation)
	}
	in := core.BatchInput{
		BatchNumber:     req.BatchNumber,
		LocationID:      req.LocationID,
		SKUID:           req.SKUID,
		PlannedQuantity: req.PlannedQuantity,
		YieldQuantity:   req.YieldQuantity,
		PlannedDate:     plannedDate,
		Notes:           req.Notes,
	}
	for _, ing := range req.Ingredients {
		in.Ingredients = append(in.Ingredients, core.IngredientInput{SKUID: ing.SKUID, RequiredQuantity: ing.RequiredQuantity})
	}

	var b *core.ProductionBatch
	err = s.mutate(ctx, actor, core.PermBatchCreate, "batch:"+req.BatchNumber, func() error {
		var err error
		b, err = s.batches.CreateBatch(ctx, actor.OrganizationID, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	return batchResult(b), nil
}

func (s *appService) TransitionBatch(ctx context.Context, actor core.Actor, id int, action string) (*TransitionResult, error) {
	var b *core.ProductionBatch
	resource := "batch:" + strconv.Itoa(id) + ":" + action
	err := s.mutate(ctx, actor, core.PermBatchTransition, resource, func() error {
		var err error
		b, err = s.batches.Transition(ctx, actor.OrganizationID, id, core.BatchAction(action), actor.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return NewTransitionResult(b), nil
}

func (s *appService) RecordYield(ctx context.Context, actor core.Actor, id int, req RecordYieldRequest) (*BatchResult, error) {
	var b *core.ProductionBatch
	err := s.mutate(ctx, actor, core.PermBatchYield, "batch:"+strconv.Itoa(id), func() error {
		var err error
		b, err = s.batches.RecordYield(ctx, actor.OrganizationID, id, req.YieldActual)
		return err
	})
	if err != nil {
		return nil, err
	}
	return batchResult(b), nil
}

func (s *appService) ListIngredients(ctx context.Context, actor core.Actor, batchID int) (*IngredientListResult, error) {
	if err := authenticated(actor); err != nil {
		return nil, err
	}
	ingredients, err := s.ingredients.ListIngredients(ctx, actor.OrganizationID, batchID)
	if err != nil {
		return nil, err
	}
	return &IngredientListResult{BatchID: batchID, Ingredients: ingredients}, nil
}

func (s *appService) AddIngredient(ctx context.Context, actor core.Actor, batchID int, req IngredientRequest) (*core.BatchIngredient, error) {
	var ing *core.BatchIngredient
	resource := fmt.Sprintf("batch:%d:sku:%d", batchID, req.SKUID)
	err := s.mutate(ctx, actor, core.PermBatchIngredient, resource, func() error {
		var err error
		ing, err = s.ingredients.AddIngredient(ctx, actor.OrganizationID, batchID, req.SKUID, req.RequiredQuantity)
		return err
	})
	return ing, err
}

func (s *appService) RecordUsage(ctx context.Context, actor core.Actor, batchID, skuID int, req RecordUsageRequest) (*core.BatchIngredient, error) {
	var ing *core.BatchIngredient
	resource := fmt.Sprintf("batch:%d:sku:%d", batchID, skuID)
	err := s.mutate(ctx, actor, core.PermBatchIngredient, resource, func() error {
		var err error
		ing, err = s.ingredients.RecordUsage(ctx, actor.OrganizationID, batchID, skuID, req.UsedQuantity)
		return err
	})
	return ing, err
}

func (s *appService) RecordQCCheck(ctx context.Context, actor core.Actor, batchID int, req QCCheckRequest) (*core.QCCheck, error) {
	var check *core.QCCheck
	err := s.mutate(ctx, actor, core.PermQCRecord, "batch:"+strconv.Itoa(batchID), func() error {
		var err error
		check, err = s.qc.RecordCheck(ctx, actor.OrganizationID, core.QCCheckInput{
			BatchID:   batchID,
			CheckType: req.CheckType,
			Result:    core.QCOutcome(req.Result),
			Notes:     req.Notes,
			CheckedBy: actor.UserID,
		})
		return err
	})
	return check, err
}

func (s *appService) ListQCChecks(ctx context.Context, actor core.Actor, batchID int) (*QCCheckListResult, error) {
	if err := authenticated(actor); err != nil {
		return nil, err
	}
	checks, err := s.qc.ListChecks(ctx, actor.OrganizationID, batchID)
	if err != nil {
		return nil, err
	}
	return &QCCheckListResult{BatchID: batchID, Checks: checks}, nil
}

// ── Traceability ──────────────────────────────────────────────────────────────

func (s *appService) ListBatchLots(ctx context.Context, actor core.Actor, batchID int) (*LotListResult, error) {
	if err := authenticated(actor); err != nil {
		return nil, err
	}
	lots, err := s.lots.ListLotsByBatch(ctx, actor.OrganizationID, batchID)
	if err != nil {
		return nil, err
	}
	return &LotListResult{Lots: lots}, nil
}

func (s *appService) ListSKULots(ctx context.Context, actor core.Actor, skuID int) (*LotListResult, error) {
	if err := authenticated(actor); err != nil {
		return nil, err
	}
	lots, err := s.lots.ListLotsBySKU(ctx, actor.OrganizationID, skuID)
	if err != nil {
		return nil, err
	}
	return &LotListResult{Lots: lots}, nil
}

func (s *appService) GetLot(ctx context.Context, actor core.Actor, lotNumber string) (*core.InventoryLot, error) {
	if err := authenticated(actor); err != nil {
		return nil, err
	}
	return s.lots.GetLotByNumber(ctx, actor.OrganizationID, lotNumber)
}

func (s *appService) TraceLot(ctx context.Context, actor core.Actor, lotNumber string) (*core.LotTrace, error) {
	if err := authenticated(actor); err != nil {
		return nil, err
	}
	return s.lots.TraceLot(ctx, actor.OrganizationID, lotNumber)
}

func (s *appService) VerifyInvariants(ctx context.Context) (*VerifyResult, error) {
	violations, err := core.VerifyInvariants(ctx, s.pool)
	if err != nil {
		return nil, err
	}
	return &VerifyResult{OK: len(violations) == 0, Violations: violations}, nil
}
