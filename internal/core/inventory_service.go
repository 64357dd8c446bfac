package core

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// InventoryService is the stock ledger: one live record per (organization, location, sku)
// plus an append-only movement journal. Every mutation locks the record row, applies
// StockQuantities arithmetic and writes the movement in the same transaction.
type InventoryService interface {
	GetRecord(ctx context.Context, orgID, locationID, skuID int) (*InventoryRecord, error)
	GetRecordByID(ctx context.Context, orgID, id int) (*InventoryRecord, error)
	ListStock(ctx context.Context, orgID int, filter StockFilter) ([]StockLevel, error)
	ListMovements(ctx context.Context, orgID, recordID int) ([]InventoryMovement, error)

	// Standalone operations (manage their own transactions).

	// Increment creates the record when absent.
	Increment(ctx context.Context, orgID, locationID, skuID int, qty decimal.Decimal, ref MovementRef) (*InventoryRecord, error)
	// Decrement fails with ErrInsufficientStock when available < qty.
	Decrement(ctx context.Context, orgID, locationID, skuID int, qty decimal.Decimal, ref MovementRef) (*InventoryRecord, error)
	// AdjustAbsoluteDelta applies a signed correction and floors at zero without error.
	// A zero delta returns the current record and writes nothing.
	AdjustAbsoluteDelta(ctx context.Context, orgID, inventoryID int, delta decimal.Decimal, ref MovementRef) (*InventoryRecord, error)
	// AdjustBySKU resolves the record by sku code and location, then adjusts it.
	AdjustBySKU(ctx context.Context, orgID int, skuCode string, locationID int, delta decimal.Decimal, ref MovementRef) (*InventoryRecord, error)
	Reserve(ctx context.Context, orgID, locationID, skuID int, qty decimal.Decimal, ref MovementRef) (*InventoryRecord, error)
	Release(ctx context.Context, orgID, locationID, skuID int, qty decimal.Decimal, ref MovementRef) (*InventoryRecord, error)
	// ReceivePurchase books every line of a receipt into one location atomically.
	ReceivePurchase(ctx context.Context, orgID int, receipt PurchaseReceipt, userID int) ([]ReceiptLine, error)

	// TX-scoped operations: work within a caller-provided transaction.
	// Used by BatchService so completion effects commit or roll back together.

	IncrementTx(ctx context.Context, tx pgx.Tx, orgID, locationID, skuID int, qty decimal.Decimal, kind MovementType, ref MovementRef) (*InventoryRecord, error)
	DecrementTx(ctx context.Context, tx pgx.Tx, orgID, locationID, skuID int, qty decimal.Decimal, kind MovementType, ref MovementRef) (*InventoryRecord, error)
	// UpsertInitialStockTx sets opening stock and reorder parameters, overwriting any previous seed.
	UpsertInitialStockTx(ctx context.Context, tx pgx.Tx, orgID, skuID int, seed SeedStock, ref MovementRef) (*InventoryRecord, error)
}

type inventoryService struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func NewInventoryService(pool *pgxpool.Pool, log *zap.Logger) InventoryService {
	return &inventoryService{pool: pool, log: log}
}

const recordColumns = `id, organization_id, location_id, sku_id, quantity, reserved_quantity,
	available_quantity, reorder_level, reorder_quantity, updated_at`

func scanRecord(row pgx.Row) (*InventoryRecord, error) {
	var r InventoryRecord
	err := row.Scan(&r.ID, &r.OrganizationID, &r.LocationID, &r.SKUID, &r.Quantity, &r.ReservedQuantity,
		&r.AvailableQuantity, &r.ReorderLevel, &r.ReorderQuantity, &r.UpdatedAt)
	return &r, err
}

// ── Reads ─────────────────────────────────────────────────────────────────────

func (s *inventoryService) GetRecord(ctx context.Context, orgID, locationID, skuID int) (*InventoryRecord, error) {
	r, err := scanRecord(s.pool.QueryRow(ctx, `
		SELECT `+recordColumns+`
		FROM inventory_records
		WHERE organization_id = $1 AND location_id = $2 AND sku_id = $3
	`, orgID, locationID, skuID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: sku %d at location %d", ErrInventoryNotFound, skuID, locationID)
		}
		return nil, fmt.Errorf("failed to fetch inventory record: %w", err)
	}
	return r, nil
}

func (s *inventoryService) GetRecordByID(ctx context.Context, orgID, id int) (*InventoryRecord, error) {
	r, err := scanRecord(s.pool.QueryRow(ctx,
		"SELECT "+recordColumns+" FROM inventory_records WHERE id = $1 AND organization_id = $2", id, orgID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %d", ErrInventoryNotFound, id)
		}
		return nil, fmt.Errorf("failed to fetch inventory record %d: %w", id, err)
	}
	return r, nil
}

func (s *inventoryService) ListStock(ctx context.Context, orgID int, filter StockFilter) ([]StockLevel, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT ir.id, s.id, s.code, s.name, s.category, l.id, l.name,
		       ir.quantity, ir.reserved_quantity, ir.available_quantity, ir.reorder_level
		FROM inventory_records ir
		JOIN skus s      ON s.id = ir.sku_id
		JOIN locations l ON l.id = ir.location_id
		WHERE ir.organization_id = $1
		  AND ($2 = 0 OR ir.location_id = $2)
		  AND ($3 = 0 OR ir.sku_id = $3)
		  AND (NOT $4 OR ir.available_quantity <= ir.reorder_level)
		ORDER BY s.code, l.name
	`, orgID, filter.LocationID, filter.SKUID, filter.LowStock)
	if err != nil {
		return nil, fmt.Errorf("failed to query stock levels: %w", err)
	}
	defer rows.Close()

	var levels []StockLevel
	for rows.Next() {
		var sl StockLevel
		if err := rows.Scan(
			&sl.InventoryID, &sl.SKUID, &sl.SKUCode, &sl.SKUName, &sl.Category,
			&sl.LocationID, &sl.LocationName,
			&sl.OnHand, &sl.Reserved, &sl.Available, &sl.ReorderLevel,
		); err != nil {
			return nil, fmt.Errorf("failed to scan stock level: %w", err)
		}
		sl.BelowReorder = sl.Available.LessThanOrEqual(sl.ReorderLevel)
		levels = append(levels, sl)
	}
	return levels, rows.Err()
}

func (s *inventoryService) ListMovements(ctx context.Context, orgID, recordID int) ([]InventoryMovement, error) {
	if _, err := s.GetRecordByID(ctx, orgID, recordID); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, inventory_record_id, movement_type, quantity_change, quantity_before, quantity_after,
		       reserved_after, reference_type, reference_id, reason, created_by, created_at
		FROM inventory_movements
		WHERE inventory_record_id = $1
		ORDER BY id
	`, recordID)
	if err != nil {
		return nil, fmt.Errorf("failed to query movements: %w", err)
	}
	defer rows.Close()

	var movements []InventoryMovement
	for rows.Next() {
		var m InventoryMovement
		if err := rows.Scan(&m.ID, &m.InventoryRecordID, &m.MovementType, &m.QuantityChange,
			&m.QuantityBefore, &m.QuantityAfter, &m.ReservedAfter, &m.ReferenceType, &m.ReferenceID,
			&m.Reason, &m.CreatedBy, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan movement: %w", err)
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

// ── Standalone operations ─────────────────────────────────────────────────────

func (s *inventoryService) Increment(ctx context.Context, orgID, locationID, skuID int, qty decimal.Decimal, ref MovementRef) (*InventoryRecord, error) {
	var rec *InventoryRecord
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		rec, err = s.IncrementTx(ctx, tx, orgID, locationID, skuID, qty, MovementReceipt, ref)
		return err
	})
	return rec, err
}

func (s *inventoryService) Decrement(ctx context.Context, orgID, locationID, skuID int, qty decimal.Decimal, ref MovementRef) (*InventoryRecord, error) {
	var rec *InventoryRecord
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		rec, err = s.DecrementTx(ctx, tx, orgID, locationID, skuID, qty, MovementAdjustment, ref)
		return err
	})
	return rec, err
}

func (s *inventoryService) AdjustAbsoluteDelta(ctx context.Context, orgID, inventoryID int, delta decimal.Decimal, ref MovementRef) (*InventoryRecord, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	current, err := lockRecordByID(ctx, tx, orgID, inventoryID)
	if err != nil {
		return nil, err
	}
	// A zero correction changes nothing and leaves no movement behind.
	if delta.IsZero() {
		return current, nil
	}
	rec, err := applyMovement(ctx, tx, current, current.quantities().AdjustFloored(delta), MovementAdjustment, ref)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit adjustment: %w", err)
	}

	s.log.Info("stock adjusted",
		zap.Int("organization_id", orgID),
		zap.Int("inventory_id", rec.ID),
		zap.String("delta", delta.String()),
		zap.String("quantity_before", current.Quantity.String()),
		zap.String("quantity_after", rec.Quantity.String()),
		zap.String("reason", ref.Reason),
	)
	return rec, nil
}

func (s *inventoryService) AdjustBySKU(ctx context.Context, orgID int, skuCode string, locationID int, delta decimal.Decimal, ref MovementRef) (*InventoryRecord, error) {
	skuCode = strings.ToUpper(strings.TrimSpace(skuCode))
	if skuCode == "" {
		return nil, validationf("sku code is required")
	}

	var skuID int
	if err := s.pool.QueryRow(ctx,
		"SELECT id FROM skus WHERE organization_id = $1 AND code = $2", orgID, skuCode,
	).Scan(&skuID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: code %s", ErrSKUNotFound, skuCode)
		}
		return nil, fmt.Errorf("failed to resolve sku: %w", err)
	}

	rec, err := s.GetRecord(ctx, orgID, locationID, skuID)
	if err != nil {
		return nil, err
	}
	if ref.ReferenceType == "" {
		ref.ReferenceType = "sku"
		ref.ReferenceID = skuCode
	}
	return s.AdjustAbsoluteDelta(ctx, orgID, rec.ID, delta, ref)
}

func (s *inventoryService) Reserve(ctx context.Context, orgID, locationID, skuID int, qty decimal.Decimal, ref MovementRef) (*InventoryRecord, error) {
	if err := requirePositive("reserve quantity", qty); err != nil {
		return nil, err
	}
	var rec *InventoryRecord
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		current, err := lockRecord(ctx, tx, orgID, locationID, skuID)
		if err != nil {
			return err
		}
		next, err := current.quantities().Reserve(qty)
		if err != nil {
			return fmt.Errorf("sku %d at location %d: %w", skuID, locationID, err)
		}
		rec, err = applyMovement(ctx, tx, current, next, MovementReservation, ref)
		return err
	})
	return rec, err
}

func (s *inventoryService) Release(ctx context.Context, orgID, locationID, skuID int, qty decimal.Decimal, ref MovementRef) (*InventoryRecord, error) {
	if err := requirePositive("release quantity", qty); err != nil {
		return nil, err
	}
	var rec *InventoryRecord
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		current, err := lockRecord(ctx, tx, orgID, locationID, skuID)
		if err != nil {
			return err
		}
		rec, err = applyMovement(ctx, tx, current, current.quantities().Release(qty), MovementReservationRelease, ref)
		return err
	})
	return rec, err
}

// ReceivePurchase resolves each line's SKU by id, then by case-insensitive name within
// the organization, and creates a RAW SKU for names never seen before. Lines are applied
// in order, so the same SKU listed twice is incremented twice.
func (s *inventoryService) ReceivePurchase(ctx context.Context, orgID int, receipt PurchaseReceipt, userID int) ([]ReceiptLine, error) {
	if len(receipt.Items) == 0 {
		return nil, validationf("purchase receipt has no items")
	}
	for i, item := range receipt.Items {
		if item.SKUID == 0 && strings.TrimSpace(item.SKUName) == "" {
			return nil, validationf("item %d: sku_id or sku_name is required", i+1)
		}
		if err := requirePositive(fmt.Sprintf("item %d quantity", i+1), item.Quantity); err != nil {
			return nil, err
		}
		if item.UnitPrice.IsNegative() {
			return nil, validationf("item %d: unit price can not be negative", i+1)
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := loadLocation(ctx, tx, orgID, receipt.LocationID); err != nil {
		return nil, err
	}

	lines := make([]ReceiptLine, 0, len(receipt.Items))
	for i, item := range receipt.Items {
		sku, created, err := resolveReceiptSKU(ctx, tx, orgID, item)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i+1, err)
		}
		ref := MovementRef{
			ReferenceType: "purchase_receipt",
			ReferenceID:   receipt.Reference,
			Reason:        fmt.Sprintf("received %s × %s @ %s", sku.Code, item.Quantity, item.UnitPrice),
			UserID:        userID,
		}
		rec, err := s.IncrementTx(ctx, tx, orgID, receipt.LocationID, sku.ID, item.Quantity, MovementReceipt, ref)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i+1, err)
		}
		lines = append(lines, ReceiptLine{
			SKUID:      sku.ID,
			SKUCode:    sku.Code,
			SKUCreated: created,
			Quantity:   item.Quantity,
			Record:     *rec,
		})
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit purchase receipt: %w", err)
	}

	s.log.Info("purchase receipt recorded",
		zap.Int("organization_id", orgID),
		zap.Int("location_id", receipt.LocationID),
		zap.String("reference", receipt.Reference),
		zap.Int("lines", len(lines)),
	)
	return lines, nil
}

func resolveReceiptSKU(ctx context.Context, tx pgx.Tx, orgID int, item PurchaseReceiptItem) (*SKU, bool, error) {
	if item.SKUID != 0 {
		sku, err := loadSKU(ctx, tx, orgID, item.SKUID)
		return sku, false, err
	}
	name := strings.TrimSpace(item.SKUName)
	// Concurrent receipts naming the same unknown product queue here, so the second
	// one finds the SKU the first created instead of minting a suffixed duplicate.
	// The lock is released when tx ends.
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))",
		fmt.Sprintf("sku-name:%d:%s", orgID, strings.ToLower(name))); err != nil {
		return nil, false, fmt.Errorf("failed to lock sku name %q: %w", name, err)
	}
	sku, err := scanSKU(tx.QueryRow(ctx, `
		SELECT `+skuColumns+`
		FROM skus
		WHERE organization_id = $1 AND lower(name) = lower($2)
		ORDER BY id
		LIMIT 1
	`, orgID, name))
	if err == nil {
		return sku, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to look up sku %q: %w", name, err)
	}
	sku, err = createRawSKUTx(ctx, tx, orgID, name, item.UnitPrice)
	return sku, err == nil, err
}

// ── TX-scoped operations ──────────────────────────────────────────────────────

func (s *inventoryService) IncrementTx(ctx context.Context, tx pgx.Tx, orgID, locationID, skuID int, qty decimal.Decimal, kind MovementType, ref MovementRef) (*InventoryRecord, error) {
	if err := requirePositive("increment quantity", qty); err != nil {
		return nil, err
	}
	if _, err := loadLocation(ctx, tx, orgID, locationID); err != nil {
		return nil, err
	}
	if _, err := loadSKU(ctx, tx, orgID, skuID); err != nil {
		return nil, err
	}

	// Create the record if it doesn't exist yet, then lock it.
	if _, err := tx.Exec(ctx, `
		INSERT INTO inventory_records (organization_id, location_id, sku_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (organization_id, location_id, sku_id) DO NOTHING
	`, orgID, locationID, skuID); err != nil {
		return nil, fmt.Errorf("failed to upsert inventory record: %w", err)
	}
	current, err := lockRecord(ctx, tx, orgID, locationID, skuID)
	if err != nil {
		return nil, err
	}
	return applyMovement(ctx, tx, current, current.quantities().Increment(qty), kind, ref)
}

func (s *inventoryService) DecrementTx(ctx context.Context, tx pgx.Tx, orgID, locationID, skuID int, qty decimal.Decimal, kind MovementType, ref MovementRef) (*InventoryRecord, error) {
	if err := requirePositive("decrement quantity", qty); err != nil {
		return nil, err
	}
	current, err := lockRecord(ctx, tx, orgID, locationID, skuID)
	if err != nil {
		return nil, err
	}
	next, err := current.quantities().Decrement(qty)
	if err != nil {
		return nil, fmt.Errorf("sku %d at location %d: %w", skuID, locationID, err)
	}
	return applyMovement(ctx, tx, current, next, kind, ref)
}

func (s *inventoryService) UpsertInitialStockTx(ctx context.Context, tx pgx.Tx, orgID, skuID int, seed SeedStock, ref MovementRef) (*InventoryRecord, error) {
	if seed.InitialQuantity.IsNegative() {
		return nil, validationf("initial quantity can not be negative")
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO inventory_records (organization_id, location_id, sku_id, reorder_level, reorder_quantity)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (organization_id, location_id, sku_id)
		DO UPDATE SET reorder_level = EXCLUDED.reorder_level, reorder_quantity = EXCLUDED.reorder_quantity
	`, orgID, seed.LocationID, skuID, seed.ReorderLevel, seed.ReorderQuantity); err != nil {
		return nil, fmt.Errorf("failed to upsert inventory record: %w", err)
	}
	current, err := lockRecord(ctx, tx, orgID, seed.LocationID, skuID)
	if err != nil {
		return nil, err
	}
	q := current.quantities()
	next := StockQuantities{OnHand: seed.InitialQuantity, Reserved: decimal.Min(q.Reserved, seed.InitialQuantity)}
	return applyMovement(ctx, tx, current, next, MovementSeed, ref)
}

// ── Row-level helpers ─────────────────────────────────────────────────────────

func lockRecord(ctx context.Context, tx pgx.Tx, orgID, locationID, skuID int) (*InventoryRecord, error) {
	r, err := scanRecord(tx.QueryRow(ctx, `
		SELECT `+recordColumns+`
		FROM inventory_records
		WHERE organization_id = $1 AND location_id = $2 AND sku_id = $3
		FOR UPDATE
	`, orgID, locationID, skuID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: sku %d at location %d", ErrInventoryNotFound, skuID, locationID)
		}
		return nil, fmt.Errorf("failed to lock inventory record: %w", err)
	}
	return r, nil
}

func lockRecordByID(ctx context.Context, tx pgx.Tx, orgID, id int) (*InventoryRecord, error) {
	r, err := scanRecord(tx.QueryRow(ctx,
		"SELECT "+recordColumns+" FROM inventory_records WHERE id = $1 AND organization_id = $2 FOR UPDATE",
		id, orgID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %d", ErrInventoryNotFound, id)
		}
		return nil, fmt.Errorf("failed to lock inventory record %d: %w", id, err)
	}
	return r, nil
}

// applyMovement writes next onto the locked record and appends the journal row.
// The caller must hold the row lock taken by lockRecord or lockRecordByID.
func applyMovement(ctx context.Context, tx pgx.Tx, current *InventoryRecord, next StockQuantities, kind MovementType, ref MovementRef) (*InventoryRecord, error) {
	if !next.Valid() {
		return nil, fmt.Errorf("%w: quantity %s reserved %s violates stock invariant",
			ErrConflict, next.OnHand, next.Reserved)
	}

	rec, err := scanRecord(tx.QueryRow(ctx, `
		UPDATE inventory_records
		SET quantity = $1, reserved_quantity = $2, updated_at = NOW()
		WHERE id = $3
		RETURNING `+recordColumns,
		next.OnHand, next.Reserved, current.ID))
	if err != nil {
		return nil, fmt.Errorf("failed to update inventory record %d: %w", current.ID, err)
	}

	var refType, refID *string
	if ref.ReferenceType != "" {
		refType = &ref.ReferenceType
	}
	if ref.ReferenceID != "" {
		refID = &ref.ReferenceID
	}
	var createdBy *int
	if ref.UserID != 0 {
		createdBy = &ref.UserID
	}

	change := next.OnHand.Sub(current.Quantity)
	if kind == MovementReservation || kind == MovementReservationRelease {
		change = next.Reserved.Sub(current.ReservedQuantity)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO inventory_movements (organization_id, inventory_record_id, movement_type, quantity_change,
		                                 quantity_before, quantity_after, reserved_after,
		                                 reference_type, reference_id, reason, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, current.OrganizationID, current.ID, kind, change, current.Quantity, next.OnHand, next.Reserved,
		refType, refID, ref.Reason, createdBy); err != nil {
		return nil, fmt.Errorf("failed to insert %s movement: %w", strings.ToLower(string(kind)), err)
	}
	return rec, nil
}

// batchRef is the movement provenance for effects of a production batch.
func batchRef(b *ProductionBatch, userID int, reason string) MovementRef {
	return MovementRef{
		ReferenceType: "production_batch",
		ReferenceID:   strconv.Itoa(b.ID),
		Reason:        fmt.Sprintf("batch %s: %s", b.BatchNumber, reason),
		UserID:        userID,
	}
}
