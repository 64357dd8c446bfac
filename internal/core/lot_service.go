package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LotService is the append-only traceability log linking finished goods to batches.
type LotService interface {
	// AppendLotTx inserts a lot inside the caller's transaction. A second lot for the
	// same batch returns ErrDuplicate.
	AppendLotTx(ctx context.Context, tx pgx.Tx, lot InventoryLot) (*InventoryLot, error)
	ListLotsByBatch(ctx context.Context, orgID, batchID int) ([]InventoryLot, error)
	ListLotsBySKU(ctx context.Context, orgID, skuID int) ([]InventoryLot, error)
	GetLotByNumber(ctx context.Context, orgID int, lotNumber string) (*InventoryLot, error)
	// TraceLot returns the batch, consumed ingredients and QC history behind a lot.
	TraceLot(ctx context.Context, orgID int, lotNumber string) (*LotTrace, error)
}

type lotService struct {
	pool *pgxpool.Pool
}

func NewLotService(pool *pgxpool.Pool) LotService {
	return &lotService{pool: pool}
}

const lotColumns = `id, organization_id, location_id, sku_id, batch_id, lot_number, quantity, manufacture_date, created_at`

func scanLot(row pgx.Row) (*InventoryLot, error) {
	var l InventoryLot
	err := row.Scan(&l.ID, &l.OrganizationID, &l.LocationID, &l.SKUID, &l.BatchID,
		&l.LotNumber, &l.Quantity, &l.ManufactureDate, &l.CreatedAt)
	return &l, err
}

func (s *lotService) AppendLotTx(ctx context.Context, tx pgx.Tx, lot InventoryLot) (*InventoryLot, error) {
	if lot.LotNumber == "" {
		return nil, validationf("lot number is required")
	}
	if err := requirePositive("lot quantity", lot.Quantity); err != nil {
		return nil, err
	}

	created, err := scanLot(tx.QueryRow(ctx, `
		INSERT INTO inventory_lots (organization_id, location_id, sku_id, batch_id, lot_number, quantity, manufacture_date)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING `+lotColumns,
		lot.OrganizationID, lot.LocationID, lot.SKUID, lot.BatchID, lot.LotNumber, lot.Quantity))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: a lot already exists for batch %d or lot number %s",
				ErrDuplicate, lot.BatchID, lot.LotNumber)
		}
		return nil, fmt.Errorf("failed to insert lot: %w", err)
	}
	return created, nil
}

func (s *lotService) ListLotsByBatch(ctx context.Context, orgID, batchID int) ([]InventoryLot, error) {
	return s.queryLots(ctx, "organization_id = $1 AND batch_id = $2", orgID, batchID)
}

func (s *lotService) ListLotsBySKU(ctx context.Context, orgID, skuID int) ([]InventoryLot, error) {
	return s.queryLots(ctx, "organization_id = $1 AND sku_id = $2", orgID, skuID)
}

func (s *lotService) queryLots(ctx context.Context, where string, args ...any) ([]InventoryLot, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT "+lotColumns+" FROM inventory_lots WHERE "+where+" ORDER BY manufacture_date, id", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query lots: %w", err)
	}
	defer rows.Close()

	var lots []InventoryLot
	for rows.Next() {
		l, err := scanLot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lot: %w", err)
		}
		lots = append(lots, *l)
	}
	return lots, rows.Err()
}

func (s *lotService) GetLotByNumber(ctx context.Context, orgID int, lotNumber string) (*InventoryLot, error) {
	lotNumber = strings.TrimSpace(lotNumber)
	l, err := scanLot(s.pool.QueryRow(ctx,
		"SELECT "+lotColumns+" FROM inventory_lots WHERE organization_id = $1 AND lot_number = $2",
		orgID, lotNumber))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrLotNotFound, lotNumber)
		}
		return nil, fmt.Errorf("failed to fetch lot %s: %w", lotNumber, err)
	}
	return l, nil
}

func (s *lotService) TraceLot(ctx context.Context, orgID int, lotNumber string) (*LotTrace, error) {
	lot, err := s.GetLotByNumber(ctx, orgID, lotNumber)
	if err != nil {
		return nil, err
	}
	batch, err := loadBatch(ctx, s.pool, orgID, lot.BatchID, false)
	if err != nil {
		return nil, err
	}
	ingredients, err := listIngredients(ctx, s.pool, batch.ID)
	if err != nil {
		return nil, err
	}
	checks, err := listChecks(ctx, s.pool, batch.ID)
	if err != nil {
		return nil, err
	}
	return &LotTrace{Lot: *lot, Batch: *batch, Ingredients: ingredients, Checks: checks}, nil
}
