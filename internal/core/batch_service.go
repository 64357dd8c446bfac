package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// BatchService drives production batches through their lifecycle.
// Completion is the only transition with inventory effects and runs as one transaction:
// raw materials are consumed, finished goods produced and the lot appended together,
// or nothing is written.
type BatchService interface {
	CreateBatch(ctx context.Context, orgID int, in BatchInput) (*ProductionBatch, error)
	GetBatch(ctx context.Context, orgID, id int) (*ProductionBatch, error)
	ListBatches(ctx context.Context, orgID int, filter BatchFilter) ([]ProductionBatch, error)
	// RecordYield stores the measured output of a batch that has not completed yet.
	RecordYield(ctx context.Context, orgID, id int, yieldActual decimal.Decimal) (*ProductionBatch, error)
	// Transition applies start, delay or complete. Completing an already COMPLETED
	// batch returns ErrInvalidTransition and has no effects.
	Transition(ctx context.Context, orgID, id int, action BatchAction, userID int) (*ProductionBatch, error)
}

type batchService struct {
	pool *pgxpool.Pool
	inv  InventoryService
	lots LotService
	log  *zap.Logger
}

func NewBatchService(pool *pgxpool.Pool, inv InventoryService, lots LotService, log *zap.Logger) BatchService {
	return &batchService{pool: pool, inv: inv, lots: lots, log: log}
}

const batchColumns = `b.id, b.organization_id, b.location_id, b.sku_id, s.code, b.batch_number,
	b.planned_quantity, b.yield_quantity, b.yield_actual, b.lifecycle_state, b.qc_outcome,
	b.planned_date, b.notes, b.started_at, b.completed_at, b.created_at`

func scanBatch(row pgx.Row) (*ProductionBatch, error) {
	var b ProductionBatch
	err := row.Scan(&b.ID, &b.OrganizationID, &b.LocationID, &b.SKUID, &b.SKUCode, &b.BatchNumber,
		&b.PlannedQuantity, &b.YieldQuantity, &b.YieldActual, &b.LifecycleState, &b.QCOutcome,
		&b.PlannedDate, &b.Notes, &b.StartedAt, &b.CompletedAt, &b.CreatedAt)
	return &b, err
}

func validateBatchInput(in *BatchInput) error {
	in.BatchNumber = strings.TrimSpace(in.BatchNumber)
	if in.BatchNumber == "" {
		return validationf("batch number is required")
	}
	if in.LocationID == 0 {
		return validationf("location_id is required")
	}
	if in.SKUID == 0 {
		return validationf("sku_id is required")
	}
	if err := requirePositive("planned quantity", in.PlannedQuantity); err != nil {
		return err
	}
	if in.YieldQuantity != nil {
		if err := requirePositive("yield quantity", *in.YieldQuantity); err != nil {
			return err
		}
	}
	seen := make(map[int]bool)
	for _, ing := range in.Ingredients {
		if seen[ing.SKUID] {
			return validationf("ingredient sku %d listed twice", ing.SKUID)
		}
		seen[ing.SKUID] = true
		if err := requirePositive("ingredient required quantity", ing.RequiredQuantity); err != nil {
			return err
		}
	}
	return nil
}

func (s *batchService) CreateBatch(ctx context.Context, orgID int, in BatchInput) (*ProductionBatch, error) {
	if err := validateBatchInput(&in); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := loadLocation(ctx, tx, orgID, in.LocationID); err != nil {
		return nil, err
	}
	if _, err := requireCategory(ctx, tx, orgID, in.SKUID, CategoryFinished); err != nil {
		return nil, err
	}

	var batchID int
	err = tx.QueryRow(ctx, `
		INSERT INTO production_batches (organization_id, location_id, sku_id, batch_number,
		                                planned_quantity, yield_quantity, planned_date, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, orgID, in.LocationID, in.SKUID, in.BatchNumber, in.PlannedQuantity, in.YieldQuantity,
		in.PlannedDate, in.Notes).Scan(&batchID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: batch number %s already exists", ErrDuplicate, in.BatchNumber)
		}
		return nil, fmt.Errorf("failed to insert batch: %w", err)
	}

	for _, ing := range in.Ingredients {
		if _, err := requireCategory(ctx, tx, orgID, ing.SKUID, CategoryRaw); err != nil {
			return nil, err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO batch_ingredients (batch_id, sku_id, required_quantity)
			VALUES ($1, $2, $3)
		`, batchID, ing.SKUID, ing.RequiredQuantity); err != nil {
			return nil, fmt.Errorf("failed to insert ingredient sku %d: %w", ing.SKUID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit batch %s: %w", in.BatchNumber, err)
	}
	return s.GetBatch(ctx, orgID, batchID)
}

func (s *batchService) GetBatch(ctx context.Context, orgID, id int) (*ProductionBatch, error) {
	b, err := loadBatch(ctx, s.pool, orgID, id, false)
	if err != nil {
		return nil, err
	}
	if b.Ingredients, err = listIngredients(ctx, s.pool, b.ID); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *batchService) ListBatches(ctx context.Context, orgID int, filter BatchFilter) ([]ProductionBatch, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+batchColumns+`
		FROM production_batches b
		JOIN skus s ON s.id = b.sku_id
		WHERE b.organization_id = $1
		  AND ($2 = '' OR b.lifecycle_state = $2)
		  AND ($3 = 0 OR b.location_id = $3)
		ORDER BY b.created_at DESC, b.id DESC
	`, orgID, string(filter.State), filter.LocationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query batches: %w", err)
	}
	defer rows.Close()

	var batches []ProductionBatch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan batch: %w", err)
		}
		batches = append(batches, *b)
	}
	return batches, rows.Err()
}

func (s *batchService) RecordYield(ctx context.Context, orgID, id int, yieldActual decimal.Decimal) (*ProductionBatch, error) {
	if err := requirePositive("yield", yieldActual); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	b, err := loadBatch(ctx, tx, orgID, id, true)
	if err != nil {
		return nil, err
	}
	if b.LifecycleState == StateCompleted {
		return nil, fmt.Errorf("%w: batch %s is already COMPLETED", ErrInvalidTransition, b.BatchNumber)
	}
	if _, err := tx.Exec(ctx,
		"UPDATE production_batches SET yield_actual = $1 WHERE id = $2", yieldActual, b.ID,
	); err != nil {
		return nil, fmt.Errorf("failed to record yield: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit yield: %w", err)
	}
	return s.GetBatch(ctx, orgID, id)
}

func (s *batchService) Transition(ctx context.Context, orgID, id int, action BatchAction, userID int) (*ProductionBatch, error) {
	action, err := ParseBatchAction(string(action))
	if err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// The row lock serializes concurrent transitions of the same batch, so two
	// completions can never both observe a non-COMPLETED state.
	b, err := loadBatch(ctx, tx, orgID, id, true)
	if err != nil {
		return nil, err
	}
	next, err := NextState(b.LifecycleState, action)
	if err != nil {
		return nil, fmt.Errorf("batch %s: %w", b.BatchNumber, err)
	}

	var lot *InventoryLot
	switch action {
	case ActionStart:
		_, err = tx.Exec(ctx, `
			UPDATE production_batches
			SET lifecycle_state = $1, started_at = COALESCE(started_at, NOW())
			WHERE id = $2
		`, next, b.ID)
	case ActionDelay:
		_, err = tx.Exec(ctx, "UPDATE production_batches SET lifecycle_state = $1 WHERE id = $2", next, b.ID)
	case ActionComplete:
		lot, err = s.completeTx(ctx, tx, b, userID)
	}
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transition of batch %s: %w", b.BatchNumber, err)
	}

	fields := []zap.Field{
		zap.Int("organization_id", orgID),
		zap.String("batch_number", b.BatchNumber),
		zap.String("from", string(b.LifecycleState)),
		zap.String("to", string(next)),
	}
	if lot != nil {
		fields = append(fields, zap.String("lot_number", lot.LotNumber), zap.String("yield", lot.Quantity.String()))
	}
	s.log.Info("batch transitioned", fields...)

	return s.GetBatch(ctx, orgID, id)
}

// completeTx applies the inventory effects of completing b inside tx. The caller holds
// the batch row lock. Ingredients are locked in sku_id order and the finished good last.
func (s *batchService) completeTx(ctx context.Context, tx pgx.Tx, b *ProductionBatch, userID int) (*InventoryLot, error) {
	yield, err := resolveYield(b)
	if err != nil {
		return nil, err
	}

	ingredients, err := listIngredients(ctx, tx, b.ID)
	if err != nil {
		return nil, err
	}
	sort.Slice(ingredients, func(i, j int) bool { return ingredients[i].SKUID < ingredients[j].SKUID })

	for _, ing := range ingredients {
		qty := ing.ConsumptionQuantity()
		if qty.IsZero() {
			continue
		}
		if _, err := s.inv.DecrementTx(ctx, tx, b.OrganizationID, b.LocationID, ing.SKUID, qty,
			MovementConsumption, batchRef(b, userID, "consumed "+ing.SKUCode)); err != nil {
			return nil, fmt.Errorf("failed to consume %s for batch %s: %w", ing.SKUCode, b.BatchNumber, err)
		}
	}

	if _, err := s.inv.IncrementTx(ctx, tx, b.OrganizationID, b.LocationID, b.SKUID, yield,
		MovementProduction, batchRef(b, userID, "produced "+b.SKUCode)); err != nil {
		return nil, fmt.Errorf("failed to produce %s for batch %s: %w", b.SKUCode, b.BatchNumber, err)
	}

	lot, err := s.lots.AppendLotTx(ctx, tx, InventoryLot{
		OrganizationID: b.OrganizationID,
		LocationID:     b.LocationID,
		SKUID:          b.SKUID,
		BatchID:        b.ID,
		LotNumber:      b.BatchNumber,
		Quantity:       yield,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to append lot for batch %s: %w", b.BatchNumber, err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE production_batches
		SET lifecycle_state = $1,
		    started_at      = COALESCE(started_at, NOW()),
		    completed_at    = NOW()
		WHERE id = $2
	`, StateCompleted, b.ID); err != nil {
		return nil, fmt.Errorf("failed to mark batch %s completed: %w", b.BatchNumber, err)
	}
	return lot, nil
}

// loadBatch fetches a batch owned by orgID; forUpdate locks the row (q must be a tx).
func loadBatch(ctx context.Context, q pgxQuerier, orgID, id int, forUpdate bool) (*ProductionBatch, error) {
	query := `
		SELECT ` + batchColumns + `
		FROM production_batches b
		JOIN skus s ON s.id = b.sku_id
		WHERE b.id = $1 AND b.organization_id = $2`
	if forUpdate {
		query += " FOR UPDATE OF b"
	}
	b, err := scanBatch(q.QueryRow(ctx, query, id, orgID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %d", ErrBatchNotFound, id)
		}
		return nil, fmt.Errorf("failed to fetch batch %d: %w", id, err)
	}
	return b, nil
}

func listIngredients(ctx context.Context, q pgxQuerier, batchID int) ([]BatchIngredient, error) {
	rows, err := q.Query(ctx, `
		SELECT bi.id, bi.batch_id, bi.sku_id, s.code, bi.required_quantity, bi.used_quantity
		FROM batch_ingredients bi
		JOIN skus s ON s.id = bi.sku_id
		WHERE bi.batch_id = $1
		ORDER BY bi.sku_id
	`, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ingredients for batch %d: %w", batchID, err)
	}
	defer rows.Close()

	var ingredients []BatchIngredient
	for rows.Next() {
		var i BatchIngredient
		if err := rows.Scan(&i.ID, &i.BatchID, &i.SKUID, &i.SKUCode, &i.RequiredQuantity, &i.UsedQuantity); err != nil {
			return nil, fmt.Errorf("failed to scan ingredient: %w", err)
		}
		ingredients = append(ingredients, i)
	}
	return ingredients, rows.Err()
}
