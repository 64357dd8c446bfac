package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// IngredientService tracks planned versus used raw material per batch.
type IngredientService interface {
	ListIngredients(ctx context.Context, orgID, batchID int) ([]BatchIngredient, error)
	// AddIngredient is only allowed while the batch is PLANNED.
	AddIngredient(ctx context.Context, orgID, batchID, skuID int, required decimal.Decimal) (*BatchIngredient, error)
	// RecordUsage overrides the quantity consumed at completion. Rejected once COMPLETED.
	RecordUsage(ctx context.Context, orgID, batchID, skuID int, used decimal.Decimal) (*BatchIngredient, error)
}

type ingredientService struct {
	pool *pgxpool.Pool
}

func NewIngredientService(pool *pgxpool.Pool) IngredientService {
	return &ingredientService{pool: pool}
}

func (s *ingredientService) ListIngredients(ctx context.Context, orgID, batchID int) ([]BatchIngredient, error) {
	if _, err := loadBatch(ctx, s.pool, orgID, batchID, false); err != nil {
		return nil, err
	}
	return listIngredients(ctx, s.pool, batchID)
}

func (s *ingredientService) AddIngredient(ctx context.Context, orgID, batchID, skuID int, required decimal.Decimal) (*BatchIngredient, error) {
	if err := requirePositive("required quantity", required); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	b, err := loadBatch(ctx, tx, orgID, batchID, true)
	if err != nil {
		return nil, err
	}
	if b.LifecycleState != StatePlanned {
		return nil, fmt.Errorf("%w: ingredients can only be added to PLANNED batches, %s is %s",
			ErrInvalidTransition, b.BatchNumber, b.LifecycleState)
	}
	sku, err := requireCategory(ctx, tx, orgID, skuID, CategoryRaw)
	if err != nil {
		return nil, err
	}

	ing := BatchIngredient{BatchID: batchID, SKUID: skuID, SKUCode: sku.Code}
	err = tx.QueryRow(ctx, `
		INSERT INTO batch_ingredients (batch_id, sku_id, required_quantity)
		VALUES ($1, $2, $3)
		RETURNING id, required_quantity, used_quantity
	`, batchID, skuID, required).Scan(&ing.ID, &ing.RequiredQuantity, &ing.UsedQuantity)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: batch %s already lists %s", ErrDuplicate, b.BatchNumber, sku.Code)
		}
		return nil, fmt.Errorf("failed to insert ingredient: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit ingredient: %w", err)
	}
	return &ing, nil
}

func (s *ingredientService) RecordUsage(ctx context.Context, orgID, batchID, skuID int, used decimal.Decimal) (*BatchIngredient, error) {
	if used.IsNegative() {
		return nil, validationf("used quantity can not be negative, got %s", used)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Lock the batch so usage can not change underneath a concurrent completion.
	b, err := loadBatch(ctx, tx, orgID, batchID, true)
	if err != nil {
		return nil, err
	}
	if b.LifecycleState == StateCompleted {
		return nil, fmt.Errorf("%w: batch %s is already COMPLETED", ErrInvalidTransition, b.BatchNumber)
	}

	ing := BatchIngredient{BatchID: batchID, SKUID: skuID}
	err = tx.QueryRow(ctx, `
		UPDATE batch_ingredients bi
		SET used_quantity = $1
		FROM skus s
		WHERE bi.batch_id = $2 AND bi.sku_id = $3 AND s.id = bi.sku_id
		RETURNING bi.id, s.code, bi.required_quantity, bi.used_quantity
	`, used, batchID, skuID).Scan(&ing.ID, &ing.SKUCode, &ing.RequiredQuantity, &ing.UsedQuantity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: batch %s has no ingredient sku %d", ErrNotFound, b.BatchNumber, skuID)
		}
		return nil, fmt.Errorf("failed to record usage: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit usage: %w", err)
	}
	return &ing, nil
}
