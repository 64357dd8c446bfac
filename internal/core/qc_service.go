package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// QCService records inspections. A check updates the batch's qc_outcome and never
// its lifecycle_state.
type QCService interface {
	RecordCheck(ctx context.Context, orgID int, in QCCheckInput) (*QCCheck, error)
	ListChecks(ctx context.Context, orgID, batchID int) ([]QCCheck, error)
}

type qcService struct {
	pool *pgxpool.Pool
}

func NewQCService(pool *pgxpool.Pool) QCService {
	return &qcService{pool: pool}
}

func (s *qcService) RecordCheck(ctx context.Context, orgID int, in QCCheckInput) (*QCCheck, error) {
	in.Result = QCOutcome(strings.ToUpper(strings.TrimSpace(string(in.Result))))
	if !in.Result.Valid() {
		return nil, validationf("qc result must be PASS, FAIL or REWORK, got %q", in.Result)
	}
	in.CheckType = strings.TrimSpace(in.CheckType)
	if in.CheckType == "" {
		return nil, validationf("check type is required")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := loadBatch(ctx, tx, orgID, in.BatchID, true); err != nil {
		return nil, err
	}

	var checkedBy *int
	if in.CheckedBy != 0 {
		checkedBy = &in.CheckedBy
	}
	c := QCCheck{BatchID: in.BatchID, CheckType: in.CheckType, Result: in.Result, Notes: in.Notes, CheckedBy: checkedBy}
	if err := tx.QueryRow(ctx, `
		INSERT INTO qc_checks (batch_id, check_type, result, notes, checked_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, checked_at
	`, in.BatchID, in.CheckType, in.Result, in.Notes, checkedBy).Scan(&c.ID, &c.CheckedAt); err != nil {
		return nil, fmt.Errorf("failed to insert qc check: %w", err)
	}

	if _, err := tx.Exec(ctx,
		"UPDATE production_batches SET qc_outcome = $1 WHERE id = $2", in.Result, in.BatchID,
	); err != nil {
		return nil, fmt.Errorf("failed to update qc outcome: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit qc check: %w", err)
	}
	return &c, nil
}

func (s *qcService) ListChecks(ctx context.Context, orgID, batchID int) ([]QCCheck, error) {
	if _, err := loadBatch(ctx, s.pool, orgID, batchID, false); err != nil {
		return nil, err
	}
	return listChecks(ctx, s.pool, batchID)
}

func listChecks(ctx context.Context, q pgxQuerier, batchID int) ([]QCCheck, error) {
	rows, err := q.Query(ctx, `
		SELECT id, batch_id, check_type, result, notes, checked_by, checked_at
		FROM qc_checks
		WHERE batch_id = $1
		ORDER BY checked_at, id
	`, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query qc checks: %w", err)
	}
	defer rows.Close()

	var checks []QCCheck
	for rows.Next() {
		var c QCCheck
		if err := rows.Scan(&c.ID, &c.BatchID, &c.CheckType, &c.Result, &c.Notes, &c.CheckedBy, &c.CheckedAt); err != nil {
			return nil, fmt.Errorf("failed to scan qc check: %w", err)
		}
		checks = append(checks, c)
	}
	return checks, rows.Err()
}
