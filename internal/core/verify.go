package core

import (
	"context"
	"fmt"
)

// Violation is one row that breaks a ledger or traceability invariant.
type Violation struct {
	Check  string `json:"check"`
	Entity string `json:"entity"`
	Detail string `json:"detail"`
}

var invariantChecks = []struct {
	name  string
	query string
}{
	{
		name: "stock_invariant",
		query: `
			SELECT 'inventory_record ' || id,
			       'quantity=' || quantity || ' reserved=' || reserved_quantity || ' available=' || available_quantity
			FROM inventory_records
			WHERE quantity < 0 OR reserved_quantity < 0 OR reserved_quantity > quantity
			   OR available_quantity <> quantity - reserved_quantity`,
	},
	{
		name: "completed_batch_lot",
		query: `
			SELECT 'batch ' || b.batch_number, 'completed with ' || COUNT(l.id) || ' lots'
			FROM production_batches b
			LEFT JOIN inventory_lots l ON l.batch_id = b.id
			WHERE b.lifecycle_state = 'COMPLETED'
			GROUP BY b.id, b.batch_number
			HAVING COUNT(l.id) <> 1`,
	},
	{
		name: "lot_without_completion",
		query: `
			SELECT 'lot ' || l.lot_number, 'batch ' || b.batch_number || ' is ' || b.lifecycle_state
			FROM inventory_lots l
			JOIN production_batches b ON b.id = l.batch_id
			WHERE b.lifecycle_state <> 'COMPLETED'`,
	},
	{
		name: "movement_chain",
		query: `
			SELECT 'inventory_record ' || ir.id, 'last movement quantity_after=' || m.quantity_after || ' record quantity=' || ir.quantity
			FROM inventory_records ir
			JOIN LATERAL (
				SELECT quantity_after FROM inventory_movements
				WHERE inventory_record_id = ir.id ORDER BY id DESC LIMIT 1
			) m ON true
			WHERE m.quantity_after <> ir.quantity`,
	},
}

// VerifyInvariants scans the whole database and returns every violation found.
// An empty result means the ledger and lot log are consistent.
func VerifyInvariants(ctx context.Context, q pgxQuerier) ([]Violation, error) {
	var violations []Violation
	for _, check := range invariantChecks {
		rows, err := q.Query(ctx, check.query)
		if err != nil {
			return nil, fmt.Errorf("failed to run check %s: %w", check.name, err)
		}
		for rows.Next() {
			v := Violation{Check: check.name}
			if err := rows.Scan(&v.Entity, &v.Detail); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan %s violation: %w", check.name, err)
			}
			violations = append(violations, v)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("error iterating %s: %w", check.name, err)
		}
	}
	return violations, nil
}
