package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type BatchAction string

const (
	ActionStart    BatchAction = "start"
	ActionComplete BatchAction = "complete"
	ActionDelay    BatchAction = "delay"
)

// ParseBatchAction accepts the action names case-insensitively.
func ParseBatchAction(s string) (BatchAction, error) {
	switch a := BatchAction(strings.ToLower(strings.TrimSpace(s))); a {
	case ActionStart, ActionComplete, ActionDelay:
		return a, nil
	}
	return "", fmt.Errorf("%w: %q (must be start, complete or delay)", ErrInvalidAction, s)
}

var batchTransitions = map[LifecycleState]map[BatchAction]LifecycleState{
	StatePlanned: {
		ActionStart:    StateInProgress,
		ActionDelay:    StateDelayed,
		ActionComplete: StateCompleted,
	},
	StateInProgress: {
		ActionDelay:    StateDelayed,
		ActionComplete: StateCompleted,
	},
	StateDelayed: {
		ActionStart:    StateInProgress,
		ActionComplete: StateCompleted,
	},
	// COMPLETED is terminal.
}

// NextState returns the state reached by applying action to from.
func NextState(from LifecycleState, action BatchAction) (LifecycleState, error) {
	to, ok := batchTransitions[from][action]
	if !ok {
		return from, fmt.Errorf("%w: cannot %s a batch in state %s", ErrInvalidTransition, action, from)
	}
	return to, nil
}

// resolveYield picks the quantity of finished goods a completed batch produced.
// There is no implicit default: a batch with neither value can not complete.
func resolveYield(b *ProductionBatch) (decimal.Decimal, error) {
	var y *decimal.Decimal
	switch {
	case b.YieldQuantity != nil:
		y = b.YieldQuantity
	case b.YieldActual != nil:
		y = b.YieldActual
	default:
		return decimal.Zero, fmt.Errorf("%w: batch %s has neither yield_quantity nor yield_actual", ErrYieldNotRecorded, b.BatchNumber)
	}
	if !y.IsPositive() {
		return decimal.Zero, validationf("batch %s yield must be positive, got %s", b.BatchNumber, y)
	}
	return *y, nil
}
