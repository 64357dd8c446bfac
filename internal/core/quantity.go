package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// StockQuantities is the on-hand/reserved pair of one inventory record. Available is
// always derived, never stored independently, so the two can not drift apart.
type StockQuantities struct {
	OnHand   decimal.Decimal
	Reserved decimal.Decimal
}

func (q StockQuantities) Available() decimal.Decimal {
	return q.OnHand.Sub(q.Reserved)
}

// Valid reports whether the pair satisfies 0 <= reserved <= on-hand.
func (q StockQuantities) Valid() bool {
	return !q.OnHand.IsNegative() && !q.Reserved.IsNegative() && q.Reserved.LessThanOrEqual(q.OnHand)
}

func (q StockQuantities) Increment(qty decimal.Decimal) StockQuantities {
	return StockQuantities{OnHand: q.OnHand.Add(qty), Reserved: q.Reserved}
}

// Decrement removes qty from on-hand stock. Reserved stock is earmarked for orders
// and can not be consumed, so the check is against available rather than on-hand.
func (q StockQuantities) Decrement(qty decimal.Decimal) (StockQuantities, error) {
	if q.Available().LessThan(qty) {
		return q, fmt.Errorf("%w: available %s, required %s",
			ErrInsufficientStock, q.Available().StringFixed(4), qty.StringFixed(4))
	}
	return StockQuantities{OnHand: q.OnHand.Sub(qty), Reserved: q.Reserved}, nil
}

// AdjustFloored applies a signed correction and floors on-hand at zero without
// reporting an error. Reserved is clamped so it never exceeds the new on-hand.
func (q StockQuantities) AdjustFloored(delta decimal.Decimal) StockQuantities {
	onHand := decimal.Max(decimal.Zero, q.OnHand.Add(delta))
	return StockQuantities{OnHand: onHand, Reserved: decimal.Min(q.Reserved, onHand)}
}

func (q StockQuantities) Reserve(qty decimal.Decimal) (StockQuantities, error) {
	if q.Available().LessThan(qty) {
		return q, fmt.Errorf("%w: cannot reserve %s, available %s",
			ErrInsufficientStock, qty.StringFixed(4), q.Available().StringFixed(4))
	}
	return StockQuantities{OnHand: q.OnHand, Reserved: q.Reserved.Add(qty)}, nil
}

// Release returns reserved stock to available; releasing more than is reserved clears it.
func (q StockQuantities) Release(qty decimal.Decimal) StockQuantities {
	return StockQuantities{OnHand: q.OnHand, Reserved: decimal.Max(decimal.Zero, q.Reserved.Sub(qty))}
}

func requirePositive(field string, qty decimal.Decimal) error {
	if !qty.IsPositive() {
		return validationf("%s must be positive, got %s", field, qty)
	}
	return nil
}
