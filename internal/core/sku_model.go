package core

import (
	"time"

	"github.com/shopspring/decimal"
)

type SKUCategory string

const (
	CategoryRaw      SKUCategory = "RAW"
	CategoryFinished SKUCategory = "FINISHED"
)

func (c SKUCategory) Valid() bool {
	return c == CategoryRaw || c == CategoryFinished
}

// SKU is the canonical product record. Code is unique per organization and immutable.
// Prices are carried as data only; nothing in this service recomputes them.
type SKU struct {
	ID             int             `json:"id"`
	OrganizationID int             `json:"organization_id"`
	Code           string          `json:"code"`
	Name           string          `json:"name"`
	Category       SKUCategory     `json:"category"`
	Unit           string          `json:"unit"`
	BasePrice      decimal.Decimal `json:"base_price"`
	CostPrice      decimal.Decimal `json:"cost_price"`
	IsActive       bool            `json:"is_active"`
	CreatedAt      time.Time       `json:"created_at"`
}

// SKUInput is used when creating a SKU together with its per-location seed stock.
type SKUInput struct {
	Code      string
	Name      string
	Unit      string
	BasePrice decimal.Decimal
	CostPrice decimal.Decimal
	Category  SKUCategory
	Locations []SeedStock
}
