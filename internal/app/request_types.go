package app

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateLocationRequest is the input for registering a location.
type CreateLocationRequest struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// CreateSKURequest is the input for creating a SKU with per-location seed stock.
type CreateSKURequest struct {
	Code      string             `json:"code"`
	Name      string             `json:"name"`
	Unit      string             `json:"unit"`
	Category  string             `json:"category"`
	BasePrice decimal.Decimal    `json:"basePrice"`
	CostPrice decimal.Decimal    `json:"costPrice"`
	Locations []SeedStockRequest `json:"locations"`
}

// SeedStockRequest is the opening stock and reorder parameters of a new SKU at one location.
type SeedStockRequest struct {
	LocationID      int             `json:"locationId"`
	CurrentStock    decimal.Decimal `json:"currentStock"`
	ReorderPoint    decimal.Decimal `json:"reorderPoint"`
	ReorderQuantity decimal.Decimal `json:"reorderQuantity"`
}

// AdjustInventoryRequest is the external "adjust inventory" call.
type AdjustInventoryRequest struct {
	SKU        string          `json:"sku"`
	LocationID int             `json:"locationId"`
	Delta      decimal.Decimal `json:"delta"`
	Reason     string          `json:"reason"`
}

// ReservationRequest reserves or releases stock of one SKU at one location.
type ReservationRequest struct {
	LocationID int             `json:"locationId"`
	SKUID      int             `json:"skuId"`
	Quantity   decimal.Decimal `json:"quantity"`
	Reference  string          `json:"reference"`
}

// PurchaseReceiptRequest is a supplier delivery into one location.
// IdempotencyKey is optional and normally taken from the Idempotency-Key header.
type PurchaseReceiptRequest struct {
	LocationID     int                   `json:"locationId"`
	Reference      string                `json:"reference"`
	Items          []PurchaseItemRequest `json:"items"`
	IdempotencyKey string                `json:"-"`
}

// PurchaseItemRequest names the SKU by id, or by name for unknown raw materials.
type PurchaseItemRequest struct {
	SKUID     int             `json:"skuId"`
	SKUName   string          `json:"skuName"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// CreateBatchRequest plans a production batch.
type CreateBatchRequest struct {
	BatchNumber     string              `json:"batchNumber"`
	LocationID      int                 `json:"locationId"`
	SKUID           int                 `json:"skuId"`
	PlannedQuantity decimal.Decimal     `json:"plannedQuantity"`
	YieldQuantity   *decimal.Decimal    `json:"yieldQuantity"`
	PlannedDate     string              `json:"plannedDate"` // YYYY-MM-DD, optional
	Notes           string              `json:"notes"`
	Ingredients     []IngredientRequest `json:"ingredients"`
}

type IngredientRequest struct {
	SKUID            int             `json:"skuId"`
	RequiredQuantity decimal.Decimal `json:"requiredQuantity"`
}

type RecordYieldRequest struct {
	YieldActual decimal.Decimal `json:"yieldActual"`
}

type RecordUsageRequest struct {
	UsedQuantity decimal.Decimal `json:"usedQuantity"`
}

type QCCheckRequest struct {
	CheckType string `json:"checkType"`
	Result    string `json:"result"`
	Notes     string `json:"notes"`
}

// parsePlannedDate accepts an empty string as "no date".
func parsePlannedDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
