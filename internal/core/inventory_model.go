package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Location represents a physical site stock is held at, scoped to an organization.
type Location struct {
	ID             int       `json:"id"`
	OrganizationID int       `json:"organization_id"`
	Code           string    `json:"code"`
	Name           string    `json:"name"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
}

// InventoryRecord is the single live stock row for (organization, location, sku).
type InventoryRecord struct {
	ID                int             `json:"id"`
	OrganizationID    int             `json:"organization_id"`
	LocationID        int             `json:"location_id"`
	SKUID             int             `json:"sku_id"`
	Quantity          decimal.Decimal `json:"quantity"`
	ReservedQuantity  decimal.Decimal `json:"reserved_quantity"`
	AvailableQuantity decimal.Decimal `json:"available_quantity"` // = Quantity - ReservedQuantity
	ReorderLevel      decimal.Decimal `json:"reorder_level"`
	ReorderQuantity   decimal.Decimal `json:"reorder_quantity"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

func (r *InventoryRecord) quantities() StockQuantities {
	return StockQuantities{OnHand: r.Quantity, Reserved: r.ReservedQuantity}
}

// StockLevel is a read view of an inventory record joined with sku and location info.
type StockLevel struct {
	InventoryID  int             `json:"inventory_id"`
	SKUID        int             `json:"sku_id"`
	SKUCode      string          `json:"sku_code"`
	SKUName      string          `json:"sku_name"`
	Category     SKUCategory     `json:"category"`
	LocationID   int             `json:"location_id"`
	LocationName string          `json:"location_name"`
	OnHand       decimal.Decimal `json:"on_hand"`
	Reserved     decimal.Decimal `json:"reserved"`
	Available    decimal.Decimal `json:"available"`
	ReorderLevel decimal.Decimal `json:"reorder_level"`
	BelowReorder bool            `json:"below_reorder"`
}

// StockFilter narrows ListStock. Zero values mean "no filter".
type StockFilter struct {
	LocationID int
	SKUID      int
	LowStock   bool
}

type MovementType string

const (
	MovementReceipt            MovementType = "RECEIPT"
	MovementProduction         MovementType = "PRODUCTION"
	MovementConsumption        MovementType = "CONSUMPTION"
	MovementAdjustment         MovementType = "ADJUSTMENT"
	MovementSeed               MovementType = "SEED"
	MovementReservation        MovementType = "RESERVATION"
	MovementReservationRelease MovementType = "RESERVATION_RELEASE"
)

// InventoryMovement is one append-only journal row describing a ledger mutation.
type InventoryMovement struct {
	ID                int             `json:"id"`
	InventoryRecordID int             `json:"inventory_record_id"`
	MovementType      MovementType    `json:"movement_type"`
	QuantityChange    decimal.Decimal `json:"quantity_change"`
	QuantityBefore    decimal.Decimal `json:"quantity_before"`
	QuantityAfter     decimal.Decimal `json:"quantity_after"`
	ReservedAfter     decimal.Decimal `json:"reserved_after"`
	ReferenceType     *string         `json:"reference_type,omitempty"`
	ReferenceID       *string         `json:"reference_id,omitempty"`
	Reason            string          `json:"reason"`
	CreatedBy         *int            `json:"created_by,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

// MovementRef carries the provenance of a ledger mutation into its movement row.
type MovementRef struct {
	ReferenceType string
	ReferenceID   string
	Reason        string
	UserID        int
}

// SeedStock is the per-location opening stock supplied when a SKU is created.
type SeedStock struct {
	LocationID      int
	InitialQuantity decimal.Decimal
	ReorderLevel    decimal.Decimal
	ReorderQuantity decimal.Decimal
}

// PurchaseReceiptItem identifies the received SKU by id or, failing that, by name.
// Unknown names create a new RAW sku.
type PurchaseReceiptItem struct {
	SKUID     int
	SKUName   string
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
}

type PurchaseReceipt struct {
	LocationID int
	Reference  string
	Items      []PurchaseReceiptItem
}

// ReceiptLine reports what happened to one PurchaseReceiptItem.
type ReceiptLine struct {
	SKUID      int             `json:"sku_id"`
	SKUCode    string          `json:"sku_code"`
	SKUCreated bool            `json:"sku_created"`
	Quantity   decimal.Decimal `json:"quantity"`
	Record     InventoryRecord `json:"record"`
}
