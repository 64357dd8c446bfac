package core

import (
	"time"

	"github.com/shopspring/decimal"
)

type LifecycleState string

const (
	StatePlanned    LifecycleState = "PLANNED"
	StateInProgress LifecycleState = "IN_PROGRESS"
	StateCompleted  LifecycleState = "COMPLETED"
	StateDelayed    LifecycleState = "DELAYED"
)

// QCOutcome is the latest inspection result of a batch. It is tracked separately from
// the manufacturing lifecycle; recording a check never changes LifecycleState.
type QCOutcome string

const (
	QCPass   QCOutcome = "PASS"
	QCFail   QCOutcome = "FAIL"
	QCRework QCOutcome = "REWORK"
)

func (o QCOutcome) Valid() bool {
	return o == QCPass || o == QCFail || o == QCRework
}

// ProductionBatch represents one manufacturing run of a finished-goods SKU at a location.
// State machine:
//
//	PLANNED → IN_PROGRESS → COMPLETED
//	PLANNED | IN_PROGRESS → DELAYED → IN_PROGRESS (resume)
//	PLANNED | IN_PROGRESS | DELAYED → COMPLETED
type ProductionBatch struct {
	ID              int               `json:"id"`
	OrganizationID  int               `json:"organization_id"`
	LocationID      int               `json:"location_id"`
	SKUID           int               `json:"sku_id"`
	SKUCode         string            `json:"sku_code"` // joined from skus
	BatchNumber     string            `json:"batch_number"`
	PlannedQuantity decimal.Decimal   `json:"planned_quantity"`
	YieldQuantity   *decimal.Decimal  `json:"yield_quantity,omitempty"`
	YieldActual     *decimal.Decimal  `json:"yield_actual,omitempty"`
	LifecycleState  LifecycleState    `json:"lifecycle_state"`
	QCOutcome       *QCOutcome        `json:"qc_outcome,omitempty"`
	PlannedDate     *time.Time        `json:"planned_date,omitempty"`
	Notes           string            `json:"notes"`
	StartedAt       *time.Time        `json:"started_at,omitempty"`
	CompletedAt     *time.Time        `json:"completed_at,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	Ingredients     []BatchIngredient `json:"ingredients,omitempty"`
}

// DisplayStatus combines lifecycle and QC outcome for presentation, e.g. "COMPLETED/QC_PASSED".
func (b *ProductionBatch) DisplayStatus() string {
	if b.QCOutcome == nil {
		return string(b.LifecycleState)
	}
	switch *b.QCOutcome {
	case QCPass:
		return string(b.LifecycleState) + "/QC_PASSED"
	case QCFail:
		return string(b.LifecycleState) + "/QC_FAILED"
	default:
		return string(b.LifecycleState) + "/QC_" + string(*b.QCOutcome)
	}
}

// BatchIngredient tracks planned vs consumed quantity of one raw material for a batch.
// UsedQuantity stays nil until consumption is recorded.
type BatchIngredient struct {
	ID               int              `json:"id"`
	BatchID          int              `json:"batch_id"`
	SKUID            int              `json:"sku_id"`
	SKUCode          string           `json:"sku_code"` // joined from skus
	RequiredQuantity decimal.Decimal  `json:"required_quantity"`
	UsedQuantity     *decimal.Decimal `json:"used_quantity,omitempty"`
}

// ConsumptionQuantity is what completion decrements: the recorded usage, else the plan.
func (i BatchIngredient) ConsumptionQuantity() decimal.Decimal {
	if i.UsedQuantity != nil {
		return *i.UsedQuantity
	}
	return i.RequiredQuantity
}

// BatchInput is used when planning a new batch.
type BatchInput struct {
	BatchNumber     string
	LocationID      int
	SKUID           int
	PlannedQuantity decimal.Decimal
	YieldQuantity   *decimal.Decimal
	PlannedDate     *time.Time
	Notes           string
	Ingredients     []IngredientInput
}

type IngredientInput struct {
	SKUID            int
	RequiredQuantity decimal.Decimal
}

// BatchFilter narrows ListBatches. Zero values mean "no filter".
type BatchFilter struct {
	State      LifecycleState
	LocationID int
}

// QCCheck is one append-only inspection record.
type QCCheck struct {
	ID        int       `json:"id"`
	BatchID   int       `json:"batch_id"`
	CheckType string    `json:"check_type"`
	Result    QCOutcome `json:"result"`
	Notes     string    `json:"notes"`
	CheckedBy *int      `json:"checked_by,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

type QCCheckInput struct {
	BatchID   int
	CheckType string
	Result    QCOutcome
	Notes     string
	CheckedBy int
}

// InventoryLot links the finished goods of one completed batch to that batch.
type InventoryLot struct {
	ID              int             `json:"id"`
	OrganizationID  int             `json:"organization_id"`
	LocationID      int             `json:"location_id"`
	SKUID           int             `json:"sku_id"`
	BatchID         int             `json:"batch_id"`
	LotNumber       string          `json:"lot_number"`
	Quantity        decimal.Decimal `json:"quantity"`
	ManufactureDate time.Time       `json:"manufacture_date"`
	CreatedAt       time.Time       `json:"created_at"`
}

// LotTrace is the full provenance of a lot: the batch that produced it, the raw
// materials it consumed, and every QC check recorded against that batch.
type LotTrace struct {
	Lot         InventoryLot      `json:"lot"`
	Batch       ProductionBatch   `json:"batch"`
	Ingredients []BatchIngredient `json:"ingredients"`
	Checks      []QCCheck         `json:"checks"`
}
