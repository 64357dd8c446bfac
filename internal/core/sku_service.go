package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// SKUService is the product catalog. SKU codes are unique per organization and
// never change once created.
type SKUService interface {
	// CreateSKU inserts the SKU and its per-location seed stock atomically.
	// A duplicate code returns ErrDuplicate and writes nothing.
	CreateSKU(ctx context.Context, orgID int, in SKUInput, userID int) (*SKU, error)
	GetSKU(ctx context.Context, orgID, id int) (*SKU, error)
	GetSKUByCode(ctx context.Context, orgID int, code string) (*SKU, error)
	// ListSKUs returns all SKUs of the organization; an empty category lists both.
	ListSKUs(ctx context.Context, orgID int, category SKUCategory) ([]SKU, error)
}

type skuService struct {
	pool *pgxpool.Pool
	inv  InventoryService
}

func NewSKUService(pool *pgxpool.Pool, inv InventoryService) SKUService {
	return &skuService{pool: pool, inv: inv}
}

const skuColumns = `id, organization_id, code, name, category, unit, base_price, cost_price, is_active, created_at`

func scanSKU(row pgx.Row) (*SKU, error) {
	var s SKU
	err := row.Scan(&s.ID, &s.OrganizationID, &s.Code, &s.Name, &s.Category, &s.Unit,
		&s.BasePrice, &s.CostPrice, &s.IsActive, &s.CreatedAt)
	return &s, err
}

func validateSKUInput(in *SKUInput) error {
	in.Code = strings.ToUpper(strings.TrimSpace(in.Code))
	in.Name = strings.TrimSpace(in.Name)
	in.Unit = strings.TrimSpace(in.Unit)
	if in.Unit == "" {
		in.Unit = "unit"
	}
	if in.Code == "" {
		return validationf("sku code is required")
	}
	if in.Name == "" {
		return validationf("sku name is required")
	}
	if !in.Category.Valid() {
		return validationf("category must be RAW or FINISHED, got %q", in.Category)
	}
	if in.BasePrice.IsNegative() || in.CostPrice.IsNegative() {
		return validationf("prices can not be negative")
	}
	seen := make(map[int]bool)
	for _, seed := range in.Locations {
		if seen[seed.LocationID] {
			return validationf("location %d listed twice", seed.LocationID)
		}
		seen[seed.LocationID] = true
		if seed.InitialQuantity.IsNegative() || seed.ReorderLevel.IsNegative() || seed.ReorderQuantity.IsNegative() {
			return validationf("seed stock for location %d can not be negative", seed.LocationID)
		}
	}
	return nil
}

func (s *skuService) CreateSKU(ctx context.Context, orgID int, in SKUInput, userID int) (*SKU, error) {
	if err := validateSKUInput(&in); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	sku, err := scanSKU(tx.QueryRow(ctx, `
		INSERT INTO skus (organization_id, code, name, category, unit, base_price, cost_price)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+skuColumns,
		orgID, in.Code, in.Name, in.Category, in.Unit, in.BasePrice, in.CostPrice))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: sku code %s already exists", ErrDuplicate, in.Code)
		}
		return nil, fmt.Errorf("failed to insert sku: %w", err)
	}

	ref := MovementRef{ReferenceType: "sku", ReferenceID: sku.Code, Reason: "initial stock", UserID: userID}
	for _, seed := range in.Locations {
		if _, err := loadLocation(ctx, tx, orgID, seed.LocationID); err != nil {
			return nil, err
		}
		if _, err := s.inv.UpsertInitialStockTx(ctx, tx, orgID, sku.ID, seed, ref); err != nil {
			return nil, fmt.Errorf("failed to seed stock for %s at location %d: %w", sku.Code, seed.LocationID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit sku %s: %w", sku.Code, err)
	}
	return sku, nil
}

func (s *skuService) GetSKU(ctx context.Context, orgID, id int) (*SKU, error) {
	return loadSKU(ctx, s.pool, orgID, id)
}

func (s *skuService) GetSKUByCode(ctx context.Context, orgID int, code string) (*SKU, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	sku, err := scanSKU(s.pool.QueryRow(ctx,
		"SELECT "+skuColumns+" FROM skus WHERE organization_id = $1 AND code = $2", orgID, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: code %s", ErrSKUNotFound, code)
		}
		return nil, fmt.Errorf("failed to fetch sku %s: %w", code, err)
	}
	return sku, nil
}

func (s *skuService) ListSKUs(ctx context.Context, orgID int, category SKUCategory) ([]SKU, error) {
	if category != "" && !category.Valid() {
		return nil, validationf("category must be RAW or FINISHED, got %q", category)
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+skuColumns+`
		FROM skus
		WHERE organization_id = $1 AND ($2 = '' OR category = $2)
		ORDER BY code
	`, orgID, string(category))
	if err != nil {
		return nil, fmt.Errorf("failed to query skus: %w", err)
	}
	defer rows.Close()

	var skus []SKU
	for rows.Next() {
		sku, err := scanSKU(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sku: %w", err)
		}
		skus = append(skus, *sku)
	}
	return skus, rows.Err()
}

func loadSKU(ctx context.Context, q pgxQuerier, orgID, id int) (*SKU, error) {
	sku, err := scanSKU(q.QueryRow(ctx,
		"SELECT "+skuColumns+" FROM skus WHERE id = $1 AND organization_id = $2", id, orgID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %d", ErrSKUNotFound, id)
		}
		return nil, fmt.Errorf("failed to fetch sku %d: %w", id, err)
	}
	return sku, nil
}

// requireCategory loads the SKU and rejects it unless it has the wanted category.
func requireCategory(ctx context.Context, q pgxQuerier, orgID, id int, want SKUCategory) (*SKU, error) {
	sku, err := loadSKU(ctx, q, orgID, id)
	if err != nil {
		return nil, err
	}
	if sku.Category != want {
		return nil, validationf("sku %s is %s, expected %s", sku.Code, sku.Category, want)
	}
	return sku, nil
}

// deriveSKUCode builds a catalog code from a free-text product name:
// "Whole Milk 2%" becomes "WHOLE-MILK-2".
func deriveSKUCode(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToUpper(name) {
		switch {
		case (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	code := strings.TrimSuffix(b.String(), "-")
	if code == "" {
		code = "SKU"
	}
	if len(code) > 40 {
		code = strings.TrimSuffix(code[:40], "-")
	}
	return code
}

// createRawSKUTx inserts a RAW SKU for a name seen on a purchase receipt. When the
// derived code is already taken a numeric suffix is appended.
func createRawSKUTx(ctx context.Context, tx pgx.Tx, orgID int, name string, cost decimal.Decimal) (*SKU, error) {
	base := deriveSKUCode(name)
	for attempt := 1; attempt <= 50; attempt++ {
		code := base
		if attempt > 1 {
			code = fmt.Sprintf("%s-%d", base, attempt)
		}
		sku, err := scanSKU(tx.QueryRow(ctx, `
			INSERT INTO skus (organization_id, code, name, category, unit, cost_price)
			VALUES ($1, $2, $3, 'RAW', 'unit', $4)
			ON CONFLICT (organization_id, code) DO NOTHING
			RETURNING `+skuColumns,
			orgID, code, name, cost))
		if errors.Is(err, pgx.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create sku for %q: %w", name, err)
		}
		return sku, nil
	}
	return nil, fmt.Errorf("%w: no free sku code for %q", ErrDuplicate, name)
}
