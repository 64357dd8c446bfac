// seed loads a demo organization with locations, SKUs and opening stock.
// It is idempotent and safe to re-run.
//
// Usage: go run ./cmd/seed
package main

import (
	"context"
	"log"

	"github.com/itsyousal/TDHEMS-sub002/internal/config"
	"github.com/itsyousal/TDHEMS-sub002/internal/db"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg := config.LoadEnv()

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.Postgres)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer pool.Close()

	tx, err := pool.Begin(ctx)
	if err != nil {
		log.Fatalf("Failed to begin transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	log.Println("Seeding organization...")
	_, err = tx.Exec(ctx, `
		INSERT INTO organizations (code, name)
		VALUES ('DEMO', 'Demo Kitchen Co.')
		ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name;
	`)
	if err != nil {
		log.Fatalf("Failed to seed organization: %v", err)
	}

	log.Println("Seeding locations...")
	_, err = tx.Exec(ctx, `
		INSERT INTO locations (organization_id, code, name)
		SELECT o.id, l.code, l.name
		FROM organizations o
		CROSS JOIN (VALUES
		    ('CENTRAL', 'Central Kitchen'),
		    ('STORE-1', 'High Street Store')
		) AS l(code, name)
		WHERE o.code = 'DEMO'
		ON CONFLICT (organization_id, code) DO UPDATE SET name = EXCLUDED.name;
	`)
	if err != nil {
		log.Fatalf("Failed to seed locations: %v", err)
	}

	log.Println("Seeding SKUs...")
	_, err = tx.Exec(ctx, `
		INSERT INTO skus (organization_id, code, name, category, unit, base_price, cost_price)
		SELECT o.id, s.code, s.name, s.category, s.unit, s.base_price, s.cost_price
		FROM organizations o
		CROSS JOIN (VALUES
		    ('FLOUR',      'Wheat Flour',      'RAW',      'kg',   0,    0.80),
		    ('BUTTER',     'Unsalted Butter',  'RAW',      'kg',   0,    6.50),
		    ('SUGAR',      'Caster Sugar',     'RAW',      'kg',   0,    1.10),
		    ('EGGS',       'Free Range Eggs',  'RAW',      'unit', 0,    0.25),
		    ('CROISSANT',  'Butter Croissant', 'FINISHED', 'unit', 2.40, 0),
		    ('SPONGE',     'Victoria Sponge',  'FINISHED', 'unit', 14.0, 0)
		) AS s(code, name, category, unit, base_price, cost_price)
		WHERE o.code = 'DEMO'
		ON CONFLICT (organization_id, code) DO UPDATE
		  SET name = EXCLUDED.name,
		      category = EXCLUDED.category,
		      unit = EXCLUDED.unit;
	`)
	if err != nil {
		log.Fatalf("Failed to seed SKUs: %v", err)
	}

	// Opening stock only lands on records that do not exist yet, so re-runs
	// never overwrite counted quantities.
	log.Println("Seeding opening stock...")
	_, err = tx.Exec(ctx, `
		INSERT INTO inventory_records (organization_id, location_id, sku_id, quantity, reorder_level, reorder_quantity)
		SELECT o.id, l.id, s.id, v.qty, v.reorder_level, v.reorder_qty
		FROM organizations o
		JOIN locations l ON l.organization_id = o.id AND l.code = 'CENTRAL'
		JOIN (VALUES
		    ('FLOUR',  200, 50, 100),
		    ('BUTTER',  40, 10,  20),
		    ('SUGAR',   60, 15,  30),
		    ('EGGS',   360, 60, 180)
		) AS v(sku_code, qty, reorder_level, reorder_qty) ON true
		JOIN skus s ON s.organization_id = o.id AND s.code = v.sku_code
		WHERE o.code = 'DEMO'
		ON CONFLICT (organization_id, location_id, sku_id) DO NOTHING;
	`)
	if err != nil {
		log.Fatalf("Failed to seed opening stock: %v", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO inventory_movements
		    (organization_id, inventory_record_id, movement_type, quantity_change,
		     quantity_before, quantity_after, reserved_after, reference_type, reason)
		SELECT r.organization_id, r.id, 'SEED', r.quantity, 0, r.quantity, r.reserved_quantity, 'seed', 'opening stock'
		FROM inventory_records r
		JOIN organizations o ON o.id = r.organization_id AND o.code = 'DEMO'
		WHERE r.quantity > 0
		  AND NOT EXISTS (SELECT 1 FROM inventory_movements m WHERE m.inventory_record_id = r.id);
	`)
	if err != nil {
		log.Fatalf("Failed to seed opening movements: %v", err)
	}

	if err := tx.Commit(ctx); err != nil {
		log.Fatalf("Failed to commit: %v", err)
	}
	log.Println("Seed data loaded.")
}
