// migrate applies pending schema migrations.
//
// Usage: go run ./cmd/migrate
package main

import (
	"context"
	"log"

	"github.com/itsyousal/TDHEMS-sub002/internal/config"
	"github.com/itsyousal/TDHEMS-sub002/internal/db"
	"github.com/itsyousal/TDHEMS-sub002/internal/logger"
	"github.com/itsyousal/TDHEMS-sub002/migrations"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	cfg := config.LoadEnv()

	zl, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer zl.Sync()

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.Postgres)
	if err != nil {
		zl.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	applied, err := db.Migrate(ctx, pool, migrations.Files, zl)
	if err != nil {
		zl.Fatal("migration failed", zap.Int("applied", applied), zap.Error(err))
	}
	zl.Info("migrations complete", zap.Int("applied", applied))
}
