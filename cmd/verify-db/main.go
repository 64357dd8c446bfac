// verify-db checks the ledger and lot traceability invariants against a live
// database and exits non-zero if any row violates them.
//
// Usage: go run ./cmd/verify-db
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/itsyousal/TDHEMS-sub002/internal/config"
	"github.com/itsyousal/TDHEMS-sub002/internal/core"
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

	violations, err := core.VerifyInvariants(ctx, pool)
	if err != nil {
		log.Fatalf("Verification failed: %v", err)
	}
	if len(violations) == 0 {
		fmt.Println("All invariants hold.")
		return
	}
	for _, v := range violations {
		fmt.Printf("FAIL [%s] %s: %s\n", v.Check, v.Entity, v.Detail)
	}
	os.Exit(1)
}
