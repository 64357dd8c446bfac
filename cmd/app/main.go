// app runs one-shot operator commands against the ledger.
//
// Usage: go run ./cmd/app <command> [args]
package main

import (
	"context"
	"errors"
	"log"
	"os"

	"github.com/itsyousal/TDHEMS-sub002/internal/adapters/cli"
	"github.com/itsyousal/TDHEMS-sub002/internal/app"
	"github.com/itsyousal/TDHEMS-sub002/internal/config"
	"github.com/itsyousal/TDHEMS-sub002/internal/core"
	"github.com/itsyousal/TDHEMS-sub002/internal/db"
	"github.com/itsyousal/TDHEMS-sub002/internal/logger"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg := config.LoadEnv()
	// Commands write to stdout; keep the logger out of the way unless asked.
	if _, set := os.LookupEnv("LOGGER_LEVEL"); !set {
		cfg.Logger.Level = "warn"
	}

	zl, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer zl.Sync()

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.Postgres)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer pool.Close()

	policy, err := core.LoadPolicyFile(cfg.Policy.PermissionsFile)
	if err != nil {
		log.Fatalf("Failed to load permission policy: %v", err)
	}

	svc := app.NewAppService(pool, core.NewPolicyGateway(pool, policy, zl), nil, zl)
	actor := core.Actor{
		UserID:         cfg.CLI.UserID,
		OrganizationID: cfg.CLI.OrganizationID,
		Role:           cfg.CLI.Role,
		RequestID:      "cli",
	}

	if err := cli.Run(ctx, svc, actor, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, cli.ErrUsage) {
			log.Print(err)
			os.Exit(2)
		}
		log.Fatal(err)
	}
}
