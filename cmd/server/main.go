package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	webAdapter "github.com/itsyousal/TDHEMS-sub002/internal/adapters/web"
	"github.com/itsyousal/TDHEMS-sub002/internal/app"
	"github.com/itsyousal/TDHEMS-sub002/internal/cache"
	"github.com/itsyousal/TDHEMS-sub002/internal/config"
	"github.com/itsyousal/TDHEMS-sub002/internal/core"
	"github.com/itsyousal/TDHEMS-sub002/internal/db"
	"github.com/itsyousal/TDHEMS-sub002/internal/logger"

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

	if cfg.JWT.SecretKey == "" {
		zl.Fatal("JWT_SECRET is not set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.Postgres)
	if err != nil {
		zl.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	policy, err := core.LoadPolicyFile(cfg.Policy.PermissionsFile)
	if err != nil {
		zl.Fatal("permission policy", zap.Error(err))
	}
	gate := core.NewPolicyGateway(pool, policy, zl)

	var guard app.IdempotencyGuard
	rdb, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		zl.Fatal("redis", zap.Error(err))
	}
	if rdb != nil {
		defer rdb.Close()
		guard = cache.NewIdempotencyStore(rdb, cfg.Redis.IdempotencyTTL)
	} else {
		zl.Warn("REDIS_ADDR is not set, purchase receipt idempotency keys are ignored")
	}

	svc := app.NewAppService(pool, gate, guard, zl)
	handler := webAdapter.NewHandler(svc, zl, webAdapter.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		JWTSecret:      cfg.JWT.SecretKey,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zl.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Server.AppEnv))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zl.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("graceful shutdown failed", zap.Error(err))
	}
}
