package config

import (
	"testing"
	"time"
)

func TestLoadEnv_Defaults(t *testing.T) {
	cfg := LoadEnv()

	if cfg.Postgres.MaxConns != 10 {
		t.Errorf("Expected default DB_MAX_CONNS=10, got %d", cfg.Postgres.MaxConns)
	}
	if cfg.Redis.IdempotencyTTL != 24*time.Hour {
		t.Errorf("Expected default idempotency TTL 24h, got %s", cfg.Redis.IdempotencyTTL)
	}
	if cfg.Policy.PermissionsFile != "config/permissions.yaml" {
		t.Errorf("Unexpected permissions file default %q", cfg.Policy.PermissionsFile)
	}
}

func TestLoadEnv_Overrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DB_MAX_CONNS", "25")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("LOGGER_DISABLE_CALLER", "true")
	t.Setenv("CLI_ORGANIZATION_ID", "7")

	cfg := LoadEnv()
	if cfg.Server.Port != "9090" {
		t.Errorf("Expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Postgres.MaxConns != 25 {
		t.Errorf("Expected max conns 25, got %d", cfg.Postgres.MaxConns)
	}
	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("Expected redis addr override, got %q", cfg.Redis.Addr)
	}
	if !cfg.Logger.DisableCaller {
		t.Error("Expected DisableCaller=true")
	}
	if cfg.CLI.OrganizationID != 7 {
		t.Errorf("Expected CLI organization 7, got %d", cfg.CLI.OrganizationID)
	}
}

func TestLoadEnv_InvalidNumbersFallBack(t *testing.T) {
	t.Setenv("DB_MAX_CONNS", "lots")
	t.Setenv("LOGGER_DISABLE_STACKTRACE", "maybe")

	cfg := LoadEnv()
	if cfg.Postgres.MaxConns != 10 {
		t.Errorf("Expected fallback 10 for unparsable int, got %d", cfg.Postgres.MaxConns)
	}
	if !cfg.Logger.DisableStacktrace {
		t.Error("Expected fallback true for unparsable bool")
	}
}

func TestIsDevelopment(t *testing.T) {
	tests := map[string]bool{
		"dev":         true,
		"Development": true,
		"local":       true,
		"production":  false,
		"staging":     false,
	}
	for env, want := range tests {
		cfg := &Config{Server: ServerConfig{AppEnv: env}}
		if got := cfg.IsDevelopment(); got != want {
			t.Errorf("IsDevelopment(%q) = %v, want %v", env, got, want)
		}
	}
}
