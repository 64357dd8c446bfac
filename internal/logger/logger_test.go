package logger

import (
	"testing"

	"github.com/itsyousal/TDHEMS-sub002/internal/config"

	"go.uber.org/zap/zapcore"
)

func TestNew_InvalidLevel(t *testing.T) {
	cfg := &config.Config{Logger: config.LoggerConfig{Level: "loud"}}
	if _, err := New(cfg); err == nil {
		t.Fatal("Expected error for unknown level")
	}
}

func TestNew_KeepsConfiguredLevelInDevelopment(t *testing.T) {
	cfg := &config.Config{
		Server: config.ServerConfig{AppEnv: "dev"},
		Logger: config.LoggerConfig{Level: "warn", Encoding: "console"},
	}
	log, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer log.Sync()

	if log.Core().Enabled(zapcore.InfoLevel) {
		t.Error("Expected info to be disabled at warn level")
	}
	if !log.Core().Enabled(zapcore.WarnLevel) {
		t.Error("Expected warn to be enabled")
	}
}
