// Package logging provides zap logger helpers.
package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// L is the process-wide logger. It defaults to a no-op logger so packages can
// log safely before InitLogger runs (for example during config bootstrap).
var L = zap.NewNop()

// InitLogger replaces L with a real logger. The WBSTATS_DEV environment
// variable switches to the human-readable development encoder. Called once
// from the CLI entry point before any command executes.
func InitLogger() {
	development := os.Getenv("WBSTATS_DEV") != ""
	logger, err := New(development)
	if err != nil {
		// Logging is the one service we cannot report failures through.
		panic(fmt.Sprintf("initialize logger: %v", err))
	}
	L = logger
}

// New builds a zap.Logger configured for development or production.
func New(development bool) (*zap.Logger, error) {
	if development {
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		logger, err := cfg.Build()
		if err != nil {
			return nil, fmt.Errorf("build dev logger: %w", err)
		}
		return logger, nil
	}
	cfg := zap.NewProductionConfig()
	cfg.DisableStacktrace = false
	cfg.EncoderConfig.TimeKey = "ts"
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build prod logger: %w", err)
	}
	return logger, nil
}
