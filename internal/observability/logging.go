// Package observability builds the process loggers.
//
// Library packages receive a *zap.Logger from their caller; commands
// use the package-level CLILogger, which Init replaces once
// configuration has been loaded.
package observability

import (
	"fmt"

	"go.uber.org/zap"
)

// CLILogger is the process-wide logger. It starts as a no-op so code
// that logs before Init never panics.
var CLILogger = zap.NewNop()

// Config controls logger construction.
type Config struct {
	// Level is a zap level string: debug, info, warn, error.
	// Empty means info.
	Level string

	// Encoding selects the output shape: console or json.
	// Empty means console.
	Encoding string
}

// NewLogger builds a logger from config.
func NewLogger(cfg Config) (*zap.Logger, error) {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", cfg.Level, err)
	}

	var zcfg zap.Config
	switch cfg.Encoding {
	case "console", "":
		zcfg = zap.NewDevelopmentConfig()
	case "json":
		zcfg = zap.NewProductionConfig()
	default:
		return nil, fmt.Errorf("unknown log encoding %q", cfg.Encoding)
	}
	zcfg.Level = level
	// Stack traces on warnings drown the useful line; errors keep them.
	zcfg.Development = false

	return zcfg.Build()
}

// Init replaces CLILogger with a configured logger.
func Init(cfg Config) error {
	logger, err := NewLogger(cfg)
	if err != nil {
		return err
	}
	CLILogger = logger
	return nil
}

// Sync flushes buffered log entries. Call before process exit.
func Sync() {
	_ = CLILogger.Sync()
}
