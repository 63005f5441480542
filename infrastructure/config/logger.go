package config

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the application logger. The returned level can be
// changed at runtime.
func NewLogger(cfg *Config) (*zap.Logger, zap.AtomicLevel, error) {
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, zap.AtomicLevel{}, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	logger, err := BuildLogger(cfg, level)
	if err != nil {
		return nil, zap.AtomicLevel{}, err
	}
	return logger, level, nil
}

// BuildLogger builds a logger bound to an existing level
func BuildLogger(cfg *Config, level zap.AtomicLevel) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.IsProduction() {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = level
	return zcfg.Build()
}

// LevelUpdater returns a watcher handler applying log level changes
func LevelUpdater(level zap.AtomicLevel, logger *zap.Logger) func(old, updated *Config) {
	return func(old, updated *Config) {
		var l zapcore.Level
		if err := l.UnmarshalText([]byte(updated.LogLevel)); err != nil {
			logger.Warn("Ignoring invalid log level", zap.String("level", updated.LogLevel))
			return
		}
		level.SetLevel(l)
	}
}
