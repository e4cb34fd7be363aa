package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"reorder-engine/config"
)

// New builds the process-wide zap logger from config.
// Encoding "console" is meant for local development; production uses "json".
func New(cfg config.LoggerConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	zc := zap.NewProductionConfig()
	if cfg.Encoding == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.Encoding = cfg.Encoding

	return zc.Build()
}
