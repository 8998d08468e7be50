package config

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds a zap logger: JSON in prod, console otherwise.
func NewLogger(cfg Config) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.AppEnv == "prod" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build(zap.Fields(zap.String("service", cfg.ServiceName)))
}
