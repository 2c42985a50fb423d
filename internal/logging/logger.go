package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process logger. Production uses JSON output; everything else
// gets the colored development encoder.
func New(env string) *zap.Logger {
	return NewTo(env, "stdout")
}

// NewTo is New writing to the given zap output paths, e.g. "stderr" for
// commands whose stdout is data.
func NewTo(env string, paths ...string) *zap.Logger {
	var config zap.Config

	if env == "production" || env == "prod" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	config.OutputPaths = paths

	logger, err := config.Build()
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}

	return logger
}

// ConfigWarnings logs the values configuration loading had to ignore.
func ConfigWarnings(logger *zap.Logger, warnings []string) {
	for _, w := range warnings {
		logger.Warn("config", zap.String("warning", w))
	}
}
