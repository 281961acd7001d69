package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// New builds the console logger used by the CLI. Debug selects the
// development config; otherwise only warnings and errors are written.
// Both configs write to stderr so reports on stdout stay clean.
func New(debug bool) (*zap.SugaredLogger, error) {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	cfg.Encoding = "console"
	cfg.OutputPaths = []string{"stderr"}
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger.Sugar(), nil
}

// Nop is for callers that were not given a logger.
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
