package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the process-wide sugared logger. It starts as a safe no-op so
// packages that log during init (before Initialize runs, e.g. in tests)
// never hit a nil pointer.
var Logger = zap.NewNop().Sugar()

// Initialize sets up the global logger. jsonOutput selects structured
// JSON (for log aggregation when the server runs headless) versus a
// calm, colorized single-line console encoder for interactive use.
func Initialize(jsonOutput bool) error {
	var zapLogger *zap.Logger
	var err error

	if jsonOutput {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
		zapLogger, err = cfg.Build()
	} else {
		zapLogger = zap.New(
			zapcore.NewCore(
				newMinimalEncoder(),
				zapcore.AddSync(os.Stdout),
				zap.InfoLevel,
			),
		)
	}
	if err != nil {
		return err
	}

	Logger = zapLogger.Sugar()
	return nil
}

// Named returns a child logger scoped to a component, mirroring the
// teacher's convention of naming loggers after the subsystem that owns
// them (e.g. "aggregator", "instrument", "wireclient").
func Named(component string) *zap.SugaredLogger {
	return Logger.Named(component)
}
