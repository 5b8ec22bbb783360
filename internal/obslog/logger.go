// Package obslog is the structured logging facade shared by the scheduler
// and the agent. It wraps go.uber.org/zap so every component logs through
// the same global *zap.SugaredLogger, switchable between a calm
// human-readable console format and JSON for machine consumption.
package obslog

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is the process-wide logger. It starts as a safe no-op so that code
// running before Initialize (during flag parsing, say) never panics on a
// nil logger.
var Log = zap.NewNop().Sugar()

// Initialize configures Log for either JSON (machine-consumable) or
// human-readable console output, and applies the given debug verbosity.
func Initialize(jsonOutput, debug bool) error {
	level := zap.InfoLevel
	if debug {
		level = zap.DebugLevel
	}

	var zl *zap.Logger
	var err error
	if jsonOutput {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(level)
		zl, err = cfg.Build()
	} else {
		zl = zap.New(zapcore.NewCore(
			newConsoleEncoder(),
			zapcore.AddSync(os.Stdout),
			level,
		))
	}
	if err != nil {
		return err
	}

	Log = zl.Sugar()
	return nil
}

// Named returns a child logger tagged with a component name, e.g.
// obslog.Named("scheduler") or obslog.Named("agent.idle-watcher").
func Named(component string) *zap.SugaredLogger {
	return Log.Named(component)
}
