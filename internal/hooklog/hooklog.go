// Package hooklog provides the shared diagnostic logger for hook
// handlers. Hooks own stdout for their payload, so everything here
// goes to stderr; the default level is warn so transcripts stay quiet
// unless something actually needs attention.
package hooklog

import (
	"os"
	"sync"

	"github.com/charmbracelet/log"
)

// DebugEnv raises the log level to debug when set truthy.
const DebugEnv = "CREWKIT_DEBUG"

var (
	once   sync.Once
	logger *log.Logger
)

// Logger returns the process-wide hook logger, building it on first use.
func Logger() *log.Logger {
	once.Do(func() {
		logger = log.NewWithOptions(os.Stderr, log.Options{
			ReportTimestamp: false,
			Level:           level(),
			Prefix:          "crewkit",
		})
	})
	return logger
}

func level() log.Level {
	switch os.Getenv(DebugEnv) {
	case "1", "true", "yes":
		return log.DebugLevel
	}
	return log.WarnLevel
}

// Debug logs at debug level; visible only with CREWKIT_DEBUG=1.
func Debug(msg string, keyvals ...any) { Logger().Debug(msg, keyvals...) }

// Warn logs a recoverable problem the hook worked around.
func Warn(msg string, keyvals ...any) { Logger().Warn(msg, keyvals...) }

// Error logs a failure the hook absorbed instead of propagating.
func Error(msg string, keyvals ...any) { Logger().Error(msg, keyvals...) }
