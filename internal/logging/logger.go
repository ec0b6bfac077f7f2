// Package logging provides a single zerolog-based global logger for
// feedsim, configured from internal/config by the CLI. The kernel
// packages (Store, Admission) do not log through it.
package logging

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	log zerolog.Logger
	mu  sync.RWMutex
)

func init() {
	initLogger("info")
}

// Init configures the global logger at the given level. Safe to call more
// than once; a later call reconfigures the logger used by Logger().
func Init(level string) {
	mu.Lock()
	defer mu.Unlock()
	initLogger(level)
}

func initLogger(level string) {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(parseLevel(level))
	log = zerolog.New(os.Stderr).With().Timestamp().Logger()
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Logger returns the current global logger.
func Logger() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return &log
}

// Info starts an info-level log entry on the global logger.
func Info() *zerolog.Event { return Logger().Info() }

// Warn starts a warn-level log entry on the global logger.
func Warn() *zerolog.Event { return Logger().Warn() }

// Error starts an error-level log entry on the global logger.
func Error() *zerolog.Event { return Logger().Error() }

// Fatal starts a fatal-level log entry on the global logger; emitting it
// terminates the process via os.Exit(1).
func Fatal() *zerolog.Event { return Logger().Fatal() }
