// Package datastore logging setup: per-package rotating file logger with a
// no-op fallback when file setup fails.
package datastore

import (
	"log/slog"
	"sync"

	"github.com/casetrail/casetrail/internal/logging"
)

var (
	datastoreLogger   *slog.Logger
	datastoreLevelVar = new(slog.LevelVar)
	loggerCloseFunc   func() error
	loggerOnce        sync.Once

	// logs/ is the project-wide location for per-service log files.
	defaultLogPath = "logs/datastore.log"
)

// getLogger returns the package logger, initializing it on first use.
func getLogger() *slog.Logger {
	loggerOnce.Do(func() {
		datastoreLevelVar.Set(slog.LevelInfo)
		var err error
		datastoreLogger, loggerCloseFunc, err = logging.NewFileLogger(defaultLogPath, "datastore", datastoreLevelVar)
		if err != nil {
			// Fall back to the shared structured logger rather than failing.
			datastoreLogger = logging.ForService("datastore")
			if datastoreLogger == nil {
				datastoreLogger = slog.Default().With("service", "datastore")
			}
			loggerCloseFunc = func() error { return nil }
			datastoreLogger.Warn("file logger unavailable, using default logger", "error", err)
		}
	})
	return datastoreLogger
}

// SetLogLevel adjusts the datastore log verbosity at runtime.
func SetLogLevel(level slog.Level) {
	datastoreLevelVar.Set(level)
}

// CloseLogger releases the log file writer. Call during shutdown.
func CloseLogger() error {
	if loggerCloseFunc != nil {
		return loggerCloseFunc()
	}
	return nil
}
