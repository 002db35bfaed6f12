// Package logger holds the process-wide structured logger used by every engine package.
package logger

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

var (
	once      sync.Once
	singleton *log.Logger
)

func get() *log.Logger {
	once.Do(func() {
		singleton = log.NewWithOptions(os.Stderr, log.Options{
			ReportCaller:    true,
			ReportTimestamp: true,
			TimeFormat:      time.RFC3339,
			Prefix:          "oxy",
			Level:           log.InfoLevel,
		})
	})
	return singleton
}

// Get returns the shared logger.
func Get() *log.Logger {
	return get()
}

// SetLevel changes the minimum level that is emitted.
//
// Parameters:
//   - level: one of "debug", "info", "warn", "error" or "fatal"; unknown values select info
func SetLevel(level string) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	get().SetLevel(lvl)
}

// SetOutput redirects log output, mainly so tests can capture it.
func SetOutput(w io.Writer) {
	get().SetOutput(w)
}

// Debug logs msg with structured key/value pairs at debug level.
func Debug(msg string, keyvals ...any) {
	l := get()
	l.Helper()
	l.Debug(msg, keyvals...)
}

// Info logs msg with structured key/value pairs at info level.
func Info(msg string, keyvals ...any) {
	l := get()
	l.Helper()
	l.Info(msg, keyvals...)
}

// Warn logs msg with structured key/value pairs at warn level.
func Warn(msg string, keyvals ...any) {
	l := get()
	l.Helper()
	l.Warn(msg, keyvals...)
}

// Error logs msg with structured key/value pairs at error level.
func Error(msg string, keyvals ...any) {
	l := get()
	l.Helper()
	l.Error(msg, keyvals...)
}

// Fatal logs msg at fatal level and exits the process.
func Fatal(msg string, keyvals ...any) {
	l := get()
	l.Helper()
	l.Fatal(msg, keyvals...)
}
