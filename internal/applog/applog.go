// Package applog is a thin structured-logging wrapper around log/slog,
// trimmed from the field-builder style of golivekit's pkg/logging to
// the handful of calls this module's components need.
package applog

import (
	"log/slog"
	"os"
)

// Logger is a structured logger bound to a component name.
type Logger struct {
	slog *slog.Logger
}

// New returns a Logger writing JSON records to stderr at Info level,
// tagged with component.
func New(component string) *Logger {
	h := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	return &Logger{slog: slog.New(h).With("component", component)}
}

// With returns a Logger that attaches the given key/value pairs to
// every subsequent record.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{slog: l.slog.With(args...)}
}

func (l *Logger) Info(msg string, args ...any)  { l.slog.Info(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.slog.Warn(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.slog.Error(msg, args...) }
func (l *Logger) Debug(msg string, args ...any) { l.slog.Debug(msg, args...) }
