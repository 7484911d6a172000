// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package logging provides structured logging for the daemon.
// It wraps charmbracelet/log with a small Logger type so components
// depend on a stable surface rather than the backend directly.
package logging

import (
	"io"
	"os"
	"sync"

	charm "github.com/charmbracelet/log"
)

// Config controls logger construction.
type Config struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string
	// Output defaults to stderr.
	Output io.Writer
	// Prefix is prepended to every line (usually the component name).
	Prefix string
	// ReportTimestamp includes a timestamp on each line.
	ReportTimestamp bool
}

// DefaultConfig returns the default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:           "info",
		Output:          os.Stderr,
		ReportTimestamp: true,
	}
}

// Logger is a leveled key/value logger.
type Logger struct {
	l *charm.Logger
}

// New creates a Logger from the given configuration.
func New(cfg Config) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	l := charm.NewWithOptions(out, charm.Options{
		ReportTimestamp: cfg.ReportTimestamp,
		Prefix:          cfg.Prefix,
	})
	if lvl, err := charm.ParseLevel(cfg.Level); err == nil {
		l.SetLevel(lvl)
	}
	return &Logger{l: l}
}

// With returns a Logger that includes the given key/value pairs on
// every message.
func (lg *Logger) With(keyvals ...interface{}) *Logger {
	return &Logger{l: lg.l.With(keyvals...)}
}

// SetOutput redirects the logger's output.
func (lg *Logger) SetOutput(w io.Writer) {
	lg.l.SetOutput(w)
}

func (lg *Logger) Debug(msg string, keyvals ...interface{}) { lg.l.Debug(msg, keyvals...) }
func (lg *Logger) Info(msg string, keyvals ...interface{})  { lg.l.Info(msg, keyvals...) }
func (lg *Logger) Warn(msg string, keyvals ...interface{})  { lg.l.Warn(msg, keyvals...) }
func (lg *Logger) Error(msg string, keyvals ...interface{}) { lg.l.Error(msg, keyvals...) }

var (
	defaultMu     sync.RWMutex
	defaultLogger = New(DefaultConfig())
)

// SetDefault replaces the package-level logger.
func SetDefault(lg *Logger) {
	defaultMu.Lock()
	defaultLogger = lg
	defaultMu.Unlock()
}

// Default returns the package-level logger.
func Default() *Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// Package-level helpers on the default logger.

func Debug(msg string, keyvals ...interface{}) { Default().Debug(msg, keyvals...) }
func Info(msg string, keyvals ...interface{})  { Default().Info(msg, keyvals...) }
func Warn(msg string, keyvals ...interface{})  { Default().Warn(msg, keyvals...) }
func Error(msg string, keyvals ...interface{}) { Default().Error(msg, keyvals...) }
