// Package logging sets up the host's structured logger.
//
// The severity tiers mirror the host-log extension clapgo forwards plugin
// diagnostics through (pkg/host/logger.go in the teacher tree): Debug,
// Info, Warning, Error, Fatal. Here the host is the one producing log
// lines, not relaying a plugin's, so this wraps charmbracelet/log instead
// of a C callback.
package logging

import (
	"os"

	"github.com/charmbracelet/log"
)

// Logger is the host's log sink. Safe for concurrent use from the MIDI
// reader, OSC dispatcher, and liaison goroutines; never call it from the
// audio callback (it allocates and may perform I/O).
type Logger struct {
	l *log.Logger
}

// New builds a Logger that writes to stderr with the host's identifying
// prefix. When verbose is false, Debug-level lines are suppressed.
func New(verbose bool) *Logger {
	l := log.NewWithOptions(os.Stderr, log.Options{
		Prefix:          "dssihost",
		ReportTimestamp: true,
	})
	if verbose {
		l.SetLevel(log.DebugLevel)
	} else {
		l.SetLevel(log.InfoLevel)
	}
	return &Logger{l: l}
}

func (lg *Logger) Debug(msg string, kv ...any) { lg.l.Debug(msg, kv...) }
func (lg *Logger) Info(msg string, kv ...any)   { lg.l.Info(msg, kv...) }
func (lg *Logger) Warn(msg string, kv ...any)   { lg.l.Warn(msg, kv...) }
func (lg *Logger) Error(msg string, kv ...any)  { lg.l.Error(msg, kv...) }

// Fatal logs at fatal level and exits the process with status 1. Only
// ever called from cmd/dssihost before the audio callback is activated.
func (lg *Logger) Fatal(msg string, kv ...any) {
	lg.l.Fatal(msg, kv...)
}

// With returns a child logger carrying a fixed set of key/value fields,
// e.g. the instance's friendly name.
func (lg *Logger) With(kv ...any) *Logger {
	return &Logger{l: lg.l.With(kv...)}
}
