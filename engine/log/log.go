package log

import (
	"fmt"
	"strings"
)

// Logger is the engine-wide logging interface.
type Logger interface {
	Info(args ...any)
	Infof(format string, args ...any)
	Warn(args ...any)
	Warnf(format string, args ...any)
	Error(args ...any)
	Errorf(format string, args ...any)
	Debug(args ...any)
	Debugf(format string, args ...any)

	// WithFields returns a child logger with key/value pairs attached to
	// every subsequent log entry.
	WithFields(fields ...any) Logger

	// Sync flushes any buffered log entries.
	Sync() error
}

// LogLevel represents the level of verbosity, ordered from most severe (0)
// to most verbose. Setting a logger to a level enables that level and every
// more severe one.
type LogLevel uint8

const (
	// ErrorLevel logs only errors.
	ErrorLevel LogLevel = iota
	// WarnLevel logs errors and warnings.
	WarnLevel
	// InfoLevel logs errors, warnings, and informational entries.
	InfoLevel
	// DebugLevel logs everything.
	DebugLevel
)

// String returns the string representation of a log level.
func (level LogLevel) String() string {
	switch level {
	case DebugLevel:
		return "debug"
	case InfoLevel:
		return "info"
	case WarnLevel:
		return "warn"
	case ErrorLevel:
		return "error"
	default:
		return "unknown"
	}
}

// ParseLevel takes a string level and returns the LogLevel constant.
func ParseLevel(lvl string) (LogLevel, error) {
	switch strings.ToLower(lvl) {
	case "debug":
		return DebugLevel, nil
	case "info":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	}

	var l LogLevel

	return l, fmt.Errorf("not a valid LogLevel: %q", lvl)
}
