package log

import (
	"fmt"
	"log"
)

// GoLogger is the Go built-in (log) implementation of the Logger interface.
//
// All string arguments are sanitized to prevent log injection (CWE-117).
type GoLogger struct {
	Level  LogLevel
	fields []any
}

// IsLevelEnabled checks if the given level is enabled.
func (l *GoLogger) IsLevelEnabled(level LogLevel) bool {
	if l == nil {
		return false
	}

	return l.Level >= level
}

func (l *GoLogger) print(level LogLevel, args ...any) {
	prefix := fmt.Sprintf("level=%s", level)
	if len(l.fields) > 0 {
		prefix = fmt.Sprintf("%s fields=%v", prefix, SanitizeLogArgs(l.fields))
	}

	log.Print(prefix + " " + fmt.Sprint(SanitizeLogArgs(args)...))
}

// Info implements the Logger interface function.
func (l *GoLogger) Info(args ...any) {
	if l.IsLevelEnabled(InfoLevel) {
		l.print(InfoLevel, args...)
	}
}

// Infof implements the Logger interface function.
func (l *GoLogger) Infof(format string, args ...any) {
	if l.IsLevelEnabled(InfoLevel) {
		l.print(InfoLevel, fmt.Sprintf(SanitizeLogString(format), args...))
	}
}

// Warn implements the Logger interface function.
func (l *GoLogger) Warn(args ...any) {
	if l.IsLevelEnabled(WarnLevel) {
		l.print(WarnLevel, args...)
	}
}

// Warnf implements the Logger interface function.
func (l *GoLogger) Warnf(format string, args ...any) {
	if l.IsLevelEnabled(WarnLevel) {
		l.print(WarnLevel, fmt.Sprintf(SanitizeLogString(format), args...))
	}
}

// Error implements the Logger interface function.
func (l *GoLogger) Error(args ...any) {
	if l.IsLevelEnabled(ErrorLevel) {
		l.print(ErrorLevel, args...)
	}
}

// Errorf implements the Logger interface function.
func (l *GoLogger) Errorf(format string, args ...any) {
	if l.IsLevelEnabled(ErrorLevel) {
		l.print(ErrorLevel, fmt.Sprintf(SanitizeLogString(format), args...))
	}
}

// Debug implements the Logger interface function.
func (l *GoLogger) Debug(args ...any) {
	if l.IsLevelEnabled(DebugLevel) {
		l.print(DebugLevel, args...)
	}
}

// Debugf implements the Logger interface function.
func (l *GoLogger) Debugf(format string, args ...any) {
	if l.IsLevelEnabled(DebugLevel) {
		l.print(DebugLevel, fmt.Sprintf(SanitizeLogString(format), args...))
	}
}

// WithFields implements the Logger interface function.
func (l *GoLogger) WithFields(fields ...any) Logger {
	merged := make([]any, 0, len(l.fields)+len(fields))
	merged = append(merged, l.fields...)
	merged = append(merged, fields...)

	return &GoLogger{
		Level:  l.Level,
		fields: merged,
	}
}

// Sync implements the Logger interface function. The built-in logger writes
// unbuffered, so there is nothing to flush.
func (l *GoLogger) Sync() error {
	return nil
}
