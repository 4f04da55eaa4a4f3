package zap

import (
	"context"

	logpkg "github.com/bountybase/engine/engine/log"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the zap-backed implementation of log.Logger.
type Logger struct {
	sugar       *zap.SugaredLogger
	atomicLevel zap.AtomicLevel
}

// Compile-time assertion: *Logger implements log.Logger.
var _ logpkg.Logger = (*Logger)(nil)

// InitializeLogger builds a production JSON logger whose level is taken from
// the LOG_LEVEL environment variable via ParseLevel ("info" when unset or
// malformed).
func InitializeLogger() *Logger {
	level, err := logpkg.ParseLevel(envLogLevel())
	if err != nil {
		level = logpkg.InfoLevel
	}

	atomicLevel := zap.NewAtomicLevelAt(logLevelToZap(level))

	cfg := zap.NewProductionConfig()
	cfg.Level = atomicLevel
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		logger = zap.NewNop()
	}

	return &Logger{
		sugar:       logger.Sugar(),
		atomicLevel: atomicLevel,
	}
}

func (l *Logger) must() *zap.SugaredLogger {
	if l == nil || l.sugar == nil {
		return zap.NewNop().Sugar()
	}

	return l.sugar
}

// Info implements log.Logger.
func (l *Logger) Info(args ...any) {
	l.must().Info(logpkg.SanitizeLogArgs(args)...)
}

// Infof implements log.Logger.
func (l *Logger) Infof(format string, args ...any) {
	l.must().Infof(logpkg.SanitizeLogString(format), args...)
}

// Warn implements log.Logger.
func (l *Logger) Warn(args ...any) {
	l.must().Warn(logpkg.SanitizeLogArgs(args)...)
}

// Warnf implements log.Logger.
func (l *Logger) Warnf(format string, args ...any) {
	l.must().Warnf(logpkg.SanitizeLogString(format), args...)
}

// Error implements log.Logger.
func (l *Logger) Error(args ...any) {
	l.must().Error(logpkg.SanitizeLogArgs(args)...)
}

// Errorf implements log.Logger.
func (l *Logger) Errorf(format string, args ...any) {
	l.must().Errorf(logpkg.SanitizeLogString(format), args...)
}

// Debug implements log.Logger.
func (l *Logger) Debug(args ...any) {
	l.must().Debug(logpkg.SanitizeLogArgs(args)...)
}

// Debugf implements log.Logger.
func (l *Logger) Debugf(format string, args ...any) {
	l.must().Debugf(logpkg.SanitizeLogString(format), args...)
}

// WithFields implements log.Logger.
func (l *Logger) WithFields(fields ...any) logpkg.Logger {
	return &Logger{
		sugar:       l.must().With(fields...),
		atomicLevel: l.atomicLevel,
	}
}

// WithContext returns a child logger carrying trace_id and span_id when ctx
// holds an active OpenTelemetry span, so log entries correlate with
// distributed traces.
func (l *Logger) WithContext(ctx context.Context) logpkg.Logger {
	if ctx == nil {
		return l
	}

	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return l
	}

	return l.WithFields(
		"trace_id", sc.TraceID().String(),
		"span_id", sc.SpanID().String(),
	)
}

// Sync flushes buffered log entries.
func (l *Logger) Sync() error {
	return l.must().Sync()
}

// SetLevel changes the logger's verbosity at runtime.
func (l *Logger) SetLevel(level logpkg.LogLevel) {
	if l == nil {
		return
	}

	l.atomicLevel.SetLevel(logLevelToZap(level))
}

func logLevelToZap(level logpkg.LogLevel) zapcore.Level {
	switch level {
	case logpkg.DebugLevel:
		return zapcore.DebugLevel
	case logpkg.InfoLevel:
		return zapcore.InfoLevel
	case logpkg.WarnLevel:
		return zapcore.WarnLevel
	case logpkg.ErrorLevel:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
