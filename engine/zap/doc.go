// Package zap provides the production implementation of the log.Logger
// facade on top of go.uber.org/zap, including OpenTelemetry trace/span
// correlation for request-scoped loggers.
package zap
