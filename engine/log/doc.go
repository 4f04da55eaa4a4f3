// Package log defines the logging facade used across the engine.
//
// Components depend on the Logger interface only; the production
// implementation lives in the zap package, and NoneLogger is the
// drop-in no-op used in tests and as the zero-value default.
package log
