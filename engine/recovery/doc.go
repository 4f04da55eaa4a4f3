// Package recovery drives manual and health-check-triggered recovery of
// the engine's external dependencies: breaker resets, re-probes, and the
// ordered full-system sequence. Only one recovery runs at a time; callers
// racing an in-flight one are rejected, not queued.
package recovery
