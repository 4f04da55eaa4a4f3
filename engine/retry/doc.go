// Package retry wraps fallible operations with bounded exponential backoff,
// per-attempt timeouts, and a pluggable retry predicate.
//
// Each external dependency gets a preset Executor. For the ledger and
// version-control dependencies the whole retry loop additionally runs inside
// that dependency's circuit breaker; database calls retry without a breaker
// so a genuinely down store is never masked behind an open circuit that the
// retried probe can no longer close.
//
// A timeout here only stops waiting for the in-flight call. The remote
// operation may still complete, so fund-moving callers reconcile late
// successes instead of blindly re-submitting.
package retry
