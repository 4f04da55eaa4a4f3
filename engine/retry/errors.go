package retry

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"

	"github.com/bountybase/engine/engine/circuitbreaker"
)

// RetryableError is implemented by errors that carry their own retryability
// flag. The default predicate defers to it when present.
type RetryableError interface {
	error
	Retryable() bool
}

// TimeoutError indicates a single attempt exceeded its per-attempt timeout.
// The underlying operation may still be in flight.
type TimeoutError struct {
	Dependency string
	Timeout    time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("operation against %s timed out after %s", e.Dependency, e.Timeout)
}

// Retryable implements RetryableError: timeouts are transient.
func (e *TimeoutError) Retryable() bool { return true }

// RateLimitError indicates the dependency rejected the call for rate
// limiting. RetryAfter carries the server-provided wait when available;
// zero means the server gave none.
type RateLimitError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("rate limited (retry after %s): %v", e.RetryAfter, e.Err)
	}

	return fmt.Sprintf("rate limited (retry after %s)", e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// Retryable implements RetryableError: rate limits are transient.
func (e *RateLimitError) Retryable() bool { return true }

// Predicate decides per error and attempt index whether to keep retrying.
// attempt is zero-based; the executor itself enforces the attempt cap.
type Predicate func(err error, attempt int) bool

// DefaultPredicate retries timeouts and transient network errors, defers to
// an error's own Retryable flag when present, and never retries a call
// short-circuited by an open breaker.
func DefaultPredicate(err error, _ int) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, circuitbreaker.ErrOpen) {
		return false
	}

	var retryable RetryableError
	if errors.As(err, &retryable) {
		return retryable.Retryable()
	}

	return isTransientNetworkError(err)
}

func isTransientNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE)
}
