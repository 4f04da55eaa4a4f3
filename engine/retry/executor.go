package retry

import (
	"context"
	"errors"
	"time"

	"github.com/bountybase/engine/engine/backoff"
	"github.com/bountybase/engine/engine/circuitbreaker"
	"github.com/bountybase/engine/engine/log"
)

// Operation is a fallible call against an external dependency.
type Operation func(ctx context.Context) (any, error)

// Executor retries an Operation according to its Config, optionally running
// the whole loop inside the dependency's circuit breaker.
type Executor struct {
	dependency    string
	config        Config
	breakerConfig circuitbreaker.Config
	breakers      circuitbreaker.Manager
	logger        log.Logger
}

// NewExecutor builds an executor for one dependency. breakers may be nil when
// config.WrapBreaker is false.
func NewExecutor(dependency string, config Config, breakerConfig circuitbreaker.Config, breakers circuitbreaker.Manager, logger log.Logger) *Executor {
	config.initDefaults()

	if logger == nil {
		logger = &log.NoneLogger{}
	}

	return &Executor{
		dependency:    dependency,
		config:        config,
		breakerConfig: breakerConfig,
		breakers:      breakers,
		logger:        logger,
	}
}

// Ledger builds the preset executor for distributed-ledger calls.
func Ledger(breakers circuitbreaker.Manager, logger log.Logger) *Executor {
	return NewExecutor(circuitbreaker.DependencyLedger, LedgerConfig(), circuitbreaker.LedgerConfig(), breakers, logger)
}

// VersionControl builds the preset executor for issue-tracker API calls.
func VersionControl(breakers circuitbreaker.Manager, logger log.Logger) *Executor {
	return NewExecutor(circuitbreaker.DependencyVersionControl, VersionControlConfig(), circuitbreaker.VersionControlConfig(), breakers, logger)
}

// Database builds the preset executor for persistence calls. No breaker wraps
// the loop.
func Database(logger log.Logger) *Executor {
	return NewExecutor(circuitbreaker.DependencyDatabase, DatabaseConfig(), circuitbreaker.Config{}, nil, logger)
}

// KeyService builds the preset executor for wallet key service calls.
func KeyService(breakers circuitbreaker.Manager, logger log.Logger) *Executor {
	return NewExecutor(circuitbreaker.DependencyKeyService, KeyServiceConfig(), circuitbreaker.KeyServiceConfig(), breakers, logger)
}

// Dependency returns the dependency name this executor protects.
func (e *Executor) Dependency() string {
	return e.dependency
}

// Do runs op with retries. When the executor is breaker-wrapped, an open
// circuit rejects the call before any attempt is made.
func (e *Executor) Do(ctx context.Context, op Operation) (any, error) {
	if e.config.WrapBreaker && e.breakers != nil {
		e.breakers.GetOrCreate(e.dependency, e.breakerConfig)

		return e.breakers.Execute(e.dependency, func() (any, error) {
			return e.loop(ctx, op)
		})
	}

	return e.loop(ctx, op)
}

// DoWithFallback runs op with retries; when every attempt fails, fallback is
// invoked and its result returned as the success value. Fallback failures
// propagate.
func (e *Executor) DoWithFallback(ctx context.Context, op, fallback Operation) (any, error) {
	result, err := e.Do(ctx, op)
	if err == nil || fallback == nil {
		return result, err
	}

	e.logger.Warnf("All attempts against %s failed, invoking fallback: %v", e.dependency, err)

	return fallback(ctx)
}

func (e *Executor) loop(ctx context.Context, op Operation) (any, error) {
	var lastErr error

	for attempt := 0; attempt < e.config.MaxAttempts; attempt++ {
		result, err := e.attempt(ctx, op)
		if err == nil {
			return result, nil
		}

		lastErr = err

		if attempt == e.config.MaxAttempts-1 {
			break
		}

		if !e.config.Predicate(err, attempt) {
			return nil, err
		}

		delay := e.delayFor(err, attempt)
		e.logger.Debugf("Attempt %d against %s failed, retrying in %s: %v", attempt+1, e.dependency, delay, err)

		if sleepErr := backoff.SleepWithContext(ctx, delay); sleepErr != nil {
			return nil, sleepErr
		}
	}

	return nil, lastErr
}

// attempt races op against the per-attempt timeout. On timeout only the wait
// stops; the operation keeps running and a late success must be reconciled by
// the caller.
func (e *Executor) attempt(ctx context.Context, op Operation) (any, error) {
	if e.config.AttemptTimeout <= 0 {
		return op(ctx)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, e.config.AttemptTimeout)
	defer cancel()

	type outcome struct {
		result any
		err    error
	}

	done := make(chan outcome, 1)

	go func() {
		result, err := op(attemptCtx)
		done <- outcome{result: result, err: err}
	}()

	select {
	case out := <-done:
		return out.result, out.err
	case <-attemptCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		return nil, &TimeoutError{Dependency: e.dependency, Timeout: e.config.AttemptTimeout}
	}
}

// delayFor computes min(maxDelay, base * 2^attempt + jitter), except that a
// rate-limit error with a server-provided retry-after uses that value
// verbatim (capped), and one without uses an amplified exponential term.
func (e *Executor) delayFor(err error, attempt int) time.Duration {
	var rateLimit *RateLimitError
	if errors.As(err, &rateLimit) {
		if rateLimit.RetryAfter > 0 {
			return capDelay(rateLimit.RetryAfter, e.config.MaxDelay)
		}

		amplifiedBase := e.config.BaseDelay * time.Duration(e.config.RateLimitFactor)

		return capDelay(backoff.Exponential(amplifiedBase, attempt), e.config.MaxDelay)
	}

	delay := backoff.Exponential(e.config.BaseDelay, attempt)
	if e.config.Jitter {
		// Jitter bounded by the base delay keeps the sequence non-decreasing.
		delay += backoff.FullJitter(e.config.BaseDelay)
	}

	return capDelay(delay, e.config.MaxDelay)
}

func capDelay(delay, maxDelay time.Duration) time.Duration {
	if maxDelay > 0 && delay > maxDelay {
		return maxDelay
	}

	return delay
}
