package retry

import "time"

// Config holds retry behaviour for one dependency.
type Config struct {
	MaxAttempts    int           // Total attempts, including the first
	BaseDelay      time.Duration // First inter-attempt delay before growth
	MaxDelay       time.Duration // Cap on any computed delay
	AttemptTimeout time.Duration // Per-attempt deadline; zero disables it
	Jitter         bool          // Add full jitter to exponential delays
	// RateLimitFactor amplifies the exponential term for rate-limit errors
	// that carry no server-provided retry-after value.
	RateLimitFactor int
	Predicate       Predicate // nil means DefaultPredicate
	// WrapBreaker runs the whole retry loop inside the dependency's circuit
	// breaker instead of leaving the breaker to the caller.
	WrapBreaker bool
}

func (c *Config) initDefaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 1
	}

	if c.BaseDelay <= 0 {
		c.BaseDelay = 500 * time.Millisecond
	}

	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}

	if c.RateLimitFactor <= 0 {
		c.RateLimitFactor = 2
	}

	if c.Predicate == nil {
		c.Predicate = DefaultPredicate
	}
}

// LedgerConfig: few attempts with generous per-attempt timeouts. Ledger
// submissions are irreversible, so the loop runs inside the ledger breaker.
func LedgerConfig() Config {
	return Config{
		MaxAttempts:    3,
		BaseDelay:      500 * time.Millisecond,
		MaxDelay:       10 * time.Second,
		AttemptTimeout: 30 * time.Second,
		Jitter:         true,
		WrapBreaker:    true,
	}
}

// VersionControlConfig: the issue-tracker API rate-limits aggressively, so
// allow more attempts and honor server retry-after values.
func VersionControlConfig() Config {
	return Config{
		MaxAttempts:     4,
		BaseDelay:       1 * time.Second,
		MaxDelay:        30 * time.Second,
		AttemptTimeout:  15 * time.Second,
		Jitter:          true,
		RateLimitFactor: 3,
		WrapBreaker:     true,
	}
}

// DatabaseConfig: quick retries without a breaker so a genuinely down store
// is surfaced rather than masked behind an open circuit.
func DatabaseConfig() Config {
	return Config{
		MaxAttempts:    5,
		BaseDelay:      100 * time.Millisecond,
		MaxDelay:       2 * time.Second,
		AttemptTimeout: 5 * time.Second,
		Jitter:         true,
		WrapBreaker:    false,
	}
}

// KeyServiceConfig: key material operations are cheap and local to the key
// service; fail fast.
func KeyServiceConfig() Config {
	return Config{
		MaxAttempts:    2,
		BaseDelay:      250 * time.Millisecond,
		MaxDelay:       2 * time.Second,
		AttemptTimeout: 5 * time.Second,
		Jitter:         true,
		WrapBreaker:    true,
	}
}
