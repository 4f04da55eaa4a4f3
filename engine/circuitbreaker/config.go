package circuitbreaker

import "time"

// Dependency names used throughout the engine.
const (
	DependencyLedger         = "ledger"
	DependencyVersionControl = "version-control"
	DependencyDatabase       = "database"
	DependencyKeyService     = "key-service"
)

// DefaultConfig provides balanced settings for most dependencies.
func DefaultConfig() Config {
	return Config{
		MaxRequests:         1,
		CountsWindow:        2 * time.Minute,
		CoolDown:            30 * time.Second,
		ConsecutiveFailures: 5,
		FailureRatio:        0.5,
		MinRequests:         10,
	}
}

// LedgerConfig is tuned for the distributed ledger. Submissions are
// irreversible, so the circuit opens quickly and re-probes with a single
// trial call.
func LedgerConfig() Config {
	return Config{
		MaxRequests:         1,
		CountsWindow:        2 * time.Minute,
		CoolDown:            30 * time.Second,
		ConsecutiveFailures: 5,
		FailureRatio:        0.5,
		MinRequests:         10,
	}
}

// VersionControlConfig is tuned for the version-control API, which is a
// best-effort collaborator: fail fast, recover fast.
func VersionControlConfig() Config {
	return Config{
		MaxRequests:         1,
		CountsWindow:        1 * time.Minute,
		CoolDown:            20 * time.Second,
		ConsecutiveFailures: 5,
		FailureRatio:        0.4,
		MinRequests:         5,
	}
}

// DatabaseConfig is tolerant of failures since the store should be stable
// and temporary network issues should not immediately trip the breaker.
func DatabaseConfig() Config {
	return Config{
		MaxRequests:         3,
		CountsWindow:        3 * time.Minute,
		CoolDown:            15 * time.Second,
		ConsecutiveFailures: 10,
		FailureRatio:        0.6,
		MinRequests:         15,
	}
}

// KeyServiceConfig is tuned for the wallet key service.
func KeyServiceConfig() Config {
	return Config{
		MaxRequests:         1,
		CountsWindow:        2 * time.Minute,
		CoolDown:            30 * time.Second,
		ConsecutiveFailures: 5,
		FailureRatio:        0.5,
		MinRequests:         10,
	}
}
