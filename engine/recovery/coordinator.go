package recovery

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/bountybase/engine/engine"
	"github.com/bountybase/engine/engine/backoff"
	"github.com/bountybase/engine/engine/circuitbreaker"
	"github.com/bountybase/engine/engine/health"
	"github.com/bountybase/engine/engine/log"
)

var (
	// ErrInProgress rejects a recovery request while another one runs.
	ErrInProgress = errors.New("recovery already in progress")
	// ErrCoolingDown rejects a recovery request inside the cool-down
	// window after the previous run.
	ErrCoolingDown = errors.New("recovery attempted too soon after the previous run")
	// ErrUnknownDependency rejects recovery of a dependency with no
	// registered probe.
	ErrUnknownDependency = errors.New("unknown dependency")
)

// Kind names a recovery sequence.
type Kind string

const (
	KindDependency  Kind = "DEPENDENCY"
	KindCircuit     Kind = "CIRCUIT"
	KindHealthCheck Kind = "HEALTH_CHECK"
	KindFullSystem  Kind = "FULL_SYSTEM"
)

// StepResult is one step of a recovery sequence.
type StepResult struct {
	Name     string        `json:"name"`
	Err      error         `json:"-"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Result is the outcome of one recovery run. Degraded marks a run that
// finished without hard failures but left the system below healthy.
type Result struct {
	Kind       Kind                    `json:"kind"`
	Success    bool                    `json:"success"`
	Degraded   bool                    `json:"degraded"`
	Steps      []StepResult            `json:"steps"`
	Circuits   []circuitbreaker.Record `json:"circuits,omitempty"`
	StartedAt  time.Time               `json:"startedAt"`
	FinishedAt time.Time               `json:"finishedAt"`
}

// Config tunes the coordinator.
type Config struct {
	// CoolDown is the minimum gap between recovery runs. The first run
	// is always allowed.
	CoolDown time.Duration
	// Stabilization is how long circuit-only recovery waits after a
	// reset before reporting the resulting state.
	Stabilization time.Duration
	// RequiredCredentials lists environment variables that must be
	// non-empty for the full-system credential step to pass.
	RequiredCredentials []string
}

// ConfigFromEnv reads the coordinator tuning from the environment.
func ConfigFromEnv() Config {
	var credentials []string

	if raw := engine.GetenvOrDefault("RECOVERY_REQUIRED_CREDENTIALS", ""); raw != "" {
		for _, name := range strings.Split(raw, ",") {
			if name = strings.TrimSpace(name); name != "" {
				credentials = append(credentials, name)
			}
		}
	}

	return Config{
		CoolDown:            engine.GetenvDurationOrDefault("RECOVERY_COOLDOWN", time.Minute),
		Stabilization:       engine.GetenvDurationOrDefault("RECOVERY_STABILIZATION", 2*time.Second),
		RequiredCredentials: credentials,
	}
}

// StoreProber checks the persistence layer's reachability.
type StoreProber interface {
	Ping(ctx context.Context) error
}

// Coordinator owns the single-flight recovery state.
type Coordinator struct {
	config   Config
	breakers circuitbreaker.Manager
	checker  *health.Checker
	store    StoreProber
	logger   log.Logger

	inFlight sync.Mutex

	mu      sync.Mutex
	probes  map[string]health.Probe
	lastRun time.Time

	now func() time.Time
}

func NewCoordinator(config Config, breakers circuitbreaker.Manager, checker *health.Checker, store StoreProber, logger log.Logger) *Coordinator {
	if logger == nil {
		logger = &log.NoneLogger{}
	}

	return &Coordinator{
		config:   config,
		breakers: breakers,
		checker:  checker,
		store:    store,
		probes:   make(map[string]health.Probe),
		logger:   logger,
		now:      time.Now,
	}
}

// RegisterProbe maps a dependency name to its re-probe, used by
// per-dependency recovery.
func (c *Coordinator) RegisterProbe(dependency string, probe health.Probe) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.probes[dependency] = probe
}

// RecoverDependency resets the dependency's breaker and re-probes it.
func (c *Coordinator) RecoverDependency(ctx context.Context, dependency string) (Result, error) {
	c.mu.Lock()
	probe, ok := c.probes[dependency]
	c.mu.Unlock()

	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownDependency, dependency)
	}

	release, err := c.acquire()
	if err != nil {
		return Result{}, err
	}
	defer release()

	result := c.begin(KindDependency)

	c.step(&result, "reset breaker "+dependency, func() error {
		c.breakers.Reset(dependency)
		return nil
	})

	c.step(&result, "probe "+dependency, func() error {
		return probe(ctx)
	})

	return c.finish(result), nil
}

// RecoverCircuit resets one breaker, waits the stabilization interval, and
// reports the resulting state.
func (c *Coordinator) RecoverCircuit(ctx context.Context, dependency string) (Result, error) {
	return c.recoverCircuits(ctx, KindCircuit, func() {
		c.breakers.Reset(dependency)
	})
}

// RecoverAllCircuits resets every breaker, waits the stabilization
// interval, and reports the resulting states.
func (c *Coordinator) RecoverAllCircuits(ctx context.Context) (Result, error) {
	return c.recoverCircuits(ctx, KindCircuit, c.breakers.ResetAll)
}

func (c *Coordinator) recoverCircuits(ctx context.Context, kind Kind, reset func()) (Result, error) {
	release, err := c.acquire()
	if err != nil {
		return Result{}, err
	}
	defer release()

	result := c.begin(kind)

	c.step(&result, "reset breakers", func() error {
		reset()
		return nil
	})

	c.step(&result, "stabilize", func() error {
		return backoff.SleepWithContext(ctx, c.config.Stabilization)
	})

	result.Circuits = c.breakers.Records()

	for _, record := range result.Circuits {
		if record.State == circuitbreaker.StateOpen {
			result.Degraded = true
		}
	}

	return c.finish(result), nil
}

// RecoverFromHealthCheck re-runs the full health probe and maps the
// verdict: healthy is success, degraded is a degraded success, unhealthy
// is failure.
func (c *Coordinator) RecoverFromHealthCheck(ctx context.Context) (Result, error) {
	release, err := c.acquire()
	if err != nil {
		return Result{}, err
	}
	defer release()

	result := c.begin(KindHealthCheck)
	result = c.healthStep(ctx, result)

	return c.finish(result), nil
}

// FullSystemRecovery runs the ordered sequence: reset all breakers, probe
// the store, verify required credentials, then a full health probe. A step
// failure is recorded but later steps still run; overall success requires
// every step to have passed.
func (c *Coordinator) FullSystemRecovery(ctx context.Context) (Result, error) {
	release, err := c.acquire()
	if err != nil {
		return Result{}, err
	}
	defer release()

	result := c.begin(KindFullSystem)

	c.step(&result, "reset breakers", func() error {
		c.breakers.ResetAll()
		return nil
	})

	c.step(&result, "probe store", func() error {
		if c.store == nil {
			return errors.New("no store configured")
		}

		return c.store.Ping(ctx)
	})

	c.step(&result, "verify credentials", func() error {
		var missing []string

		for _, name := range c.config.RequiredCredentials {
			if strings.TrimSpace(os.Getenv(name)) == "" {
				missing = append(missing, name)
			}
		}

		if len(missing) > 0 {
			return fmt.Errorf("missing credentials: %s", strings.Join(missing, ", "))
		}

		return nil
	})

	result = c.healthStep(ctx, result)
	result.Circuits = c.breakers.Records()

	return c.finish(result), nil
}

// acquire enforces the single-flight and cool-down rules. The cool-down
// never blocks the first run.
func (c *Coordinator) acquire() (func(), error) {
	if !c.inFlight.TryLock() {
		return nil, ErrInProgress
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.lastRun.IsZero() && c.now().Sub(c.lastRun) < c.config.CoolDown {
		c.inFlight.Unlock()
		return nil, ErrCoolingDown
	}

	c.lastRun = c.now()

	return c.inFlight.Unlock, nil
}

func (c *Coordinator) begin(kind Kind) Result {
	c.logger.Infof("starting %s recovery", kind)

	return Result{Kind: kind, StartedAt: c.now().UTC()}
}

func (c *Coordinator) step(result *Result, name string, run func() error) {
	start := c.now()
	err := run()

	step := StepResult{Name: name, Err: err, Duration: c.now().Sub(start)}
	if err != nil {
		step.Error = err.Error()
		c.logger.Errorf("recovery step %s failed: %v", name, err)
	}

	result.Steps = append(result.Steps, step)
}

func (c *Coordinator) healthStep(ctx context.Context, result Result) Result {
	if c.checker == nil {
		c.step(&result, "health probe", func() error {
			return errors.New("no health checker configured")
		})

		return result
	}

	report := c.checker.Run(ctx)

	c.step(&result, "health probe", func() error {
		if report.Status == health.StatusUnhealthy {
			return fmt.Errorf("system unhealthy after recovery")
		}

		return nil
	})

	if report.Status == health.StatusDegraded {
		result.Degraded = true
	}

	return result
}

func (c *Coordinator) finish(result Result) Result {
	result.FinishedAt = c.now().UTC()

	result.Success = true
	for _, step := range result.Steps {
		if step.Err != nil {
			result.Success = false
			break
		}
	}

	c.logger.Infof("%s recovery finished, success=%t degraded=%t", result.Kind, result.Success, result.Degraded)

	return result
}
