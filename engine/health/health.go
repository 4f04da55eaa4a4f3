// Package health aggregates dependency probes and breaker states into a
// single system verdict consumed by the recovery coordinator.
package health

import (
	"context"
	"time"

	"github.com/bountybase/engine/engine/circuitbreaker"
	"github.com/bountybase/engine/engine/log"
)

// Status is the aggregate system verdict.
type Status string

const (
	StatusHealthy   Status = "HEALTHY"
	StatusDegraded  Status = "DEGRADED"
	StatusUnhealthy Status = "UNHEALTHY"
)

// Probe checks one dependency's reachability.
type Probe func(ctx context.Context) error

// Check is one probe's result.
type Check struct {
	Name    string        `json:"name"`
	Healthy bool          `json:"healthy"`
	Err     error         `json:"-"`
	Error   string        `json:"error,omitempty"`
	Latency time.Duration `json:"latency"`
}

// Report is the outcome of one full probe run.
type Report struct {
	Status    Status                  `json:"status"`
	Checks    []Check                 `json:"checks"`
	Circuits  []circuitbreaker.Record `json:"circuits"`
	CheckedAt time.Time               `json:"checkedAt"`
}

const probeTimeout = 5 * time.Second

type namedProbe struct {
	name  string
	probe Probe
}

// Checker runs registered probes in order and folds the results, along
// with breaker states, into one Status.
type Checker struct {
	probes   []namedProbe
	breakers circuitbreaker.Manager
	logger   log.Logger

	now func() time.Time
}

func NewChecker(breakers circuitbreaker.Manager, logger log.Logger) *Checker {
	if logger == nil {
		logger = &log.NoneLogger{}
	}

	return &Checker{
		breakers: breakers,
		logger:   logger,
		now:      time.Now,
	}
}

// Register adds a named probe. Registration order is report order.
func (c *Checker) Register(name string, probe Probe) {
	c.probes = append(c.probes, namedProbe{name: name, probe: probe})
}

// Run probes every dependency with a bounded per-probe timeout. All
// probes passing with every breaker closed is healthy; any failure or any
// open breaker degrades the verdict; all probes failing is unhealthy.
func (c *Checker) Run(ctx context.Context) Report {
	report := Report{
		Checks:    make([]Check, 0, len(c.probes)),
		CheckedAt: c.now().UTC(),
	}

	failures := 0

	for _, entry := range c.probes {
		check := c.run(ctx, entry)
		if !check.Healthy {
			failures++
			c.logger.Warnf("health probe %s failed: %v", entry.name, check.Err)
		}

		report.Checks = append(report.Checks, check)
	}

	openCircuits := 0

	if c.breakers != nil {
		report.Circuits = c.breakers.Records()

		for _, record := range report.Circuits {
			if record.State == circuitbreaker.StateOpen {
				openCircuits++
			}
		}
	}

	switch {
	case len(c.probes) > 0 && failures == len(c.probes):
		report.Status = StatusUnhealthy
	case failures > 0 || openCircuits > 0:
		report.Status = StatusDegraded
	default:
		report.Status = StatusHealthy
	}

	return report
}

func (c *Checker) run(ctx context.Context, entry namedProbe) Check {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	start := c.now()
	err := entry.probe(probeCtx)

	check := Check{
		Name:    entry.name,
		Healthy: err == nil,
		Err:     err,
		Latency: c.now().Sub(start),
	}
	if err != nil {
		check.Error = err.Error()
	}

	return check
}
