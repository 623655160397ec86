// Package health runs liveness and readiness probes and exposes them over HTTP and gRPC.
package health

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/lewisedginton/triage_assistant/pkg/logger"
)

// Probe selects which set of checks to run.
type Probe string

const (
	Liveness  Probe = "liveness"
	Readiness Probe = "readiness"
)

// Check represents a single health check that can succeed or fail.
type Check interface {
	Name() string
	// Check returns nil if healthy.
	Check(ctx context.Context) error
}

// CheckFunc adapts a plain function to Check.
type CheckFunc struct {
	name string
	fn   func(context.Context) error
}

// NewCheckFunc creates a new CheckFunc with the given name and function.
func NewCheckFunc(name string, fn func(context.Context) error) *CheckFunc {
	return &CheckFunc{name: name, fn: fn}
}

func (c *CheckFunc) Name() string                    { return c.name }
func (c *CheckFunc) Check(ctx context.Context) error { return c.fn(ctx) }

// CheckResult is the outcome of one check execution.
type CheckResult struct {
	Name    string
	Healthy bool
	Error   string
	Latency time.Duration
}

// HealthStatus is the aggregate of one probe run. Checks are sorted by name.
type HealthStatus struct {
	Healthy bool
	Checks  []CheckResult
}

// HealthChecker manages and executes health checks for liveness and readiness probes.
type HealthChecker struct {
	checks           map[Probe][]Check
	timeout          time.Duration
	failureCount     map[string]int
	failureThreshold int
	logger           logger.Logger
	mu               sync.RWMutex
}

// Option is a functional option for configuring HealthChecker.
type Option func(*HealthChecker)

// WithTimeout sets the per-check timeout. Default is 5 seconds.
func WithTimeout(d time.Duration) Option {
	return func(h *HealthChecker) {
		if d > 0 {
			h.timeout = d
		}
	}
}

// WithLogger sets the logger for health check operations.
func WithLogger(l logger.Logger) Option {
	return func(h *HealthChecker) {
		h.logger = l
	}
}

// WithFailureThreshold sets how many consecutive failures a check needs before
// it is reported unhealthy. Default is 3.
func WithFailureThreshold(threshold int) Option {
	return func(h *HealthChecker) {
		if threshold > 0 {
			h.failureThreshold = threshold
		}
	}
}

// New creates a new HealthChecker with the given options.
func New(opts ...Option) *HealthChecker {
	h := &HealthChecker{
		checks:           make(map[Probe][]Check),
		timeout:          5 * time.Second,
		failureThreshold: 3,
		failureCount:     make(map[string]int),
		logger:           logger.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Add registers a check on a probe.
func (h *HealthChecker) Add(probe Probe, check Check) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[probe] = append(h.checks[probe], check)
}

// AddLivenessCheck adds a check that decides whether the process should be restarted.
func (h *HealthChecker) AddLivenessCheck(check Check) { h.Add(Liveness, check) }

// AddReadinessCheck adds a check that decides whether the service can take traffic.
func (h *HealthChecker) AddReadinessCheck(check Check) { h.Add(Readiness, check) }

// CheckLiveness executes all liveness checks.
func (h *HealthChecker) CheckLiveness(ctx context.Context) (*HealthStatus, error) {
	return h.Run(ctx, Liveness)
}

// CheckReadiness executes all readiness checks.
func (h *HealthChecker) CheckReadiness(ctx context.Context) (*HealthStatus, error) {
	return h.Run(ctx, Readiness)
}

// Run executes the checks of a probe concurrently. The error lists failed checks.
func (h *HealthChecker) Run(ctx context.Context, probe Probe) (*HealthStatus, error) {
	h.mu.RLock()
	checks := append([]Check(nil), h.checks[probe]...)
	h.mu.RUnlock()

	status := &HealthStatus{Healthy: true, Checks: make([]CheckResult, len(checks))}
	var wg sync.WaitGroup
	for i, check := range checks {
		wg.Add(1)
		go func(idx int, chk Check) {
			defer wg.Done()
			status.Checks[idx] = h.execute(ctx, chk)
		}(i, check)
	}
	wg.Wait()

	sort.Slice(status.Checks, func(i, j int) bool { return status.Checks[i].Name < status.Checks[j].Name })

	var failed []string
	for _, r := range status.Checks {
		if !r.Healthy {
			status.Healthy = false
			failed = append(failed, r.Name)
		}
	}
	if !status.Healthy {
		return status, fmt.Errorf("%s checks failed: %v", probe, failed)
	}
	return status, nil
}

func (h *HealthChecker) execute(parent context.Context, check Check) CheckResult {
	ctx, cancel := context.WithTimeout(parent, h.timeout)
	defer cancel()

	start := time.Now()
	err := check.Check(ctx)
	result := CheckResult{Name: check.Name(), Latency: time.Since(start), Healthy: true}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err == nil {
		h.failureCount[result.Name] = 0
		return result
	}

	h.failureCount[result.Name]++
	failures := h.failureCount[result.Name]
	fields := []logger.LogField{
		logger.StringField("check", result.Name),
		logger.ErrorField(err),
		logger.IntField("failures", failures),
	}
	if failures < h.failureThreshold {
		h.logger.Debug("Health check failed but below threshold", fields...)
		return result
	}

	result.Healthy = false
	result.Error = err.Error()
	h.logger.Warn("Health check failed", append(fields, logger.DurationField("latency", result.Latency))...)
	return result
}
