// Package monitoring wires the service's liveness and readiness checks.
package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lewisedginton/triage_assistant/pkg/health"
	"github.com/lewisedginton/triage_assistant/pkg/logger"
)

// Health status constants
const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
)

// Pinger is anything that can report reachability, such as the history store
// or the storage manager.
type Pinger interface {
	Ping(ctx context.Context) error
}

// KnowledgeSource reports how many conditions are loaded.
type KnowledgeSource interface {
	Len() int
}

// ConnectorHealthCheck represents a connector that can perform health checks
type ConnectorHealthCheck interface {
	Ready() error
}

// Config holds configuration for the health monitor
type Config struct {
	Logger  logger.Logger
	Version string

	Knowledge KnowledgeSource
	History   Pinger
	Storage   Pinger

	Connectors map[string]ConnectorHealthCheck

	Timeout          time.Duration // Health check timeout
	FailureThreshold int           // Number of consecutive failures before reporting unhealthy
}

// HealthMonitor manages health checks and monitoring endpoints for the application
type HealthMonitor struct {
	checker   *health.HealthChecker
	logger    logger.Logger
	version   string
	startTime time.Time
}

// NewHealthMonitor creates a new health monitor with configured checks
func NewHealthMonitor(cfg Config) *HealthMonitor {
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNopLogger()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	failureThreshold := cfg.FailureThreshold
	if failureThreshold == 0 {
		failureThreshold = 3
	}

	checker := health.New(
		health.WithLogger(cfg.Logger),
		health.WithTimeout(timeout),
		health.WithFailureThreshold(failureThreshold),
	)

	checker.AddLivenessCheck(health.NewCheckFunc("process", func(ctx context.Context) error {
		return nil
	}))

	knowledge := cfg.Knowledge
	checker.AddReadinessCheck(health.NewCheckFunc("knowledge_base", func(ctx context.Context) error {
		if knowledge == nil {
			return errors.New("knowledge base not loaded")
		}
		return nil
	}))
	if cfg.History != nil {
		checker.AddReadinessCheck(health.NewCheckFunc("history", cfg.History.Ping))
	}
	if cfg.Storage != nil {
		checker.AddReadinessCheck(health.NewCheckFunc("storage", cfg.Storage.Ping))
	}
	for name, c := range cfg.Connectors {
		c := c
		checker.AddReadinessCheck(health.NewCheckFunc(name+"_connector", func(ctx context.Context) error {
			return c.Ready()
		}))
	}

	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	return &HealthMonitor{
		checker:   checker,
		logger:    cfg.Logger,
		version:   version,
		startTime: time.Now(),
	}
}

// Checker exposes the underlying checker, e.g. for the gRPC health service.
func (hm *HealthMonitor) Checker() *health.HealthChecker {
	return hm.checker
}

// HealthHandler returns a combined health endpoint that includes both liveness and readiness
// GET /health - Returns comprehensive health status
func (hm *HealthMonitor) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		livenessStatus, livenessErr := hm.checker.CheckLiveness(ctx)
		readinessStatus, readinessErr := hm.checker.CheckReadiness(ctx)

		response := map[string]interface{}{
			"status":    statusHealthy,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"uptime":    time.Since(hm.startTime).String(),
			"version":   hm.version,
			"liveness":  health.NewResponse(livenessStatus, livenessErr),
			"readiness": health.NewResponse(readinessStatus, readinessErr),
		}

		w.Header().Set("Content-Type", "application/json")
		if livenessErr != nil || readinessErr != nil {
			response["status"] = statusUnhealthy
			w.WriteHeader(http.StatusServiceUnavailable)
			hm.logger.Warn("Health check failed",
				logger.BoolField("live", livenessErr == nil),
				logger.BoolField("ready", readinessErr == nil))
		} else {
			w.WriteHeader(http.StatusOK)
		}

		_ = json.NewEncoder(w).Encode(response)
	}
}

// RegisterHandlers registers all health check endpoints on the router.
func (hm *HealthMonitor) RegisterHandlers(r chi.Router) {
	r.Get("/health", hm.HealthHandler())
	r.Get("/health/live", hm.checker.LivenessHandler())
	r.Get("/health/ready", hm.checker.ReadinessHandler())
}

// ShutdownCheck makes readiness fail once ctx is cancelled, so load balancers
// drain the instance during shutdown.
func (hm *HealthMonitor) ShutdownCheck(ctx context.Context) {
	hm.checker.AddReadinessCheck(health.NewCheckFunc("shutdown", func(context.Context) error {
		return ctx.Err()
	}))
}
