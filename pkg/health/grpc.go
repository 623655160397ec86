package health

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/lewisedginton/triage_assistant/pkg/logger"
)

// DefaultGRPCUpdateInterval is how often readiness is pushed to the gRPC health server.
const DefaultGRPCUpdateInterval = 5 * time.Second

// RegisterWithGRPC registers grpc.health.v1.Health on server and keeps the overall ("")
// service status in step with the readiness probe until ctx is cancelled, at which
// point the status is set to NOT_SERVING.
func (h *HealthChecker) RegisterWithGRPC(ctx context.Context, server *grpc.Server, interval time.Duration) *health.Server {
	if interval <= 0 {
		interval = DefaultGRPCUpdateInterval
	}

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(server, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		h.pushStatus(ctx, healthServer, interval)
		for {
			select {
			case <-ticker.C:
				h.pushStatus(ctx, healthServer, interval)
			case <-ctx.Done():
				healthServer.Shutdown()
				h.logger.Info("gRPC health updater stopped")
				return
			}
		}
	}()

	h.logger.Info("gRPC health service registered", logger.DurationField("update_interval", interval))
	return healthServer
}

func (h *HealthChecker) pushStatus(parent context.Context, hs *health.Server, interval time.Duration) {
	ctx, cancel := context.WithTimeout(parent, interval)
	defer cancel()

	if status, err := h.CheckReadiness(ctx); err != nil || !status.Healthy {
		hs.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
		return
	}
	hs.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
}
