package config

import "time"

// HealthConfig holds health check configuration
type HealthConfig struct {
	Timeout          time.Duration `env:"HEALTH_TIMEOUT" yaml:"timeout" default:"5s"`
	FailureThreshold int           `env:"HEALTH_FAILURE_THRESHOLD" yaml:"failure_threshold" default:"3"`
	// GRPCPort serves grpc.health.v1 when non-zero.
	GRPCPort     int           `env:"HEALTH_GRPC_PORT" yaml:"grpc_port" default:"0"`
	PushInterval time.Duration `env:"HEALTH_GRPC_PUSH_INTERVAL" yaml:"grpc_push_interval" default:"10s"`
}
