package config

import (
	"fmt"
	"time"
)

// HTTPServerConfig holds HTTP server settings
type HTTPServerConfig struct {
	Port                int `env:"HTTP_PORT" yaml:"port" default:"8080"`
	ReadTimeoutSeconds  int `env:"HTTP_READ_TIMEOUT_SECONDS" yaml:"read_timeout_seconds" default:"15"`
	WriteTimeoutSeconds int `env:"HTTP_WRITE_TIMEOUT_SECONDS" yaml:"write_timeout_seconds" default:"15"`
	IdleTimeoutSeconds  int `env:"HTTP_IDLE_TIMEOUT_SECONDS" yaml:"idle_timeout_seconds" default:"60"`
	// RequestTimeoutSeconds bounds handler work on API routes.
	RequestTimeoutSeconds int   `env:"HTTP_REQUEST_TIMEOUT_SECONDS" yaml:"request_timeout_seconds" default:"15"`
	MaxHeaderBytes        int   `env:"HTTP_MAX_HEADER_BYTES" yaml:"max_header_bytes" default:"1048576"`
	MaxBodyBytes          int64 `env:"HTTP_MAX_BODY_BYTES" yaml:"max_body_bytes" default:"65536"`

	// CORSAllowedOrigins restricts browser origins for the chat UI.
	CORSAllowedOrigins []string `env:"HTTP_CORS_ALLOWED_ORIGINS" yaml:"cors_allowed_origins" default:"http://*,https://*"`
}

// Validate checks HTTPServerConfig for valid port range
func (h HTTPServerConfig) Validate() error {
	if h.Port < 1 || h.Port > 65535 {
		return fmt.Errorf("http port must be between 1-65535, got %d", h.Port)
	}
	if h.RequestTimeoutSeconds < 0 {
		return fmt.Errorf("http request_timeout_seconds cannot be negative, got %d", h.RequestTimeoutSeconds)
	}
	if h.MaxBodyBytes <= 0 {
		return fmt.Errorf("http max_body_bytes must be positive, got %d", h.MaxBodyBytes)
	}
	return nil
}

// Addr returns the listen address for the configured port.
func (h HTTPServerConfig) Addr() string {
	return fmt.Sprintf(":%d", h.Port)
}

// ReadTimeout returns the ReadTimeoutSeconds as a time.Duration
func (h HTTPServerConfig) ReadTimeout() time.Duration {
	return time.Duration(h.ReadTimeoutSeconds) * time.Second
}

// WriteTimeout returns the WriteTimeoutSeconds as a time.Duration
func (h HTTPServerConfig) WriteTimeout() time.Duration {
	return time.Duration(h.WriteTimeoutSeconds) * time.Second
}

// IdleTimeout returns the IdleTimeoutSeconds as a time.Duration
func (h HTTPServerConfig) IdleTimeout() time.Duration {
	return time.Duration(h.IdleTimeoutSeconds) * time.Second
}

// RequestTimeout returns the RequestTimeoutSeconds as a time.Duration
func (h HTTPServerConfig) RequestTimeout() time.Duration {
	return time.Duration(h.RequestTimeoutSeconds) * time.Second
}
