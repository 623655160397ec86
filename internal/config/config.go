// Package config defines the application configuration for the triage assistant.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	pkgconfig "github.com/lewisedginton/triage_assistant/pkg/config"
	"github.com/lewisedginton/triage_assistant/pkg/logger"
)

// AppConfig holds all application configuration
type AppConfig struct {
	// Service configuration
	ServiceName string `env:"SERVICE_NAME" yaml:"service_name" default:"triage-assistant"`
	Version     string `env:"VERSION" yaml:"version" default:"dev"`
	Environment string `env:"ENVIRONMENT" yaml:"environment" default:"development"`

	HTTP     pkgconfig.HTTPServerConfig `yaml:"http"`
	Metrics  pkgconfig.MetricsConfig    `yaml:"metrics"`
	Database pkgconfig.DatabaseConfig   `yaml:"database"`

	Health  HealthConfig  `yaml:"health"`
	Logging LoggingConfig `yaml:"logging"`

	Knowledge KnowledgeConfig `yaml:"knowledge"`
	Engine    EngineConfig    `yaml:"engine"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Intent    IntentConfig    `yaml:"intent"`
	Session   SessionConfig   `yaml:"session"`
	History   HistoryConfig   `yaml:"history"`

	OpenAI    OpenAIConfig    `yaml:"openai"`
	Anthropic AnthropicConfig `yaml:"anthropic"`
	Gemini    GeminiConfig    `yaml:"gemini"`
	Lua       LuaConfig       `yaml:"lua"`

	Mongo    MongoConfig    `yaml:"mongo"`
	Storage  StorageConfig  `yaml:"storage"`
	Telegram TelegramConfig `yaml:"telegram"`
	Slack    SlackConfig    `yaml:"slack"`
	MCP      MCPConfig      `yaml:"mcp"`
}

// Load reads path (optional) and the environment into an AppConfig.
func Load(path string) (*AppConfig, error) {
	var cfg AppConfig
	if err := pkgconfig.GetConfig(&cfg, path, false); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the cross-section rules. Section-level rules live on the
// sections themselves and are run by the loader.
func (c *AppConfig) Validate() error {
	var result error

	switch c.Intent.Provider {
	case "openai":
		if c.OpenAI.APIKey == "" {
			result = multierror.Append(result, fmt.Errorf("intent provider openai requires OPENAI_API_KEY"))
		}
	case "anthropic":
		if c.Anthropic.APIKey == "" {
			result = multierror.Append(result, fmt.Errorf("intent provider anthropic requires ANTHROPIC_API_KEY"))
		}
	case "gemini":
		if c.Gemini.APIKey == "" && (c.Gemini.Project == "" || c.Gemini.Region == "") {
			result = multierror.Append(result, fmt.Errorf("intent provider gemini requires GEMINI_API_KEY or a Vertex AI project and region"))
		}
	case "lua":
		if c.Lua.ScriptPath == "" {
			result = multierror.Append(result, fmt.Errorf("intent provider lua requires a script path"))
		}
	}

	if c.Embedding.Provider == "openai" && c.OpenAI.APIKey == "" {
		result = multierror.Append(result, fmt.Errorf("embedding provider openai requires OPENAI_API_KEY"))
	}
	if c.Embedding.Provider == "gemini" && c.Gemini.APIKey == "" && (c.Gemini.Project == "" || c.Gemini.Region == "") {
		result = multierror.Append(result, fmt.Errorf("embedding provider gemini requires GEMINI_API_KEY or a Vertex AI project and region"))
	}

	if c.History.Backend == "mongo" || c.Knowledge.Source == "mongo" {
		if c.Mongo.URI == "" {
			result = multierror.Append(result, fmt.Errorf("mongo uri is required when history or knowledge uses mongo"))
		}
	}

	if c.Health.GRPCPort != 0 && c.Health.GRPCPort == c.HTTP.Port {
		result = multierror.Append(result, fmt.Errorf("grpc health port %d clashes with the http port", c.Health.GRPCPort))
	}
	if c.Metrics.ExposeMetrics && c.Metrics.Port == c.HTTP.Port {
		result = multierror.Append(result, fmt.Errorf("metrics port %d clashes with the http port", c.Metrics.Port))
	}

	return result
}

// GetLogLevel returns the parsed logger level
func (c *AppConfig) GetLogLevel() logger.Level {
	return logger.ParseLevel(c.Logging.Level)
}

// IsProduction returns true if running in production environment
func (c *AppConfig) IsProduction() bool {
	return strings.ToLower(c.Environment) == "production"
}

// NewLogger builds the service logger from the logging section.
func (c *AppConfig) NewLogger() logger.Logger {
	return logger.NewLogger(logger.Config{
		Level:   c.GetLogLevel(),
		Format:  c.Logging.Format,
		Service: c.ServiceName,
	})
}

// LogConfig logs the current configuration (without sensitive data)
func (c *AppConfig) LogConfig(log logger.Logger) {
	log.Info("Application configuration loaded",
		logger.StringField("service_name", c.ServiceName),
		logger.StringField("version", c.Version),
		logger.StringField("environment", c.Environment),
		logger.IntField("http_port", c.HTTP.Port),
		logger.StringField("knowledge_source", c.Knowledge.Source),
		logger.StringField("embedding_provider", c.Embedding.Provider),
		logger.StringField("intent_provider", c.Intent.Provider),
		logger.StringField("history_backend", c.History.Backend),
		logger.StringField("storage_backend", c.Storage.Backend),
		logger.IntField("top_k", c.Engine.TopK),
		logger.Float64Field("threshold", c.Engine.Threshold),
		logger.DurationField("session_ttl", c.Session.TTL),
		logger.BoolField("metrics_exposed", c.Metrics.ExposeMetrics),
		logger.BoolField("telegram_enabled", c.Telegram.Enabled()),
		logger.BoolField("slack_enabled", c.Slack.Enabled()),
	)
}

func oneOf(field, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%s must be one of [%s], got %q", field, strings.Join(allowed, ", "), value)
}

func positiveDuration(field string, d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("%s must be greater than 0", field)
	}
	return nil
}
