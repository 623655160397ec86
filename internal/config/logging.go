package config

import "github.com/hashicorp/go-multierror"

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL" yaml:"level" default:"info"`
	Format string `env:"LOG_FORMAT" yaml:"format" default:"json"`
}

func (l LoggingConfig) Validate() error {
	var result error
	if err := oneOf("log level", l.Level, "debug", "info", "warn", "warning", "error"); err != nil {
		result = multierror.Append(result, err)
	}
	if err := oneOf("log format", l.Format, "json", "text"); err != nil {
		result = multierror.Append(result, err)
	}
	return result
}
