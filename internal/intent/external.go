package intent

import (
	"context"
	"fmt"

	"github.com/lewisedginton/triage_assistant/pkg/logger"
)

// Provider names an external classifier implementation.
type Provider string

const (
	ProviderNone      Provider = "none"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGemini    Provider = "gemini"
	ProviderLua       Provider = "lua"
)

// ExternalConfig carries everything any provider may need.
type ExternalConfig struct {
	Provider Provider
	APIKey   string
	Model    string
	// Gemini on Vertex AI.
	Project  string
	Location string
	// Lua.
	ScriptName   string
	ScriptSource string
}

// NewExternal builds the configured provider. An empty provider is "none".
func NewExternal(ctx context.Context, cfg ExternalConfig, log logger.Logger) (External, error) {
	var (
		ext External
		err error
	)
	switch cfg.Provider {
	case "", ProviderNone:
		return NoopExternal{}, nil
	case ProviderOpenAI:
		ext, err = NewOpenAIExternal(cfg.APIKey, cfg.Model)
	case ProviderAnthropic:
		ext, err = NewAnthropicExternal(cfg.APIKey, cfg.Model)
	case ProviderGemini:
		ext, err = NewGeminiExternal(ctx, GeminiConfig{APIKey: cfg.APIKey, Model: cfg.Model, Project: cfg.Project, Location: cfg.Location})
	case ProviderLua:
		name := cfg.ScriptName
		if name == "" {
			name = "intent.lua"
		}
		ext, err = NewLuaExternal(name, cfg.ScriptSource, log)
	default:
		return nil, fmt.Errorf("unknown intent provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s intent classifier: %w", cfg.Provider, err)
	}
	return ext, nil
}
