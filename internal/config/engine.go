package config

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
)

// KnowledgeConfig locates the condition catalogue.
type KnowledgeConfig struct {
	// Source is "storage" (a file read through the storage backend) or "mongo".
	Source     string `env:"KNOWLEDGE_SOURCE" yaml:"source" default:"storage"`
	File       string `env:"KNOWLEDGE_FILE" yaml:"file" default:"medical_knowledge.json"`
	Format     string `env:"KNOWLEDGE_FORMAT" yaml:"format"`
	Namespace  string `env:"KNOWLEDGE_NAMESPACE" yaml:"namespace"`
	Collection string `env:"KNOWLEDGE_COLLECTION" yaml:"collection" default:"medical_knowledge"`
}

func (k KnowledgeConfig) Validate() error {
	var result error
	if err := oneOf("knowledge source", k.Source, "storage", "mongo"); err != nil {
		result = multierror.Append(result, err)
	}
	if k.Format != "" {
		if err := oneOf("knowledge format", k.Format, "json", "yaml"); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if k.Source == "storage" && k.File == "" {
		result = multierror.Append(result, fmt.Errorf("knowledge file is required"))
	}
	return result
}

// EngineConfig tunes extraction and ranking.
type EngineConfig struct {
	TopK int `env:"ENGINE_TOP_K" yaml:"top_k" default:"5"`
	// Threshold is the minimum similarity a match needs. A zero read from YAML
	// counts as unset and gets the default; ENGINE_THRESHOLD=0 keeps every match.
	Threshold        float64           `env:"ENGINE_THRESHOLD" yaml:"threshold" default:"0.3"`
	EmbedTimeout     time.Duration     `env:"ENGINE_EMBED_TIMEOUT" yaml:"embed_timeout" default:"10s"`
	LookbackWindow   int               `env:"ENGINE_NEGATION_WINDOW" yaml:"negation_window" default:"3"`
	NegationMarkers  []string          `env:"ENGINE_NEGATION_MARKERS" yaml:"negation_markers"`
	ClauseBoundaries []string          `env:"ENGINE_CLAUSE_BOUNDARIES" yaml:"clause_boundaries"`
	FollowUpMarkers  []string          `env:"ENGINE_FOLLOW_UP_MARKERS" yaml:"follow_up_markers"`
	Variants         map[string]string `yaml:"variants"`
}

func (e EngineConfig) Validate() error {
	var result error
	if e.TopK < 1 {
		result = multierror.Append(result, fmt.Errorf("engine top_k must be positive, got %d", e.TopK))
	}
	if e.Threshold < 0 || e.Threshold > 1 {
		result = multierror.Append(result, fmt.Errorf("engine threshold must be within [0,1], got %v", e.Threshold))
	}
	if e.LookbackWindow < 1 {
		result = multierror.Append(result, fmt.Errorf("engine negation_window must be positive, got %d", e.LookbackWindow))
	}
	if err := positiveDuration("engine embed_timeout", e.EmbedTimeout); err != nil {
		result = multierror.Append(result, err)
	}
	return result
}

// EmbeddingConfig picks the vectoriser used for conditions and queries.
type EmbeddingConfig struct {
	Provider   string `env:"EMBEDDING_PROVIDER" yaml:"provider" default:"hashing"`
	Model      string `env:"EMBEDDING_MODEL" yaml:"model"`
	Dimensions int    `env:"EMBEDDING_DIMENSIONS" yaml:"dimensions" default:"1024"`
}

func (e EmbeddingConfig) Validate() error {
	var result error
	if err := oneOf("embedding provider", e.Provider, "hashing", "openai", "gemini"); err != nil {
		result = multierror.Append(result, err)
	}
	if e.Dimensions < 0 {
		result = multierror.Append(result, fmt.Errorf("embedding dimensions cannot be negative"))
	}
	return result
}

// IntentConfig configures the optional external classifier.
type IntentConfig struct {
	Provider      string        `env:"INTENT_PROVIDER" yaml:"provider" default:"none"`
	Timeout       time.Duration `env:"INTENT_TIMEOUT" yaml:"timeout" default:"2s"`
	MinConfidence float64       `env:"INTENT_MIN_CONFIDENCE" yaml:"min_confidence" default:"0.5"`
	// RulesFile extends the built-in keyword rules. Read through the storage backend.
	RulesFile string `env:"INTENT_RULES_FILE" yaml:"rules_file"`
}

func (i IntentConfig) Validate() error {
	var result error
	if err := oneOf("intent provider", i.Provider, "none", "openai", "anthropic", "gemini", "lua"); err != nil {
		result = multierror.Append(result, err)
	}
	if err := positiveDuration("intent timeout", i.Timeout); err != nil {
		result = multierror.Append(result, err)
	}
	if i.MinConfidence < 0 || i.MinConfidence > 1 {
		result = multierror.Append(result, fmt.Errorf("intent min_confidence must be within [0,1], got %v", i.MinConfidence))
	}
	return result
}

// SessionConfig controls idle session expiry.
type SessionConfig struct {
	TTL           time.Duration `env:"SESSION_TTL" yaml:"ttl" default:"30m"`
	SweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" yaml:"sweep_interval" default:"1m"`
}

func (s SessionConfig) Validate() error {
	var result error
	if err := positiveDuration("session ttl", s.TTL); err != nil {
		result = multierror.Append(result, err)
	}
	if err := positiveDuration("session sweep_interval", s.SweepInterval); err != nil {
		result = multierror.Append(result, err)
	}
	return result
}

// HistoryConfig selects where exchanges are recorded.
type HistoryConfig struct {
	Backend   string `env:"HISTORY_BACKEND" yaml:"backend" default:"file"`
	Namespace string `env:"HISTORY_NAMESPACE" yaml:"namespace" default:"history"`
	Limit     int    `env:"HISTORY_LIMIT" yaml:"limit" default:"10"`
	MaxLimit  int    `env:"HISTORY_MAX_LIMIT" yaml:"max_limit" default:"100"`
}

func (h HistoryConfig) Validate() error {
	var result error
	if err := oneOf("history backend", h.Backend, "none", "file", "postgres", "mongo"); err != nil {
		result = multierror.Append(result, err)
	}
	if h.Limit < 1 || h.Limit > h.MaxLimit {
		result = multierror.Append(result, fmt.Errorf("history limit must be within [1,%d], got %d", h.MaxLimit, h.Limit))
	}
	return result
}
