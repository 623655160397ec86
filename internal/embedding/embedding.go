// Package embedding turns text into fixed-length vectors for similarity ranking.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/openai/openai-go/option"
)

// ErrEmptyEmbedding is returned when a provider answers without a vector.
var ErrEmptyEmbedding = errors.New("provider returned an empty embedding")

// Embedder is a pluggable text-embedding provider.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	// Name identifies the provider and model in logs and health output.
	Name() string
}

// Provider names accepted by New.
const (
	ProviderHashing = "hashing"
	ProviderOpenAI  = "openai"
	ProviderGemini  = "gemini"
)

// Config selects an embedding provider.
type Config struct {
	Provider   string
	Dimensions int
	Model      string
	APIKey     string
	// Timeout bounds each provider request.
	Timeout time.Duration

	// Gemini on Vertex AI.
	Project  string
	Location string
}

// New builds the configured provider. An empty provider means hashing.
func New(ctx context.Context, cfg Config) (Embedder, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderHashing:
		return NewHashingEmbedder(cfg.Dimensions), nil
	case ProviderOpenAI:
		var opts []option.RequestOption
		if cfg.Timeout > 0 {
			opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
		}
		return NewOpenAIEmbedder(cfg.APIKey, cfg.Model, opts...)
	case ProviderGemini:
		return NewGeminiEmbedder(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
}

// Cosine returns the cosine similarity of a and b. Empty, zero-norm or
// mismatched vectors score 0, as does any non-finite result.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if math.IsNaN(sim) || math.IsInf(sim, 0) {
		return 0
	}
	return sim
}
