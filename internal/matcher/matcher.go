// Package matcher ranks knowledge base conditions against a symptom query.
package matcher

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/lewisedginton/triage_assistant/internal/embedding"
	"github.com/lewisedginton/triage_assistant/internal/knowledge"
)

const (
	DefaultTopK         = 5
	DefaultThreshold    = 0.3
	DefaultEmbedTimeout = 10 * time.Second
)

// Options bound the ranked output.
type Options struct {
	TopK      int     `yaml:"top_k"`
	Threshold float64 `yaml:"threshold"`
	// EmbedTimeout caps the query embedding call. Zero means no cap beyond ctx.
	EmbedTimeout time.Duration `yaml:"embed_timeout"`
}

// DefaultOptions returns top 5 with a 0.3 relevance floor.
func DefaultOptions() Options {
	return Options{TopK: DefaultTopK, Threshold: DefaultThreshold, EmbedTimeout: DefaultEmbedTimeout}
}

// MatchResult refers to a condition by name; resolve it through the knowledge base.
type MatchResult struct {
	Condition       string  `json:"condition"`
	SimilarityScore float64 `json:"similarity_score"`
}

// QueryText is what gets embedded: the canonical symptoms when there are any,
// the raw message otherwise.
func QueryText(symptoms []string, rawText string) string {
	if len(symptoms) > 0 {
		return strings.Join(symptoms, ", ")
	}
	return strings.TrimSpace(rawText)
}

// Match embeds the query with the knowledge base's embedder and ranks every condition.
// An empty knowledge base or empty query yields no matches and no error.
func Match(ctx context.Context, symptoms []string, rawText string, kb *knowledge.KnowledgeBase, opts Options) ([]MatchResult, error) {
	if kb == nil || kb.Len() == 0 {
		return nil, nil
	}
	query := QueryText(symptoms, rawText)
	if query == "" {
		return nil, nil
	}
	if opts.EmbedTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.EmbedTimeout)
		defer cancel()
	}
	vec, err := kb.Embedder().Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	return Rank(vec, kb, opts), nil
}

// Rank scores vec against every condition. Scores are clamped to [0,1],
// ties keep knowledge base order, anything under the threshold is dropped
// and at most TopK results are returned.
func Rank(vec []float32, kb *knowledge.KnowledgeBase, opts Options) []MatchResult {
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}

	scored := make([]MatchResult, 0, kb.Len())
	kb.Each(func(_ int, r *knowledge.ConditionRecord) {
		scored = append(scored, MatchResult{Condition: r.Name, SimilarityScore: clamp(embedding.Cosine(vec, r.Embedding))})
	})
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].SimilarityScore > scored[j].SimilarityScore
	})

	var out []MatchResult
	for _, m := range scored {
		if m.SimilarityScore < opts.Threshold || len(out) == opts.TopK {
			break
		}
		out = append(out, m)
	}
	return out
}

// Confidence is the top score, or 0 without matches.
func Confidence(matches []MatchResult) float64 {
	if len(matches) == 0 {
		return 0
	}
	return matches[0].SimilarityScore
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
