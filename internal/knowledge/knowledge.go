// Package knowledge holds the immutable catalogue of conditions the matcher ranks.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/lewisedginton/triage_assistant/internal/embedding"
)

// Severity grades how urgently a condition should be seen.
type Severity string

const (
	SeverityMild     Severity = "mild"
	SeverityModerate Severity = "moderate"
	SeveritySerious  Severity = "serious"
)

// Valid reports whether s is one of the known grades.
func (s Severity) Valid() bool {
	switch s {
	case SeverityMild, SeverityModerate, SeveritySerious:
		return true
	}
	return false
}

// ConditionRecord is one catalogue entry. Embedding is computed by New.
type ConditionRecord struct {
	Name      string    `json:"condition" yaml:"condition" bson:"condition"`
	Symptoms  []string  `json:"symptoms" yaml:"symptoms" bson:"symptoms"`
	Advice    string    `json:"advice" yaml:"advice" bson:"advice"`
	Severity  Severity  `json:"severity" yaml:"severity" bson:"severity"`
	Embedding []float32 `json:"-" yaml:"-" bson:"-"`
}

// EmbeddingText is the text a condition is embedded from.
func (r ConditionRecord) EmbeddingText() string {
	return strings.Join(r.Symptoms, ", ")
}

// KnowledgeBase is read-only after New and safe to share between goroutines.
type KnowledgeBase struct {
	records    []ConditionRecord
	byName     map[string]int
	vocabulary []string
	embedder   embedding.Embedder
}

// New validates every record and embeds each condition once. All validation
// failures are returned together; any error means the catalogue is unusable.
func New(ctx context.Context, records []ConditionRecord, embedder embedding.Embedder) (*KnowledgeBase, error) {
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}

	kb := &KnowledgeBase{
		records:  make([]ConditionRecord, 0, len(records)),
		byName:   make(map[string]int, len(records)),
		embedder: embedder,
	}

	var result error
	for i, raw := range records {
		rec, err := normalise(raw)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("record %d: %w", i, err))
			continue
		}
		key := strings.ToLower(rec.Name)
		if prev, dup := kb.byName[key]; dup {
			result = multierror.Append(result, fmt.Errorf("record %d: duplicate condition %q (first seen at record %d)", i, rec.Name, prev))
			continue
		}
		kb.byName[key] = len(kb.records)
		kb.records = append(kb.records, rec)
	}
	if result != nil {
		return nil, result
	}

	seen := make(map[string]struct{})
	dims := -1
	for i := range kb.records {
		vec, err := embedder.Embed(ctx, kb.records[i].EmbeddingText())
		if err != nil {
			return nil, fmt.Errorf("failed to embed condition %q: %w", kb.records[i].Name, err)
		}
		if dims >= 0 && len(vec) != dims {
			return nil, fmt.Errorf("condition %q embedding has %d dimensions, expected %d", kb.records[i].Name, len(vec), dims)
		}
		dims = len(vec)
		kb.records[i].Embedding = vec

		for _, s := range kb.records[i].Symptoms {
			if _, ok := seen[s]; !ok {
				seen[s] = struct{}{}
				kb.vocabulary = append(kb.vocabulary, s)
			}
		}
	}
	return kb, nil
}

func normalise(rec ConditionRecord) (ConditionRecord, error) {
	var result error

	rec.Name = strings.TrimSpace(rec.Name)
	if rec.Name == "" {
		result = multierror.Append(result, errors.New("condition name is required"))
	}

	symptoms := make([]string, 0, len(rec.Symptoms))
	for _, s := range rec.Symptoms {
		if s = strings.ToLower(strings.Join(strings.Fields(s), " ")); s != "" {
			symptoms = append(symptoms, s)
		}
	}
	if len(symptoms) == 0 {
		result = multierror.Append(result, errors.New("at least one symptom is required"))
	}
	rec.Symptoms = symptoms

	rec.Advice = strings.TrimSpace(rec.Advice)
	if rec.Advice == "" {
		result = multierror.Append(result, errors.New("advice is required"))
	}

	rec.Severity = Severity(strings.ToLower(strings.TrimSpace(string(rec.Severity))))
	if !rec.Severity.Valid() {
		result = multierror.Append(result, fmt.Errorf("severity %q is not one of mild, moderate, serious", rec.Severity))
	}

	if result != nil && rec.Name != "" {
		return rec, fmt.Errorf("%q: %w", rec.Name, result)
	}
	return rec, result
}

// Conditions returns the records in insertion order. The slice is a copy;
// embeddings are shared and must not be modified.
func (kb *KnowledgeBase) Conditions() []ConditionRecord {
	out := make([]ConditionRecord, len(kb.records))
	for i, r := range kb.records {
		r.Symptoms = append([]string(nil), r.Symptoms...)
		out[i] = r
	}
	return out
}

// Lookup finds a condition by name, ignoring case.
func (kb *KnowledgeBase) Lookup(name string) (ConditionRecord, bool) {
	idx, ok := kb.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return ConditionRecord{}, false
	}
	r := kb.records[idx]
	r.Symptoms = append([]string(nil), r.Symptoms...)
	return r, true
}

// Vocabulary lists every distinct symptom phrase in first-seen order.
func (kb *KnowledgeBase) Vocabulary() []string {
	return append([]string(nil), kb.vocabulary...)
}

// Len is the number of conditions.
func (kb *KnowledgeBase) Len() int { return len(kb.records) }

// Embedder is the provider the catalogue was embedded with; queries must use the same one.
func (kb *KnowledgeBase) Embedder() embedding.Embedder { return kb.embedder }

// Each calls fn for every record in insertion order without copying.
func (kb *KnowledgeBase) Each(fn func(i int, r *ConditionRecord)) {
	for i := range kb.records {
		fn(i, &kb.records[i])
	}
}
