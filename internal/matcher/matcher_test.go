package matcher

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lewisedginton/triage_assistant/internal/embedding"
	"github.com/lewisedginton/triage_assistant/internal/knowledge"
	"github.com/lewisedginton/triage_assistant/internal/storage_manager"
)

type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
	calls   int
	// hang makes Embed wait for ctx to end.
	hang bool
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 1}, nil
}

func (f *fakeEmbedder) Name() string { return "fake" }

func fakeKB(t *testing.T, emb *fakeEmbedder) *knowledge.KnowledgeBase {
	t.Helper()
	rec := func(name, symptom string) knowledge.ConditionRecord {
		return knowledge.ConditionRecord{Name: name, Symptoms: []string{symptom}, Advice: "see a doctor", Severity: knowledge.SeverityMild}
	}
	kb, err := knowledge.New(context.Background(), []knowledge.ConditionRecord{
		rec("A", "x"), rec("B", "y"), rec("C", "z"), rec("D", "w"),
	}, emb)
	require.NoError(t, err)
	return kb
}

func newFake() *fakeEmbedder {
	return &fakeEmbedder{vectors: map[string][]float32{
		"x": {1, 0, 0},
		"y": {0, 1, 0},
		"z": {1, 0, 0},
		"w": {-1, 0, 0},
		"q": {1, 0, 0},
		"r": {0.8, 0.6, 0},
	}}
}

func names(ms []MatchResult) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.Condition
	}
	return out
}

func TestMatch(t *testing.T) {
	testCases := []struct {
		name     string
		symptoms []string
		raw      string
		opts     Options
		want     []string
		scores   []float64
	}{
		{
			name:     "ties keep insertion order and threshold drops the rest",
			symptoms: []string{"q"},
			opts:     DefaultOptions(),
			want:     []string{"A", "C"},
			scores:   []float64{1, 1},
		},
		{
			name:     "top k truncates",
			symptoms: []string{"q"},
			opts:     Options{TopK: 1, Threshold: 0.3},
			want:     []string{"A"},
		},
		{
			name:     "zero threshold keeps clamped negatives at zero",
			symptoms: []string{"q"},
			opts:     Options{TopK: 10, Threshold: 0},
			want:     []string{"A", "C", "B", "D"},
			scores:   []float64{1, 1, 0, 0},
		},
		{
			name: "raw text used without symptoms",
			raw:  "  r ",
			opts: DefaultOptions(),
			want: []string{"A", "C", "B"},
		},
		{
			name:     "all below threshold gives nothing",
			symptoms: []string{"unknown"},
			opts:     DefaultOptions(),
			want:     []string{},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			kb := fakeKB(t, newFake())
			got, err := Match(context.Background(), tc.symptoms, tc.raw, kb, tc.opts)
			require.NoError(t, err)
			assert.Equal(t, tc.want, names(got))
			for i, s := range tc.scores {
				assert.InDelta(t, s, got[i].SimilarityScore, 1e-6)
			}
		})
	}
}

func TestMatchEmptyInputs(t *testing.T) {
	emb := newFake()
	kb := fakeKB(t, emb)
	before := emb.calls

	got, err := Match(context.Background(), nil, "   ", kb, DefaultOptions())
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, before, emb.calls)

	empty, err := knowledge.New(context.Background(), nil, emb)
	require.NoError(t, err)
	got, err = Match(context.Background(), []string{"q"}, "", empty, DefaultOptions())
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = Match(context.Background(), []string{"q"}, "", nil, DefaultOptions())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMatchEmbedError(t *testing.T) {
	emb := newFake()
	kb := fakeKB(t, emb)
	emb.err = errors.New("rate limited")

	_, err := Match(context.Background(), []string{"q"}, "", kb, DefaultOptions())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestMatchEmbedTimeout(t *testing.T) {
	emb := newFake()
	kb := fakeKB(t, emb)
	emb.hang = true

	opts := DefaultOptions()
	opts.EmbedTimeout = 50 * time.Millisecond

	start := time.Now()
	_, err := Match(context.Background(), []string{"q"}, "", kb, opts)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestDefaultOptionsBoundEmbedding(t *testing.T) {
	assert.Equal(t, DefaultEmbedTimeout, DefaultOptions().EmbedTimeout)
}

func TestConfidence(t *testing.T) {
	assert.Zero(t, Confidence(nil))
	assert.Equal(t, 0.7, Confidence([]MatchResult{{Condition: "a", SimilarityScore: 0.7}, {Condition: "b", SimilarityScore: 0.4}}))
}

func TestQueryText(t *testing.T) {
	assert.Equal(t, "headache, fever", QueryText([]string{"headache", "fever"}, "ignored"))
	assert.Equal(t, "I feel odd", QueryText(nil, " I feel odd "))
}

func TestMatchPropertiesOnShippedKnowledge(t *testing.T) {
	provider := storage_manager.NewLocalFileProvider(filepath.Join("..", "..", "data"))
	kb, err := knowledge.Load(context.Background(), provider, "medical_knowledge.json", "", embedding.NewHashingEmbedder(0))
	require.NoError(t, err)

	queries := [][]string{
		{"headache", "fever"},
		{"cough"},
		{"chest pain", "shortness of breath"},
		{"nausea", "vomiting", "diarrhea"},
		{"thirst", "frequent urination", "fatigue"},
		{"sneezing", "runny nose"},
		{"unrelated"},
	}
	for _, q := range queries {
		for _, opts := range []Options{DefaultOptions(), {TopK: 2, Threshold: 0.1}, {TopK: 20, Threshold: 0}} {
			first, err := Match(context.Background(), q, "", kb, opts)
			require.NoError(t, err)

			assert.LessOrEqual(t, len(first), opts.TopK)
			for i, m := range first {
				assert.GreaterOrEqual(t, m.SimilarityScore, 0.0)
				assert.LessOrEqual(t, m.SimilarityScore, 1.0)
				assert.GreaterOrEqual(t, m.SimilarityScore, opts.Threshold)
				if i > 0 {
					assert.GreaterOrEqual(t, first[i-1].SimilarityScore, m.SimilarityScore)
				}
			}

			again, err := Match(context.Background(), q, "", kb, opts)
			require.NoError(t, err)
			assert.Equal(t, first, again)
		}
	}

	flu, err := Match(context.Background(), []string{"headache", "fever"}, "", kb, DefaultOptions())
	require.NoError(t, err)
	require.NotEmpty(t, flu)
	assert.Equal(t, "Influenza", flu[0].Condition)
	assert.Greater(t, flu[0].SimilarityScore, 0.3)
}
