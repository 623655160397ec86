package intent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuleClassifier(t *testing.T) {
	c := NewRuleClassifier(DefaultRules())

	testCases := []struct {
		text     string
		symptoms int
		want     Label
	}{
		{"severe chest pain, can't breathe", 2, Emergency},
		{"Hi there, it's an emergency", 0, Emergency},
		{"Hello!", 0, Greeting},
		{"hey, thanks", 0, Greeting},
		{"Thank you so much", 0, Gratitude},
		{"ok bye", 0, Farewell},
		{"See you later", 0, Farewell},
		{"What can you do?", 0, Help},
		{"I have a headache and fever", 2, SymptomQuery},
		{"this is odd", 0, Unknown},
		{"whichever", 0, Unknown},
		{"", 0, Unknown},
	}
	for _, tc := range testCases {
		t.Run(tc.text, func(t *testing.T) {
			assert.Equal(t, tc.want, c.Classify(tc.text, tc.symptoms))
		})
	}
}

func TestRulesMerge(t *testing.T) {
	rules := DefaultRules().Merge(Rules{Greeting: []string{"howdy"}})
	c := NewRuleClassifier(rules)
	assert.Equal(t, Greeting, c.Classify("howdy partner", 0))
	assert.NotContains(t, DefaultRules().Greeting, "howdy")
}

func TestParseLabel(t *testing.T) {
	testCases := map[string]struct {
		want Label
		ok   bool
	}{
		"Greeting":        {Greeting, true},
		" symptom query ": {SymptomQuery, true},
		"symptom_inquiry": {SymptomQuery, true},
		"EMERGENCY":       {Emergency, true},
		"weather":         {Label("weather"), false},
	}
	for in, tc := range testCases {
		got, ok := ParseLabel(in)
		assert.Equal(t, tc.want, got, in)
		assert.Equal(t, tc.ok, ok, in)
	}
	assert.True(t, Greeting.Conversational())
	assert.False(t, Emergency.Conversational())
	assert.False(t, SymptomQuery.Conversational())
}

type fakeExternal struct {
	mu         sync.Mutex
	label      Label
	confidence float64
	err        error
	block      bool
	calls      int
}

func (f *fakeExternal) ClassifyExternal(ctx context.Context, _ string) (Label, float64, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return Unknown, 0, ctx.Err()
	}
	return f.label, f.confidence, f.err
}

func (f *fakeExternal) Name() string { return "fake" }

type recordingObserver struct{ reasons []string }

func (r *recordingObserver) ObserveClassifierFallback(reason string) {
	r.reasons = append(r.reasons, reason)
}

func TestClassifierDecisions(t *testing.T) {
	testCases := []struct {
		name       string
		text       string
		symptoms   int
		external   *fakeExternal
		want       Decision
		wantCalls  int
		wantReason string
	}{
		{
			name:      "external label preferred",
			text:      "I have a cough",
			symptoms:  1,
			external:  &fakeExternal{label: Help, confidence: 0.9},
			want:      Decision{Label: Help, Source: SourceExternal, Confidence: 0.9},
			wantCalls: 1,
		},
		{
			name:      "local emergency never overridden and external not consulted",
			text:      "severe chest pain, can't breathe",
			symptoms:  2,
			external:  &fakeExternal{label: Greeting, confidence: 1},
			want:      Decision{Label: Emergency, Source: SourceRules, Confidence: 1},
			wantCalls: 0,
		},
		{
			name:       "error falls back",
			text:       "hello",
			external:   &fakeExternal{err: errors.New("503")},
			want:       Decision{Label: Greeting, Source: SourceFallback, Confidence: 1, FallbackReason: ReasonError},
			wantCalls:  1,
			wantReason: ReasonError,
		},
		{
			name:       "timeout falls back",
			text:       "I have a cough",
			symptoms:   1,
			external:   &fakeExternal{block: true},
			want:       Decision{Label: SymptomQuery, Source: SourceFallback, Confidence: 1, FallbackReason: ReasonTimeout},
			wantCalls:  1,
			wantReason: ReasonTimeout,
		},
		{
			name:       "low confidence falls back",
			text:       "bye",
			external:   &fakeExternal{label: Help, confidence: 0.2},
			want:       Decision{Label: Farewell, Source: SourceFallback, Confidence: 1, FallbackReason: ReasonLowConfidence},
			wantCalls:  1,
			wantReason: ReasonLowConfidence,
		},
		{
			name:       "unknown external label falls back",
			text:       "thanks",
			external:   &fakeExternal{label: Unknown, confidence: 0.99},
			want:       Decision{Label: Gratitude, Source: SourceFallback, Confidence: 1, FallbackReason: ReasonUnknown},
			wantCalls:  1,
			wantReason: ReasonUnknown,
		},
		{
			name:      "unconfigured external is not a fallback",
			text:      "hello",
			external:  &fakeExternal{err: fmt.Errorf("lua: %w", ErrNotConfigured)},
			want:      Decision{Label: Greeting, Source: SourceRules, Confidence: 1},
			wantCalls: 1,
		},
		{
			name:       "invalid external label falls back",
			text:       "thanks",
			external:   &fakeExternal{label: Label("weather"), confidence: 0.99},
			want:       Decision{Label: Gratitude, Source: SourceFallback, Confidence: 1, FallbackReason: ReasonInvalidLabel},
			wantCalls:  1,
			wantReason: ReasonInvalidLabel,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			obs := &recordingObserver{}
			c := NewClassifier(nil, tc.external, Options{Timeout: 20 * time.Millisecond, MinConfidence: 0.5, Observer: obs})

			got := c.Classify(context.Background(), tc.text, tc.symptoms)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.wantCalls, tc.external.calls)
			if tc.wantReason != "" {
				assert.Equal(t, []string{tc.wantReason}, obs.reasons)
			} else {
				assert.Empty(t, obs.reasons)
			}
		})
	}
}

func TestClassifierLocalOnly(t *testing.T) {
	c := NewClassifier(nil, nil, Options{})
	assert.Equal(t, "none", c.ExternalName())
	assert.Equal(t, Decision{Label: Greeting, Source: SourceRules, Confidence: 1}, c.Classify(context.Background(), "hi", 0))
}

func TestClassifierTimeoutIsBounded(t *testing.T) {
	c := NewClassifier(nil, &fakeExternal{block: true}, Options{Timeout: 30 * time.Millisecond})

	start := time.Now()
	d := c.Classify(context.Background(), "hello", 0)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, Greeting, d.Label)
}

func TestParseReply(t *testing.T) {
	label, conf, err := parseReply("```json\n{\"intent\": \"farewell\", \"confidence\": 0.8}\n```")
	require.NoError(t, err)
	assert.Equal(t, Farewell, label)
	assert.InDelta(t, 0.8, conf, 1e-9)

	_, _, err = parseReply("I think it is a greeting")
	assert.Error(t, err)
	_, _, err = parseReply(`{"intent": "smalltalk", "confidence": 0.8}`)
	assert.Error(t, err)
	_, _, err = parseReply(`{"intent": "help", "confidence": 7}`)
	assert.Error(t, err)
}

func TestNewExternal(t *testing.T) {
	ctx := context.Background()

	ext, err := NewExternal(ctx, ExternalConfig{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "none", ext.Name())

	_, err = NewExternal(ctx, ExternalConfig{Provider: ProviderOpenAI}, nil)
	assert.Error(t, err)
	_, err = NewExternal(ctx, ExternalConfig{Provider: ProviderAnthropic}, nil)
	assert.Error(t, err)
	_, err = NewExternal(ctx, ExternalConfig{Provider: ProviderGemini}, nil)
	assert.Error(t, err)
	_, err = NewExternal(ctx, ExternalConfig{Provider: "dialogflow"}, nil)
	assert.Error(t, err)

	ext, err = NewExternal(ctx, ExternalConfig{Provider: ProviderOpenAI, APIKey: "k"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "openai", ext.Name())

	ext, err = NewExternal(ctx, ExternalConfig{Provider: ProviderLua, ScriptSource: `result = {intent = "help"}`}, nil)
	require.NoError(t, err)
	assert.Equal(t, "lua", ext.Name())
}
