package triage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lewisedginton/triage_assistant/internal/conversation"
	"github.com/lewisedginton/triage_assistant/internal/embedding"
	"github.com/lewisedginton/triage_assistant/internal/intent"
	"github.com/lewisedginton/triage_assistant/internal/knowledge"
	"github.com/lewisedginton/triage_assistant/internal/prompt_manager"
	"github.com/lewisedginton/triage_assistant/internal/storage_manager"
)

func shippedKB(t *testing.T) *knowledge.KnowledgeBase {
	t.Helper()
	provider := storage_manager.NewLocalFileProvider(filepath.Join("..", "..", "data"))
	kb, err := knowledge.Load(context.Background(), provider, "medical_knowledge.json", "", embedding.NewHashingEmbedder(0))
	require.NoError(t, err)
	return kb
}

func newEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	return New(shippedKB(t), nil, nil, nil, opts...)
}

func TestProcessHeadacheAndFever(t *testing.T) {
	e := newEngine(t)

	res, err := e.Process(context.Background(), "s1", "I have a headache and fever")
	require.NoError(t, err)

	assert.Equal(t, intent.SymptomQuery, res.Intent)
	assert.Equal(t, intent.SourceRules, res.IntentSource)
	assert.ElementsMatch(t, []string{"headache", "fever"}, res.DetectedSymptoms)
	assert.False(t, res.Urgent)
	assert.False(t, res.InsufficientInformation)
	require.NotEmpty(t, res.MatchedConditions)

	found := false
	for _, m := range res.MatchedConditions {
		if contains(m.Symptoms, "fever") && contains(m.Symptoms, "headache") && m.SimilarityScore > 0.3 {
			found = true
		}
	}
	assert.True(t, found, "expected a condition listing both fever and headache")
	assert.Equal(t, res.MatchedConditions[0].SimilarityScore, res.Confidence)
	assert.Contains(t, res.Message, "**Influenza**")
	assert.True(t, strings.HasSuffix(res.Message, prompt_manager.Defaults().Disclaimer))
	assert.Equal(t, 1, res.TurnCount)
}

func TestProcessNegatedFever(t *testing.T) {
	e := newEngine(t)

	res, err := e.Process(context.Background(), "s1", "I don't have a fever but I have a cough")
	require.NoError(t, err)

	assert.Equal(t, []string{"cough"}, res.DetectedSymptoms)
	assert.Equal(t, []string{"fever"}, res.NegatedSymptoms)
	assert.Contains(t, res.Message, "Not counted, since you said you don't have: fever")
}

func TestProcessFollowUpExtendsAnalysis(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	first, err := e.Process(ctx, "s1", "I have a headache")
	require.NoError(t, err)
	assert.Equal(t, []string{"headache"}, first.DetectedSymptoms)
	assert.False(t, first.FollowUp)

	second, err := e.Process(ctx, "s1", "I also have nausea")
	require.NoError(t, err)
	assert.Equal(t, []string{"headache", "nausea"}, second.DetectedSymptoms)
	assert.Equal(t, []string{"nausea"}, second.TurnSymptoms)
	assert.True(t, second.FollowUp)
	assert.Equal(t, 2, second.TurnCount)

	require.NotEmpty(t, second.MatchedConditions)
	top := second.MatchedConditions[0]
	assert.Equal(t, "Migraine", top.ConditionName)
	assert.True(t, contains(top.Symptoms, "headache") && contains(top.Symptoms, "nausea"))
	assert.NotEqual(t, first.MatchedConditions[0].ConditionName, top.ConditionName)
	assert.Contains(t, second.Message, prompt_manager.Defaults().FollowUpIntro)

	snap, ok := e.Sessions().Get("s1")
	require.True(t, ok)
	assert.Equal(t, second.ConditionNames()[0], snap.LastMatches[0].Condition)
}

func TestProcessAccumulationIsMonotonic(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	var prev []string
	for _, msg := range []string{"I have a cough", "no fever though", "runny nose too", "thanks", "and sneezing"} {
		res, err := e.Process(ctx, "s1", msg)
		require.NoError(t, err)
		for _, p := range prev {
			assert.Contains(t, res.DetectedSymptoms, p, msg)
		}
		prev = res.DetectedSymptoms
	}
	assert.Equal(t, []string{"cough", "runny nose", "sneezing"}, prev)
}

func TestClearSessionBehavesLikeNewSession(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	_, err := e.Process(ctx, "s1", "I have a headache and fever")
	require.NoError(t, err)
	assert.True(t, e.ClearSession("s1"))
	assert.False(t, e.ClearSession("s1"))

	cleared, err := e.Process(ctx, "s1", "I also have nausea")
	require.NoError(t, err)
	fresh, err := e.Process(ctx, "s2", "I also have nausea")
	require.NoError(t, err)

	fresh.SessionID = cleared.SessionID
	assert.Equal(t, fresh, cleared)
	assert.Equal(t, []string{"nausea"}, cleared.DetectedSymptoms)
	assert.Equal(t, 1, cleared.TurnCount)
	assert.False(t, cleared.FollowUp)
}

func TestProcessEmergency(t *testing.T) {
	e := newEngine(t)

	res, err := e.Process(context.Background(), "s1", "severe chest pain, can't breathe")
	require.NoError(t, err)
	assert.Equal(t, intent.Emergency, res.Intent)
	assert.True(t, res.Urgent)
	assert.True(t, strings.HasPrefix(res.Message, prompt_manager.Defaults().Urgent))
	assert.Equal(t, []string{"chest pain", "shortness of breath"}, res.DetectedSymptoms)

	noSymptoms, err := e.Process(context.Background(), "s2", "this is an emergency")
	require.NoError(t, err)
	assert.True(t, noSymptoms.Urgent)
	assert.Empty(t, noSymptoms.MatchedConditions)
	assert.True(t, strings.HasPrefix(noSymptoms.Message, prompt_manager.Defaults().Urgent))
}

type alwaysGreeting struct{}

func (alwaysGreeting) ClassifyExternal(context.Context, string) (intent.Label, float64, error) {
	return intent.Greeting, 0.99, nil
}
func (alwaysGreeting) Name() string { return "always-greeting" }

func TestEmergencyNotOverriddenByExternal(t *testing.T) {
	classifier := intent.NewClassifier(nil, alwaysGreeting{}, intent.Options{})
	e := New(shippedKB(t), nil, classifier, nil)
	assert.Equal(t, "always-greeting", e.IntentProvider())

	res, err := e.Process(context.Background(), "s1", "severe chest pain, can't breathe")
	require.NoError(t, err)
	assert.Equal(t, intent.Emergency, res.Intent)
	assert.True(t, res.Urgent)

	other, err := e.Process(context.Background(), "s2", "I have a cough")
	require.NoError(t, err)
	assert.Equal(t, intent.Greeting, other.Intent)
	assert.Equal(t, intent.SourceExternal, other.IntentSource)
	assert.Contains(t, other.Message, prompt_manager.Defaults().DetectedIntro)
}

func TestProcessConversationalAndInsufficient(t *testing.T) {
	defaults := prompt_manager.Defaults()
	testCases := []struct {
		text         string
		intent       intent.Label
		message      string
		insufficient bool
	}{
		{"Hello", intent.Greeting, defaults.Greeting, false},
		{"what can you do?", intent.Help, defaults.Help, false},
		{"thanks a lot", intent.Gratitude, defaults.Gratitude, false},
		{"goodbye", intent.Farewell, defaults.Farewell, false},
		{"I feel strange", intent.Unknown, defaults.InsufficientInformation, true},
	}
	for _, tc := range testCases {
		t.Run(tc.text, func(t *testing.T) {
			e := newEngine(t)
			res, err := e.Process(context.Background(), "s1", tc.text)
			require.NoError(t, err)
			assert.Equal(t, tc.intent, res.Intent)
			assert.Equal(t, tc.message, res.Message)
			assert.Equal(t, tc.insufficient, res.InsufficientInformation)
			assert.NotNil(t, res.DetectedSymptoms)
		})
	}
}

func TestGreetingWithSymptomsStillAnalyses(t *testing.T) {
	e := newEngine(t)
	res, err := e.Process(context.Background(), "s1", "Hi, I have a headache and fever")
	require.NoError(t, err)
	assert.Equal(t, intent.Greeting, res.Intent)
	assert.True(t, strings.HasPrefix(res.Message, prompt_manager.Defaults().Greeting))
	assert.Contains(t, res.Message, "**Influenza**")
}

func TestProcessValidation(t *testing.T) {
	e := newEngine(t)
	_, err := e.Process(context.Background(), "s1", "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)
	_, err = e.Process(context.Background(), "", "hello")
	assert.ErrorIs(t, err, ErrEmptySessionID)
	assert.Equal(t, 0, e.Sessions().Len())
}

type toggleEmbedder struct {
	inner embedding.Embedder
	fail  bool
}

func (t *toggleEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if t.fail {
		return nil, errors.New("provider unavailable")
	}
	return t.inner.Embed(ctx, text)
}
func (t *toggleEmbedder) Name() string { return "toggle" }

func TestProcessEmbedFailureLeavesSessionUntouched(t *testing.T) {
	emb := &toggleEmbedder{inner: embedding.NewHashingEmbedder(0)}
	kb, err := knowledge.New(context.Background(), []knowledge.ConditionRecord{
		{Name: "Influenza", Symptoms: []string{"fever", "headache"}, Advice: "Rest.", Severity: knowledge.SeverityModerate},
	}, emb)
	require.NoError(t, err)
	e := New(kb, nil, nil, nil)

	_, err = e.Process(context.Background(), "s1", "I have a fever")
	require.NoError(t, err)

	emb.fail = true
	_, err = e.Process(context.Background(), "s1", "and a headache")
	require.Error(t, err)

	snap, ok := e.Sessions().Get("s1")
	require.True(t, ok)
	assert.Equal(t, 1, snap.TurnCount)
	assert.Equal(t, []string{"fever"}, snap.AccumulatedSymptoms())
}

func TestProcessEmptyKnowledgeBase(t *testing.T) {
	kb, err := knowledge.New(context.Background(), nil, embedding.NewHashingEmbedder(0))
	require.NoError(t, err)
	e := New(kb, nil, nil, nil)

	res, err := e.Process(context.Background(), "s1", "I have a cough")
	require.NoError(t, err)
	assert.Empty(t, res.MatchedConditions)
	assert.Zero(t, res.Confidence)
	assert.Contains(t, res.Message, prompt_manager.Defaults().NoMatch)
}

type countingRecorder struct {
	mu    sync.Mutex
	turns map[string]int
}

func (c *countingRecorder) ObserveTurn(intent string, _, _ bool, _ float64, _ bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns[intent]++
}

func TestConcurrentSessions(t *testing.T) {
	rec := &countingRecorder{turns: map[string]int{}}
	e := newEngine(t, WithRecorder(rec))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("s%d", i)
			for _, msg := range []string{"I have a headache", "I also have nausea", "and dizziness"} {
				_, err := e.Process(context.Background(), id, msg)
				assert.NoError(t, err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 8, e.Sessions().Len())
	for i := 0; i < 8; i++ {
		snap, ok := e.Sessions().Get(fmt.Sprintf("s%d", i))
		require.True(t, ok)
		assert.Equal(t, 3, snap.TurnCount)
		assert.Equal(t, []string{"headache", "nausea", "dizziness"}, snap.AccumulatedSymptoms())
	}
	assert.Equal(t, 24, rec.turns[string(intent.SymptomQuery)])
}

func TestAnalyzeSymptoms(t *testing.T) {
	e := newEngine(t)

	a, err := e.AnalyzeSymptoms(context.Background(), []string{"Throat Pain", "runny nose", "sneezing", "sore throat", "purple spots"})
	require.NoError(t, err)
	assert.Equal(t, []string{"sore throat", "runny nose", "sneezing", "purple spots"}, a.Symptoms)
	assert.Equal(t, []string{"purple spots"}, a.Unrecognised)
	require.NotEmpty(t, a.MatchedConditions)
	assert.Equal(t, a.MatchedConditions[0].SimilarityScore, a.Confidence)
	assert.Equal(t, 0, e.Sessions().Len())

	_, err = e.AnalyzeSymptoms(context.Background(), []string{" ", ""})
	assert.ErrorIs(t, err, ErrNoSymptoms)
}

func TestListConditionsAndTemplates(t *testing.T) {
	custom := prompt_manager.Defaults()
	custom.Greeting = "Welcome to the clinic."
	e := newEngine(t, WithTemplates(custom), WithFollowUpMarkers([]string{"plus"}))

	assert.Len(t, e.ListConditions(), e.KnowledgeBase().Len())
	assert.Equal(t, "Common Cold", e.ListConditions()[0].Name)

	res, err := e.Process(context.Background(), "s1", "hello")
	require.NoError(t, err)
	assert.Equal(t, "Welcome to the clinic.", res.Message)

	_, err = e.Process(context.Background(), "s1", "I have a cough")
	require.NoError(t, err)
	res, err = e.Process(context.Background(), "s1", "also a fever")
	require.NoError(t, err)
	assert.False(t, res.FollowUp)
	res, err = e.Process(context.Background(), "s1", "plus a headache")
	require.NoError(t, err)
	assert.True(t, res.FollowUp)
}

func TestEngineUsesProvidedStore(t *testing.T) {
	store := conversation.NewStore()
	e := New(shippedKB(t), nil, nil, store)
	_, err := e.Process(context.Background(), "s1", "cough")
	require.NoError(t, err)
	assert.Equal(t, 1, store.Len())
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
