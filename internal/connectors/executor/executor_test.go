package executor

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lewisedginton/triage_assistant/internal/history"
	"github.com/lewisedginton/triage_assistant/internal/intent"
	"github.com/lewisedginton/triage_assistant/internal/knowledge"
	"github.com/lewisedginton/triage_assistant/internal/session_manager"
	"github.com/lewisedginton/triage_assistant/internal/storage_manager"
	"github.com/lewisedginton/triage_assistant/internal/triage"
	"github.com/lewisedginton/triage_assistant/pkg/logger"
)

type fakeEngine struct {
	mu         sync.Mutex
	processed  []string
	cleared    []string
	err        error
	conditions []knowledge.ConditionRecord
}

func (f *fakeEngine) Process(_ context.Context, sessionID, text string) (triage.ChatResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return triage.ChatResult{}, f.err
	}
	f.processed = append(f.processed, sessionID)
	return triage.ChatResult{
		SessionID:        sessionID,
		Intent:           intent.SymptomQuery,
		DetectedSymptoms: []string{"headache"},
		MatchedConditions: []triage.ConditionMatch{
			{ConditionName: "Migraine", SimilarityScore: 0.7},
		},
		Confidence: 0.7,
		Message:    "reply to " + text,
	}, nil
}

func (f *fakeEngine) ClearSession(sessionID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared = append(f.cleared, sessionID)
	return true
}

func (f *fakeEngine) ListConditions() []knowledge.ConditionRecord { return f.conditions }

type recordingHistory struct {
	history.Nop
	saved []history.Record
	err   error
}

func (r *recordingHistory) Save(_ context.Context, rec history.Record) error {
	if r.err != nil {
		return r.err
	}
	r.saved = append(r.saved, rec)
	return nil
}

func newManager(t *testing.T) session_manager.Manager {
	t.Helper()
	mgr, err := session_manager.New(session_manager.Config{
		MetadataFile: "sessions.json",
		FileProvider: storage_manager.NewLocalFileProvider(t.TempDir()),
		Logger:       logger.NewNopLogger(),
	})
	require.NoError(t, err)
	return mgr
}

func TestNewExecutor(t *testing.T) {
	_, err := NewExecutor(nil, newManager(t))
	assert.Error(t, err)
	_, err = NewExecutor(&fakeEngine{}, nil)
	assert.Error(t, err)
}

func TestExecute(t *testing.T) {
	ctx := context.Background()
	engine := &fakeEngine{}
	hist := &recordingHistory{}
	exec, err := NewExecutor(engine, newManager(t), WithHistory(hist))
	require.NoError(t, err)

	first, err := exec.Execute(ctx, MessageRequest{Connector: "telegram", UserID: "42", ChannelID: "42", Message: "headache"})
	require.NoError(t, err)
	assert.Equal(t, "reply to headache", first.Text)
	assert.NotEmpty(t, first.SessionID)

	second, err := exec.Execute(ctx, MessageRequest{Connector: "telegram", UserID: "42", ChannelID: "42", Message: "and nausea"})
	require.NoError(t, err)
	assert.Equal(t, first.SessionID, second.SessionID, "a user keeps one session across messages")

	other, err := exec.Execute(ctx, MessageRequest{Connector: "slack", UserID: "42", Message: "headache"})
	require.NoError(t, err)
	assert.NotEqual(t, first.SessionID, other.SessionID)

	require.Len(t, hist.saved, 3)
	assert.Equal(t, "telegram:42", hist.saved[0].UserID)
	assert.Equal(t, "headache", hist.saved[0].UserMessage)
	assert.Equal(t, []string{"Migraine"}, hist.saved[0].ConditionsMatched)
	assert.Equal(t, "slack:42", hist.saved[2].UserID)
}

func TestExecuteValidation(t *testing.T) {
	exec, err := NewExecutor(&fakeEngine{}, newManager(t))
	require.NoError(t, err)

	tests := []struct {
		name string
		req  MessageRequest
	}{
		{name: "missing connector", req: MessageRequest{UserID: "u", Message: "hi"}},
		{name: "missing user", req: MessageRequest{Connector: "slack", Message: "hi"}},
		{name: "blank message", req: MessageRequest{Connector: "slack", UserID: "u", Message: "  "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := exec.Execute(context.Background(), tt.req)
			assert.Error(t, err)
		})
	}
}

func TestExecuteErrors(t *testing.T) {
	ctx := context.Background()
	req := MessageRequest{Connector: "slack", UserID: "U1", Message: "fever"}

	t.Run("engine failure is returned", func(t *testing.T) {
		exec, err := NewExecutor(&fakeEngine{err: errors.New("embedding down")}, newManager(t))
		require.NoError(t, err)
		_, err = exec.Execute(ctx, req)
		assert.ErrorContains(t, err, "embedding down")
	})

	t.Run("history failure does not fail the reply", func(t *testing.T) {
		exec, err := NewExecutor(&fakeEngine{}, newManager(t), WithHistory(&recordingHistory{err: errors.New("db gone")}))
		require.NoError(t, err)
		resp, err := exec.Execute(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, "reply to fever", resp.Text)
	})
}

func TestNewSession(t *testing.T) {
	ctx := context.Background()
	engine := &fakeEngine{}
	exec, err := NewExecutor(engine, newManager(t))
	require.NoError(t, err)

	fresh, err := exec.NewSession(ctx, "slack", "U1", "D1")
	require.NoError(t, err)
	assert.Empty(t, engine.cleared, "nothing to clear for a first session")

	resp, err := exec.Execute(ctx, MessageRequest{Connector: "slack", UserID: "U1", ChannelID: "D1", Message: "cough"})
	require.NoError(t, err)
	assert.Equal(t, fresh, resp.SessionID)

	next, err := exec.NewSession(ctx, "slack", "U1", "D1")
	require.NoError(t, err)
	assert.NotEqual(t, fresh, next)
	assert.Equal(t, []string{fresh}, engine.cleared)

	resp, err = exec.Execute(ctx, MessageRequest{Connector: "slack", UserID: "U1", ChannelID: "D1", Message: "cough"})
	require.NoError(t, err)
	assert.Equal(t, next, resp.SessionID)
}

func TestHelpAndConditionsText(t *testing.T) {
	engine := &fakeEngine{}
	exec, err := NewExecutor(engine, newManager(t))
	require.NoError(t, err)

	help := exec.HelpText()
	assert.Contains(t, help, "/new")
	assert.Contains(t, help, "/conditions")
	assert.Contains(t, help, "Analyzing your symptoms")

	assert.Equal(t, "No conditions are loaded.", exec.ConditionsText())

	engine.conditions = []knowledge.ConditionRecord{
		{Name: "Common Cold", Symptoms: []string{"cough", "sneezing"}, Severity: knowledge.SeverityMild},
	}
	assert.Equal(t, "I can recognise these conditions:\n- Common Cold (mild): cough, sneezing", exec.ConditionsText())
}
