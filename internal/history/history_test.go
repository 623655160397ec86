package history

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lewisedginton/triage_assistant/internal/extractor"
	"github.com/lewisedginton/triage_assistant/internal/intent"
	"github.com/lewisedginton/triage_assistant/internal/storage_manager"
	"github.com/lewisedginton/triage_assistant/internal/storage_manager/mocks"
	"github.com/lewisedginton/triage_assistant/internal/triage"
)

func newTestFileStore(t *testing.T) *FileStore {
	t.Helper()
	s := NewFileStore(storage_manager.NewLocalFileProvider(t.TempDir()))
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}
	return s
}

func TestFileStoreSaveAndList(t *testing.T) {
	s := newTestFileStore(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		require.NoError(t, s.Save(ctx, Record{UserID: "alice", SessionID: "sess_a", UserMessage: fmt.Sprintf("m%d", i)}))
	}
	require.NoError(t, s.Save(ctx, Record{UserID: "bob", UserMessage: "other"}))

	all, err := s.ListByUser(ctx, "alice", 0)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, []string{"m3", "m2", "m1", "m0"}, messages(all))
	for _, r := range all {
		_, err := uuid.Parse(r.ID)
		assert.NoError(t, err)
		assert.Equal(t, []string{}, r.SymptomsDetected)
	}

	limited, err := s.ListByUser(ctx, "alice", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"m3", "m2"}, messages(limited))

	none, err := s.ListByUser(ctx, "carol", 5)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestFileStoreKeepsProvidedFields(t *testing.T) {
	s := newTestFileStore(t)
	ctx := context.Background()
	at := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.Save(ctx, Record{ID: "fixed", UserID: "u/1", Timestamp: at, Entities: extractor.Entities{Severity: "mild"}}))
	require.NoError(t, s.Save(ctx, Record{UserID: "u/1", UserMessage: "later"}))

	got, err := s.ListByUser(ctx, "u/1", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "later", got[0].UserMessage)
	assert.Equal(t, "fixed", got[1].ID)
	assert.True(t, at.Equal(got[1].Timestamp))
	assert.Equal(t, "mild", got[1].Entities.Severity)
}

func TestFileStoreSameInstantNewestFirst(t *testing.T) {
	s := NewFileStore(storage_manager.NewLocalFileProvider(t.TempDir()))
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return at }

	ctx := context.Background()
	require.NoError(t, s.Save(ctx, Record{UserID: "u", UserMessage: "first"}))
	require.NoError(t, s.Save(ctx, Record{UserID: "u", UserMessage: "second"}))

	got, err := s.ListByUser(ctx, "u", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"second", "first"}, messages(got))
}

func TestFileStoreProviderErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("read failure on save", func(t *testing.T) {
		provider := mocks.NewFileProvider(t)
		provider.EXPECT().Read(mock.Anything, "users/u.jsonl").Return(nil, errors.New("disk on fire"))
		err := NewFileStore(provider).Save(ctx, Record{UserID: "u"})
		assert.ErrorContains(t, err, "disk on fire")
	})

	t.Run("write failure", func(t *testing.T) {
		provider := mocks.NewFileProvider(t)
		provider.EXPECT().Read(mock.Anything, "users/u.jsonl").Return(nil, storage_manager.ErrNotFound)
		provider.EXPECT().Write(mock.Anything, "users/u.jsonl", mock.Anything).Return(errors.New("read-only"))
		err := NewFileStore(provider).Save(ctx, Record{UserID: "u"})
		assert.ErrorContains(t, err, "read-only")
	})

	t.Run("corrupt line", func(t *testing.T) {
		provider := mocks.NewFileProvider(t)
		provider.EXPECT().Read(mock.Anything, "users/u.jsonl").Return([]byte("{not json}\n"), nil)
		_, err := NewFileStore(provider).ListByUser(ctx, "u", 1)
		assert.ErrorContains(t, err, "line 1")
	})

	t.Run("ping", func(t *testing.T) {
		provider := mocks.NewFileProvider(t)
		provider.EXPECT().Exists(mock.Anything, "users").Return(false, errors.New("timeout"))
		assert.Error(t, NewFileStore(provider).Ping(ctx))
	})
}

func TestFromResult(t *testing.T) {
	res := triage.ChatResult{
		SessionID:        "sess_1",
		Intent:           intent.SymptomQuery,
		DetectedSymptoms: []string{"headache", "fever"},
		MatchedConditions: []triage.ConditionMatch{
			{ConditionName: "Influenza", SimilarityScore: 0.53},
		},
		Confidence: 0.53,
		Message:    "reply",
		Entities:   extractor.Entities{Duration: "3 days"},
	}

	r := FromResult("alice", "I have a headache and fever", res)
	assert.Equal(t, "alice", r.UserID)
	assert.Equal(t, "sess_1", r.SessionID)
	assert.Equal(t, "symptom_query", r.Intent)
	assert.Equal(t, "reply", r.BotResponse)
	assert.Equal(t, []string{"Influenza"}, r.ConditionsMatched)
	assert.Equal(t, "3 days", r.Entities.Duration)
	assert.Empty(t, r.ID)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, Config{}, nil)
	require.NoError(t, err)
	assert.IsType(t, Nop{}, s)
	list, err := s.ListByUser(ctx, "u", 1)
	require.NoError(t, err)
	assert.Empty(t, list)

	s, err = Open(ctx, Config{Backend: BackendFile, Provider: storage_manager.NewLocalFileProvider(t.TempDir())}, nil)
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)
	assert.NoError(t, s.Ping(ctx))

	_, err = Open(ctx, Config{Backend: BackendFile}, nil)
	assert.Error(t, err)

	_, err = Open(ctx, Config{Backend: "redis"}, nil)
	assert.ErrorIs(t, err, ErrUnsupportedBackend)

	_, err = Open(ctx, Config{Backend: BackendPostgres}, nil)
	assert.Error(t, err)

	_, err = Open(ctx, Config{Backend: BackendMongo}, nil)
	assert.Error(t, err)
}

func messages(rs []Record) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.UserMessage
	}
	return out
}
