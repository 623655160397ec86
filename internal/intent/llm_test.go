package intent

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	openaioption "github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestOpenAIExternal(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1", "object": "chat.completion", "created": 1, "model": "gpt-4o-mini",
			"choices": [{"index": 0, "finish_reason": "stop",
				"message": {"role": "assistant", "content": "{\"intent\": \"gratitude\", \"confidence\": 0.93}"}}]
		}`))
	}))
	defer srv.Close()

	ext, err := NewOpenAIExternal("test-key", "", openaioption.WithBaseURL(srv.URL+"/"), openaioption.WithMaxRetries(0))
	require.NoError(t, err)

	label, conf, err := ext.ClassifyExternal(context.Background(), "cheers mate")
	require.NoError(t, err)
	assert.Equal(t, Gratitude, label)
	assert.InDelta(t, 0.93, conf, 1e-9)
	assert.Equal(t, DefaultOpenAIModel, gotBody["model"])
}

func TestOpenAIExternalServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error": {"message": "overloaded"}}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ext, err := NewOpenAIExternal("test-key", "gpt-4o", openaioption.WithBaseURL(srv.URL+"/"), openaioption.WithMaxRetries(0))
	require.NoError(t, err)

	_, _, err = ext.ClassifyExternal(context.Background(), "hello")
	assert.Error(t, err)
}

func TestAnthropicExternal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1", "type": "message", "role": "assistant", "model": "claude",
			"content": [{"type": "text", "text": "{\"intent\": \"help\", \"confidence\": 0.7}"}],
			"stop_reason": "end_turn", "usage": {"input_tokens": 10, "output_tokens": 5}
		}`))
	}))
	defer srv.Close()

	ext, err := NewAnthropicExternal("test-key", "", anthropicoption.WithBaseURL(srv.URL+"/"), anthropicoption.WithMaxRetries(0))
	require.NoError(t, err)

	label, conf, err := ext.ClassifyExternal(context.Background(), "how does this work")
	require.NoError(t, err)
	assert.Equal(t, Help, label)
	assert.InDelta(t, 0.7, conf, 1e-9)
}

func TestExternalTimeoutThroughClassifier(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ext, err := NewOpenAIExternal("test-key", "gpt-4o", openaioption.WithBaseURL(srv.URL+"/"), openaioption.WithMaxRetries(0))
	require.NoError(t, err)

	obs := &recordingObserver{}
	c := NewClassifier(nil, ext, Options{Timeout: 50 * time.Millisecond, Observer: obs})
	d := c.Classify(context.Background(), "I have a cough", 1)
	assert.Equal(t, SymptomQuery, d.Label)
	assert.Equal(t, SourceFallback, d.Source)
	assert.Equal(t, []string{ReasonTimeout}, obs.reasons)
}

type fakeGemini struct {
	reply  string
	err    error
	config *genai.GenerateContentConfig
}

func (f *fakeGemini) GenerateContent(_ context.Context, _ string, _ []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.config = config
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []*genai.Part{{Text: f.reply}}},
	}}}, nil
}

func TestGeminiExternal(t *testing.T) {
	fake := &fakeGemini{reply: `{"intent": "symptom_query", "confidence": 0.66}`}
	ext := &GeminiExternal{models: fake, model: DefaultGeminiModel}

	label, conf, err := ext.ClassifyExternal(context.Background(), "my knee hurts")
	require.NoError(t, err)
	assert.Equal(t, SymptomQuery, label)
	assert.InDelta(t, 0.66, conf, 1e-9)
	require.NotNil(t, fake.config)
	assert.Equal(t, "application/json", fake.config.ResponseMIMEType)

	fake.err = errors.New("quota")
	_, _, err = ext.ClassifyExternal(context.Background(), "my knee hurts")
	assert.Error(t, err)
}
