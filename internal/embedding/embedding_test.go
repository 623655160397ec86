package embedding

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestCosine(t *testing.T) {
	testCases := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
		{"empty", nil, nil, 0},
		{"length mismatch", []float32{1}, []float32{1, 1}, 0},
		{"nan input", []float32{float32(math.NaN()), 1}, []float32{1, 1}, 0},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, Cosine(tc.a, tc.b), 1e-9)
		})
	}
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"i", "don't", "have", "a", "fever"}, Tokenize("I don't have a FEVER!"))
	assert.Equal(t, []string{"sore", "throat", "3", "days"}, Tokenize("sore-throat, 3 days"))
	assert.Equal(t, []string{"quoted"}, Tokenize("'quoted'"))
}

func TestHashingEmbedder(t *testing.T) {
	ctx := context.Background()
	e := NewHashingEmbedder(0)
	assert.Equal(t, "hashing-1024", e.Name())

	a, err := e.Embed(ctx, "fever, headache")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "fever, headache")
	require.NoError(t, err)
	assert.Len(t, a, DefaultDimensions)
	assert.Equal(t, a, b)

	flu, err := e.Embed(ctx, "fever, headache, muscle aches, fatigue, cough")
	require.NoError(t, err)
	assert.InDelta(t, 2/(math.Sqrt(2)*math.Sqrt(6)), Cosine(a, flu), 0.05)

	stop, err := e.Embed(ctx, "I have the")
	require.NoError(t, err)
	assert.Equal(t, 0.0, Cosine(stop, flu))
}

type fakeOpenAI struct {
	resp *openai.CreateEmbeddingResponse
	err  error
	got  openai.EmbeddingNewParams
}

func (f *fakeOpenAI) New(ctx context.Context, body openai.EmbeddingNewParams, opts ...option.RequestOption) (*openai.CreateEmbeddingResponse, error) {
	f.got = body
	return f.resp, f.err
}

func TestOpenAIEmbedder(t *testing.T) {
	_, err := NewOpenAIEmbedder("", "")
	assert.Error(t, err)

	fake := &fakeOpenAI{resp: &openai.CreateEmbeddingResponse{Data: []openai.Embedding{{Embedding: []float64{0.5, -0.25}}}}}
	e := &OpenAIEmbedder{api: fake, model: "text-embedding-3-small"}

	vec, err := e.Embed(context.Background(), "cough")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, -0.25}, vec)
	assert.Equal(t, []string{"cough"}, fake.got.Input.OfArrayOfStrings)

	fake.resp = &openai.CreateEmbeddingResponse{}
	_, err = e.Embed(context.Background(), "cough")
	assert.ErrorIs(t, err, ErrEmptyEmbedding)

	fake.err = errors.New("rate limited")
	_, err = e.Embed(context.Background(), "cough")
	assert.Error(t, err)
}

type fakeGemini struct {
	resp *genai.EmbedContentResponse
	err  error
}

func (f *fakeGemini) EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error) {
	return f.resp, f.err
}

func TestGeminiEmbedder(t *testing.T) {
	e := &GeminiEmbedder{
		models: &fakeGemini{resp: &genai.EmbedContentResponse{Embeddings: []*genai.ContentEmbedding{{Values: []float32{1, 2}}}}},
		model:  defaultGeminiEmbeddingModel,
	}
	vec, err := e.Embed(context.Background(), "rash")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, vec)

	e.models = &fakeGemini{resp: &genai.EmbedContentResponse{}}
	_, err = e.Embed(context.Background(), "rash")
	assert.ErrorIs(t, err, ErrEmptyEmbedding)
}

func TestNew(t *testing.T) {
	e, err := New(context.Background(), Config{Dimensions: 64})
	require.NoError(t, err)
	assert.Equal(t, "hashing-64", e.Name())

	_, err = New(context.Background(), Config{Provider: "word2vec"})
	assert.Error(t, err)

	_, err = New(context.Background(), Config{Provider: ProviderOpenAI})
	assert.Error(t, err)
}
