package intent

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

type geminiModels interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiExternal classifies with a Gemini generation call.
type GeminiExternal struct {
	models geminiModels
	model  string
}

// GeminiConfig selects the Gemini API or Vertex AI.
type GeminiConfig struct {
	APIKey   string
	Model    string
	Project  string
	Location string
}

// NewGeminiExternal creates the classifier. Project and Location select Vertex AI.
func NewGeminiExternal(ctx context.Context, cfg GeminiConfig) (*GeminiExternal, error) {
	clientConfig := &genai.ClientConfig{APIKey: cfg.APIKey}
	if cfg.Project != "" && cfg.Location != "" {
		clientConfig.Backend = genai.BackendVertexAI
		clientConfig.Project = cfg.Project
		clientConfig.Location = cfg.Location
	} else if cfg.APIKey == "" {
		return nil, errors.New("gemini API key is required")
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiExternal{models: client.Models, model: model}, nil
}

func (g *GeminiExternal) Name() string { return "gemini" }

func (g *GeminiExternal) ClassifyExternal(ctx context.Context, text string) (Label, float64, error) {
	temperature := float32(0)
	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(text), &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: systemPrompt}}},
		Temperature:       &temperature,
		ResponseMIMEType:  "application/json",
	})
	if err != nil {
		return Unknown, 0, fmt.Errorf("gemini api error: %w", err)
	}
	return parseReply(resp.Text())
}
