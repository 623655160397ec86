package intent

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAIExternal classifies with an OpenAI chat completion.
type OpenAIExternal struct {
	client *openai.Client
	model  string
}

// NewOpenAIExternal creates the classifier. Extra options (base URL, retries)
// are passed to the client.
func NewOpenAIExternal(apiKey, model string, opts ...option.RequestOption) (*OpenAIExternal, error) {
	if apiKey == "" {
		return nil, errors.New("openai API key is required")
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	client := openai.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...)
	return &OpenAIExternal{client: &client, model: model}, nil
}

func (o *OpenAIExternal) Name() string { return "openai" }

func (o *OpenAIExternal) ClassifyExternal(ctx context.Context, text string) (Label, float64, error) {
	completion, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: o.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(text),
		},
		MaxTokens:   openai.Int(64),
		Temperature: openai.Float(0),
	})
	if err != nil {
		return Unknown, 0, fmt.Errorf("openai api error: %w", err)
	}
	if len(completion.Choices) == 0 {
		return Unknown, 0, errors.New("openai returned no choices")
	}
	return parseReply(completion.Choices[0].Message.Content)
}
