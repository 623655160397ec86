package intent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicExternal classifies with a Claude message.
type AnthropicExternal struct {
	client anthropic.Client
	model  string
}

// NewAnthropicExternal creates the classifier.
func NewAnthropicExternal(apiKey, model string, opts ...option.RequestOption) (*AnthropicExternal, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic API key is required")
	}
	if model == "" {
		model = string(anthropic.ModelClaudeSonnet4_5_20250929)
	}
	client := anthropic.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...)
	return &AnthropicExternal{client: client, model: model}, nil
}

func (a *AnthropicExternal) Name() string { return "anthropic" }

func (a *AnthropicExternal) ClassifyExternal(ctx context.Context, text string) (Label, float64, error) {
	resp, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: 64,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(text)),
		},
	})
	if err != nil {
		return Unknown, 0, fmt.Errorf("claude api error: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return parseReply(sb.String())
}
