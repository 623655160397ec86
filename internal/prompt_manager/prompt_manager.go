// Package prompt_manager provides the fixed texts the assistant replies with.
// Defaults are built in; operators can override any of them with a
// responses.yaml stored via a FileProvider backend.
package prompt_manager

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/lewisedginton/triage_assistant/internal/storage_manager"
)

const templatesPath = "responses.yaml"

// Templates are the reply texts. Empty fields in an override file keep the default.
type Templates struct {
	Greeting                string `yaml:"greeting"`
	Help                    string `yaml:"help"`
	Gratitude               string `yaml:"gratitude"`
	Farewell                string `yaml:"farewell"`
	InsufficientInformation string `yaml:"insufficient_information"`
	Urgent                  string `yaml:"urgent"`
	Disclaimer              string `yaml:"disclaimer"`
	NoMatch                 string `yaml:"no_match"`
	DetectedIntro           string `yaml:"detected_intro"`
	FollowUpIntro           string `yaml:"follow_up_intro"`
	NegatedIntro            string `yaml:"negated_intro"`
	ConditionsIntro         string `yaml:"conditions_intro"`
}

// Defaults returns the built-in texts.
func Defaults() Templates {
	return Templates{
		Greeting: "Hello! I'm MediBot, your AI health assistant. I can help you understand your symptoms " +
			"and provide preliminary health advice. Please describe your symptoms, and I'll do my best to assist you. " +
			"Remember, I'm not a replacement for professional medical advice.",
		Help: "I can help you by:\n" +
			"1. Analyzing your symptoms\n" +
			"2. Suggesting possible conditions\n" +
			"3. Providing preliminary health advice\n" +
			"4. Recommending when to see a doctor\n\n" +
			"Just describe your symptoms, and I'll assist you!",
		Gratitude: "You're welcome! Take care and don't hesitate to reach out if you need more help.",
		Farewell:  "Goodbye! Stay healthy and take care. Consult a healthcare professional if symptoms persist.",
		InsufficientInformation: "I couldn't detect any specific symptoms from your message. " +
			"Could you please describe your symptoms in more detail? " +
			"For example, 'I have a headache and fever' or 'I'm experiencing chest pain'.",
		Urgent: "URGENT: This may be a medical emergency. Call your local emergency number " +
			"or go to the nearest emergency room immediately.",
		Disclaimer:      "This is not a medical diagnosis. Please consult a healthcare professional.",
		NoMatch:         "I found some symptoms but couldn't match them to specific conditions in my knowledge base. Please consult a healthcare professional for proper evaluation.",
		DetectedIntro:   "Based on your description, I've detected the following symptoms:",
		FollowUpIntro:   "Considering everything you've told me so far, your symptoms are:",
		NegatedIntro:    "Not counted, since you said you don't have:",
		ConditionsIntro: "Possible conditions that match your symptoms:",
	}
}

// withDefaults fills empty fields from d.
func (t Templates) withDefaults(d Templates) Templates {
	fill := func(v *string, def string) {
		if *v == "" {
			*v = def
		}
	}
	fill(&t.Greeting, d.Greeting)
	fill(&t.Help, d.Help)
	fill(&t.Gratitude, d.Gratitude)
	fill(&t.Farewell, d.Farewell)
	fill(&t.InsufficientInformation, d.InsufficientInformation)
	fill(&t.Urgent, d.Urgent)
	fill(&t.Disclaimer, d.Disclaimer)
	fill(&t.NoMatch, d.NoMatch)
	fill(&t.DetectedIntro, d.DetectedIntro)
	fill(&t.FollowUpIntro, d.FollowUpIntro)
	fill(&t.NegatedIntro, d.NegatedIntro)
	fill(&t.ConditionsIntro, d.ConditionsIntro)
	return t
}

// PromptManager reads template overrides from storage.
type PromptManager struct {
	provider storage_manager.FileProvider
}

// New creates a new PromptManager with the given file provider.
func New(provider storage_manager.FileProvider) *PromptManager {
	if provider == nil {
		panic("file provider cannot be nil")
	}
	return &PromptManager{
		provider: provider,
	}
}

// Templates returns the defaults overlaid with responses.yaml when it exists.
func (m *PromptManager) Templates(ctx context.Context) (Templates, error) {
	data, err := m.provider.Read(ctx, templatesPath)
	if errors.Is(err, storage_manager.ErrNotFound) {
		return Defaults(), nil
	}
	if err != nil {
		return Templates{}, fmt.Errorf("failed to read response templates: %w", err)
	}

	var t Templates
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&t); err != nil {
		return Templates{}, fmt.Errorf("failed to parse %s: %w", templatesPath, err)
	}
	return t.withDefaults(Defaults()), nil
}
