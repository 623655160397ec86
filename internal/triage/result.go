package triage

import (
	"github.com/lewisedginton/triage_assistant/internal/extractor"
	"github.com/lewisedginton/triage_assistant/internal/intent"
	"github.com/lewisedginton/triage_assistant/internal/knowledge"
)

// ConditionMatch is a ranked condition with the details shown to the user.
type ConditionMatch struct {
	ConditionName   string             `json:"condition_name"`
	Symptoms        []string           `json:"symptoms"`
	Advice          string             `json:"advice"`
	Severity        knowledge.Severity `json:"severity"`
	SimilarityScore float64            `json:"similarity_score"`
}

// ChatResult is the outcome of one processed message.
type ChatResult struct {
	SessionID string       `json:"session_id"`
	Intent    intent.Label `json:"intent"`
	// IntentSource says whether the label came from local rules or the external service.
	IntentSource intent.Source `json:"intent_source"`
	// DetectedSymptoms is everything accumulated in the session so far.
	DetectedSymptoms []string `json:"detected_symptoms"`
	// TurnSymptoms were affirmed in this message.
	TurnSymptoms            []string           `json:"turn_symptoms"`
	NegatedSymptoms         []string           `json:"negated_symptoms"`
	MatchedConditions       []ConditionMatch   `json:"matched_conditions"`
	Confidence              float64            `json:"confidence"`
	Urgent                  bool               `json:"urgent"`
	InsufficientInformation bool               `json:"insufficient_information"`
	FollowUp                bool               `json:"follow_up"`
	TurnCount               int                `json:"turn_count"`
	Entities                extractor.Entities `json:"entities"`
	Message                 string             `json:"message"`
}

// ConditionNames lists the matched condition names in rank order.
func (r ChatResult) ConditionNames() []string {
	out := make([]string, len(r.MatchedConditions))
	for i, m := range r.MatchedConditions {
		out[i] = m.ConditionName
	}
	return out
}

// Analysis is the stateless result of AnalyzeSymptoms.
type Analysis struct {
	Symptoms          []string         `json:"symptoms"`
	Unrecognised      []string         `json:"unrecognised,omitempty"`
	MatchedConditions []ConditionMatch `json:"matched_conditions"`
	Confidence        float64          `json:"confidence"`
}
