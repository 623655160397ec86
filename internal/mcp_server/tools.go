package mcp_server

import (
	"context"
	"errors"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/lewisedginton/triage_assistant/internal/history"
	"github.com/lewisedginton/triage_assistant/internal/triage"
	"github.com/lewisedginton/triage_assistant/pkg/logger"
)

type triageMessageInput struct {
	SessionID string `json:"session_id" jsonschema:"conversation identifier, reuse it for follow-up messages"`
	Message   string `json:"message" jsonschema:"what the patient said"`
}

type conditionOutput struct {
	Name            string   `json:"condition"`
	Symptoms        []string `json:"symptoms"`
	Advice          string   `json:"advice"`
	Severity        string   `json:"severity"`
	SimilarityScore float64  `json:"similarity_score,omitempty"`
}

type triageMessageOutput struct {
	SessionID               string            `json:"session_id"`
	Intent                  string            `json:"intent"`
	DetectedSymptoms        []string          `json:"detected_symptoms"`
	NegatedSymptoms         []string          `json:"negated_symptoms"`
	MatchedConditions       []conditionOutput `json:"matched_conditions"`
	Confidence              float64           `json:"confidence"`
	Urgent                  bool              `json:"urgent"`
	InsufficientInformation bool              `json:"insufficient_information"`
	TurnCount               int               `json:"turn_count"`
	Message                 string            `json:"message"`
}

type analyzeSymptomsInput struct {
	Symptoms []string `json:"symptoms" jsonschema:"symptom names such as fever or sore throat"`
}

type analyzeSymptomsOutput struct {
	Symptoms          []string          `json:"symptoms"`
	Unrecognised      []string          `json:"unrecognised"`
	MatchedConditions []conditionOutput `json:"matched_conditions"`
	Confidence        float64           `json:"confidence"`
}

type listConditionsInput struct{}

type listConditionsOutput struct {
	Conditions []conditionOutput `json:"conditions"`
	Count      int               `json:"count"`
}

type clearSessionInput struct {
	SessionID string `json:"session_id" jsonschema:"conversation identifier to forget"`
}

type clearSessionOutput struct {
	SessionID string `json:"session_id"`
	Cleared   bool   `json:"cleared"`
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}
}

func (s *Server) triageMessage(ctx context.Context, _ *mcp.CallToolRequest, in triageMessageInput) (*mcp.CallToolResult, triageMessageOutput, error) {
	if strings.TrimSpace(in.SessionID) == "" {
		return nil, triageMessageOutput{}, triage.ErrEmptySessionID
	}

	res, err := s.engine.Process(ctx, in.SessionID, in.Message)
	if err != nil {
		if !errors.Is(err, triage.ErrEmptyMessage) {
			s.log.Error("Triage tool failed", logger.SessionIDField(in.SessionID), logger.ErrorField(err))
		}
		return nil, triageMessageOutput{}, err
	}

	if err := s.history.Save(ctx, history.FromResult(s.userID, in.Message, res)); err != nil {
		s.log.Warn("Failed to record conversation history",
			logger.SessionIDField(in.SessionID),
			logger.ErrorField(err))
	}

	out := triageMessageOutput{
		SessionID:               res.SessionID,
		Intent:                  string(res.Intent),
		DetectedSymptoms:        orEmpty(res.DetectedSymptoms),
		NegatedSymptoms:         orEmpty(res.NegatedSymptoms),
		MatchedConditions:       fromMatches(res.MatchedConditions),
		Confidence:              res.Confidence,
		Urgent:                  res.Urgent,
		InsufficientInformation: res.InsufficientInformation,
		TurnCount:               res.TurnCount,
		Message:                 res.Message,
	}
	return textResult(res.Message), out, nil
}

func (s *Server) analyzeSymptoms(ctx context.Context, _ *mcp.CallToolRequest, in analyzeSymptomsInput) (*mcp.CallToolResult, analyzeSymptomsOutput, error) {
	a, err := s.engine.AnalyzeSymptoms(ctx, in.Symptoms)
	if err != nil {
		return nil, analyzeSymptomsOutput{}, err
	}

	out := analyzeSymptomsOutput{
		Symptoms:          orEmpty(a.Symptoms),
		Unrecognised:      orEmpty(a.Unrecognised),
		MatchedConditions: fromMatches(a.MatchedConditions),
		Confidence:        a.Confidence,
	}
	names := make([]string, len(out.MatchedConditions))
	for i, m := range out.MatchedConditions {
		names[i] = m.Name
	}
	summary := "No conditions matched."
	if len(names) > 0 {
		summary = "Possible conditions: " + strings.Join(names, ", ")
	}
	return textResult(summary), out, nil
}

func (s *Server) listConditions(_ context.Context, _ *mcp.CallToolRequest, _ listConditionsInput) (*mcp.CallToolResult, listConditionsOutput, error) {
	records := s.engine.ListConditions()
	out := listConditionsOutput{Conditions: make([]conditionOutput, 0, len(records)), Count: len(records)}
	names := make([]string, 0, len(records))
	for _, r := range records {
		out.Conditions = append(out.Conditions, conditionOutput{
			Name:     r.Name,
			Symptoms: orEmpty(r.Symptoms),
			Advice:   r.Advice,
			Severity: string(r.Severity),
		})
		names = append(names, r.Name)
	}
	return textResult(strings.Join(names, "\n")), out, nil
}

func (s *Server) clearSession(_ context.Context, _ *mcp.CallToolRequest, in clearSessionInput) (*mcp.CallToolResult, clearSessionOutput, error) {
	if strings.TrimSpace(in.SessionID) == "" {
		return nil, clearSessionOutput{}, triage.ErrEmptySessionID
	}
	cleared := s.engine.ClearSession(in.SessionID)
	text := "Session cleared."
	if !cleared {
		text = "No such session."
	}
	return textResult(text), clearSessionOutput{SessionID: in.SessionID, Cleared: cleared}, nil
}

func fromMatches(matches []triage.ConditionMatch) []conditionOutput {
	out := make([]conditionOutput, 0, len(matches))
	for _, m := range matches {
		out = append(out, conditionOutput{
			Name:            m.ConditionName,
			Symptoms:        orEmpty(m.Symptoms),
			Advice:          m.Advice,
			Severity:        string(m.Severity),
			SimilarityScore: m.SimilarityScore,
		})
	}
	return out
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
