package intent

import (
	"encoding/json"
	"fmt"
	"strings"
)

const systemPrompt = `You classify messages sent to a health triage assistant.
Reply with a single JSON object and nothing else: {"intent": "<label>", "confidence": <0..1>}.
Allowed labels: greeting, help, symptom_query, gratitude, farewell, emergency, unknown.
Use emergency for anything suggesting an immediate threat to life.`

type llmReply struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
}

// parseReply pulls the JSON object out of a model reply, tolerating code fences
// and surrounding prose.
func parseReply(text string) (Label, float64, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return Unknown, 0, fmt.Errorf("no JSON object in reply %q", truncate(text, 80))
	}

	var r llmReply
	if err := json.Unmarshal([]byte(text[start:end+1]), &r); err != nil {
		return Unknown, 0, fmt.Errorf("failed to decode reply: %w", err)
	}
	label, ok := ParseLabel(r.Intent)
	if !ok {
		return label, r.Confidence, fmt.Errorf("unrecognised intent %q", r.Intent)
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return label, 0, fmt.Errorf("confidence %v out of range", r.Confidence)
	}
	return label, r.Confidence, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
