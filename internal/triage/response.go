package triage

import (
	"fmt"
	"strings"

	"github.com/lewisedginton/triage_assistant/internal/intent"
)

const maxListedSymptoms = 5

// compose builds the user-facing text for a result.
func (e *Engine) compose(res ChatResult) string {
	t := e.templates
	var b strings.Builder

	if res.Urgent {
		b.WriteString(t.Urgent)
		b.WriteString("\n\n")
	}

	switch res.Intent {
	case intent.Greeting:
		b.WriteString(t.Greeting)
	case intent.Help:
		b.WriteString(t.Help)
	case intent.Gratitude:
		b.WriteString(t.Gratitude)
	case intent.Farewell:
		b.WriteString(t.Farewell)
	}

	if res.Intent.Conversational() {
		// Symptoms mentioned alongside a greeting or thanks still get analysed.
		if len(res.TurnSymptoms) == 0 {
			return strings.TrimSpace(b.String())
		}
		b.WriteString("\n\n")
	}

	if res.InsufficientInformation {
		b.WriteString(t.InsufficientInformation)
		e.writeNegated(&b, res)
		return strings.TrimSpace(b.String())
	}

	e.writeAnalysis(&b, res)
	return strings.TrimSpace(b.String())
}

func (e *Engine) writeAnalysis(b *strings.Builder, res ChatResult) {
	t := e.templates

	if res.FollowUp {
		b.WriteString(t.FollowUpIntro)
	} else {
		b.WriteString(t.DetectedIntro)
	}
	b.WriteString("\n- ")
	b.WriteString(strings.Join(res.DetectedSymptoms, "\n- "))
	b.WriteString("\n")
	e.writeNegated(b, res)
	b.WriteString("\n")

	if len(res.MatchedConditions) == 0 {
		b.WriteString(t.NoMatch)
	} else {
		b.WriteString(t.ConditionsIntro)
		b.WriteString("\n\n")
		for i, c := range res.MatchedConditions {
			listed := c.Symptoms
			if len(listed) > maxListedSymptoms {
				listed = listed[:maxListedSymptoms]
			}
			fmt.Fprintf(b, "%d. **%s** (Severity: %s, match %.0f%%)\n", i+1, c.ConditionName, c.Severity, c.SimilarityScore*100)
			fmt.Fprintf(b, "   Common symptoms: %s\n", strings.Join(listed, ", "))
			fmt.Fprintf(b, "   Advice: %s\n\n", c.Advice)
		}
	}
	b.WriteString("\n")
	b.WriteString(t.Disclaimer)
}

func (e *Engine) writeNegated(b *strings.Builder, res ChatResult) {
	if len(res.NegatedSymptoms) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s %s\n", e.templates.NegatedIntro, strings.Join(res.NegatedSymptoms, ", "))
}
