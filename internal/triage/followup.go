package triage

import "github.com/lewisedginton/triage_assistant/internal/extractor"

// DefaultFollowUpMarkers signal that a message adds to what was said before.
var DefaultFollowUpMarkers = []string{"also", "more", "what about", "besides", "additionally", "and", "too", "as well"}

func compileMarkers(markers []string) [][]string {
	out := make([][]string, 0, len(markers))
	for _, m := range markers {
		if toks := extractor.Tokens(m); len(toks) > 0 {
			out = append(out, toks)
		}
	}
	return out
}

func (e *Engine) isFollowUp(text string) bool {
	toks := extractor.Tokens(text)
	for _, m := range e.followUp {
		if extractor.ContainsPhrase(toks, m) {
			return true
		}
	}
	return false
}
