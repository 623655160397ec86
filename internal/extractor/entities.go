package extractor

import (
	"regexp"
	"strings"
)

// Entities are descriptive details that accompany symptoms.
type Entities struct {
	Duration  string   `json:"duration,omitempty" bson:"duration,omitempty"`
	Severity  string   `json:"severity,omitempty" bson:"severity,omitempty"`
	Locations []string `json:"locations,omitempty" bson:"locations,omitempty"`
}

// IsZero reports whether nothing was found.
func (e Entities) IsZero() bool {
	return e.Duration == "" && e.Severity == "" && len(e.Locations) == 0
}

var durationPattern = regexp.MustCompile(`\b(\d+|a|an|one|two|three|four|five|six|seven|few|several|couple of)\s+(hour|day|week|month|year)s?\b`)

var severityWords = []string{"mild", "moderate", "severe", "extreme", "slight"}

var bodyParts = map[string]string{
	"head": "head", "chest": "chest", "stomach": "stomach", "tummy": "stomach", "belly": "stomach",
	"back": "back", "leg": "leg", "legs": "leg", "arm": "arm", "arms": "arm",
	"throat": "throat", "eye": "eye", "eyes": "eye",
}

// ExtractEntities pulls duration, severity and body locations out of text.
func ExtractEntities(text string) Entities {
	var ent Entities
	norm := Normalize(text)
	if m := durationPattern.FindString(norm); m != "" {
		ent.Duration = m
	}

	words := strings.Fields(norm)
	for _, w := range words {
		for _, s := range severityWords {
			if w == s || w == s+"ly" {
				ent.Severity = s
				break
			}
		}
		if ent.Severity != "" {
			break
		}
	}

	seen := make(map[string]bool)
	for _, w := range words {
		if part, ok := bodyParts[w]; ok && !seen[part] {
			seen[part] = true
			ent.Locations = append(ent.Locations, part)
		}
	}
	return ent
}
