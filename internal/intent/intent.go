// Package intent labels what a message is trying to do.
package intent

import (
	"strings"

	"github.com/lewisedginton/triage_assistant/internal/extractor"
)

// Label is a message intent.
type Label string

const (
	Greeting     Label = "greeting"
	Help         Label = "help"
	SymptomQuery Label = "symptom_query"
	Gratitude    Label = "gratitude"
	Farewell     Label = "farewell"
	Emergency    Label = "emergency"
	Unknown      Label = "unknown"
)

// Labels in rule priority order.
var Labels = []Label{Emergency, Greeting, Gratitude, Farewell, Help, SymptomQuery, Unknown}

// Valid reports whether l is a known label.
func (l Label) Valid() bool {
	for _, k := range Labels {
		if l == k {
			return true
		}
	}
	return false
}

// Conversational intents get a fixed reply instead of a symptom analysis.
func (l Label) Conversational() bool {
	switch l {
	case Greeting, Help, Gratitude, Farewell:
		return true
	}
	return false
}

// ParseLabel normalises s into a label. "symptom_inquiry" and "symptom query"
// are accepted as symptom_query.
func ParseLabel(s string) (Label, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer(" ", "_", "-", "_").Replace(s)
	if s == "symptom_inquiry" || s == "symptoms" {
		s = string(SymptomQuery)
	}
	l := Label(s)
	return l, l.Valid()
}

// Rules are keyword sets per intent. Each entry is a word or phrase matched
// on whole tokens.
type Rules struct {
	Emergency []string `yaml:"emergency"`
	Greeting  []string `yaml:"greeting"`
	Gratitude []string `yaml:"gratitude"`
	Farewell  []string `yaml:"farewell"`
	Help      []string `yaml:"help"`
}

// DefaultRules returns the built-in keyword sets.
func DefaultRules() Rules {
	return Rules{
		Emergency: []string{
			"emergency", "urgent", "severe", "critical", "ambulance", "911", "999",
			"can't breathe", "cannot breathe", "not breathing", "stopped breathing",
			"unconscious", "passed out", "fainted", "collapsed", "seizure",
			"heart attack", "stroke", "overdose", "choking", "coughing blood", "bleeding heavily",
			"suicide", "kill myself", "crushing chest",
		},
		Greeting:  []string{"hello", "hi", "hey", "greetings", "good morning", "good afternoon", "good evening"},
		Gratitude: []string{"thank", "thanks", "thank you", "thx", "appreciate", "cheers"},
		Farewell:  []string{"bye", "goodbye", "see you", "see ya", "farewell"},
		Help:      []string{"help", "what can you do", "how do you work", "how does this work"},
	}
}

// Merge appends the entries of other to r.
func (r Rules) Merge(other Rules) Rules {
	return Rules{
		Emergency: append(append([]string(nil), r.Emergency...), other.Emergency...),
		Greeting:  append(append([]string(nil), r.Greeting...), other.Greeting...),
		Gratitude: append(append([]string(nil), r.Gratitude...), other.Gratitude...),
		Farewell:  append(append([]string(nil), r.Farewell...), other.Farewell...),
		Help:      append(append([]string(nil), r.Help...), other.Help...),
	}
}

type ruleSet struct {
	label   Label
	phrases [][]string
}

// RuleClassifier applies Rules in fixed priority order. It is immutable and
// safe for concurrent use.
type RuleClassifier struct {
	sets []ruleSet
}

// NewRuleClassifier compiles rules.
func NewRuleClassifier(rules Rules) *RuleClassifier {
	compile := func(l Label, phrases []string) ruleSet {
		rs := ruleSet{label: l}
		for _, p := range phrases {
			if toks := extractor.Tokens(p); len(toks) > 0 {
				rs.phrases = append(rs.phrases, toks)
			}
		}
		return rs
	}
	return &RuleClassifier{sets: []ruleSet{
		compile(Emergency, rules.Emergency),
		compile(Greeting, rules.Greeting),
		compile(Gratitude, rules.Gratitude),
		compile(Farewell, rules.Farewell),
		compile(Help, rules.Help),
	}}
}

// Classify returns the first matching label, symptom_query when symptoms were
// found, and unknown otherwise.
func (c *RuleClassifier) Classify(text string, symptomCount int) Label {
	toks := extractor.Tokens(text)
	for _, rs := range c.sets {
		for _, p := range rs.phrases {
			if extractor.ContainsPhrase(toks, p) {
				return rs.label
			}
		}
	}
	if symptomCount > 0 {
		return SymptomQuery
	}
	return Unknown
}
