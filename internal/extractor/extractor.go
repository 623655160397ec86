// Package extractor finds symptom mentions in free text.
//
// Matching is phrase based over normalised tokens. Every surface form in the
// variant table resolves to a canonical phrase, overlapping candidates resolve
// to the longest span, and a mention preceded by a negation marker within the
// lookback window is reported as negated instead of detected.
package extractor

import (
	"sort"
	"strings"
)

// SymptomMention is one symptom found in a message.
type SymptomMention struct {
	Phrase  string `json:"phrase"`
	Negated bool   `json:"negated"`
	// Surface is the text as written, after normalisation.
	Surface string `json:"surface"`
}

// Result of a single extraction.
type Result struct {
	// Detected are affirmed canonical phrases in order of first appearance.
	Detected []string
	// Negated are denied canonical phrases that were never affirmed in the same text.
	Negated  []string
	Mentions []SymptomMention
}

// Config tunes the extractor. Zero values fall back to the defaults.
type Config struct {
	LookbackWindow   int
	NegationMarkers  []string
	ClauseBoundaries []string
	// Variants are added on top of DefaultVariants and win on conflict.
	Variants map[string]string
	// DisableDefaultVariants drops the built-in table.
	DisableDefaultVariants bool
}

type pattern struct {
	tokens    []string
	canonical string
}

// Extractor is immutable after New and safe for concurrent use.
type Extractor struct {
	patterns   []pattern
	canonical  map[string]string
	negations  map[string]struct{}
	boundaries map[string]struct{}
	window     int
}

// New builds an extractor recognising every phrase in vocabulary plus the
// variant table.
func New(vocabulary []string, cfg Config) *Extractor {
	e := &Extractor{
		canonical:  make(map[string]string),
		negations:  toSet(cfg.NegationMarkers, DefaultNegationMarkers),
		boundaries: toSet(cfg.ClauseBoundaries, DefaultClauseBoundaries),
		window:     cfg.LookbackWindow,
	}
	if e.window <= 0 {
		e.window = DefaultLookbackWindow
	}

	add := func(surface, canonical string) {
		surface, canonical = Normalize(surface), Normalize(canonical)
		if surface == "" || canonical == "" {
			return
		}
		e.canonical[surface] = canonical
		if _, ok := e.canonical[canonical]; !ok {
			e.canonical[canonical] = canonical
		}
	}

	if !cfg.DisableDefaultVariants {
		for surface, canonical := range DefaultVariants {
			add(surface, canonical)
		}
	}
	// Knowledge base phrases always stay canonical for themselves.
	for _, v := range vocabulary {
		add(v, v)
	}
	for surface, canonical := range cfg.Variants {
		add(surface, canonical)
	}

	for surface, canonical := range e.canonical {
		e.patterns = append(e.patterns, pattern{tokens: strings.Fields(surface), canonical: canonical})
	}
	// Longest first; ties by surface text so the order never depends on map iteration.
	sort.Slice(e.patterns, func(i, j int) bool {
		a, b := e.patterns[i], e.patterns[j]
		if len(a.tokens) != len(b.tokens) {
			return len(a.tokens) > len(b.tokens)
		}
		return strings.Join(a.tokens, " ") < strings.Join(b.tokens, " ")
	})
	return e
}

func toSet(values, defaults []string) map[string]struct{} {
	if len(values) == 0 {
		values = defaults
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v = Normalize(v); v != "" {
			set[v] = struct{}{}
		}
	}
	return set
}

// Canonical resolves a phrase through the variant table.
func (e *Extractor) Canonical(phrase string) (string, bool) {
	c, ok := e.canonical[Normalize(phrase)]
	return c, ok
}

// LookbackWindow is the configured negation window.
func (e *Extractor) LookbackWindow() int { return e.window }

type span struct {
	start, end int
	pattern    pattern
}

// Extract finds symptom mentions in text. It has no side effects.
func (e *Extractor) Extract(text string) Result {
	toks := tokenize(text)
	words := make([]string, len(toks))
	for i, t := range toks {
		words[i] = t.text
	}

	claimed := make([]bool, len(words))
	var spans []span
	for _, p := range e.patterns {
		for from := 0; ; {
			i := indexPhrase(words, p.tokens, from)
			if i < 0 {
				break
			}
			from = i + 1
			end := i + len(p.tokens)
			if anyClaimed(claimed[i:end]) {
				continue
			}
			for k := i; k < end; k++ {
				claimed[k] = true
			}
			spans = append(spans, span{start: i, end: end, pattern: p})
		}
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	res := Result{}
	affirmed := make(map[string]bool)
	for _, s := range spans {
		m := SymptomMention{
			Phrase:  s.pattern.canonical,
			Negated: e.negated(toks, s.start),
			Surface: strings.Join(s.pattern.tokens, " "),
		}
		res.Mentions = append(res.Mentions, m)
		if !m.Negated && !affirmed[m.Phrase] {
			affirmed[m.Phrase] = true
			res.Detected = append(res.Detected, m.Phrase)
		}
	}

	seen := make(map[string]bool)
	for _, m := range res.Mentions {
		if m.Negated && !affirmed[m.Phrase] && !seen[m.Phrase] {
			seen[m.Phrase] = true
			res.Negated = append(res.Negated, m.Phrase)
		}
	}
	return res
}

// negated scans back from start for a marker, stopping at clause and sentence boundaries.
func (e *Extractor) negated(toks []token, start int) bool {
	if toks[start].boundary {
		return false
	}
	for i := start - 1; i >= 0 && start-i <= e.window; i-- {
		w := toks[i].text
		if _, ok := e.boundaries[w]; ok {
			return false
		}
		if _, ok := e.negations[w]; ok {
			return true
		}
		if toks[i].boundary {
			return false
		}
	}
	return false
}

func anyClaimed(c []bool) bool {
	for _, v := range c {
		if v {
			return true
		}
	}
	return false
}
