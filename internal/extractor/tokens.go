package extractor

import (
	"strings"
	"unicode"
)

// token is a normalised word. boundary marks that a sentence break
// (. ! ? ;) occurred immediately before it.
type token struct {
	text     string
	boundary bool
}

var apostrophes = strings.NewReplacer("’", "'", "‘", "'", "`", "'")

func tokenize(text string) []token {
	text = apostrophes.Replace(strings.ToLower(text))

	var (
		out      []token
		b        strings.Builder
		boundary bool
	)
	flush := func() {
		w := strings.Trim(b.String(), "'")
		b.Reset()
		if w == "" {
			return
		}
		out = append(out, token{text: w, boundary: boundary})
		boundary = false
	}

	for _, r := range text {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'':
			b.WriteRune(r)
		case r == '.' || r == '!' || r == '?' || r == ';':
			flush()
			boundary = true
		default:
			flush()
		}
	}
	flush()
	return out
}

// Tokens lowercases text and splits it into words, stripping punctuation
// but keeping in-word apostrophes ("don't").
func Tokens(text string) []string {
	toks := tokenize(text)
	out := make([]string, len(toks))
	for i, t := range toks {
		out[i] = t.text
	}
	return out
}

// Normalize returns the tokens of text joined by single spaces.
func Normalize(text string) string {
	return strings.Join(Tokens(text), " ")
}

// ContainsPhrase reports whether phrase occurs in tokens on whole-word boundaries.
func ContainsPhrase(tokens, phrase []string) bool {
	return indexPhrase(tokens, phrase, 0) >= 0
}

func indexPhrase(tokens, phrase []string, from int) int {
	if len(phrase) == 0 {
		return -1
	}
outer:
	for i := from; i+len(phrase) <= len(tokens); i++ {
		for j, p := range phrase {
			if tokens[i+j] != p {
				continue outer
			}
		}
		return i
	}
	return -1
}
