package embedding

import (
	"context"
	"hash/fnv"
	"strconv"
	"strings"
	"unicode"
)

// DefaultDimensions is the vector length of the hashing embedder.
const DefaultDimensions = 1024

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "of": {}, "to": {}, "in": {},
	"i": {}, "i'm": {}, "im": {}, "me": {}, "my": {}, "is": {}, "am": {}, "are": {},
	"have": {}, "has": {}, "had": {}, "with": {}, "feel": {}, "feeling": {}, "been": {},
	"symptoms": {},
}

// HashingEmbedder is a deterministic bag-of-words embedder. Each content token
// is hashed with FNV-1a into one of Dimensions buckets and counted, so two texts
// sharing k of their tokens score close to k/sqrt(|a||b|) under cosine.
// It needs no network and gives the same vector for the same text.
type HashingEmbedder struct {
	dims int
}

// NewHashingEmbedder returns a hashing embedder; dims <= 0 uses DefaultDimensions.
func NewHashingEmbedder(dims int) *HashingEmbedder {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &HashingEmbedder{dims: dims}
}

func (e *HashingEmbedder) Name() string { return "hashing-" + strconv.Itoa(e.dims) }

func (e *HashingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dims)
	for _, tok := range Tokenize(text) {
		if _, skip := stopWords[tok]; skip {
			continue
		}
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		vec[h.Sum32()%uint32(e.dims)]++
	}
	return vec, nil
}

// Tokenize lowercases text and splits it on anything that is not a letter,
// digit or in-word apostrophe.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	out := fields[:0]
	for _, f := range fields {
		if f = strings.Trim(f, "'"); f != "" {
			out = append(out, f)
		}
	}
	return out
}
