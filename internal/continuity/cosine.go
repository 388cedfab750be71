package continuity

import (
	"context"
	"math"
	"strings"
	"unicode"
)

// Cosine is a bag-of-words cosine similarity. With a third text the
// result is the better of the two pairings, so a message can continue
// either the previous user message or the agent's own last reply.
type Cosine struct{}

// Similarity implements Similarity.
func (Cosine) Similarity(_ context.Context, a, b, c string) (float64, error) {
	va := termFrequencies(a)
	score := cosine(va, termFrequencies(b))
	if c != "" {
		score = math.Max(score, cosine(va, termFrequencies(c)))
	}
	return score, nil
}

func termFrequencies(text string) map[string]float64 {
	tf := make(map[string]float64)
	for _, w := range strings.FieldsFunc(strings.ToLower(text), notWordRune) {
		tf[w]++
	}
	return tf
}

// notWordRune splits on everything but letters, marks and digits of any
// script.
func notWordRune(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsMark(r)
}

func cosine(a, b map[string]float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var dot, magA, magB float64
	for w, x := range a {
		magA += x * x
		dot += x * b[w]
	}
	for _, y := range b {
		magB += y * y
	}
	return dot / math.Sqrt(magA*magB)
}
