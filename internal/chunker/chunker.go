// Package chunker splits outbound replies into transport-sized posts.
package chunker

import "strings"

// DefaultMaxLen is the AICQ message body limit.
const DefaultMaxLen = 4096

// Split breaks text into one chunk per line, cutting only at line
// boundaries. Line order and content are preserved, so joining the chunks
// with "\n" gives back text. Lines are never merged or cut, so maxLen
// does not change the result: a line longer than maxLen is emitted
// unshortened, Oversized reports it and the transport decides what to do
// with it.
func Split(text string, _ int) []string {
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

// Oversized reports whether any chunk exceeds maxLen.
func Oversized(chunks []string, maxLen int) bool {
	if maxLen <= 0 {
		maxLen = DefaultMaxLen
	}
	for _, c := range chunks {
		if len(c) > maxLen {
			return true
		}
	}
	return false
}
