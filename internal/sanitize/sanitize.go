// Package sanitize strips filler phrases from model answers.
package sanitize

import "strings"

// DefaultPhrases are removed in this order.
var DefaultPhrases = []string{"Based on the document", "According to the document"}

// Sanitizer removes literal, case-sensitive phrases from an answer.
type Sanitizer struct {
	phrases []string
}

func New(phrases []string) *Sanitizer {
	kept := make([]string, 0, len(phrases))
	for _, p := range phrases {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return &Sanitizer{phrases: kept}
}

// Clean removes every occurrence of each phrase, then trims surrounding whitespace.
// A separator left dangling at the start by a removed lead-in phrase goes too;
// text that did not open with a phrase keeps its leading punctuation.
// Passes repeat until nothing changes, so Clean(Clean(x)) == Clean(x).
func (s *Sanitizer) Clean(text string) string {
	text = strings.TrimSpace(text)
	for {
		before := text
		leadIn := false
		for _, p := range s.phrases {
			if strings.HasPrefix(text, p) {
				leadIn = true
			}
			text = strings.TrimSpace(strings.ReplaceAll(text, p, ""))
		}
		if leadIn {
			text = strings.TrimSpace(strings.TrimLeft(text, ",;:"))
		}
		if text == before {
			return text
		}
	}
}
