// Package topic decides whether a question falls inside the assistant's domain.
package topic

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultKeywords is the built-in opioid keyword set, in its canonical order.
var DefaultKeywords = []string{
	"heroin", "opioid crisis", "rehab", "tolerance", "substance abuse",
	"overdose", "narcotics", "help", "opiates", "fentanyl",
	"withdrawal", "opioids", "support", "addiction", "naloxone", "drugs", "painkillers",
}

// KeywordSet is an ordered, read-only list of domain terms.
type KeywordSet struct {
	terms []string
}

// NewKeywordSet copies terms, lowercasing them and dropping blanks.
func NewKeywordSet(terms []string) KeywordSet {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	return KeywordSet{terms: out}
}

// Terms returns a copy of the keywords.
func (k KeywordSet) Terms() []string {
	return append([]string(nil), k.terms...)
}

// Len reports the number of keywords.
func (k KeywordSet) Len() int { return len(k.terms) }

type keywordFile struct {
	Keywords []string `yaml:"keywords"`
}

// LoadKeywords reads a YAML file of the form `keywords: [..]`.
// An empty path yields DefaultKeywords.
func LoadKeywords(path string) (KeywordSet, error) {
	if path == "" {
		return NewKeywordSet(DefaultKeywords), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return KeywordSet{}, fmt.Errorf("reading keywords file: %w", err)
	}
	var kf keywordFile
	if err := yaml.Unmarshal(data, &kf); err != nil {
		return KeywordSet{}, fmt.Errorf("parsing keywords file: %w", err)
	}
	set := NewKeywordSet(kf.Keywords)
	if set.Len() == 0 {
		return KeywordSet{}, errors.New("keywords file lists no keywords")
	}
	return set, nil
}

// Filter is the keyword-containment gate.
type Filter struct {
	keywords KeywordSet
}

func NewFilter(keywords KeywordSet) *Filter {
	return &Filter{keywords: keywords}
}

// Allow reports whether the question contains any keyword, ignoring case.
// Matching is plain substring containment, so partial words count.
func (f *Filter) Allow(question string) bool {
	if question == "" {
		return false
	}
	q := strings.ToLower(question)
	for _, term := range f.keywords.terms {
		if strings.Contains(q, term) {
			return true
		}
	}
	return false
}
