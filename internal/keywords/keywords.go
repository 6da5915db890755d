// Package keywords matches text against a fixed keyword list and extracts
// content words from short titles.
package keywords

import (
	"strings"
	"unicode"

	"github.com/coregx/ahocorasick"
	"github.com/orsinium-labs/stopwords"
)

// Matcher reports whether text contains any of its keywords,
// case-insensitively. A Matcher without keywords matches nothing.
type Matcher struct {
	ac       *ahocorasick.Automaton
	patterns []string
}

func NewMatcher(words []string) (*Matcher, error) {
	seen := make(map[string]bool, len(words))
	var patterns []string
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" || seen[w] {
			continue
		}
		seen[w] = true
		patterns = append(patterns, w)
	}
	if len(patterns) == 0 {
		return &Matcher{}, nil
	}

	ac, err := ahocorasick.NewBuilder().
		AddStrings(patterns).
		SetMatchKind(ahocorasick.LeftmostLongest).
		Build()
	if err != nil {
		return nil, err
	}
	return &Matcher{ac: ac, patterns: patterns}, nil
}

// Match reports whether any keyword occurs in text.
func (m *Matcher) Match(text string) bool {
	return len(m.Find(text)) > 0
}

// Find returns the distinct keywords occurring in text, in first-seen order.
func (m *Matcher) Find(text string) []string {
	if m == nil || m.ac == nil || text == "" {
		return nil
	}
	var found []string
	seen := make(map[int]bool)
	for _, hit := range m.ac.FindAllOverlapping([]byte(strings.ToLower(text))) {
		if seen[hit.PatternID] {
			continue
		}
		seen[hit.PatternID] = true
		found = append(found, m.patterns[hit.PatternID])
	}
	return found
}

// Keywords returns the content words of s: lowercased words longer than two
// letters that are not English stopwords, without duplicates.
func Keywords(s string) []string {
	sw := stopwords.MustGet("en")
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool, len(fields))
	var out []string
	for _, f := range fields {
		if len([]rune(f)) <= 2 || sw.Contains(f) || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}
