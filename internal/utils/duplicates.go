package utils

import (
	"strings"
)

// SuggestionFilter drops suggestions that repeat the typed prefix or an
// earlier suggestion under case folding. Not safe for concurrent use.
type SuggestionFilter struct {
	seen map[string]struct{}
}

// NewSuggestionFilter creates a filter that already counts input as seen.
func NewSuggestionFilter(input string) *SuggestionFilter {
	f := &SuggestionFilter{seen: make(map[string]struct{}, 8)}
	f.seen[strings.ToLower(input)] = struct{}{}
	return f
}

// ShouldInclude reports whether word is new and records it.
func (f *SuggestionFilter) ShouldInclude(word string) bool {
	key := strings.ToLower(word)
	if _, dup := f.seen[key]; dup {
		return false
	}
	f.seen[key] = struct{}{}
	return true
}

// Filter keeps the words ShouldInclude accepts, preserving order.
func (f *SuggestionFilter) Filter(words []string) []string {
	kept := words[:0:0]
	for _, w := range words {
		if f.ShouldInclude(w) {
			kept = append(kept, w)
		}
	}
	return kept
}
