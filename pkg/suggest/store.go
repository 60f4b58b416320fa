package suggest

import (
	"errors"
	"math"
	"unicode"
	"unicode/utf8"

	"github.com/tchap/go-patricia/v2/patricia"
)

// DefaultMaxTermLength is the rune limit applied when no other is configured.
const DefaultMaxTermLength = 128

// TermID identifies a stored term. IDs start at 1 and are never reused
// once retired, so 0 never names a term.
type TermID uint64

// Term is the canonical record of an indexed term.
type Term struct {
	ID    TermID
	Text  string
	Score float64
}

// TermStore owns every indexed term and its score.
// It is not safe for concurrent use; Completer serializes access.
type TermStore struct {
	terms         map[TermID]Term
	byText        *patricia.Trie
	nextID        TermID
	maxTermLength int
}

// NewTermStore creates an empty store that rejects terms longer than
// maxTermLength runes. A non-positive limit falls back to DefaultMaxTermLength.
func NewTermStore(maxTermLength int) *TermStore {
	if maxTermLength <= 0 {
		maxTermLength = DefaultMaxTermLength
	}
	return &TermStore{
		terms:         make(map[TermID]Term),
		byText:        patricia.NewTrie(),
		nextID:        1,
		maxTermLength: maxTermLength,
	}
}

// Validate reports whether term and score could be stored, without storing them.
func (s *TermStore) Validate(term string, score float64) error {
	if term == "" {
		return &InvalidTermError{Term: term, Reason: "empty"}
	}
	if !utf8.ValidString(term) {
		return &InvalidTermError{Term: term, Reason: "not valid UTF-8"}
	}
	if n := utf8.RuneCountInString(term); n > s.maxTermLength {
		return &InvalidTermError{Term: term, Reason: "longer than the maximum term length"}
	}
	for _, r := range term {
		if !unicode.IsPrint(r) {
			return &InvalidTermError{Term: term, Reason: "contains a non-printable character"}
		}
	}
	if math.IsNaN(score) || math.IsInf(score, 0) || score < 0 {
		return &InvalidTermError{Term: term, Reason: "score must be a finite non-negative number"}
	}
	return nil
}

// Upsert stores term with score. An existing term keeps its id and takes the new score.
func (s *TermStore) Upsert(term string, score float64) (TermID, error) {
	if err := s.Validate(term, score); err != nil {
		return 0, err
	}
	if id, ok := s.Lookup(term); ok {
		t := s.terms[id]
		t.Score = score
		s.terms[id] = t
		return id, nil
	}

	id := s.nextID
	s.nextID++
	s.terms[id] = Term{ID: id, Text: term, Score: score}
	s.byText.Insert(patricia.Prefix(term), id)
	return id, nil
}

// Remove retires id and returns the term it named so the index can be cleaned up.
func (s *TermStore) Remove(id TermID) (Term, error) {
	t, ok := s.terms[id]
	if !ok {
		return Term{}, &NotFoundError{ID: id}
	}
	delete(s.terms, id)
	s.byText.Delete(patricia.Prefix(t.Text))
	return t, nil
}

// ScoreOf returns the score of id.
func (s *TermStore) ScoreOf(id TermID) (float64, error) {
	t, ok := s.terms[id]
	if !ok {
		return 0, &NotFoundError{ID: id}
	}
	return t.Score, nil
}

// Term returns the full record of id.
func (s *TermStore) Term(id TermID) (Term, error) {
	t, ok := s.terms[id]
	if !ok {
		return Term{}, &NotFoundError{ID: id}
	}
	return t, nil
}

// Lookup finds the id of an exact term text.
func (s *TermStore) Lookup(term string) (TermID, bool) {
	if term == "" {
		return 0, false
	}
	item := s.byText.Get(patricia.Prefix(term))
	if item == nil {
		return 0, false
	}
	return item.(TermID), true
}

// Len returns the number of live terms.
func (s *TermStore) Len() int {
	return len(s.terms)
}

// errStopVisit ends a patricia walk early.
var errStopVisit = errors.New("stop visit")

// Each calls fn for every live term in ascending text order, stopping early if fn returns false.
// The walk reorders trie children in place, so it needs exclusive access.
func (s *TermStore) Each(fn func(Term) bool) {
	_ = s.byText.Visit(func(_ patricia.Prefix, item patricia.Item) error {
		if !fn(s.terms[item.(TermID)]) {
			return errStopVisit
		}
		return nil
	})
}

// Reset drops every term. Retired ids stay retired.
func (s *TermStore) Reset() {
	s.terms = make(map[TermID]Term)
	s.byText = patricia.NewTrie()
}
