package suggest

import "sort"

// TermLookup resolves ids to their stored records. *TermStore implements it.
type TermLookup interface {
	Term(id TermID) (Term, error)
}

// Rank orders candidates by descending score, breaking ties by ascending
// term text. It returns a new slice and drops ids the lookup does not know.
func Rank(candidates []TermID, lookup TermLookup) []TermID {
	terms := make([]Term, 0, len(candidates))
	for _, id := range candidates {
		t, err := lookup.Term(id)
		if err != nil {
			continue
		}
		terms = append(terms, t)
	}

	sort.Slice(terms, func(i, j int) bool {
		return less(terms[i], terms[j])
	})

	ranked := make([]TermID, len(terms))
	for i, t := range terms {
		ranked[i] = t.ID
	}
	return ranked
}

func less(a, b Term) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.Text < b.Text
}
