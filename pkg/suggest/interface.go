// Package suggest is the core, indexing a scored vocabulary by prefix and answering top-K completion queries.
package suggest

// ICompleter defines the interface for completion engines used by the servers and CLI.
type ICompleter interface {
	// Query returns at most k completions for prefix, best first
	Query(prefix string, k int) ([]string, error)

	// Complete returns suggestions with scores for a given prefix with a limit
	Complete(prefix string, limit int) []Suggestion

	// Upsert adds a term or updates its score
	Upsert(term string, score float64) (TermID, error)

	// Remove deletes a term
	Remove(term string) error

	// Load applies a batch of entries, reporting rejected ones
	Load(entries []Entry) *LoadReport

	// Snapshot returns every term as a replayable entry
	Snapshot() []Entry

	// Stats returns statistics about the loaded vocabulary
	Stats() map[string]int
}

var _ ICompleter = (*Completer)(nil)
