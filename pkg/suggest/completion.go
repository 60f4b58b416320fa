package suggest

import (
	"math"
	"strings"
	"sync"
	"unicode"

	"github.com/bastiangx/autocomplete/internal/utils"
	"github.com/charmbracelet/log"
)

// DefaultLoadChunkSize is how many entries a bulk load applies per write-lock hold.
const DefaultLoadChunkSize = 1000

// Options tunes a Completer. The zero value is usable.
type Options struct {
	// MaxTermLength caps term length in runes.
	MaxTermLength int
	// FoldCase lowercases terms on ingestion and prefixes on query.
	FoldCase bool
	// LoadChunkSize bounds how long a bulk load holds the write lock.
	LoadChunkSize int
}

// DefaultOptions returns the options used by NewCompleter.
func DefaultOptions() Options {
	return Options{
		MaxTermLength: DefaultMaxTermLength,
		LoadChunkSize: DefaultLoadChunkSize,
	}
}

// Suggestion is a ranked completion with its score.
type Suggestion struct {
	Word  string
	Score float64
}

// Completer is the autocomplete engine: a TermStore and PrefixIndex guarded
// by a readers-writer lock. Queries share the read lock and never mutate;
// every update takes the write lock.
type Completer struct {
	mu    sync.RWMutex
	store *TermStore
	index *PrefixIndex
	opts  Options
}

// NewCompleter creates an empty engine with DefaultOptions.
func NewCompleter() *Completer {
	return NewCompleterWithOptions(DefaultOptions())
}

// NewCompleterWithOptions creates an empty engine.
func NewCompleterWithOptions(opts Options) *Completer {
	if opts.MaxTermLength <= 0 {
		opts.MaxTermLength = DefaultMaxTermLength
	}
	if opts.LoadChunkSize <= 0 {
		opts.LoadChunkSize = DefaultLoadChunkSize
	}
	return &Completer{
		store: NewTermStore(opts.MaxTermLength),
		index: NewPrefixIndex(),
		opts:  opts,
	}
}

func (c *Completer) normalize(s string) string {
	if c.opts.FoldCase {
		return strings.ToLower(s)
	}
	return s
}

// Query returns at most k completions of prefix, best first.
// A prefix without completions, or k == 0, yields an empty slice.
func (c *Completer) Query(prefix string, k int) ([]string, error) {
	if k < 0 {
		return nil, &InvalidArgumentError{Param: "k", Reason: "must not be negative"}
	}
	if k == 0 {
		return []string{}, nil
	}

	c.mu.RLock()
	terms := c.topK(c.normalize(prefix), k)
	c.mu.RUnlock()

	out := make([]string, len(terms))
	for i, t := range terms {
		out[i] = t.Text
	}
	return out, nil
}

// Complete returns up to limit suggestions with their scores. When case
// folding is on, capital letters typed in prefix are carried onto the words.
func (c *Completer) Complete(prefix string, limit int) []Suggestion {
	if limit <= 0 {
		return nil
	}
	lowerPrefix := c.normalize(prefix)

	c.mu.RLock()
	terms := c.topK(lowerPrefix, limit)
	c.mu.RUnlock()

	var capitalPositions []bool
	if c.opts.FoldCase && lowerPrefix != prefix {
		capitalPositions = utils.CapitalPositions(prefix)
	}

	suggestions := make([]Suggestion, len(terms))
	for i, t := range terms {
		suggestions[i] = Suggestion{
			Word:  ApplyCapitalization(t.Text, capitalPositions),
			Score: t.Score,
		}
	}
	log.Debugf("Completed '%s': %d of limit %d", prefix, len(suggestions), limit)
	return suggestions
}

// topK runs resolve, collect, rank and truncate. The caller holds the read lock.
//
// Collect already yields in rank order; the window keeps pulling past the
// k-th result while scores tie with it, and Rank re-orders that superset so
// the cut is provably correct at the boundary.
func (c *Completer) topK(prefix string, k int) []Term {
	node, ok := c.index.Subtree(prefix)
	if !ok {
		return nil
	}

	window := make([]TermID, 0, k)
	boundary := math.Inf(1)
	for id := range c.index.Collect(node, k) {
		score, err := c.store.ScoreOf(id)
		if err != nil {
			log.Errorf("Index holds unknown term id %d", id)
			continue
		}
		if len(window) >= k && score < boundary {
			break
		}
		window = append(window, id)
		if len(window) == k {
			boundary = score
		}
	}

	ranked := Rank(window, c.store)
	if len(ranked) > k {
		ranked = ranked[:k]
	}
	terms := make([]Term, 0, len(ranked))
	for _, id := range ranked {
		t, err := c.store.Term(id)
		if err != nil {
			continue
		}
		terms = append(terms, t)
	}
	return terms
}

// Upsert inserts term or updates its score, returning its stable id.
func (c *Completer) Upsert(term string, score float64) (TermID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.upsertLocked(term, score)
}

func (c *Completer) upsertLocked(term string, score float64) (TermID, error) {
	term = c.normalize(term)
	id, err := c.store.Upsert(term, score)
	if err != nil {
		return 0, err
	}
	c.index.Insert(term, id, score)
	return id, nil
}

// Remove deletes term from the engine.
func (c *Completer) Remove(term string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	term = c.normalize(term)
	id, ok := c.store.Lookup(term)
	if !ok {
		return &NotFoundError{Term: term}
	}
	return c.removeLocked(id)
}

// RemoveID deletes the term identified by id.
func (c *Completer) RemoveID(id TermID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.removeLocked(id)
}

func (c *Completer) removeLocked(id TermID) error {
	t, err := c.store.Remove(id)
	if err != nil {
		return err
	}
	if !c.index.Remove(t.ID, t.Text) {
		log.Errorf("Term '%s' (id %d) was stored but not indexed", t.Text, t.ID)
	}
	return nil
}

// Lookup returns the id of an exact term.
func (c *Completer) Lookup(term string) (TermID, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.store.Lookup(c.normalize(term))
}

// Term returns the stored record for id.
func (c *Completer) Term(id TermID) (Term, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.store.Term(id)
}

// Score returns the current score of term.
func (c *Completer) Score(term string) (float64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	term = c.normalize(term)
	id, ok := c.store.Lookup(term)
	if !ok {
		return 0, &NotFoundError{Term: term}
	}
	return c.store.ScoreOf(id)
}

// Len returns the number of indexed terms.
func (c *Completer) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.store.Len()
}

// Snapshot returns every term as a replayable entry, in ascending text order.
func (c *Completer) Snapshot() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := make([]Entry, 0, c.store.Len())
	c.store.Each(func(t Term) bool {
		entries = append(entries, Entry{Term: t.Text, Score: t.Score})
		return true
	})
	return entries
}

// Reset drops every term and node, leaving an empty engine.
func (c *Completer) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.Reset()
	c.index.Reset()
	log.Debug("Completer reset")
}

// Stats reports the size of the engine.
func (c *Completer) Stats() map[string]int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	maxScore := 0
	switch best := c.index.root.Best(); {
	case math.IsInf(best, -1):
	case best >= math.MaxInt:
		maxScore = math.MaxInt
	default:
		maxScore = int(best)
	}
	return map[string]int{
		"totalTerms": c.store.Len(),
		"trieNodes":  c.index.Size(),
		"maxScore":   maxScore,
	}
}

// ApplyCapitalization uppercases the letters of word at the positions flagged
// in capitalPositions.
func ApplyCapitalization(word string, capitalPositions []bool) string {
	if len(capitalPositions) == 0 {
		return word
	}

	wordRunes := []rune(word)
	for i := 0; i < len(wordRunes) && i < len(capitalPositions); i++ {
		if capitalPositions[i] {
			wordRunes[i] = unicode.ToUpper(wordRunes[i])
		}
	}
	return string(wordRunes)
}
