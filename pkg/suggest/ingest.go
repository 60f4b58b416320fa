package suggest

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/charmbracelet/log"
)

// Entry is one replayable vocabulary pair.
type Entry struct {
	Term  string  `json:"term" yaml:"term" msgpack:"t"`
	Score float64 `json:"score" yaml:"score" msgpack:"s"`
}

// EntryError records why a single entry was rejected during a load.
type EntryError struct {
	Index int
	Term  string
	Err   error
}

func (e EntryError) Error() string {
	return fmt.Sprintf("entry %d: %v", e.Index, e.Err)
}

func (e EntryError) Unwrap() error {
	return e.Err
}

// LoadReport summarizes a bulk load.
type LoadReport struct {
	Total    int
	Applied  int
	Failed   []EntryError
	Duration time.Duration
}

// Err joins every per-entry failure, or returns nil when all entries applied.
func (r *LoadReport) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	errs := make([]error, len(r.Failed))
	for i, f := range r.Failed {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// Load applies entries with partial-success semantics: an invalid entry is
// reported in the returned LoadReport and leaves the engine exactly as if it
// had not been attempted, while every valid entry is committed.
func (c *Completer) Load(entries []Entry) *LoadReport {
	report, _ := c.LoadContext(context.Background(), entries)
	return report
}

// LoadContext is Load with cancellation. Entries are applied in chunks of
// Options.LoadChunkSize; the write lock is released between chunks so
// queries are never starved for the whole load. If ctx is done between
// chunks the load stops and the partial report is returned with ctx.Err().
func (c *Completer) LoadContext(ctx context.Context, entries []Entry) (*LoadReport, error) {
	start := time.Now()
	report := &LoadReport{Total: len(entries)}
	chunk := c.opts.LoadChunkSize

	for lo := 0; lo < len(entries); lo += chunk {
		if err := ctx.Err(); err != nil {
			report.Duration = time.Since(start)
			log.Warnf("Load cancelled after %d of %d entries: %v", lo, len(entries), err)
			return report, err
		}
		hi := min(lo+chunk, len(entries))

		c.mu.Lock()
		for i := lo; i < hi; i++ {
			e := entries[i]
			if _, err := c.upsertLocked(e.Term, e.Score); err != nil {
				report.Failed = append(report.Failed, EntryError{Index: i, Term: e.Term, Err: err})
				continue
			}
			report.Applied++
		}
		c.mu.Unlock()
		runtime.Gosched()
	}

	report.Duration = time.Since(start)
	if len(report.Failed) > 0 {
		log.Warnf("Loaded %d of %d entries, %d rejected", report.Applied, report.Total, len(report.Failed))
	}
	log.Debugf("Load took %v for %d entries", report.Duration, report.Total)
	return report, nil
}
