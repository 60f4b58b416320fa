package dictionary

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/bastiangx/autocomplete/pkg/suggest"
)

// DefaultTextScore is the score of a bare term line with no score column.
const DefaultTextScore = 1

// ReadText parses a dictionary of "term,score" or bare "term" lines.
// Blank lines and lines starting with '#' are ignored. The score is taken
// after the last comma, so terms may themselves contain commas; a line whose
// score does not parse is reported in Skipped.
func ReadText(r io.Reader) (*Vocabulary, error) {
	vocab := &Vocabulary{}
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		comma := strings.LastIndexByte(line, ',')
		if comma < 0 {
			vocab.Entries = append(vocab.Entries, suggest.Entry{Term: line, Score: DefaultTextScore})
			continue
		}

		term := strings.TrimSpace(line[:comma])
		score, err := strconv.ParseFloat(strings.TrimSpace(line[comma+1:]), 64)
		if err != nil {
			vocab.Skipped = append(vocab.Skipped, LineError{Line: lineNo, Text: line, Err: fmt.Errorf("invalid score: %w", err)})
			continue
		}
		vocab.Entries = append(vocab.Entries, suggest.Entry{Term: term, Score: score})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading text dictionary: %w", err)
	}
	return vocab, nil
}

// WriteText writes entries as "term,score" lines.
func WriteText(w io.Writer, entries []suggest.Entry) error {
	bw := bufio.NewWriter(w)
	for _, e := range entries {
		if _, err := fmt.Fprintf(bw, "%s,%s\n", e.Term, strconv.FormatFloat(e.Score, 'f', -1, 64)); err != nil {
			return err
		}
	}
	return bw.Flush()
}
