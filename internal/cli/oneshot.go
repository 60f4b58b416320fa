package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/bastiangx/autocomplete/pkg/suggest"
	"github.com/charmbracelet/log"
)

// RunOnce reads a prefix from the first line of inPath and writes its
// completions to outPath, one per line. An empty input file completes the
// empty prefix.
func RunOnce(completer suggest.ICompleter, inPath, outPath string, limit int) error {
	in, err := os.Open(inPath)
	if err != nil {
		return fmt.Errorf("opening input: %w", err)
	}
	defer in.Close()

	scanner := bufio.NewScanner(in)
	var prefix string
	if scanner.Scan() {
		prefix = strings.TrimRight(scanner.Text(), "\r")
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	words, err := completer.Query(prefix, limit)
	if err != nil {
		return err
	}

	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("creating output: %w", err)
	}
	w := bufio.NewWriter(out)
	for _, word := range words {
		fmt.Fprintln(w, word)
	}
	if err := w.Flush(); err != nil {
		out.Close()
		return fmt.Errorf("writing output: %w", err)
	}
	log.Debugf("Wrote %d completions of '%s' to %s", len(words), prefix, outPath)
	return out.Close()
}
