// Package cli is an interactive prompt over a completer, for debugging and
// trying out vocabularies by hand.
package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/bastiangx/autocomplete/internal/utils"
	"github.com/bastiangx/autocomplete/pkg/suggest"
	"github.com/charmbracelet/log"
)

// InputHandler reads prefixes line by line and prints ranked suggestions.
// Lines starting with ':' are commands:
//
//	:add <term> <score>   insert or rescore a term
//	:rm <term>            remove a term
//	:stats                print engine size
//	:quit                 leave the prompt
type InputHandler struct {
	completer       suggest.ICompleter
	in              io.Reader
	out             io.Writer
	minPrefixLength int
	maxPrefixLength int
	suggestLimit    int
	noFilter        bool
}

// NewInputHandler handles initialization of the InputHandler with basic parameters
func NewInputHandler(completer suggest.ICompleter, in io.Reader, out io.Writer, minLength, maxLength, limit int, noFilter bool) *InputHandler {
	return &InputHandler{
		completer:       completer,
		in:              in,
		out:             out,
		minPrefixLength: minLength,
		maxPrefixLength: maxLength,
		suggestLimit:    limit,
		noFilter:        noFilter,
	}
}

// Start runs the prompt loop until :quit or end of input.
func (h *InputHandler) Start() error {
	fmt.Fprintln(h.out, "autocomplete CLI")
	fmt.Fprintln(h.out, "type a prefix and press Enter to see suggestions (:quit to exit)")

	scanner := bufio.NewScanner(h.in)
	for {
		fmt.Fprint(h.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(h.out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, ":") {
			if done := h.handleCommand(line); done {
				return nil
			}
			continue
		}
		h.handleInput(line)
	}
}

// handleCommand runs a ':' command and reports whether the loop should end.
func (h *InputHandler) handleCommand(line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case ":quit", ":q":
		return true
	case ":stats":
		stats := h.completer.Stats()
		fmt.Fprintf(h.out, "terms: %s  nodes: %s  max score: %s\n",
			formatWithCommas(float64(stats["totalTerms"])),
			formatWithCommas(float64(stats["trieNodes"])),
			formatWithCommas(float64(stats["maxScore"])))
	case ":add":
		if len(fields) != 3 {
			fmt.Fprintln(h.out, "usage: :add <term> <score>")
			return false
		}
		score, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			fmt.Fprintf(h.out, "invalid score %q\n", fields[2])
			return false
		}
		if _, err := h.completer.Upsert(fields[1], score); err != nil {
			fmt.Fprintf(h.out, "error: %v\n", err)
			return false
		}
		fmt.Fprintf(h.out, "ok: %s = %s\n", fields[1], formatWithCommas(score))
	case ":rm":
		if len(fields) != 2 {
			fmt.Fprintln(h.out, "usage: :rm <term>")
			return false
		}
		if err := h.completer.Remove(fields[1]); err != nil {
			if errors.Is(err, suggest.ErrNotFound) {
				fmt.Fprintf(h.out, "not found: %s\n", fields[1])
				return false
			}
			fmt.Fprintf(h.out, "error: %v\n", err)
			return false
		}
		fmt.Fprintf(h.out, "removed: %s\n", fields[1])
	default:
		fmt.Fprintf(h.out, "unknown command %s\n", fields[0])
	}
	return false
}

// handleInput validates a prefix and prints its suggestions.
func (h *InputHandler) handleInput(prefix string) {
	n := len([]rune(prefix))
	if n < h.minPrefixLength {
		fmt.Fprintf(h.out, "prefix too short: %s\n", prefix)
		return
	}
	if h.maxPrefixLength > 0 && n > h.maxPrefixLength {
		fmt.Fprintf(h.out, "prefix too long: %s\n", prefix)
		return
	}

	if !h.noFilter && !utils.IsValidInput(prefix) {
		fmt.Fprintf(h.out, "no suggestions for '%s' (filtered out)\n", prefix)
		return
	}

	start := time.Now()
	suggestions := h.completer.Complete(prefix, h.suggestLimit)
	log.Debugf("Took [ %v ] for prefix '%s'", time.Since(start), prefix)

	if len(suggestions) == 0 {
		fmt.Fprintf(h.out, "no suggestions for '%s'\n", prefix)
		return
	}

	fmt.Fprintf(h.out, "found %d suggestions for '%s':\n", len(suggestions), prefix)
	for i, s := range suggestions {
		fmt.Fprintf(h.out, "%2d. %-40s (score: %10s)\n", i+1, s.Word, formatWithCommas(s.Score))
	}
}

// formatWithCommas groups the integer part of n in thousands.
func formatWithCommas(n float64) string {
	if n != math.Trunc(n) || math.Abs(n) >= 1e15 {
		return strconv.FormatFloat(n, 'g', -1, 64)
	}
	str := strconv.FormatInt(int64(n), 10)
	if len(str) <= 3 {
		return str
	}

	var b strings.Builder
	for i, char := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(char)
	}
	return b.String()
}
