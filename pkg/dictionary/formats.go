// Package dictionary reads and writes vocabularies as replayable (term, score)
// pairs, from files, databases and chunked binary directories.
package dictionary

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bastiangx/autocomplete/pkg/suggest"
	"github.com/charmbracelet/log"
)

// FileFormat represents different dictionary file formats
type FileFormat int

const (
	FormatUnknown  FileFormat = iota
	FormatChunk               // Chunked binary format
	FormatText                // term,score lines
	FormatYAML                // terms: [{term, score}]
	FormatSnapshot            // msgpack snapshot
)

// FormatInfo contains metadata about a dictionary file format
type FormatInfo struct {
	Format      FileFormat
	Description string
	Extensions  []string
	MinSize     int64 // Minimum expected file size in bytes
}

var supportedFormats = map[FileFormat]FormatInfo{
	FormatChunk: {
		Format:      FormatChunk,
		Description: "Chunked Binary Dictionary",
		Extensions:  []string{".bin"},
		MinSize:     4, // At least word count header
	},
	FormatText: {
		Format:      FormatText,
		Description: "Plain Text Dictionary",
		Extensions:  []string{".txt", ".csv"},
		MinSize:     0,
	},
	FormatYAML: {
		Format:      FormatYAML,
		Description: "YAML Dictionary",
		Extensions:  []string{".yaml", ".yml"},
		MinSize:     0,
	},
	FormatSnapshot: {
		Format:      FormatSnapshot,
		Description: "MessagePack Snapshot",
		Extensions:  []string{".msgpack", ".snap"},
		MinSize:     1,
	},
}

// Vocabulary is the result of reading a dictionary source.
type Vocabulary struct {
	Entries []suggest.Entry
	// Skipped holds lines that could not be parsed; they are not in Entries.
	Skipped []LineError
}

// LineError describes an unparseable line of a text dictionary.
type LineError struct {
	Line int
	Text string
	Err  error
}

func (e LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e LineError) Unwrap() error {
	return e.Err
}

// DetectFileFormat picks a format from the file extension.
func DetectFileFormat(filename string) (FileFormat, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, info := range supportedFormats {
		for _, e := range info.Extensions {
			if e == ext {
				return info.Format, nil
			}
		}
	}
	return FormatUnknown, fmt.Errorf("unable to detect format for file %s", filename)
}

// ValidateFileFormat checks that a file exists and is large enough for its format.
func ValidateFileFormat(filename string, expectedFormat FileFormat) error {
	fileInfo, err := os.Stat(filename)
	if err != nil {
		return fmt.Errorf("failed to stat file %s: %w", filename, err)
	}

	formatInfo, exists := supportedFormats[expectedFormat]
	if !exists {
		return fmt.Errorf("unknown format: %v", expectedFormat)
	}

	if fileInfo.Size() < formatInfo.MinSize {
		return fmt.Errorf("file %s is too small (%d bytes) for format %s (minimum: %d bytes)",
			filename, fileInfo.Size(), formatInfo.Description, formatInfo.MinSize)
	}
	return nil
}

// Open reads a dictionary file in whatever format its extension names.
func Open(path string) (*Vocabulary, error) {
	format, err := DetectFileFormat(path)
	if err != nil {
		return nil, err
	}
	if err := ValidateFileFormat(path, format); err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dictionary %s: %w", path, err)
	}
	defer file.Close()

	var vocab *Vocabulary
	switch format {
	case FormatText:
		vocab, err = ReadText(file)
	case FormatYAML:
		vocab, err = ReadYAML(file)
	case FormatSnapshot:
		vocab, err = ReadSnapshot(file)
	case FormatChunk:
		var entries []suggest.Entry
		entries, err = ReadChunk(file)
		vocab = &Vocabulary{Entries: entries}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read dictionary %s: %w", path, err)
	}

	log.Debugf("Read %d entries from %s (%s), %d lines skipped",
		len(vocab.Entries), path, supportedFormats[format].Description, len(vocab.Skipped))
	return vocab, nil
}

// GetFormatInfo returns information about a specific format
func GetFormatInfo(format FileFormat) (FormatInfo, bool) {
	info, exists := supportedFormats[format]
	return info, exists
}

// ListSupportedFormats returns all supported formats
func ListSupportedFormats() []FormatInfo {
	formats := make([]FormatInfo, 0, len(supportedFormats))
	for _, info := range supportedFormats {
		formats = append(formats, info)
	}
	sort.Slice(formats, func(i, j int) bool {
		return formats[i].Format < formats[j].Format
	})
	return formats
}
