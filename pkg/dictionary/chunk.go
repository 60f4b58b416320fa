package dictionary

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/bastiangx/autocomplete/internal/utils"
	"github.com/bastiangx/autocomplete/pkg/suggest"
	"github.com/charmbracelet/log"
)

// maxChunkWords bounds the int32 header of a chunk file.
const maxChunkWords = 1000000

// ChunkFileName returns the file name of chunk id, e.g. dict_0001.bin.
func ChunkFileName(chunkID int) string {
	return fmt.Sprintf("dict_%04d.bin", chunkID)
}

// ReadChunk decodes a binary chunk: an int32 word count, then per word a
// uint16 length, the word bytes and a uint16 rank. Rank 1 is the most
// frequent word; it becomes score 65535 so higher scores still rank first.
func ReadChunk(r io.Reader) ([]suggest.Entry, error) {
	reader := bufio.NewReader(r)

	var totalEntries int32
	if err := binary.Read(reader, binary.LittleEndian, &totalEntries); err != nil {
		return nil, fmt.Errorf("failed to read chunk header: %w", err)
	}
	if totalEntries < 0 || totalEntries > maxChunkWords {
		return nil, fmt.Errorf("invalid word count in chunk header: %d", totalEntries)
	}

	entries := make([]suggest.Entry, 0, totalEntries)
	for len(entries) < int(totalEntries) {
		var wordLen uint16
		if err := binary.Read(reader, binary.LittleEndian, &wordLen); err != nil {
			if errors.Is(err, io.EOF) {
				log.Warnf("Chunk ended after %d of %d words", len(entries), totalEntries)
				break
			}
			return nil, fmt.Errorf("failed to read word length: %w", err)
		}

		wordBytes := make([]byte, wordLen)
		if _, err := io.ReadFull(reader, wordBytes); err != nil {
			return nil, fmt.Errorf("failed to read word: %w", err)
		}

		var rank uint16
		if err := binary.Read(reader, binary.LittleEndian, &rank); err != nil {
			return nil, fmt.Errorf("failed to read rank: %w", err)
		}

		entries = append(entries, suggest.Entry{
			Term:  string(wordBytes),
			Score: float64(65535 - int(rank) + 1),
		})
	}
	return entries, nil
}

// WriteChunk encodes words with their ranks in the layout ReadChunk expects.
func WriteChunk(w io.Writer, words []string, ranks []uint16) error {
	if len(words) != len(ranks) {
		return fmt.Errorf("got %d words but %d ranks", len(words), len(ranks))
	}
	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.LittleEndian, int32(len(words))); err != nil {
		return err
	}
	for i, word := range words {
		if len(word) > math.MaxUint16 {
			return fmt.Errorf("word %d is too long for a chunk file", i)
		}
		if err := binary.Write(bw, binary.LittleEndian, uint16(len(word))); err != nil {
			return err
		}
		if _, err := bw.WriteString(word); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, ranks[i]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteChunkFiles ranks entries by score and splits them into dict_NNNN.bin
// files of at most chunkSize words under dir, numbered from 1. Only the rank
// survives the round trip, so scores come back as 65536 - rank.
func WriteChunkFiles(dir string, entries []suggest.Entry, chunkSize int) (int, error) {
	if chunkSize <= 0 {
		return 0, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if len(entries) > math.MaxUint16 {
		return 0, fmt.Errorf("%d entries exceed the %d ranks a chunk set can hold", len(entries), math.MaxUint16)
	}
	if err := utils.EnsureDir(dir); err != nil {
		return 0, err
	}

	ordered := append([]suggest.Entry(nil), entries...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Score != ordered[j].Score {
			return ordered[i].Score > ordered[j].Score
		}
		return ordered[i].Term < ordered[j].Term
	})
	ranks := utils.CreateRankList(len(ordered))

	chunks := 0
	for lo := 0; lo < len(ordered); lo += chunkSize {
		hi := min(lo+chunkSize, len(ordered))
		words := make([]string, 0, hi-lo)
		for _, e := range ordered[lo:hi] {
			words = append(words, e.Term)
		}

		chunks++
		path := filepath.Join(dir, ChunkFileName(chunks))
		file, err := os.Create(path)
		if err != nil {
			return chunks - 1, fmt.Errorf("failed to create chunk file %s: %w", path, err)
		}
		if err := WriteChunk(file, words, ranks[lo:hi]); err != nil {
			file.Close()
			return chunks - 1, fmt.Errorf("failed to write chunk file %s: %w", path, err)
		}
		if err := file.Close(); err != nil {
			return chunks - 1, err
		}
	}
	log.Debugf("Wrote %d entries into %d chunk files under %s", len(ordered), chunks, dir)
	return chunks, nil
}
