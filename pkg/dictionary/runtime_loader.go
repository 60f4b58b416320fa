package dictionary

import (
	"fmt"
	"sort"
	"sync"

	"github.com/charmbracelet/log"
)

// RuntimeLoader grows or shrinks the set of loaded chunks while serving.
type RuntimeLoader struct {
	chunkLoader  *ChunkLoader
	targetChunks int
	mu           sync.Mutex
}

// NewRuntimeLoader creates a new runtime loader
func NewRuntimeLoader(chunkLoader *ChunkLoader) *RuntimeLoader {
	return &RuntimeLoader{chunkLoader: chunkLoader}
}

// GetAvailableChunkCount returns the total number of available chunk files
func (rl *RuntimeLoader) GetAvailableChunkCount() (int, error) {
	chunks, err := rl.chunkLoader.GetAvailableChunks()
	if err != nil {
		return 0, err
	}
	return len(chunks), nil
}

// GetLoadedChunkCount returns how many chunks are loaded right now.
func (rl *RuntimeLoader) GetLoadedChunkCount() int {
	return len(rl.chunkLoader.GetLoadedChunkIDs())
}

// SetDictionarySize loads or evicts chunks synchronously until exactly
// targetChunks are loaded. Lower chunk ids load first and evict last.
func (rl *RuntimeLoader) SetDictionarySize(targetChunks int) error {
	if targetChunks < 1 {
		return fmt.Errorf("minimum dictionary size is 1 chunk")
	}

	chunks, err := rl.chunkLoader.GetAvailableChunks()
	if err != nil {
		return err
	}
	if targetChunks > len(chunks) {
		return fmt.Errorf("requested %d chunks but only %d are available", targetChunks, len(chunks))
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	loaded := rl.chunkLoader.GetLoadedChunkIDs()
	log.Debugf("Setting dictionary size: current=%d chunks, target=%d chunks", len(loaded), targetChunks)

	switch {
	case targetChunks > len(loaded):
		isLoaded := make(map[int]bool, len(loaded))
		for _, id := range loaded {
			isLoaded[id] = true
		}
		need := targetChunks - len(loaded)
		for _, chunk := range chunks {
			if need == 0 {
				break
			}
			if isLoaded[chunk.ChunkID] {
				continue
			}
			if err := rl.chunkLoader.LoadSpecificChunk(chunk.ChunkID); err != nil {
				return fmt.Errorf("failed to load chunk %d: %w", chunk.ChunkID, err)
			}
			need--
		}
	case targetChunks < len(loaded):
		sort.Sort(sort.Reverse(sort.IntSlice(loaded)))
		for _, chunkID := range loaded[:len(loaded)-targetChunks] {
			if err := rl.chunkLoader.Evict(chunkID); err != nil {
				return fmt.Errorf("failed to unload chunk %d: %w", chunkID, err)
			}
		}
	}
	rl.targetChunks = targetChunks
	return nil
}

// GetDictionarySizeOptions returns the cumulative word count for each possible chunk count.
func (rl *RuntimeLoader) GetDictionarySizeOptions() ([]DictionarySizeOption, error) {
	chunks, err := rl.chunkLoader.GetAvailableChunks()
	if err != nil {
		return nil, err
	}

	options := make([]DictionarySizeOption, 0, len(chunks))
	totalWords := 0
	for i, chunk := range chunks {
		totalWords += chunk.WordCount
		options = append(options, DictionarySizeOption{
			ChunkCount: i + 1,
			WordCount:  totalWords,
			SizeLabel:  fmt.Sprintf("%dK words", totalWords/1000),
		})
	}
	return options, nil
}

// DictionarySizeOption represents a dictionary size option
type DictionarySizeOption struct {
	ChunkCount int    `json:"chunkCount" msgpack:"chunk_count"`
	WordCount  int    `json:"wordCount" msgpack:"word_count"`
	SizeLabel  string `json:"sizeLabel" msgpack:"size_label"`
}
