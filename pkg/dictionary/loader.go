package dictionary

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bastiangx/autocomplete/pkg/suggest"
	"github.com/charmbracelet/log"
)

// Sink receives the terms of loaded chunks. *suggest.Completer implements it.
type Sink interface {
	Load(entries []suggest.Entry) *suggest.LoadReport
	Remove(term string) error
	Lookup(term string) (suggest.TermID, bool)
}

// ChunkLoader manages lazy loading of dictionary chunks into a Sink.
// Chunk files are expected to hold disjoint sets of words. A chunk only owns
// the words it introduced: terms already in the sink keep their score and
// survive eviction.
type ChunkLoader struct {
	dirPath      string
	maxWords     int
	sink         Sink
	loadedChunks map[int]bool
	chunkWords   map[int][]string // Track which words belong to which chunk
	totalWords   int
	mu           sync.RWMutex
	loadingCh    chan int
	done         chan struct{}
	stopOnce     sync.Once
	errorCount   map[int]int
	maxRetries   int
}

// ChunkInfo contains metadata about a chunk file
type ChunkInfo struct {
	ChunkID   int
	Filename  string
	WordCount int
}

// LoaderStats provides statistics about the loading process
type LoaderStats struct {
	LoadedWords     int
	LoadedChunks    int
	AvailableChunks int
	IsLoading       bool
}

// NewChunkLoader creates a new lazy chunk loader. maxWords == 0 loads every chunk.
func NewChunkLoader(dirPath string, maxWords int, sink Sink) *ChunkLoader {
	return &ChunkLoader{
		dirPath:      dirPath,
		maxWords:     maxWords,
		sink:         sink,
		loadedChunks: make(map[int]bool),
		chunkWords:   make(map[int][]string),
		loadingCh:    make(chan int, 10),
		done:         make(chan struct{}),
		errorCount:   make(map[int]int),
		maxRetries:   3,
	}
}

// GetAvailableChunks scans the directory for available chunk files
func (cl *ChunkLoader) GetAvailableChunks() ([]ChunkInfo, error) {
	pattern := filepath.Join(cl.dirPath, "dict_*.bin")
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to scan for chunk files: %w", err)
	}

	var chunks []ChunkInfo
	for _, file := range files {
		basename := filepath.Base(file)
		// dict_0001.bin -> 1
		idStr := strings.TrimSuffix(strings.TrimPrefix(basename, "dict_"), ".bin")
		chunkID, err := strconv.Atoi(idStr)
		if err != nil {
			continue
		}
		wordCount, err := getChunkWordCount(file)
		if err != nil {
			log.Warnf("Failed to get word count for chunk %s: %v", file, err)
			wordCount = 0
		}
		chunks = append(chunks, ChunkInfo{
			ChunkID:   chunkID,
			Filename:  file,
			WordCount: wordCount,
		})
	}

	sort.Slice(chunks, func(i, j int) bool {
		return chunks[i].ChunkID < chunks[j].ChunkID
	})
	return chunks, nil
}

// getChunkWordCount reads the word count from a chunk file's header
func getChunkWordCount(filename string) (int, error) {
	file, err := os.Open(filename)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	var wordCount int32
	if err := binary.Read(file, binary.LittleEndian, &wordCount); err != nil {
		return 0, err
	}
	return int(wordCount), nil
}

// StartLazyLoading queues chunks up to maxWords and loads them in the background.
func (cl *ChunkLoader) StartLazyLoading() error {
	chunks, err := cl.GetAvailableChunks()
	if err != nil {
		return fmt.Errorf("failed to get available chunks: %w", err)
	}
	if len(chunks) == 0 {
		return fmt.Errorf("no chunk files found in %s", cl.dirPath)
	}

	log.Debugf("Found %d chunk files", len(chunks))
	go cl.backgroundLoader()

	wordsToLoad := cl.maxWords
	if wordsToLoad == 0 {
		for _, chunk := range chunks {
			wordsToLoad += chunk.WordCount
		}
	}

	queuedWords := 0
	for _, chunk := range chunks {
		if queuedWords >= wordsToLoad {
			break
		}
		select {
		case cl.loadingCh <- chunk.ChunkID:
			log.Debugf("Queued chunk %d for loading", chunk.ChunkID)
		case <-time.After(100 * time.Millisecond):
			log.Warnf("Loading queue full, chunk %d will be loaded later", chunk.ChunkID)
		}
		queuedWords += chunk.WordCount
	}
	return nil
}

// backgroundLoader runs in a goroutine and loads chunks from the queue
func (cl *ChunkLoader) backgroundLoader() {
	for {
		select {
		case chunkID := <-cl.loadingCh:
			if err := cl.loadChunk(chunkID); err != nil {
				log.Errorf("Failed to load chunk %d: %v", chunkID, err)

				cl.mu.Lock()
				cl.errorCount[chunkID]++
				errorCount := cl.errorCount[chunkID]
				cl.mu.Unlock()

				if errorCount < cl.maxRetries {
					log.Debugf("Retrying chunk %d (attempt %d/%d)", chunkID, errorCount+1, cl.maxRetries)
					go func(id int) {
						select {
						case <-time.After(time.Duration(errorCount) * time.Second):
						case <-cl.done:
							return
						}
						select {
						case cl.loadingCh <- id:
						case <-cl.done:
						}
					}(chunkID)
				} else {
					log.Errorf("Chunk %d failed %d times, giving up", chunkID, cl.maxRetries)
				}
			}
		case <-cl.done:
			return
		}
	}
}

// loadChunk reads one chunk file and hands its words to the sink.
func (cl *ChunkLoader) loadChunk(chunkID int) error {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if cl.loadedChunks[chunkID] {
		return nil
	}

	filename := filepath.Join(cl.dirPath, ChunkFileName(chunkID))
	file, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("failed to open chunk file %s: %w", filename, err)
	}
	defer file.Close()

	entries, err := ReadChunk(file)
	if err != nil {
		return err
	}

	fresh := entries[:0]
	for _, e := range entries {
		if _, ok := cl.sink.Lookup(e.Term); !ok {
			fresh = append(fresh, e)
		}
	}
	skipped := len(entries) - len(fresh)

	report := cl.sink.Load(fresh)
	words := make([]string, 0, report.Applied)
	failed := make(map[int]bool, len(report.Failed))
	for _, f := range report.Failed {
		failed[f.Index] = true
	}
	for i, e := range fresh {
		if !failed[i] {
			words = append(words, e.Term)
		}
	}

	cl.chunkWords[chunkID] = words
	cl.loadedChunks[chunkID] = true
	cl.totalWords += len(words)
	log.Debugf("Chunk %d loaded: %d words, %d already present, %d rejected", chunkID, len(words), skipped, len(report.Failed))
	return nil
}

// LoadSpecificChunk loads a chunk synchronously.
func (cl *ChunkLoader) LoadSpecificChunk(chunkID int) error {
	return cl.loadChunk(chunkID)
}

// Evict removes a loaded chunk's words from the sink.
func (cl *ChunkLoader) Evict(chunkID int) error {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if !cl.loadedChunks[chunkID] {
		return fmt.Errorf("chunk %d is not loaded", chunkID)
	}

	log.Debugf("Unloading chunk %d", chunkID)
	for _, word := range cl.chunkWords[chunkID] {
		if err := cl.sink.Remove(word); err != nil && !errors.Is(err, suggest.ErrNotFound) {
			log.Warnf("Failed to remove '%s' while unloading chunk %d: %v", word, chunkID, err)
		}
	}
	cl.totalWords -= len(cl.chunkWords[chunkID])
	delete(cl.chunkWords, chunkID)
	delete(cl.loadedChunks, chunkID)
	return nil
}

// GetStats returns current loading statistics
func (cl *ChunkLoader) GetStats() LoaderStats {
	chunks, _ := cl.GetAvailableChunks()

	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return LoaderStats{
		LoadedWords:     cl.totalWords,
		LoadedChunks:    len(cl.loadedChunks),
		AvailableChunks: len(chunks),
		IsLoading:       len(cl.loadingCh) > 0,
	}
}

// GetLoadedChunkIDs returns a slice of currently loaded chunk IDs
func (cl *ChunkLoader) GetLoadedChunkIDs() []int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()

	loadedIDs := make([]int, 0, len(cl.loadedChunks))
	for chunkID := range cl.loadedChunks {
		loadedIDs = append(loadedIDs, chunkID)
	}
	sort.Ints(loadedIDs)
	return loadedIDs
}

// RequestMoreChunks queues unloaded chunks until about additionalWords more words are pending.
func (cl *ChunkLoader) RequestMoreChunks(additionalWords int) error {
	chunks, err := cl.GetAvailableChunks()
	if err != nil {
		return err
	}

	queuedWords := 0
	for _, chunk := range chunks {
		if queuedWords >= additionalWords {
			break
		}
		cl.mu.RLock()
		alreadyLoaded := cl.loadedChunks[chunk.ChunkID]
		cl.mu.RUnlock()
		if alreadyLoaded {
			continue
		}
		select {
		case cl.loadingCh <- chunk.ChunkID:
			log.Debugf("Queued additional chunk %d for loading", chunk.ChunkID)
			queuedWords += chunk.WordCount
		default:
			log.Warnf("Loading queue full, cannot queue chunk %d", chunk.ChunkID)
		}
	}
	return nil
}

// Stop stops the background loading process. It is safe to call more than once.
func (cl *ChunkLoader) Stop() {
	cl.stopOnce.Do(func() {
		close(cl.done)
	})
}
