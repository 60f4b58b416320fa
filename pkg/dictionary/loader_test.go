package dictionary

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bastiangx/autocomplete/pkg/suggest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteChunk(&buf, []string{"the", "of"}, []uint16{1, 2}))

	entries, err := ReadChunk(&buf)
	require.NoError(t, err)
	assert.Equal(t, []suggest.Entry{
		{Term: "the", Score: 65535},
		{Term: "of", Score: 65534},
	}, entries)
}

func TestWriteChunkMismatchedRanks(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, WriteChunk(&buf, []string{"a", "b"}, []uint16{1}))
}

func TestReadChunkTruncated(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteChunk(&buf, []string{"alpha", "beta"}, []uint16{1, 2}))
	raw := buf.Bytes()

	// Cut inside the second word.
	_, err := ReadChunk(bytes.NewReader(raw[:len(raw)-3]))
	assert.Error(t, err)
}

// writeChunkDir writes n chunk files of size words each and returns the words in rank order.
func writeChunkDir(t *testing.T, dir string, n, size int) []suggest.Entry {
	t.Helper()
	entries := make([]suggest.Entry, 0, n*size)
	for i := range n * size {
		entries = append(entries, suggest.Entry{Term: fmt.Sprintf("w%03d", i), Score: float64(n*size - i)})
	}
	chunks, err := WriteChunkFiles(dir, entries, size)
	require.NoError(t, err)
	require.Equal(t, n, chunks)
	return entries
}

func TestWriteChunkFilesPreservesRankOrder(t *testing.T) {
	dir := t.TempDir()
	entries := writeChunkDir(t, dir, 3, 4)

	c := suggest.NewCompleter()
	loader := NewChunkLoader(dir, 0, c)
	for id := 1; id <= 3; id++ {
		require.NoError(t, loader.LoadSpecificChunk(id))
	}

	got, err := c.Query("w", 5)
	require.NoError(t, err)
	want := []string{entries[0].Term, entries[1].Term, entries[2].Term, entries[3].Term, entries[4].Term}
	assert.Equal(t, want, got)
}

func TestWriteChunkFilesInvalidSize(t *testing.T) {
	_, err := WriteChunkFiles(t.TempDir(), sampleEntries, 0)
	assert.Error(t, err)
}

func TestGetAvailableChunks(t *testing.T) {
	dir := t.TempDir()
	writeChunkDir(t, dir, 3, 2)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dict_abc.bin"), []byte{0, 0, 0, 0}, 0o644))

	loader := NewChunkLoader(dir, 0, suggest.NewCompleter())
	chunks, err := loader.GetAvailableChunks()
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	for i, chunk := range chunks {
		assert.Equal(t, i+1, chunk.ChunkID)
		assert.Equal(t, 2, chunk.WordCount)
	}
}

func TestLazyLoadingRespectsMaxWords(t *testing.T) {
	dir := t.TempDir()
	writeChunkDir(t, dir, 4, 5)

	c := suggest.NewCompleter()
	loader := NewChunkLoader(dir, 10, c)
	defer loader.Stop()
	require.NoError(t, loader.StartLazyLoading())

	require.Eventually(t, func() bool {
		return loader.GetStats().LoadedChunks == 2
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, []int{1, 2}, loader.GetLoadedChunkIDs())
	assert.Equal(t, 10, c.Len())

	require.NoError(t, loader.RequestMoreChunks(5))
	require.Eventually(t, func() bool {
		return loader.GetStats().LoadedChunks == 3
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 15, c.Len())
}

func TestStartLazyLoadingEmptyDir(t *testing.T) {
	loader := NewChunkLoader(t.TempDir(), 0, suggest.NewCompleter())
	defer loader.Stop()
	assert.Error(t, loader.StartLazyLoading())
}

func TestEvictRemovesChunkWords(t *testing.T) {
	dir := t.TempDir()
	writeChunkDir(t, dir, 2, 3)

	c := suggest.NewCompleter()
	loader := NewChunkLoader(dir, 0, c)
	require.NoError(t, loader.LoadSpecificChunk(1))
	require.NoError(t, loader.LoadSpecificChunk(2))
	require.Equal(t, 6, c.Len())

	require.NoError(t, loader.Evict(1))
	assert.Equal(t, 3, c.Len())
	assert.Equal(t, []int{2}, loader.GetLoadedChunkIDs())
	_, ok := c.Lookup("w000")
	assert.False(t, ok)
	_, ok = c.Lookup("w005")
	assert.True(t, ok)

	assert.Error(t, loader.Evict(1))
	loader.Stop()
	loader.Stop()
}

func TestChunkKeepsTermsFromOtherSources(t *testing.T) {
	dir := t.TempDir()
	_, err := WriteChunkFiles(dir, []suggest.Entry{
		{Term: "apple", Score: 3},
		{Term: "apricot", Score: 2},
	}, 10)
	require.NoError(t, err)

	c := suggest.NewCompleter()
	_, err = c.Upsert("apple", 7)
	require.NoError(t, err)

	loader := NewChunkLoader(dir, 0, c)
	defer loader.Stop()
	require.NoError(t, loader.LoadSpecificChunk(1))
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, 1, loader.GetStats().LoadedWords)

	score, err := c.Score("apple")
	require.NoError(t, err)
	assert.Equal(t, 7.0, score, "existing score is kept")

	require.NoError(t, loader.Evict(1))
	score, err = c.Score("apple")
	require.NoError(t, err)
	assert.Equal(t, 7.0, score)
	_, ok := c.Lookup("apricot")
	assert.False(t, ok)
}

func TestRuntimeLoaderSetDictionarySize(t *testing.T) {
	dir := t.TempDir()
	writeChunkDir(t, dir, 3, 2)

	c := suggest.NewCompleter()
	rl := NewRuntimeLoader(NewChunkLoader(dir, 0, c))

	require.NoError(t, rl.SetDictionarySize(3))
	assert.Equal(t, 3, rl.GetLoadedChunkCount())
	assert.Equal(t, 6, c.Len())

	require.NoError(t, rl.SetDictionarySize(1))
	assert.Equal(t, 1, rl.GetLoadedChunkCount())
	assert.Equal(t, 2, c.Len())
	_, ok := c.Lookup("w000")
	assert.True(t, ok, "lowest chunk stays loaded")

	assert.Error(t, rl.SetDictionarySize(0))
	assert.Error(t, rl.SetDictionarySize(4))

	options, err := rl.GetDictionarySizeOptions()
	require.NoError(t, err)
	require.Len(t, options, 3)
	assert.Equal(t, 6, options[2].WordCount)
	assert.Equal(t, 3, options[2].ChunkCount)
}

type recordingSink struct {
	loaded  []suggest.Entry
	removed []string
}

func (s *recordingSink) Load(entries []suggest.Entry) *suggest.LoadReport {
	s.loaded = append(s.loaded, entries...)
	return &suggest.LoadReport{Total: len(entries), Applied: len(entries)}
}

func (s *recordingSink) Remove(term string) error {
	s.removed = append(s.removed, term)
	return nil
}

func (s *recordingSink) Lookup(term string) (suggest.TermID, bool) {
	for i, e := range s.loaded {
		if e.Term == term {
			return suggest.TermID(i + 1), true
		}
	}
	return 0, false
}

type failingSource struct{}

func (failingSource) Name() string { return "failing" }

func (failingSource) Fetch(context.Context) (*Vocabulary, error) {
	return nil, errors.New("unreachable")
}

func TestLoadSourcesSkipsFailures(t *testing.T) {
	path := filepath.Join(t.TempDir(), "words.txt")
	require.NoError(t, os.WriteFile(path, []byte("cat,5\ndog,10\n"), 0o644))

	sink := &recordingSink{}
	reports := LoadSources(context.Background(), sink, failingSource{}, FileSource{Path: path})
	require.Len(t, reports, 1)
	assert.Equal(t, 2, reports[0].Applied)
	assert.Equal(t, []suggest.Entry{{Term: "cat", Score: 5}, {Term: "dog", Score: 10}}, sink.loaded)
}

func TestFileSourceHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := FileSource{Path: "whatever.txt"}.Fetch(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
