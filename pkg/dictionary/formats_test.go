package dictionary

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bastiangx/autocomplete/pkg/suggest"
	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func init() {
	log.SetLevel(log.ErrorLevel)
}

var sampleEntries = []suggest.Entry{
	{Term: "cat", Score: 5},
	{Term: "car", Score: 5},
	{Term: "cart", Score: 3},
	{Term: "dog", Score: 10},
}

func TestDetectFileFormat(t *testing.T) {
	cases := map[string]FileFormat{
		"words.txt":     FormatText,
		"words.CSV":     FormatText,
		"words.yaml":    FormatYAML,
		"words.yml":     FormatYAML,
		"dict_0001.bin": FormatChunk,
		"state.msgpack": FormatSnapshot,
		"state.snap":    FormatSnapshot,
	}
	for name, want := range cases {
		got, err := DetectFileFormat(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := DetectFileFormat("words.json")
	assert.Error(t, err)
}

func TestListSupportedFormatsOrdered(t *testing.T) {
	formats := ListSupportedFormats()
	require.Len(t, formats, 4)
	for i := 1; i < len(formats); i++ {
		assert.Less(t, formats[i-1].Format, formats[i].Format)
	}
}

func TestReadText(t *testing.T) {
	input := strings.Join([]string{
		"# comment",
		"cat,5",
		"",
		"  dog , 10 ",
		"hello, world,2",
		"bare",
		"broken,abc",
	}, "\n")

	vocab, err := ReadText(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []suggest.Entry{
		{Term: "cat", Score: 5},
		{Term: "dog", Score: 10},
		{Term: "hello, world", Score: 2},
		{Term: "bare", Score: DefaultTextScore},
	}, vocab.Entries)
	require.Len(t, vocab.Skipped, 1)
	assert.Equal(t, 7, vocab.Skipped[0].Line)
	assert.Contains(t, vocab.Skipped[0].Error(), "line 7")
}

func TestTextRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, sampleEntries))

	vocab, err := ReadText(&buf)
	require.NoError(t, err)
	assert.Equal(t, sampleEntries, vocab.Entries)
	assert.Empty(t, vocab.Skipped)
}

func TestYAMLRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteYAML(&buf, sampleEntries))
	assert.Contains(t, buf.String(), "terms:")

	vocab, err := ReadYAML(&buf)
	require.NoError(t, err)
	assert.Equal(t, sampleEntries, vocab.Entries)
}

func TestReadYAMLEmpty(t *testing.T) {
	vocab, err := ReadYAML(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, vocab.Entries)
}

func TestReadYAMLMalformed(t *testing.T) {
	_, err := ReadYAML(strings.NewReader("terms: [oops"))
	assert.Error(t, err)
}

func TestSnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.msgpack")
	require.NoError(t, SaveSnapshot(path, sampleEntries))

	vocab, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, sampleEntries, vocab.Entries)

	// Rewriting replaces the previous snapshot in place.
	require.NoError(t, SaveSnapshot(path, sampleEntries[:1]))
	vocab, err = Open(path)
	require.NoError(t, err)
	assert.Equal(t, sampleEntries[:1], vocab.Entries)
}

func TestReadSnapshotRejectsUnknownVersion(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, msgpack.NewEncoder(&buf).Encode(snapshot{Version: SnapshotVersion + 1, Terms: sampleEntries}))

	_, err := ReadSnapshot(&buf)
	assert.ErrorContains(t, err, "unsupported snapshot version")
}

func TestOpenSnapshotReplaysIntoCompleter(t *testing.T) {
	src := suggest.NewCompleter()
	require.NoError(t, src.Load(sampleEntries).Err())

	path := filepath.Join(t.TempDir(), "state.snap")
	require.NoError(t, SaveSnapshot(path, src.Snapshot()))

	vocab, err := Open(path)
	require.NoError(t, err)
	dst := suggest.NewCompleter()
	require.NoError(t, dst.Load(vocab.Entries).Err())

	for _, prefix := range []string{"", "c", "ca", "car", "d", "x"} {
		want, err := src.Query(prefix, 10)
		require.NoError(t, err)
		got, err := dst.Query(prefix, 10)
		require.NoError(t, err)
		assert.Equal(t, want, got, "prefix %q", prefix)
	}
}

func TestOpenErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Open(filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)

	_, err = Open(filepath.Join(dir, "words.json"))
	assert.Error(t, err)

	tiny := filepath.Join(dir, "dict_0001.bin")
	require.NoError(t, os.WriteFile(tiny, []byte{1}, 0o644))
	_, err = Open(tiny)
	assert.ErrorContains(t, err, "too small")
}
