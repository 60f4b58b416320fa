package server

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/bastiangx/autocomplete/pkg/config"
	"github.com/bastiangx/autocomplete/pkg/dictionary"
	"github.com/bastiangx/autocomplete/pkg/metrics"
	"github.com/bastiangx/autocomplete/pkg/suggest"
	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func init() {
	log.SetLevel(log.ErrorLevel)
}

func newCompleter(t *testing.T) *suggest.Completer {
	t.Helper()
	c := suggest.NewCompleter()
	require.NoError(t, c.Load([]suggest.Entry{
		{Term: "cat", Score: 5},
		{Term: "car", Score: 5},
		{Term: "cart", Score: 3},
		{Term: "dog", Score: 10},
	}).Err())
	return c
}

// exchange encodes requests into a stream, serves it and returns the decoder over the replies.
func exchange(t *testing.T, srv func(in, out *bytes.Buffer) *Server, requests ...any) *msgpack.Decoder {
	t.Helper()
	var in, out bytes.Buffer
	enc := msgpack.NewEncoder(&in)
	for _, req := range requests {
		require.NoError(t, enc.Encode(req))
	}
	require.NoError(t, srv(&in, &out).Start())
	return msgpack.NewDecoder(&out)
}

func serverFor(c suggest.ICompleter, cfg *config.Config) func(in, out *bytes.Buffer) *Server {
	return func(in, out *bytes.Buffer) *Server {
		return NewServerWithIO(c, cfg, "", in, out)
	}
}

func TestCompletionRequest(t *testing.T) {
	dec := exchange(t, serverFor(newCompleter(t), nil),
		CompletionRequest{ID: "req1", Prefix: "ca", Limit: 3},
		CompletionRequest{ID: "req2", Prefix: "z", Limit: 3},
	)

	var resp CompletionResponse
	require.NoError(t, dec.Decode(&resp))
	assert.Equal(t, "req1", resp.ID)
	assert.Equal(t, 3, resp.Count)
	assert.Equal(t, []CompletionSuggestion{
		{Word: "car", Rank: 1},
		{Word: "cat", Rank: 2},
		{Word: "cart", Rank: 3},
	}, resp.Suggestions)
	assert.GreaterOrEqual(t, resp.TimeTaken, int64(0))

	var empty CompletionResponse
	require.NoError(t, dec.Decode(&empty))
	assert.Equal(t, "req2", empty.ID)
	assert.Equal(t, 0, empty.Count)
	assert.Empty(t, empty.Suggestions)
}

func TestCompletionLimits(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.DefaultLimit = 2
	cfg.Server.MaxLimit = 3
	cfg.Server.MinPrefix = 1
	cfg.Server.MaxPrefix = 4

	dec := exchange(t, serverFor(newCompleter(t), cfg),
		map[string]any{"id": "default", "p": "ca"},
		CompletionRequest{ID: "short", Prefix: "", Limit: 50},
		CompletionRequest{ID: "long", Prefix: "carts", Limit: 1},
		CompletionRequest{ID: "neg", Prefix: "ca", Limit: -1},
		CompletionRequest{ID: "max", Prefix: "c", Limit: 50},
	)

	var resp CompletionResponse
	require.NoError(t, dec.Decode(&resp))
	assert.Equal(t, 2, resp.Count)

	var errResp CompletionError
	require.NoError(t, dec.Decode(&errResp))
	assert.Equal(t, "short", errResp.ID)
	assert.Equal(t, 400, errResp.Code)

	require.NoError(t, dec.Decode(&errResp))
	assert.Equal(t, "long", errResp.ID)
	assert.Equal(t, 400, errResp.Code)

	require.NoError(t, dec.Decode(&errResp))
	assert.Equal(t, "neg", errResp.ID)
	assert.Contains(t, errResp.Error, "must not be negative")

	require.NoError(t, dec.Decode(&resp))
	assert.Equal(t, "max", resp.ID)
	assert.Equal(t, 3, resp.Count)
}

func TestCompletionFilter(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.EnableFilter = true
	c := newCompleter(t)
	_, err := c.Upsert("123", 50)
	require.NoError(t, err)

	dec := exchange(t, serverFor(c, cfg),
		CompletionRequest{ID: "digits", Prefix: "12", Limit: 5},
		CompletionRequest{ID: "exact", Prefix: "car", Limit: 5},
	)

	var resp CompletionResponse
	require.NoError(t, dec.Decode(&resp))
	assert.Equal(t, 0, resp.Count)

	require.NoError(t, dec.Decode(&resp))
	require.Equal(t, 1, resp.Count, "the typed word itself is filtered")
	assert.Equal(t, "cart", resp.Suggestions[0].Word)
}

func TestManagementActions(t *testing.T) {
	c := newCompleter(t)
	m := metrics.New()
	snap := filepath.Join(t.TempDir(), "state.msgpack")
	cfg := config.DefaultConfig()
	cfg.Dict.SnapshotPath = snap

	dec := exchange(t, func(in, out *bytes.Buffer) *Server {
		s := NewServerWithIO(c, cfg, "", in, out)
		s.SetMetrics(m)
		return s
	},
		ManagementRequest{ID: "m1", Action: "upsert", Term: "cab", Score: 9},
		ManagementRequest{ID: "m2", Action: "remove", Term: "dog"},
		ManagementRequest{ID: "m3", Action: "remove", Term: "dog"},
		ManagementRequest{ID: "m4", Action: "upsert", Term: "", Score: 1},
		ManagementRequest{ID: "m5", Action: "stats"},
		ManagementRequest{ID: "m6", Action: "health"},
		ManagementRequest{ID: "m7", Action: "save"},
		CompletionRequest{ID: "q", Prefix: "ca", Limit: 1},
	)

	var resp ManagementResponse
	require.NoError(t, dec.Decode(&resp))
	assert.Equal(t, "ok", resp.Status)

	require.NoError(t, dec.Decode(&resp))
	assert.Equal(t, "ok", resp.Status)

	require.NoError(t, dec.Decode(&resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, 404, resp.Code)

	require.NoError(t, dec.Decode(&resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, 400, resp.Code)

	var stats ManagementResponse
	require.NoError(t, dec.Decode(&stats))
	assert.Equal(t, 4, stats.Stats["totalTerms"])

	var health ManagementResponse
	require.NoError(t, dec.Decode(&health))
	assert.Equal(t, "m6", health.ID)
	assert.Equal(t, "ok", health.Status)

	var save ManagementResponse
	require.NoError(t, dec.Decode(&save))
	assert.Equal(t, "ok", save.Status, save.Error)
	vocab, err := dictionary.Open(snap)
	require.NoError(t, err)
	assert.Len(t, vocab.Entries, 4)

	var q CompletionResponse
	require.NoError(t, dec.Decode(&q))
	require.Len(t, q.Suggestions, 1)
	assert.Equal(t, "cab", q.Suggestions[0].Word)
}

func TestDictionaryActions(t *testing.T) {
	dir := t.TempDir()
	entries := make([]suggest.Entry, 0, 6)
	for i, w := range []string{"alpha", "beta", "gamma", "delta", "omega", "zeta"} {
		entries = append(entries, suggest.Entry{Term: w, Score: float64(10 - i)})
	}
	_, err := dictionary.WriteChunkFiles(dir, entries, 2)
	require.NoError(t, err)

	c := suggest.NewCompleter()
	rl := dictionary.NewRuntimeLoader(dictionary.NewChunkLoader(dir, 0, c))
	require.NoError(t, rl.SetDictionarySize(1))

	two := 2
	dec := exchange(t, func(in, out *bytes.Buffer) *Server {
		s := NewServerWithIO(c, nil, "", in, out)
		s.SetRuntimeLoader(rl)
		return s
	},
		DictionaryRequest{ID: "d1", Action: "get_info"},
		DictionaryRequest{ID: "d2", Action: "set_size", ChunkCount: &two},
		DictionaryRequest{ID: "d3", Action: "get_options"},
		DictionaryRequest{ID: "d4", Action: "set_size"},
	)

	var resp DictionaryResponse
	require.NoError(t, dec.Decode(&resp))
	assert.Equal(t, 1, resp.CurrentChunks)
	assert.Equal(t, 3, resp.AvailableChunks)

	require.NoError(t, dec.Decode(&resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 2, resp.CurrentChunks)
	assert.Equal(t, 4, c.Len())

	var opts DictionaryResponse
	require.NoError(t, dec.Decode(&opts))
	require.Len(t, opts.Options, 3)
	assert.Equal(t, 6, opts.Options[2].WordCount)

	var missing DictionaryResponse
	require.NoError(t, dec.Decode(&missing))
	assert.Equal(t, "error", missing.Status)
}

func TestDictionaryActionsWithoutLoader(t *testing.T) {
	dec := exchange(t, serverFor(newCompleter(t), nil), DictionaryRequest{ID: "d", Action: "get_info"})
	var resp DictionaryResponse
	require.NoError(t, dec.Decode(&resp))
	assert.Equal(t, "error", resp.Status)
}

func TestConfigActions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, err := config.InitConfig(path)
	require.NoError(t, err)

	maxLimit := 2
	dec := exchange(t, func(in, out *bytes.Buffer) *Server {
		return NewServerWithIO(newCompleter(t), cfg, path, in, out)
	},
		ConfigRequest{ID: "c1", Action: "update_config", MaxLimit: &maxLimit},
		CompletionRequest{ID: "q", Prefix: "ca", Limit: 10},
		ConfigRequest{ID: "c2", Action: "get_config"},
	)

	var resp ConfigResponse
	require.NoError(t, dec.Decode(&resp))
	assert.Equal(t, "ok", resp.Status)
	require.NotNil(t, resp.Settings)
	assert.Equal(t, 2, resp.Settings.MaxLimit)

	var q CompletionResponse
	require.NoError(t, dec.Decode(&q))
	assert.Equal(t, 2, q.Count)

	require.NoError(t, dec.Decode(&resp))
	assert.Equal(t, 2, resp.Settings.MaxLimit)

	reloaded, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 2, reloaded.Server.MaxLimit)
}

func TestUnknownActionAndBadMessage(t *testing.T) {
	dec := exchange(t, serverFor(newCompleter(t), nil),
		map[string]any{"id": "x", "action": "explode"},
		42,
	)

	var resp CompletionError
	require.NoError(t, dec.Decode(&resp))
	assert.Equal(t, "x", resp.ID)
	assert.Equal(t, 400, resp.Code)
	assert.Contains(t, resp.Error, "unknown action")

	require.NoError(t, dec.Decode(&resp))
	assert.Equal(t, 400, resp.Code)
}
