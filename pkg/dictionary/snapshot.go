package dictionary

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/bastiangx/autocomplete/pkg/suggest"
	"github.com/vmihailenco/msgpack/v5"
)

// SnapshotVersion is written into every snapshot and checked on read.
const SnapshotVersion = 1

type snapshot struct {
	Version int             `msgpack:"v"`
	Terms   []suggest.Entry `msgpack:"terms"`
}

// WriteSnapshot encodes entries as a msgpack snapshot.
func WriteSnapshot(w io.Writer, entries []suggest.Entry) error {
	if err := msgpack.NewEncoder(w).Encode(snapshot{Version: SnapshotVersion, Terms: entries}); err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	return nil
}

// ReadSnapshot decodes a snapshot written by WriteSnapshot.
func ReadSnapshot(r io.Reader) (*Vocabulary, error) {
	var snap snapshot
	if err := msgpack.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	if snap.Version != SnapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", snap.Version)
	}
	return &Vocabulary{Entries: snap.Terms}, nil
}

// SaveSnapshot writes a snapshot to path through a temporary file so a
// crash never leaves a truncated snapshot behind.
func SaveSnapshot(path string, entries []suggest.Entry) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".snapshot-*")
	if err != nil {
		return fmt.Errorf("creating snapshot temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteSnapshot(tmp, entries); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing snapshot temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing snapshot %s: %w", path, err)
	}
	return nil
}
