package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"
)

// Current schema version - increment when the snapshot format changes.
const snapshotSchemaVersion uint16 = 1

// snapshot is the on-disk form of a cache.
type snapshot struct {
	Schema uint16 `msgpack:"schema"`

	// Key identifies the checker configuration the findings were produced
	// under. A snapshot with a different key is discarded on load.
	Key string `msgpack:"key"`

	Generation Generation `msgpack:"generation"`
	Entries    []Entry    `msgpack:"entries"`
}

// SaveFile writes the cache to path atomically.
func (c *Cache) SaveFile(path, key string) error {
	c.mu.RLock()
	snap := snapshot{
		Schema:     snapshotSchemaVersion,
		Key:        key,
		Generation: c.gen,
		Entries:    make([]Entry, 0, len(c.entries)),
	}
	for _, e := range c.entries {
		snap.Entries = append(snap.Entries, *e)
	}
	c.mu.RUnlock()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	f, err := os.CreateTemp(dir, "tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(f.Name())

	if err := msgpack.NewEncoder(f).Encode(&snap); err != nil {
		f.Close()
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), path)
}

// LoadFile reads a snapshot written by SaveFile. A missing file, an older
// schema or a different key yield an empty cache. Entries that fail
// Validate are skipped.
func LoadFile(path, key string) (*Cache, error) {
	c := New()
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return c, nil
		}
		return c, err
	}
	defer f.Close()

	var snap snapshot
	if err := msgpack.NewDecoder(f).Decode(&snap); err != nil {
		return c, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	if snap.Schema != snapshotSchemaVersion || snap.Key != key {
		return c, nil
	}

	c.gen = snap.Generation
	for i := range snap.Entries {
		e := snap.Entries[i]
		if e.ID == "" || e.Validate() != nil {
			continue
		}
		c.entries[e.ID] = &e
	}
	return c, nil
}
