// Package cache keeps checker findings per segment ID across check cycles.
//
// Entries are keyed by content hash only. A cycle calls Begin to start a new
// generation, Diff to split its segments into hits and misses, Commit for
// every checked segment and Prune once the cycle has settled. Commits and
// prunes from a superseded generation are ignored.
package cache

import (
	"fmt"
	"sync"
	"time"

	"github.com/dgallion1/prosecheck/internal/checker"
	"github.com/dgallion1/prosecheck/internal/linearize"
)

// Generation numbers check cycles. Zero means no cycle has started.
type Generation uint64

// Entry is the cached result for one segment.
type Entry struct {
	ID         string            `msgpack:"id"`
	Text       string            `msgpack:"text"`
	Findings   []checker.Finding `msgpack:"findings"`
	Generation Generation        `msgpack:"generation"`
	UpdatedAt  time.Time         `msgpack:"updated_at"`
}

// CorruptionError describes an entry that cannot be trusted.
type CorruptionError struct {
	ID     string
	Reason string
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("cache entry %.12s corrupt: %s", e.ID, e.Reason)
}

// Validate checks that every finding lies inside the stored text.
func (e *Entry) Validate() error {
	for i, f := range e.Findings {
		if f.Start < 0 || f.End < f.Start || f.End > len(e.Text) {
			return &CorruptionError{ID: e.ID, Reason: fmt.Sprintf("finding %d range %d-%d outside text of length %d", i, f.Start, f.End, len(e.Text))}
		}
	}
	return nil
}

// Cache is safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	gen     Generation
}

func New() *Cache {
	return &Cache{entries: make(map[string]*Entry)}
}

// Begin starts a new generation and returns it. Work tagged with an older
// generation can no longer commit.
func (c *Cache) Begin() Generation {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	return c.gen
}

// Current returns the latest generation handed out by Begin.
func (c *Cache) Current() Generation {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gen
}

// Diff splits segs into segments that need checking and the cached findings
// of the rest. A segment ID appearing more than once is returned once. Corrupt
// entries count as misses and are evicted.
func (c *Cache) Diff(segs []linearize.Segment) (toCheck []linearize.Segment, cached map[string][]checker.Finding) {
	cached = make(map[string][]checker.Finding)
	seen := make(map[string]bool, len(segs))
	var corrupt map[string]*Entry

	c.mu.RLock()
	for _, seg := range segs {
		if seen[seg.ID] {
			continue
		}
		seen[seg.ID] = true

		e, ok := c.entries[seg.ID]
		if ok && e.Text == seg.Text && e.Validate() == nil {
			cached[seg.ID] = e.Findings
			continue
		}
		if ok {
			if corrupt == nil {
				corrupt = make(map[string]*Entry)
			}
			corrupt[seg.ID] = e
		}
		toCheck = append(toCheck, seg)
	}
	c.mu.RUnlock()

	c.evict(corrupt)
	return toCheck, cached
}

// evict deletes the given entries unless they were replaced since they were
// read.
func (c *Cache) evict(stale map[string]*Entry) {
	if len(stale) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, e := range stale {
		if c.entries[id] == e {
			delete(c.entries, id)
		}
	}
}

// Lookup returns the entry for id.
func (c *Cache) Lookup(id string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[id]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Commit stores findings for seg under generation gen. It reports false,
// storing nothing, when gen has been superseded.
func (c *Cache) Commit(gen Generation, seg linearize.Segment, findings []checker.Finding) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return false
	}
	stored := make([]checker.Finding, len(findings))
	copy(stored, findings)
	c.entries[seg.ID] = &Entry{
		ID:         seg.ID,
		Text:       seg.Text,
		Findings:   stored,
		Generation: gen,
		UpdatedAt:  time.Now(),
	}
	return true
}

// Touch marks a cache hit as live in gen without changing its findings.
func (c *Cache) Touch(gen Generation, id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	if gen != c.gen || !ok {
		return false
	}
	e.Generation = gen
	e.UpdatedAt = time.Now()
	return true
}

// Prune drops every entry whose ID is not in live. It is a no-op for a
// superseded generation and returns the number of entries removed.
func (c *Cache) Prune(gen Generation, live map[string]bool) int {
	return c.PruneStale(gen, live, gen+1)
}

// PruneStale drops entries that are not in live and were last committed or
// touched before generation since. It is a no-op for a superseded
// generation and returns the number of entries removed.
func (c *Cache) PruneStale(gen Generation, live map[string]bool, since Generation) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return 0
	}
	removed := 0
	for id, e := range c.entries {
		if !live[id] && e.Generation < since {
			delete(c.entries, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
