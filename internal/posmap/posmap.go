// Package posmap relates offsets in a linearized segment back to spans of the
// original document.
//
// A Map is an ordered list of entries. Entries with a non-empty Flat range
// cover the segment text exactly once, in order. Entries with an empty Flat
// range are gaps: source content that was skipped at that flat offset.
package posmap

import (
	"fmt"
	"sort"

	"github.com/dgallion1/prosecheck/internal/doctree"
)

// Entry maps a range of segment text to the source span it came from.
// When Flat and Source have the same length the mapping is byte-exact;
// otherwise every offset in Flat resolves to the whole Source span.
type Entry struct {
	Flat       doctree.Span
	Source     doctree.Span
	Tag        doctree.Tag
	Reportable bool
}

// Gap reports whether e records skipped content.
func (e Entry) Gap() bool { return e.Flat.Empty() }

func (e Entry) exact() bool { return e.Flat.Len() == e.Source.Len() }

// sourceAt returns the source span of the single flat offset off.
func (e Entry) sourceAt(off int) doctree.Span {
	if e.exact() {
		s := e.Source.Start + off - e.Flat.Start
		return doctree.Span{Start: s, End: s + 1}
	}
	return e.Source
}

// Location is the result of resolving one flat offset.
type Location struct {
	Source     doctree.Span
	Tag        doctree.Tag
	Reportable bool
}

// UnmappedOffsetError is returned when an offset has no entry or a range
// crosses a gap.
type UnmappedOffsetError struct {
	Offset int
}

func (e *UnmappedOffsetError) Error() string {
	return fmt.Sprintf("flattened offset %d is not mapped", e.Offset)
}

// Map is the position map of one segment.
type Map struct {
	entries []Entry
	length  int
}

// Add appends an entry. Entries must be added in flat order.
func (m *Map) Add(e Entry) {
	m.entries = append(m.entries, e)
	if e.Flat.End > m.length {
		m.length = e.Flat.End
	}
}

// Entries returns the entries in flat order. The slice must not be modified.
func (m *Map) Entries() []Entry { return m.entries }

// Len is the length of the mapped flat text.
func (m *Map) Len() int { return m.length }

// Gaps returns the gap entries.
func (m *Map) Gaps() []Entry {
	var out []Entry
	for _, e := range m.entries {
		if e.Gap() {
			out = append(out, e)
		}
	}
	return out
}

// find returns the index of the mapped entry containing off, or -1.
func (m *Map) find(off int) int {
	i := sort.Search(len(m.entries), func(i int) bool {
		return m.entries[i].Flat.End > off
	})
	if i < len(m.entries) && !m.entries[i].Gap() && m.entries[i].Flat.Start <= off {
		return i
	}
	return -1
}

// Resolve maps a single flat offset to its source location.
func (m *Map) Resolve(off int) (Location, error) {
	i := m.find(off)
	if i < 0 {
		return Location{}, &UnmappedOffsetError{Offset: off}
	}
	e := m.entries[i]
	return Location{Source: e.sourceAt(off), Tag: e.Tag, Reportable: e.Reportable}, nil
}

// ResolveRange returns the smallest source span covering every offset in
// [start, end). It fails if any offset is unmapped or the range crosses a gap.
func (m *Map) ResolveRange(start, end int) (doctree.Span, error) {
	i := m.find(start)
	if i < 0 {
		return doctree.Span{}, &UnmappedOffsetError{Offset: start}
	}
	if end <= start {
		s := m.entries[i].sourceAt(start)
		return doctree.Span{Start: s.Start, End: s.Start}, nil
	}

	var out doctree.Span
	first := true
	pos := start
	for ; i < len(m.entries) && pos < end; i++ {
		e := m.entries[i]
		if e.Gap() {
			if e.Flat.Start > start && e.Flat.Start < end {
				return doctree.Span{}, &UnmappedOffsetError{Offset: e.Flat.Start}
			}
			continue
		}
		if e.Flat.Start > pos {
			return doctree.Span{}, &UnmappedOffsetError{Offset: pos}
		}
		last := min(end, e.Flat.End) - 1
		lo, hi := e.sourceAt(pos), e.sourceAt(last)
		piece := doctree.Span{Start: lo.Start, End: hi.End}
		if first {
			out, first = piece, false
		} else {
			out = out.Cover(piece)
		}
		pos = last + 1
	}
	if pos < end {
		return doctree.Span{}, &UnmappedOffsetError{Offset: pos}
	}
	return out, nil
}

// Contiguous narrows [start, end) to the longest sub-range beginning at start
// that crosses no gap and stays inside the mapped text.
func (m *Map) Contiguous(start, end int) (int, int, bool) {
	if m.find(start) < 0 {
		return 0, 0, false
	}
	if end > m.length {
		end = m.length
	}
	for _, e := range m.entries {
		if e.Gap() && e.Flat.Start > start && e.Flat.Start < end {
			end = e.Flat.Start
			break
		}
	}
	return start, end, end > start
}

// Reportable reports whether no entry overlapping [start, end) is marked
// non-reportable.
func (m *Map) Reportable(start, end int) bool {
	if end <= start {
		end = start + 1
	}
	for _, e := range m.entries {
		if e.Gap() || e.Flat.End <= start {
			continue
		}
		if e.Flat.Start >= end {
			break
		}
		if !e.Reportable {
			return false
		}
	}
	return true
}

// Validate checks the map invariants against a text of length n: mapped
// entries are sorted, non-overlapping and cover [0, n) exactly once.
func (m *Map) Validate(n int) error {
	pos := 0
	for i, e := range m.entries {
		if e.Flat.End < e.Flat.Start {
			return fmt.Errorf("entry %d: inverted flat range %s", i, e.Flat)
		}
		if e.Gap() {
			if e.Flat.Start != pos {
				return fmt.Errorf("entry %d: gap at %d, expected %d", i, e.Flat.Start, pos)
			}
			continue
		}
		if e.Flat.Start != pos {
			return fmt.Errorf("entry %d: starts at %d, expected %d", i, e.Flat.Start, pos)
		}
		pos = e.Flat.End
	}
	if pos != n {
		return fmt.Errorf("entries cover %d bytes of %d", pos, n)
	}
	return nil
}
