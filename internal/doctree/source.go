package doctree

import (
	"sort"
	"unicode/utf8"
)

// Source is the original document text with a line index.
type Source struct {
	Name    string
	Content []byte
	lines   []int // byte offset of each line start
}

// Position is a resolved location in a Source. Line and Column are 0-based;
// Column counts runes and Character counts UTF-16 code units (editor protocol).
type Position struct {
	Offset    int `json:"offset"`
	Line      int `json:"line"`
	Column    int `json:"column"`
	Character int `json:"character"`
}

func NewSource(name string, content []byte) *Source {
	s := &Source{Name: name, Content: content}
	s.lines = buildLineIndex(content)
	return s
}

func buildLineIndex(content []byte) []int {
	lines := []int{0}
	for i, b := range content {
		if b == '\n' {
			lines = append(lines, i+1)
		}
	}
	return lines
}

// Len returns the content length in bytes.
func (s *Source) Len() int { return len(s.Content) }

// LineCount returns the number of lines, counting a trailing empty line.
func (s *Source) LineCount() int { return len(s.lines) }

// Text returns the content covered by span, clamped to the source bounds.
func (s *Source) Text(span Span) string {
	span = s.clamp(span)
	return string(s.Content[span.Start:span.End])
}

func (s *Source) clamp(span Span) Span {
	if span.Start < 0 {
		span.Start = 0
	}
	if span.End > len(s.Content) {
		span.End = len(s.Content)
	}
	if span.End < span.Start {
		span.End = span.Start
	}
	return span
}

// LineOf returns the 0-based line containing offset.
func (s *Source) LineOf(offset int) int {
	if offset <= 0 {
		return 0
	}
	// First line start strictly greater than offset, minus one.
	return sort.SearchInts(s.lines, offset+1) - 1
}

// Position resolves a byte offset. Offsets past the end resolve to the end.
func (s *Source) Position(offset int) Position {
	if offset < 0 {
		offset = 0
	}
	if offset > len(s.Content) {
		offset = len(s.Content)
	}
	line := s.LineOf(offset)
	start := s.lines[line]
	col, units := 0, 0
	for i := start; i < offset; {
		r, size := utf8.DecodeRune(s.Content[i:offset])
		col++
		if r > 0xFFFF {
			units += 2
		} else {
			units++
		}
		i += size
	}
	return Position{Offset: offset, Line: line, Column: col, Character: units}
}

// Line returns the text of the 0-based line without its terminator.
func (s *Source) Line(n int) string {
	if n < 0 || n >= len(s.lines) {
		return ""
	}
	start := s.lines[n]
	end := len(s.Content)
	if n+1 < len(s.lines) {
		end = s.lines[n+1] - 1
	}
	if end > start && s.Content[end-1] == '\r' {
		end--
	}
	if end < start {
		end = start
	}
	return string(s.Content[start:end])
}

// OffsetAt converts a 0-based line and UTF-16 character into a byte offset,
// clamping to the end of the line.
func (s *Source) OffsetAt(line, character int) int {
	if line < 0 {
		return 0
	}
	if line >= len(s.lines) {
		return len(s.Content)
	}
	off := s.lines[line]
	end := len(s.Content)
	if line+1 < len(s.lines) {
		end = s.lines[line+1] - 1
	}
	units := 0
	for off < end && units < character {
		r, size := utf8.DecodeRune(s.Content[off:end])
		need := 1
		if r > 0xFFFF {
			need = 2
		}
		if units+need > character {
			break
		}
		units += need
		off += size
	}
	return off
}
