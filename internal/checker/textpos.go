package checker

import (
	"unicode/utf16"
	"unicode/utf8"
)

// Unit is the counting unit a checker reports offsets in.
type Unit int

const (
	UnitUTF16 Unit = iota // Java string indexes, as LanguageTool reports them
	UnitRune
	UnitByte
)

// Cursor converts offsets counted in some unit into byte offsets of text.
// It remembers its last position, so converting a run of increasing offsets
// walks the text once.
type Cursor struct {
	text  string
	unit  Unit
	bytes int
	units int
}

func NewCursor(text string, unit Unit) *Cursor {
	return &Cursor{text: text, unit: unit}
}

func (c *Cursor) width(r rune) int {
	switch c.unit {
	case UnitRune:
		return 1
	case UnitByte:
		return utf8.RuneLen(r)
	default:
		if utf16.IsSurrogate(r) || r >= 0x10000 {
			return 2
		}
		return 1
	}
}

// ByteOffset returns the byte offset of the unit index n. It reports false
// when n lies past the end of the text or inside a multi-unit character.
// With stopAtNewline the walk halts at a line break and that position is
// returned instead.
func (c *Cursor) ByteOffset(n int, stopAtNewline bool) (int, bool) {
	for c.units < n && c.bytes < len(c.text) {
		r, size := utf8.DecodeRuneInString(c.text[c.bytes:])
		if stopAtNewline && (r == '\n' || r == '\r') {
			return c.bytes, true
		}
		w := c.width(r)
		if c.units+w > n {
			return 0, false
		}
		c.bytes += size
		c.units += w
	}
	for c.units > n && c.bytes > 0 {
		r, size := utf8.DecodeLastRuneInString(c.text[:c.bytes])
		if stopAtNewline && (r == '\n' || r == '\r') {
			return c.bytes, true
		}
		c.bytes -= size
		c.units -= c.width(r)
	}
	if c.units != n {
		return 0, false
	}
	return c.bytes, true
}

// ToBytes converts a start/length pair in units into a byte range.
func (c *Cursor) ToBytes(offset, length int) (start, end int, ok bool) {
	start, ok = c.ByteOffset(offset, false)
	if !ok {
		return 0, 0, false
	}
	end, ok = c.ByteOffset(offset+length, false)
	if !ok {
		return 0, 0, false
	}
	return start, end, true
}
