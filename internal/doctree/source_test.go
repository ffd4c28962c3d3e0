package doctree

import "testing"

func TestSource_Position(t *testing.T) {
	src := NewSource("doc.md", []byte("ab\nÖÖx\n\U0001F600y"))

	tests := []struct {
		offset int
		want   Position
	}{
		{0, Position{Offset: 0, Line: 0, Column: 0, Character: 0}},
		{2, Position{Offset: 2, Line: 0, Column: 2, Character: 2}},
		{3, Position{Offset: 3, Line: 1, Column: 0, Character: 0}},
		{7, Position{Offset: 7, Line: 1, Column: 2, Character: 2}},
		{13, Position{Offset: 13, Line: 2, Column: 1, Character: 2}},
		{100, Position{Offset: 14, Line: 2, Column: 2, Character: 3}},
	}
	for _, tt := range tests {
		got := src.Position(tt.offset)
		if got != tt.want {
			t.Errorf("Position(%d): expected %+v, got %+v", tt.offset, tt.want, got)
		}
	}
}

func TestSource_Line(t *testing.T) {
	src := NewSource("doc.md", []byte("first\r\nsecond\n"))
	if got := src.Line(0); got != "first" {
		t.Errorf("expected %q, got %q", "first", got)
	}
	if got := src.Line(1); got != "second" {
		t.Errorf("expected %q, got %q", "second", got)
	}
	if got := src.Line(2); got != "" {
		t.Errorf("expected empty trailing line, got %q", got)
	}
	if got := src.Line(9); got != "" {
		t.Errorf("expected empty for out-of-range line, got %q", got)
	}
}

func TestSource_OffsetAtRoundTrip(t *testing.T) {
	src := NewSource("doc.md", []byte("héllo\n\U0001F600 wörld\n"))
	for off := 0; off <= src.Len(); off++ {
		// Only rune starts round-trip.
		if off < src.Len() && src.Content[off]&0xC0 == 0x80 {
			continue
		}
		p := src.Position(off)
		if got := src.OffsetAt(p.Line, p.Character); got != off {
			t.Errorf("offset %d: position %+v maps back to %d", off, p, got)
		}
	}
}

func TestTag_StringParse(t *testing.T) {
	for _, tag := range Tags() {
		got, ok := ParseTag(tag.String())
		if !ok || got != tag {
			t.Errorf("ParseTag(%q): expected %v, got %v (ok=%v)", tag.String(), tag, got, ok)
		}
	}
	if _, ok := ParseTag("nope"); ok {
		t.Error("expected unknown tag to fail")
	}
}
