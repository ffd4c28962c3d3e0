package doctree

import "fmt"

// Tag is the semantic context of a node. It selects the linearization policy.
type Tag uint8

const (
	TagProse Tag = iota
	TagHeading
	TagEmphasis
	TagRawOrCode
	TagMath
	TagComment
	TagReference
	TagMetadata
)

var tagNames = [...]string{
	TagProse:     "prose",
	TagHeading:   "heading",
	TagEmphasis:  "emphasis",
	TagRawOrCode: "raw",
	TagMath:      "math",
	TagComment:   "comment",
	TagReference: "reference",
	TagMetadata:  "metadata",
}

func (t Tag) String() string {
	if int(t) < len(tagNames) {
		return tagNames[t]
	}
	return fmt.Sprintf("tag(%d)", t)
}

func (t Tag) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *Tag) UnmarshalText(b []byte) error {
	v, ok := ParseTag(string(b))
	if !ok {
		return fmt.Errorf("unknown tag %q", b)
	}
	*t = v
	return nil
}

// ParseTag is the inverse of Tag.String.
func ParseTag(s string) (Tag, bool) {
	for i, name := range tagNames {
		if name == s {
			return Tag(i), true
		}
	}
	return 0, false
}

// Tags lists every tag in declaration order.
func Tags() []Tag {
	out := make([]Tag, len(tagNames))
	for i := range tagNames {
		out[i] = Tag(i)
	}
	return out
}

// Span is a half-open byte range [Start, End) into Source.Content.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (s Span) Len() int    { return s.End - s.Start }
func (s Span) Empty() bool { return s.End <= s.Start }

// Contains reports whether other lies entirely inside s.
func (s Span) Contains(other Span) bool {
	return other.Start >= s.Start && other.End <= s.End
}

// Cover returns the smallest span containing both s and other.
func (s Span) Cover(other Span) Span {
	if other.Start < s.Start {
		s.Start = other.Start
	}
	if other.End > s.End {
		s.End = other.End
	}
	return s
}

func (s Span) String() string {
	return fmt.Sprintf("%d-%d", s.Start, s.End)
}

// Node is one element of a parsed document.
//
// Leaves carry text through their Span. Containers (Children != nil) are
// unwrapped by the linearizer according to their Tag.
type Node struct {
	Tag      Tag
	Kind     string // parser-specific element name, e.g. "paragraph", "list_item"
	Span     Span
	Block    bool   // block-level: ends the current segment before and after
	Break    bool   // leaf spanning a line break; emitted as a single space
	Text     string // decoded leaf text when it differs from the source bytes
	Children []*Node
}

// Leaf reports whether n has no children.
func (n *Node) Leaf() bool { return len(n.Children) == 0 }

// Append adds c as the last child of n and returns c.
func (n *Node) Append(c *Node) *Node {
	n.Children = append(n.Children, c)
	return c
}

// Walk visits n and its descendants depth-first, in document order.
// Returning false from fn skips the node's children.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// Tree is the root of a parsed document. The core only reads it.
type Tree struct {
	Source *Source
	Root   *Node
}

// NewTree returns a tree with an empty document root spanning the whole source.
func NewTree(src *Source) *Tree {
	return &Tree{
		Source: src,
		Root: &Node{
			Tag:   TagProse,
			Kind:  "document",
			Span:  Span{Start: 0, End: len(src.Content)},
			Block: true,
		},
	}
}

// Text returns the checkable text of a leaf.
func (t *Tree) Text(n *Node) string {
	if n.Text != "" {
		return n.Text
	}
	return t.Source.Text(n.Span)
}
