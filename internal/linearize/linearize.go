// Package linearize flattens a document tree into checkable text segments,
// each carrying a position map back to the source.
package linearize

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"

	"github.com/dgallion1/prosecheck/internal/doctree"
	"github.com/dgallion1/prosecheck/internal/posmap"
)

// Segment is a maximal run of prose, in document order.
type Segment struct {
	ID      string // content hash of text + structural context
	Index   int    // position in the linearization
	Text    string
	Context string // block path, e.g. "document/list/list_item/paragraph"
	Map     *posmap.Map
}

// Span is the source range covered by the segment's entries, gaps included.
func (s *Segment) Span() doctree.Span {
	var out doctree.Span
	for i, e := range s.Map.Entries() {
		if i == 0 {
			out = e.Source
			continue
		}
		out = out.Cover(e.Source)
	}
	return out
}

// Linearizer turns trees into segments. It holds no per-call state and is
// safe for concurrent use.
type Linearizer struct {
	policy Policy
	salt   string
}

// New returns a linearizer. salt is mixed into every segment ID; callers
// pass anything else that invalidates prior results (checker locale, rules).
func New(policy Policy, salt string) *Linearizer {
	return &Linearizer{policy: policy, salt: salt}
}

// Policy returns the policy in use.
func (l *Linearizer) Policy() Policy { return l.policy }

// Linearize walks tree and returns its segments. An empty document yields
// no segments.
func (l *Linearizer) Linearize(tree *doctree.Tree) []Segment {
	w := &walker{
		tree:   tree,
		policy: l.policy,
		keyFP:  l.policy.Fingerprint() + "\x00" + l.salt,
		m:      &posmap.Map{},
	}
	if tree == nil || tree.Root == nil {
		return nil
	}
	w.walk(tree.Root)
	w.flush()
	return w.segs
}

type walker struct {
	tree   *doctree.Tree
	policy Policy
	keyFP  string

	segs []Segment
	path []string      // enclosing block kinds
	tags []doctree.Tag // enclosing non-prose tags

	buf        strings.Builder
	m          *posmap.Map
	context    string
	reportable bool // segment holds reportable non-space text
}

func (w *walker) walk(n *doctree.Node) {
	if n.Leaf() && n.Span.Empty() {
		if n.Block {
			w.flush()
		}
		return
	}
	if n.Block {
		w.flush()
		w.path = append(w.path, n.Kind)
		defer func() {
			w.flush()
			w.path = w.path[:len(w.path)-1]
		}()
	}

	switch w.policy.Action(n.Tag) {
	case Skip:
		w.gap(n)
	case Substitute:
		w.substitute(n)
	default:
		if n.Leaf() {
			w.emit(n)
			return
		}
		if n.Tag != doctree.TagProse {
			w.tags = append(w.tags, n.Tag)
			defer func() { w.tags = w.tags[:len(w.tags)-1] }()
		}
		for _, c := range n.Children {
			w.walk(c)
		}
	}
}

func (w *walker) open() {
	if w.buf.Len() == 0 && len(w.m.Entries()) == 0 {
		w.context = strings.Join(w.path, "/")
	}
}

func (w *walker) tag(n *doctree.Node) doctree.Tag {
	if len(w.tags) > 0 {
		return w.tags[len(w.tags)-1]
	}
	return n.Tag
}

func (w *walker) emit(n *doctree.Node) {
	text := " "
	if !n.Break {
		text = w.tree.Text(n)
	}
	if text == "" {
		return
	}
	w.open()
	start := w.buf.Len()
	w.buf.WriteString(text)
	w.m.Add(posmap.Entry{
		Flat:       doctree.Span{Start: start, End: w.buf.Len()},
		Source:     n.Span,
		Tag:        w.tag(n),
		Reportable: true,
	})
	if strings.TrimSpace(text) != "" {
		w.reportable = true
	}
}

func (w *walker) gap(n *doctree.Node) {
	w.open()
	at := w.buf.Len()
	w.m.Add(posmap.Entry{
		Flat:   doctree.Span{Start: at, End: at},
		Source: n.Span,
		Tag:    n.Tag,
	})
}

func (w *walker) substitute(n *doctree.Node) {
	if w.policy.Placeholder == "" {
		w.gap(n)
		return
	}
	w.open()
	start := w.buf.Len()
	w.buf.WriteString(w.policy.Placeholder)
	w.m.Add(posmap.Entry{
		Flat:   doctree.Span{Start: start, End: w.buf.Len()},
		Source: n.Span,
		Tag:    n.Tag,
	})
}

// flush closes the current segment. Segments without reportable text are
// dropped: checking them costs a round trip and can't produce a diagnostic.
func (w *walker) flush() {
	if w.buf.Len() == 0 && len(w.m.Entries()) == 0 {
		return
	}
	if w.reportable {
		text := w.buf.String()
		w.segs = append(w.segs, Segment{
			ID:      SegmentID(w.keyFP, w.context, text),
			Index:   len(w.segs),
			Text:    text,
			Context: w.context,
			Map:     w.m,
		})
	}
	w.buf.Reset()
	w.m = &posmap.Map{}
	w.context = ""
	w.reportable = false
}

// SegmentID hashes everything that determines a segment's check result.
func SegmentID(fingerprint, context, text string) string {
	h := sha256.New()
	h.Write([]byte(fingerprint))
	h.Write([]byte{0})
	h.Write([]byte(context))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Uncovered returns the source ranges not referenced by any entry of segs,
// merged and in order. Together with the entries they tile [0, len(source)).
func Uncovered(tree *doctree.Tree, segs []Segment) []doctree.Span {
	var spans []doctree.Span
	for _, s := range segs {
		for _, e := range s.Map.Entries() {
			if !e.Source.Empty() {
				spans = append(spans, e.Source)
			}
		}
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].Start < spans[j].Start })

	var out []doctree.Span
	pos := 0
	for _, s := range spans {
		if s.Start > pos {
			out = append(out, doctree.Span{Start: pos, End: s.Start})
		}
		if s.End > pos {
			pos = s.End
		}
	}
	if n := tree.Source.Len(); pos < n {
		out = append(out, doctree.Span{Start: pos, End: n})
	}
	return out
}
