package linearize

import (
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/dgallion1/prosecheck/internal/doctree"
	"github.com/dgallion1/prosecheck/internal/parser"
	"github.com/dgallion1/prosecheck/internal/posmap"
)

func mustParse(t *testing.T, name, input string) *doctree.Tree {
	t.Helper()
	tree, err := parser.Parse(name, []byte(input))
	if err != nil {
		t.Fatalf("parse %s: %v", name, err)
	}
	return tree
}

func linearizeMD(t *testing.T, input string) (*doctree.Tree, []Segment) {
	t.Helper()
	tree := mustParse(t, "doc.md", input)
	return tree, New(DefaultPolicy(), "").Linearize(tree)
}

func TestLinearize_HeadingAndBody(t *testing.T) {
	input := "# Title\nThe the cat sat.\n"
	tree, segs := linearizeMD(t, input)

	if len(segs) != 1 {
		t.Fatalf("expected 1 segment, got %d: %+v", len(segs), segs)
	}
	if got := strings.TrimSpace(segs[0].Text); got != "The the cat sat." {
		t.Fatalf("expected segment text %q, got %q", "The the cat sat.", got)
	}

	span, err := segs[0].Map.ResolveRange(4, 7)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	want := strings.Index(input, "The the") + 4
	if span.Start != want || span.End != want+3 {
		t.Errorf("expected source span %d-%d, got %s", want, want+3, span)
	}
	if got := tree.Source.Text(span); got != "the" {
		t.Errorf("expected source text %q, got %q", "the", got)
	}
}

func TestLinearize_EmptyDocument(t *testing.T) {
	_, segs := linearizeMD(t, "")
	if len(segs) != 0 {
		t.Errorf("expected 0 segments, got %d", len(segs))
	}
}

func TestLinearize_OnlyCodeBlock(t *testing.T) {
	_, segs := linearizeMD(t, "```go\nfmt.Println(\"the the\")\n```\n")
	if len(segs) != 0 {
		t.Errorf("expected 0 segments for a code-only document, got %d: %+v", len(segs), segs)
	}
}

func TestLinearize_HeadingSplitsParagraphs(t *testing.T) {
	_, segs := linearizeMD(t, "First paragraph ends here\n\n## Break\n\nsecond paragraph starts here.\n")
	if len(segs) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segs))
	}
	if strings.Contains(segs[0].Text, "second") {
		t.Errorf("segment 0 leaked text across the heading: %q", segs[0].Text)
	}
	if segs[0].Index != 0 || segs[1].Index != 1 {
		t.Errorf("expected sequential indexes, got %d and %d", segs[0].Index, segs[1].Index)
	}
}

func TestLinearize_ParagraphsAreSeparateSegments(t *testing.T) {
	_, segs := linearizeMD(t, "One paragraph.\n\nAnother paragraph.\n")
	if len(segs) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segs))
	}
}

func TestLinearize_InlineCodeLeavesGap(t *testing.T) {
	input := "Use `go test` to run it.\n"
	tree, segs := linearizeMD(t, input)
	if len(segs) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segs))
	}
	seg := segs[0]
	if seg.Text != "Use  to run it." {
		t.Fatalf("unexpected text %q", seg.Text)
	}
	gaps := seg.Map.Gaps()
	if len(gaps) != 1 {
		t.Fatalf("expected 1 gap, got %d", len(gaps))
	}
	if got := tree.Source.Text(gaps[0].Source); got != "`go test`" {
		t.Errorf("expected gap over the code span, got %q", got)
	}
	if gaps[0].Tag != doctree.TagRawOrCode {
		t.Errorf("expected raw tag on gap, got %v", gaps[0].Tag)
	}

	_, err := seg.Map.ResolveRange(2, 6)
	var unmapped *posmap.UnmappedOffsetError
	if !errors.As(err, &unmapped) {
		t.Errorf("expected UnmappedOffsetError across the gap, got %v", err)
	}
}

func TestLinearize_MathIsSkipped(t *testing.T) {
	_, segs := linearizeMD(t, "Energy $E=mc^2$ is conserved.\n")
	if len(segs) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segs))
	}
	if strings.Contains(segs[0].Text, "mc") {
		t.Errorf("math leaked into text: %q", segs[0].Text)
	}
	gaps := segs[0].Map.Gaps()
	if len(gaps) != 1 || gaps[0].Tag != doctree.TagMath {
		t.Errorf("expected one math gap, got %+v", gaps)
	}
}

func TestLinearize_ReferencePlaceholder(t *testing.T) {
	_, segs := linearizeMD(t, "See @fig1.\n")
	if len(segs) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segs))
	}
	seg := segs[0]
	if seg.Text != "See X." {
		t.Fatalf("expected placeholder substitution, got %q", seg.Text)
	}
	loc, err := seg.Map.Resolve(4)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if loc.Reportable {
		t.Error("placeholder must not be reportable")
	}
	if loc.Tag != doctree.TagReference {
		t.Errorf("expected reference tag, got %v", loc.Tag)
	}
}

func TestLinearize_EmphasisUnwrapped(t *testing.T) {
	_, segs := linearizeMD(t, "This is *very* **good** news.\n")
	if len(segs) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segs))
	}
	if segs[0].Text != "This is very good news." {
		t.Errorf("expected delimiters removed, got %q", segs[0].Text)
	}
	loc, err := segs[0].Map.Resolve(9)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if loc.Tag != doctree.TagEmphasis {
		t.Errorf("expected emphasis tag, got %v", loc.Tag)
	}
}

func TestLinearize_SoftBreakBecomesSpace(t *testing.T) {
	_, segs := linearizeMD(t, "one line\nnext line\n")
	if len(segs) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segs))
	}
	if segs[0].Text != "one line next line" {
		t.Errorf("unexpected text %q", segs[0].Text)
	}
}

func TestLinearize_FrontMatterSkipped(t *testing.T) {
	_, segs := linearizeMD(t, "---\ntitle: The the\n---\nBody text here.\n")
	if len(segs) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segs))
	}
	if strings.Contains(segs[0].Text, "title") {
		t.Errorf("front matter leaked: %q", segs[0].Text)
	}
}

func TestLinearize_HeadingVerbatimPolicy(t *testing.T) {
	policy, err := PolicyFromMap(map[string]string{"heading": "verbatim"}, "")
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	tree := mustParse(t, "doc.md", "# A title here\nBody text.\n")
	segs := New(policy, "").Linearize(tree)
	if len(segs) != 2 {
		t.Fatalf("expected heading and body segments, got %d", len(segs))
	}
	if segs[0].Text != "A title here" {
		t.Errorf("unexpected heading segment %q", segs[0].Text)
	}
}

func TestLinearize_WhitespaceOnlyDropped(t *testing.T) {
	tree := mustParse(t, "doc.html", "<p>   </p><p>Real text.</p>")
	segs := New(DefaultPolicy(), "").Linearize(tree)
	if len(segs) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segs))
	}
	if segs[0].Text != "Real text." {
		t.Errorf("unexpected text %q", segs[0].Text)
	}
}

func TestLinearize_IdempotentIDs(t *testing.T) {
	input := "# T\n\nAlpha beta.\n\n- item one\n- item two\n"
	tree := mustParse(t, "doc.md", input)
	l := New(DefaultPolicy(), "en-US")
	a := l.Linearize(tree)
	b := l.Linearize(tree)
	if len(a) != len(b) || len(a) == 0 {
		t.Fatalf("expected equal non-empty results, got %d and %d", len(a), len(b))
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			t.Errorf("segment %d: id changed between runs", i)
		}
	}

	other := New(DefaultPolicy(), "de-DE").Linearize(tree)
	if other[0].ID == a[0].ID {
		t.Error("expected salt to change segment ids")
	}
}

func TestLinearize_SameTextDifferentSyntaxSharesID(t *testing.T) {
	a := New(DefaultPolicy(), "").Linearize(mustParse(t, "doc.md", "Plain words here.\n"))
	b := New(DefaultPolicy(), "").Linearize(mustParse(t, "doc.md", "Plain *words* here.\n"))
	if len(a) != 1 || len(b) != 1 {
		t.Fatalf("expected one segment each, got %d and %d", len(a), len(b))
	}
	if a[0].ID != b[0].ID {
		t.Error("expected identical checkable text to share a cache id")
	}
}

const mixedDoc = `---
title: Sample
---
# Heading

Intro with *emphasis*, ` + "`code`" + `, $x^2$ and a [link](http://example.com).
Second line with @ref and <!-- note --> done.

> Quoted text
> continues here.

- first item
- second item

` + "```" + `
code block
` + "```" + `

Last paragraph.
`

func TestLinearize_MapInvariants(t *testing.T) {
	tree, segs := linearizeMD(t, mixedDoc)
	if len(segs) == 0 {
		t.Fatal("expected segments")
	}
	for _, seg := range segs {
		if err := seg.Map.Validate(len(seg.Text)); err != nil {
			t.Errorf("segment %d: %v", seg.Index, err)
		}
		for _, e := range seg.Map.Entries() {
			if !e.Reportable || e.Flat.Len() != e.Source.Len() || e.Flat.Empty() {
				continue
			}
			// Exact entries round-trip byte for byte.
			flat := seg.Text[e.Flat.Start:e.Flat.End]
			if src := tree.Source.Text(e.Source); src != flat {
				t.Errorf("segment %d: entry %s maps %q to %q", seg.Index, e.Flat, flat, src)
			}
		}
	}
}

func TestLinearize_SourceCoverage(t *testing.T) {
	tree, segs := linearizeMD(t, mixedDoc)

	var spans []doctree.Span
	for _, seg := range segs {
		for _, e := range seg.Map.Entries() {
			if !e.Source.Empty() {
				spans = append(spans, e.Source)
			}
		}
	}
	spans = append(spans, Uncovered(tree, segs)...)
	sort.Slice(spans, func(i, j int) bool { return spans[i].Start < spans[j].Start })

	pos := 0
	for _, s := range spans {
		if s.Start != pos {
			t.Fatalf("coverage broken at %d: next span %s", pos, s)
		}
		pos = s.End
	}
	if pos != tree.Source.Len() {
		t.Errorf("coverage ends at %d, source length %d", pos, tree.Source.Len())
	}
}

func TestPolicyFromMap_Errors(t *testing.T) {
	if _, err := PolicyFromMap(map[string]string{"bogus": "skip"}, ""); err == nil {
		t.Error("expected unknown tag error")
	}
	if _, err := PolicyFromMap(map[string]string{"prose": "shout"}, ""); err == nil {
		t.Error("expected unknown action error")
	}
}
