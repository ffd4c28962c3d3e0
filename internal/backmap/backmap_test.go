package backmap

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/prosecheck/internal/checker"
	"github.com/dgallion1/prosecheck/internal/doctree"
	"github.com/dgallion1/prosecheck/internal/linearize"
	"github.com/dgallion1/prosecheck/internal/parser"
	"github.com/dgallion1/prosecheck/internal/posmap"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func segmentsOf(t *testing.T, input string) (*doctree.Tree, []linearize.Segment) {
	t.Helper()
	tree, err := parser.Parse("doc.md", []byte(input))
	require.NoError(t, err)
	return tree, linearize.New(linearize.DefaultPolicy(), "").Linearize(tree)
}

func repeat(start, end int) checker.Finding {
	return checker.Finding{Start: start, End: end, RuleID: "ENGLISH_WORD_REPEAT_RULE", Category: "MISC", Message: "Possible typo: you repeated a word"}
}

func TestMap_ScenarioSecondThe(t *testing.T) {
	input := "# Title\nThe the cat sat.\n"
	tree, segs := segmentsOf(t, input)
	require.Len(t, segs, 1)

	diags := New(tree.Source, discard).Map(segs[0], []checker.Finding{repeat(4, 7)})
	require.Len(t, diags, 1)

	d := diags[0]
	body := strings.Index(input, "The the")
	assert.Equal(t, doctree.Span{Start: body + 4, End: body + 7}, d.Range)
	assert.Equal(t, "the", tree.Source.Text(d.Range))
	assert.Equal(t, 1, d.Start.Line)
	assert.Equal(t, 4, d.Start.Column)
	assert.Equal(t, SeverityWarning, d.Severity)
	assert.Equal(t, segs[0].ID, d.SegmentID)
}

func TestMap_NarrowsAcrossGap(t *testing.T) {
	input := "Run `make` twice please.\n"
	tree, segs := segmentsOf(t, input)
	require.Len(t, segs, 1)
	require.Equal(t, "Run  twice please.", segs[0].Text)

	// "Run  twice" spans the code gap at offset 4.
	diags := New(tree.Source, discard).Map(segs[0], []checker.Finding{repeat(0, 10)})
	require.Len(t, diags, 1)
	assert.Equal(t, "Run ", tree.Source.Text(diags[0].Range))
}

func TestMap_DropsPlaceholderFindings(t *testing.T) {
	tree, segs := segmentsOf(t, "See @fig1 for details.\n")
	require.Len(t, segs, 1)
	require.Equal(t, "See X for details.", segs[0].Text)

	diags := New(tree.Source, discard).Map(segs[0], []checker.Finding{
		repeat(4, 5),
		repeat(0, 6),
		repeat(6, 9),
	})
	require.Len(t, diags, 1)
	assert.Equal(t, "for", tree.Source.Text(diags[0].Range))
}

func TestMap_DropsInvalidOffsets(t *testing.T) {
	tree, segs := segmentsOf(t, "Short text.\n")
	require.Len(t, segs, 1)

	diags := New(tree.Source, discard).Map(segs[0], []checker.Finding{
		repeat(5, 50),
		repeat(-1, 2),
		repeat(3, 1),
	})
	assert.Empty(t, diags)
}

func TestMap_InsertionPointAtEnd(t *testing.T) {
	input := "No full stop\n"
	tree, segs := segmentsOf(t, input)
	require.Len(t, segs, 1)
	n := len(segs[0].Text)

	diags := New(tree.Source, discard).Map(segs[0], []checker.Finding{{Start: n, End: n, RuleID: "PUNCTUATION_PARAGRAPH_END", Message: "m"}})
	require.Len(t, diags, 1)
	assert.Equal(t, doctree.Span{Start: 12, End: 12}, diags[0].Range)
}

func TestMap_SubstitutedRangeIsNotExact(t *testing.T) {
	src := doctree.NewSource("doc", []byte("ab<entity>cd"))
	m := &posmap.Map{}
	m.Add(posmap.Entry{Flat: doctree.Span{Start: 0, End: 2}, Source: doctree.Span{Start: 0, End: 2}, Reportable: true})
	m.Add(posmap.Entry{Flat: doctree.Span{Start: 2, End: 3}, Source: doctree.Span{Start: 2, End: 10}, Reportable: true})
	m.Add(posmap.Entry{Flat: doctree.Span{Start: 3, End: 5}, Source: doctree.Span{Start: 10, End: 12}, Reportable: true})
	seg := linearize.Segment{ID: "s", Text: "ab cd", Map: m}

	diags := New(src, discard).Map(seg, []checker.Finding{repeat(1, 4)})
	require.Len(t, diags, 1)
	assert.Equal(t, doctree.Span{Start: 1, End: 11}, diags[0].Range)
}

func TestSortAndDedup(t *testing.T) {
	diags := []Diagnostic{
		{Range: doctree.Span{Start: 20, End: 25}, RuleID: "B", Message: "late"},
		{Range: doctree.Span{Start: 5, End: 9}, RuleID: "A", Message: "first"},
		{Range: doctree.Span{Start: 5, End: 9}, RuleID: "A", Message: "second"},
		{Range: doctree.Span{Start: 5, End: 9}, RuleID: "C", Message: "other rule"},
		{Range: doctree.Span{Start: 0, End: 3}, RuleID: "A", Message: "earliest"},
	}
	out := Finalize(diags)
	require.Len(t, out, 4)
	assert.Equal(t, "earliest", out[0].Message)
	assert.Equal(t, "first", out[1].Message)
	assert.Equal(t, "other rule", out[2].Message)
	assert.Equal(t, "late", out[3].Message)
}

func TestFromSyntaxError(t *testing.T) {
	src := doctree.NewSource("doc.md", []byte("---\ntitle: [\n---\nbody\n"))
	d := FromSyntaxError(src, &parser.SyntaxError{File: "doc.md", Offset: 11, Line: 1, Column: 7, Message: "bad yaml"})
	assert.Equal(t, RuleSyntaxError, d.RuleID)
	assert.Equal(t, SeverityError, d.Severity)
	assert.Equal(t, 1, d.Start.Line)
	assert.Equal(t, "bad yaml", d.Message)
}

func TestSeverityFor(t *testing.T) {
	assert.Equal(t, SeverityError, severityFor("TYPOS"))
	assert.Equal(t, SeverityInfo, severityFor("STYLE"))
	assert.Equal(t, SeverityWarning, severityFor("MISC"))
}
