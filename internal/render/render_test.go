package render

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/dgallion1/prosecheck/internal/backmap"
	"github.com/dgallion1/prosecheck/internal/doctree"
)

func diagAt(src *doctree.Source, start, end int, rule string, sev backmap.Severity) backmap.Diagnostic {
	return backmap.Diagnostic{
		Range:    doctree.Span{Start: start, End: end},
		Start:    src.Position(start),
		End:      src.Position(end),
		RuleID:   rule,
		Severity: sev,
		Message:  "Possible typo: you repeated a word",
	}
}

func TestPrettyUnderline(t *testing.T) {
	src := doctree.NewSource("README.md", []byte("# Title\nThe the cat sat.\n"))
	d := diagAt(src, 12, 15, "ENGLISH_WORD_REPEAT_RULE", backmap.SeverityError)
	d.Replacements = []string{"the"}

	var buf bytes.Buffer
	Pretty(&buf, src, []backmap.Diagnostic{d}, PrettyOpts{ShowReplacements: true})
	out := buf.String()

	if !strings.Contains(out, "README.md:2:5: ERROR ENGLISH_WORD_REPEAT_RULE: Possible typo") {
		t.Errorf("missing header, got:\n%s", out)
	}
	lines := strings.Split(out, "\n")
	var src2, caret string
	for i, l := range lines {
		if strings.HasSuffix(l, "The the cat sat.") {
			src2 = l
			caret = lines[i+1]
		}
	}
	if src2 == "" {
		t.Fatalf("source line not printed:\n%s", out)
	}
	col := strings.Index(src2, "The the") + 4
	if strings.Index(caret, "^~~") != col {
		t.Errorf("caret at %d, want %d:\n%s\n%s", strings.Index(caret, "^"), col, src2, caret)
	}
	if !strings.Contains(out, "suggestion: the") {
		t.Errorf("missing suggestion:\n%s", out)
	}
}

func TestPrettyWideRunes(t *testing.T) {
	src := doctree.NewSource("wide.txt", []byte("日本 teh end"))
	start := strings.Index(string(src.Content), "teh")
	d := diagAt(src, start, start+3, "MORFOLOGIK_RULE_EN_US", backmap.SeverityError)

	var buf bytes.Buffer
	Pretty(&buf, src, []backmap.Diagnostic{d}, PrettyOpts{})
	lines := strings.Split(buf.String(), "\n")
	if len(lines) < 3 {
		t.Fatalf("unexpected output:\n%s", buf.String())
	}
	// Two double-width runes and a space occupy five columns.
	gutterWidth := strings.Index(lines[1], "日")
	if got := strings.Index(lines[2], "^"); got != gutterWidth+5 {
		t.Errorf("caret at %d, want %d:\n%s", got, gutterWidth+5, buf.String())
	}
}

func TestPrettyContextLines(t *testing.T) {
	src := doctree.NewSource("a.txt", []byte("first\nsecond\nThe the\n"))
	d := diagAt(src, 17, 20, "R", backmap.SeverityWarning)

	var buf bytes.Buffer
	Pretty(&buf, src, []backmap.Diagnostic{d}, PrettyOpts{Context: 1})
	out := buf.String()
	if !strings.Contains(out, "second") || strings.Contains(out, "first") {
		t.Errorf("expected exactly one context line:\n%s", out)
	}
	if !strings.Contains(out, "WARNING") {
		t.Errorf("missing severity:\n%s", out)
	}
}

func TestPrettyZeroWidth(t *testing.T) {
	src := doctree.NewSource("a.txt", []byte("end"))
	d := diagAt(src, 3, 3, "PUNCT", backmap.SeverityInfo)

	var buf bytes.Buffer
	Pretty(&buf, src, []backmap.Diagnostic{d}, PrettyOpts{})
	if !strings.Contains(buf.String(), "   ^") {
		t.Errorf("expected caret after the last rune:\n%s", buf.String())
	}
}

func TestPrettyNoColorCodes(t *testing.T) {
	src := doctree.NewSource("a.txt", []byte("The the"))
	var buf bytes.Buffer
	Pretty(&buf, src, []backmap.Diagnostic{diagAt(src, 4, 7, "R", backmap.SeverityError)}, PrettyOpts{Color: false})
	if strings.Contains(buf.String(), "\x1b[") {
		t.Errorf("unexpected escape codes:\n%q", buf.String())
	}

	buf.Reset()
	Pretty(&buf, src, []backmap.Diagnostic{diagAt(src, 4, 7, "R", backmap.SeverityError)}, PrettyOpts{Color: true})
	if !strings.Contains(buf.String(), "\x1b[") {
		t.Errorf("expected escape codes:\n%q", buf.String())
	}
}

func TestClip(t *testing.T) {
	if got := clip("short", 10); got != "short" {
		t.Errorf("clip changed short line: %q", got)
	}
	if got := clip("a rather long line", 10); got != "a rathe..." {
		t.Errorf("clip = %q", got)
	}
}

func TestSummary(t *testing.T) {
	src := doctree.NewSource("a.txt", []byte("The the"))
	var buf bytes.Buffer
	Summary(&buf, nil, 2, false)
	if buf.String() != "no problems found in 2 files\n" {
		t.Errorf("summary = %q", buf.String())
	}

	buf.Reset()
	Summary(&buf, []backmap.Diagnostic{diagAt(src, 4, 7, "R", backmap.SeverityError)}, 1, false)
	if buf.String() != "1 problem (1 error, 0 warnings, 0 info) in 1 file\n" {
		t.Errorf("summary = %q", buf.String())
	}
}

func TestJSON(t *testing.T) {
	src := doctree.NewSource("a.md", []byte("The the"))
	var buf bytes.Buffer
	err := JSON(&buf, []FileResult{
		{Path: "a.md", Diagnostics: []backmap.Diagnostic{diagAt(src, 4, 7, "R", backmap.SeverityError)}},
		{Path: "b.md"},
	})
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}

	var out struct {
		Count int `json:"count"`
		Files []struct {
			Path        string            `json:"path"`
			Diagnostics []json.RawMessage `json:"diagnostics"`
		} `json:"files"`
	}
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Count != 1 || len(out.Files) != 2 {
		t.Fatalf("unexpected report %+v", out)
	}
	if out.Files[1].Diagnostics == nil {
		t.Error("expected empty diagnostics array, got null")
	}
	if !strings.Contains(buf.String(), `"severity": "error"`) {
		t.Errorf("missing severity field:\n%s", buf.String())
	}
}
