// Package render formats diagnostics for terminals and machines.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"github.com/dgallion1/prosecheck/internal/backmap"
	"github.com/dgallion1/prosecheck/internal/doctree"
)

const tabWidth = 4

// PrettyOpts configures human-readable output.
type PrettyOpts struct {
	Color   bool
	Context int // lines shown above the flagged line
	Width   int // maximum source line width, 0 for unlimited
	// ShowReplacements lists the checker's suggested replacements.
	ShowReplacements bool
}

type palette struct {
	err, warn, info, rule, gutter, caret, hint *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		err:    color.New(color.FgRed, color.Bold),
		warn:   color.New(color.FgYellow, color.Bold),
		info:   color.New(color.FgBlue, color.Bold),
		rule:   color.New(color.Bold),
		gutter: color.New(color.FgCyan),
		caret:  color.New(color.FgGreen, color.Bold),
		hint:   color.New(color.FgGreen),
	}
	for _, c := range []*color.Color{p.err, p.warn, p.info, p.rule, p.gutter, p.caret, p.hint} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func (p palette) severity(s backmap.Severity) *color.Color {
	switch s {
	case backmap.SeverityError:
		return p.err
	case backmap.SeverityWarning:
		return p.warn
	default:
		return p.info
	}
}

// Pretty writes each diagnostic as
//
//	<path>:<line>:<col>: <severity> <rule>: <message>
//
// followed by the source line with the flagged range underlined. Lines and
// columns are 1-based; columns count runes.
func Pretty(w io.Writer, src *doctree.Source, diags []backmap.Diagnostic, opts PrettyOpts) {
	p := newPalette(opts.Color)
	for _, d := range diags {
		fmt.Fprintf(w, "%s:%d:%d: %s %s: %s\n",
			src.Name, d.Start.Line+1, d.Start.Column+1,
			p.severity(d.Severity).Sprint(strings.ToUpper(string(d.Severity))),
			p.rule.Sprint(d.RuleID), d.Message)
		snippet(w, src, d, opts, p)
		if opts.ShowReplacements && len(d.Replacements) > 0 {
			fmt.Fprintf(w, "%s %s\n", p.gutter.Sprint(gutter(src, "=")),
				p.hint.Sprintf("suggestion: %s", strings.Join(d.Replacements, ", ")))
		}
	}
}

func snippet(w io.Writer, src *doctree.Source, d backmap.Diagnostic, opts PrettyOpts, p palette) {
	line := d.Start.Line
	for n := max(0, line-opts.Context); n < line; n++ {
		fmt.Fprintf(w, "%s %s\n", p.gutter.Sprint(lineGutter(src, n)), clip(expandTabs(src.Line(n)), opts.Width))
	}

	text := src.Line(line)
	fmt.Fprintf(w, "%s %s\n", p.gutter.Sprint(lineGutter(src, line)), clip(expandTabs(text), opts.Width))

	start := d.Start.Column
	runes := []rune(text)
	if start > len(runes) {
		start = len(runes)
	}
	end := len(runes)
	if d.End.Line == line {
		end = min(d.End.Column, len(runes))
	}
	pad := runewidth.StringWidth(expandTabs(string(runes[:start])))
	width := runewidth.StringWidth(expandTabs(string(runes[start:end])))
	if opts.Width > 0 && pad >= opts.Width {
		return
	}
	if opts.Width > 0 && pad+width > opts.Width {
		width = opts.Width - pad
	}
	marker := "^"
	if width > 1 {
		marker += strings.Repeat("~", width-1)
	}
	fmt.Fprintf(w, "%s %s%s\n", p.gutter.Sprint(gutter(src, "|")), strings.Repeat(" ", pad), p.caret.Sprint(marker))
}

// gutter pads mark to the width of the largest line number.
func gutter(src *doctree.Source, mark string) string {
	digits := len(fmt.Sprint(src.LineCount()))
	return strings.Repeat(" ", digits+2) + mark
}

func lineGutter(src *doctree.Source, n int) string {
	digits := len(fmt.Sprint(src.LineCount()))
	return fmt.Sprintf(" %*d |", digits, n+1)
}

func expandTabs(s string) string {
	return strings.ReplaceAll(s, "\t", strings.Repeat(" ", tabWidth))
}

func clip(s string, width int) string {
	if width <= 0 || runewidth.StringWidth(s) <= width {
		return s
	}
	if width <= 3 {
		return runewidth.Truncate(s, width, "")
	}
	return runewidth.Truncate(s, width, "...")
}

// Summary writes a one-line count of diagnostics by severity.
func Summary(w io.Writer, diags []backmap.Diagnostic, files int, useColor bool) {
	p := newPalette(useColor)
	var errs, warns, infos int
	for _, d := range diags {
		switch d.Severity {
		case backmap.SeverityError:
			errs++
		case backmap.SeverityWarning:
			warns++
		default:
			infos++
		}
	}
	if len(diags) == 0 {
		fmt.Fprintf(w, "no problems found in %d %s\n", files, plural(files, "file"))
		return
	}
	fmt.Fprintf(w, "%d %s (%s, %s, %s) in %d %s\n",
		len(diags), plural(len(diags), "problem"),
		p.err.Sprintf("%d %s", errs, plural(errs, "error")),
		p.warn.Sprintf("%d %s", warns, plural(warns, "warning")),
		p.info.Sprintf("%d info", infos),
		files, plural(files, "file"))
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
