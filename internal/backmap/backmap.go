// Package backmap translates checker findings in segment coordinates into
// diagnostics in document coordinates.
package backmap

import (
	"errors"
	"log/slog"
	"slices"

	"github.com/dgallion1/prosecheck/internal/checker"
	"github.com/dgallion1/prosecheck/internal/doctree"
	"github.com/dgallion1/prosecheck/internal/linearize"
	"github.com/dgallion1/prosecheck/internal/parser"
	"github.com/dgallion1/prosecheck/internal/posmap"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// RuleSyntaxError is the rule of the diagnostic produced for an unparsable
// document.
const RuleSyntaxError = "SYNTAX_ERROR"

// severities by checker category; anything else is a warning.
var severities = map[string]Severity{
	checker.CategoryTypos: SeverityError,
	"GRAMMAR":             SeverityError,
	"STYLE":               SeverityInfo,
	"REDUNDANCY":          SeverityInfo,
	"PLAIN_ENGLISH":       SeverityInfo,
	"TYPOGRAPHY":          SeverityInfo,
}

func severityFor(category string) Severity {
	if s, ok := severities[category]; ok {
		return s
	}
	return SeverityWarning
}

// Diagnostic is an issue located in the original document.
type Diagnostic struct {
	Range           doctree.Span     `json:"range"`
	Start           doctree.Position `json:"start"`
	End             doctree.Position `json:"end"`
	RuleID          string           `json:"rule_id"`
	Category        string           `json:"category,omitempty"`
	Severity        Severity         `json:"severity"`
	Message         string           `json:"message"`
	Replacements    []string         `json:"replacements,omitempty"`
	RuleDescription string           `json:"rule_description,omitempty"`
	Tag             doctree.Tag      `json:"context"`
	SegmentID       string           `json:"segment_id,omitempty"`
}

// Mapper maps findings against one source document.
type Mapper struct {
	src *doctree.Source
	log *slog.Logger
}

func New(src *doctree.Source, log *slog.Logger) *Mapper {
	return &Mapper{src: src, log: log}
}

// Map converts the findings reported for seg. Findings with invalid
// offsets, findings touching substituted text and findings with no mapped
// range are dropped. A finding crossing a gap is narrowed to the mapped run
// that contains its start.
func (m *Mapper) Map(seg linearize.Segment, findings []checker.Finding) []Diagnostic {
	out := make([]Diagnostic, 0, len(findings))
	for _, f := range findings {
		if !checker.ValidateFinding(&f, seg.Text) {
			m.log.Warn("dropping invalid finding", "segment", seg.Index, "rule", f.RuleID, "start", f.Start, "end", f.End, "text_len", len(seg.Text))
			continue
		}
		if !seg.Map.Reportable(f.Start, f.End) {
			m.log.Debug("dropping finding on substituted text", "segment", seg.Index, "rule", f.RuleID)
			continue
		}

		span, tag, err := m.resolve(seg, f.Start, f.End)
		if err != nil {
			var unmapped *posmap.UnmappedOffsetError
			if errors.As(err, &unmapped) {
				m.log.Error("finding not mapped to source", "segment", seg.Index, "rule", f.RuleID, "error", err)
			} else {
				m.log.Debug("dropping finding without mapped range", "segment", seg.Index, "rule", f.RuleID, "error", err)
			}
			continue
		}

		out = append(out, Diagnostic{
			Range:           span,
			Start:           m.src.Position(span.Start),
			End:             m.src.Position(span.End),
			RuleID:          f.RuleID,
			Category:        f.Category,
			Severity:        severityFor(f.Category),
			Message:         f.Message,
			Replacements:    f.Replacements,
			RuleDescription: f.RuleDescription,
			Tag:             tag,
			SegmentID:       seg.ID,
		})
	}
	return out
}

var errNoMappedRange = errors.New("no mapped range at finding start")

func (m *Mapper) resolve(seg linearize.Segment, start, end int) (doctree.Span, doctree.Tag, error) {
	if start == end {
		return m.resolvePoint(seg, start)
	}
	s, e, ok := seg.Map.Contiguous(start, end)
	if !ok {
		return doctree.Span{}, 0, errNoMappedRange
	}
	span, err := seg.Map.ResolveRange(s, e)
	if err != nil {
		return doctree.Span{}, 0, err
	}
	loc, err := seg.Map.Resolve(s)
	if err != nil {
		return doctree.Span{}, 0, err
	}
	return span, loc.Tag, nil
}

// resolvePoint maps an insertion point. The end of the text resolves to
// just after its last character.
func (m *Mapper) resolvePoint(seg linearize.Segment, off int) (doctree.Span, doctree.Tag, error) {
	if loc, err := seg.Map.Resolve(off); err == nil {
		return doctree.Span{Start: loc.Source.Start, End: loc.Source.Start}, loc.Tag, nil
	}
	if off == 0 {
		return doctree.Span{}, 0, errNoMappedRange
	}
	loc, err := seg.Map.Resolve(off - 1)
	if err != nil {
		return doctree.Span{}, 0, err
	}
	return doctree.Span{Start: loc.Source.End, End: loc.Source.End}, loc.Tag, nil
}

// Sort orders diagnostics by source range, keeping the input order of ties.
func Sort(diags []Diagnostic) {
	slices.SortStableFunc(diags, func(a, b Diagnostic) int {
		if a.Range.Start != b.Range.Start {
			return a.Range.Start - b.Range.Start
		}
		return a.Range.End - b.Range.End
	})
}

type dedupKey struct {
	span doctree.Span
	rule string
}

// Dedup drops diagnostics equal in range and rule to an earlier one. The
// input must already be in document order.
func Dedup(diags []Diagnostic) []Diagnostic {
	seen := make(map[dedupKey]bool, len(diags))
	out := diags[:0]
	for _, d := range diags {
		k := dedupKey{d.Range, d.RuleID}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, d)
	}
	return out
}

// Finalize sorts and deduplicates diagnostics collected from all segments.
func Finalize(diags []Diagnostic) []Diagnostic {
	Sort(diags)
	return Dedup(diags)
}

// FromSyntaxError turns a parse failure into a single document-level
// diagnostic.
func FromSyntaxError(src *doctree.Source, err *parser.SyntaxError) Diagnostic {
	span := doctree.Span{Start: err.Offset, End: min(err.Offset+1, src.Len())}
	if span.End < span.Start {
		span.End = span.Start
	}
	return Diagnostic{
		Range:    span,
		Start:    src.Position(span.Start),
		End:      src.Position(span.End),
		RuleID:   RuleSyntaxError,
		Severity: SeverityError,
		Message:  err.Message,
		Tag:      doctree.TagProse,
	}
}
