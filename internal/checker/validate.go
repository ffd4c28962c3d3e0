package checker

import (
	"strings"
	"unicode/utf8"
)

// MaxReplacements bounds the suggestions kept per finding.
const MaxReplacements = 8

// ValidateFinding checks a finding against the text it was reported for.
// Returns true if valid. Replacements are trimmed and a missing message is
// filled from the rule.
func ValidateFinding(f *Finding, text string) bool {
	if f == nil {
		return false
	}
	if f.Start < 0 || f.End < f.Start || f.End > len(text) {
		return false
	}
	if !boundary(text, f.Start) || !boundary(text, f.End) {
		return false
	}
	if strings.TrimSpace(f.RuleID) == "" {
		return false
	}
	f.Message = strings.TrimSpace(f.Message)
	if f.Message == "" {
		f.Message = f.RuleDescription
	}
	if f.Message == "" {
		f.Message = f.RuleID
	}
	if len(f.Replacements) > MaxReplacements {
		f.Replacements = f.Replacements[:MaxReplacements]
	}
	return true
}

func boundary(text string, off int) bool {
	return off == len(text) || utf8.RuneStart(text[off])
}
