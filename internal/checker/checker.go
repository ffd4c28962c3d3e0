// Package checker defines the contract with the external grammar/style
// engine and provides the transports that reach it.
package checker

import (
	"context"
	"slices"
	"strings"
)

// CategoryTypos is the category spelling findings are reported under.
const CategoryTypos = "TYPOS"

// Finding is one issue reported by the checker, in byte offsets of the
// checked text.
type Finding struct {
	SegmentID       string   `json:"segment_id,omitempty" msgpack:"segment_id"`
	Start           int      `json:"start" msgpack:"start"`
	End             int      `json:"end" msgpack:"end"`
	RuleID          string   `json:"rule_id" msgpack:"rule_id"`
	Category        string   `json:"category,omitempty" msgpack:"category"`
	Message         string   `json:"message" msgpack:"message"`
	Replacements    []string `json:"replacements,omitempty" msgpack:"replacements"`
	RuleDescription string   `json:"rule_description,omitempty" msgpack:"rule_description"`
}

// Options select the language and rules for a check.
type Options struct {
	Locale            string   `json:"locale" yaml:"locale"`
	EnabledCategories []string `json:"enabled_categories,omitempty" yaml:"enabled_categories"`
	DisabledRules     []string `json:"disabled_rules,omitempty" yaml:"disabled_rules"`
}

// Fingerprint is a stable string identifying the options. Findings obtained
// under different fingerprints are not interchangeable.
func (o Options) Fingerprint() string {
	cats := slices.Clone(o.EnabledCategories)
	rules := slices.Clone(o.DisabledRules)
	slices.Sort(cats)
	slices.Sort(rules)
	return o.Locale + "|" + strings.Join(cats, ",") + "|" + strings.Join(rules, ",")
}

// Checker checks a single piece of plain text. Implementations must be safe
// for concurrent use.
type Checker interface {
	Check(ctx context.Context, text string, opts Options) ([]Finding, error)
}

// Func adapts an in-process engine to the Checker interface.
type Func func(ctx context.Context, text string, opts Options) ([]Finding, error)

func (f Func) Check(ctx context.Context, text string, opts Options) ([]Finding, error) {
	return f(ctx, text, opts)
}
