package linearize

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dgallion1/prosecheck/internal/doctree"
)

// Action decides what the linearizer does with a node of a given tag.
type Action uint8

const (
	// Verbatim emits the node's text, unwrapping containers.
	Verbatim Action = iota
	// Skip emits nothing and records a gap in the position map.
	Skip
	// Substitute emits the placeholder, mapped as non-reportable.
	Substitute
)

func (a Action) String() string {
	switch a {
	case Verbatim:
		return "verbatim"
	case Skip:
		return "skip"
	case Substitute:
		return "substitute"
	}
	return "unknown"
}

// ParseAction is the inverse of Action.String.
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "verbatim":
		return Verbatim, nil
	case "skip":
		return Skip, nil
	case "substitute":
		return Substitute, nil
	}
	return 0, fmt.Errorf("unknown policy action %q", s)
}

// Policy is the per-tag linearization table.
type Policy struct {
	Actions     map[doctree.Tag]Action
	Placeholder string
}

// DefaultPolicy checks prose and emphasis, replaces references with a
// placeholder and skips everything else.
func DefaultPolicy() Policy {
	return Policy{
		Actions: map[doctree.Tag]Action{
			doctree.TagProse:     Verbatim,
			doctree.TagEmphasis:  Verbatim,
			doctree.TagHeading:   Skip,
			doctree.TagRawOrCode: Skip,
			doctree.TagMath:      Skip,
			doctree.TagComment:   Skip,
			doctree.TagReference: Substitute,
			doctree.TagMetadata:  Skip,
		},
		Placeholder: "X",
	}
}

// PolicyFromMap overrides DefaultPolicy with tag name -> action name pairs.
func PolicyFromMap(actions map[string]string, placeholder string) (Policy, error) {
	p := DefaultPolicy()
	for name, action := range actions {
		tag, ok := doctree.ParseTag(name)
		if !ok {
			return Policy{}, fmt.Errorf("unknown context tag %q", name)
		}
		a, err := ParseAction(action)
		if err != nil {
			return Policy{}, fmt.Errorf("tag %s: %w", name, err)
		}
		p.Actions[tag] = a
	}
	if placeholder != "" {
		p.Placeholder = placeholder
	}
	return p, nil
}

// Action returns the action for tag. Unlisted tags are skipped.
func (p Policy) Action(tag doctree.Tag) Action {
	if a, ok := p.Actions[tag]; ok {
		return a
	}
	return Skip
}

// Fingerprint is a stable description of the policy, folded into segment IDs
// so that a policy change never reuses stale results.
func (p Policy) Fingerprint() string {
	parts := make([]string, 0, len(p.Actions)+1)
	for tag, a := range p.Actions {
		parts = append(parts, tag.String()+"="+a.String())
	}
	sort.Strings(parts)
	parts = append(parts, "placeholder="+p.Placeholder)
	return strings.Join(parts, ";")
}
