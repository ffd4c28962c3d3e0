package parser

import (
	"fmt"

	"github.com/dgallion1/prosecheck/internal/doctree"
)

// SyntaxError reports a document that could not be parsed. No partial tree
// is returned alongside it.
type SyntaxError struct {
	File    string
	Offset  int
	Line    int // 0-based
	Column  int // 0-based, runes
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s:%d:%d: syntax error: %s", e.File, e.Line+1, e.Column+1, e.Message)
}

func newSyntaxError(src *doctree.Source, offset int, msg string) *SyntaxError {
	pos := src.Position(offset)
	return &SyntaxError{
		File:    src.Name,
		Offset:  pos.Offset,
		Line:    pos.Line,
		Column:  pos.Column,
		Message: msg,
	}
}
