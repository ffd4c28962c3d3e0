package parser

import (
	"bytes"
	"unicode"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gparser "github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// KindMath is the node kind of inline $...$ and $$...$$ math.
var KindMath = ast.NewNodeKind("Math")

// Math is an inline math span, delimiters included.
type Math struct {
	ast.BaseInline
	Segment text.Segment
	Display bool
}

func (n *Math) Kind() ast.NodeKind { return KindMath }

func (n *Math) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{
		"Segment": string(n.Segment.Value(source)),
	}, nil)
}

// KindCitation is the node kind of pandoc-style @key references.
var KindCitation = ast.NewNodeKind("Citation")

// Citation is a reference such as @fig1, the '@' included.
type Citation struct {
	ast.BaseInline
	Segment text.Segment
}

func (n *Citation) Kind() ast.NodeKind { return KindCitation }

func (n *Citation) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{
		"Key": string(n.Segment.Value(source)),
	}, nil)
}

type mathParser struct{}

func (p *mathParser) Trigger() []byte { return []byte{'$'} }

func (p *mathParser) Parse(parent ast.Node, block text.Reader, pc gparser.Context) ast.Node {
	line, seg := block.PeekLine()
	delim := 1
	if len(line) > 1 && line[1] == '$' {
		delim = 2
	}
	if len(line) <= delim {
		return nil
	}
	// "$ 5" is not math; "$x$" is.
	if delim == 1 && isSpace(line[1]) {
		return nil
	}
	marker := line[:delim]
	for i := delim; i+delim <= len(line); i++ {
		if !bytes.Equal(line[i:i+delim], marker) {
			continue
		}
		if i == delim {
			return nil
		}
		if delim == 1 {
			if isSpace(line[i-1]) {
				continue
			}
			if i+1 < len(line) && line[i+1] >= '0' && line[i+1] <= '9' {
				continue
			}
		}
		end := i + delim
		block.Advance(end)
		return &Math{Segment: text.NewSegment(seg.Start, seg.Start+end), Display: delim == 2}
	}
	return nil
}

type citationParser struct{}

func (p *citationParser) Trigger() []byte { return []byte{'@'} }

func (p *citationParser) Parse(parent ast.Node, block text.Reader, pc gparser.Context) ast.Node {
	prev := block.PrecendingCharacter()
	if !(prev == '\n' || prev == '(' || prev == '[' || unicode.IsSpace(prev)) {
		return nil
	}
	line, seg := block.PeekLine()
	n := 1
	for n < len(line) && isCitationByte(line[n]) {
		n++
	}
	// Trailing punctuation belongs to the sentence.
	for n > 1 && (line[n-1] == '.' || line[n-1] == ':' || line[n-1] == '-') {
		n--
	}
	if n == 1 {
		return nil
	}
	block.Advance(n)
	return &Citation{Segment: text.NewSegment(seg.Start, seg.Start+n)}
}

func isCitationByte(b byte) bool {
	return b == '_' || b == ':' || b == '.' || b == '-' ||
		(b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// proseExtension registers the math and citation inline parsers.
type proseExtension struct{}

func (e *proseExtension) Extend(m goldmark.Markdown) {
	m.Parser().AddOptions(gparser.WithInlineParsers(
		util.Prioritized(&mathParser{}, 150),
		util.Prioritized(&citationParser{}, 160),
	))
}
