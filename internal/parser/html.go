package parser

import (
	"bytes"
	"errors"
	"io"
	"strings"

	"github.com/dgallion1/prosecheck/internal/doctree"
	"golang.org/x/net/html"
)

// HTMLParser handles HTML files. It tokenizes rather than building the
// html.Parse DOM so every node keeps its exact byte offsets.
type HTMLParser struct{}

type elementRule struct {
	tag   doctree.Tag
	block bool
}

var elementRules = map[string]elementRule{
	"h1": {doctree.TagHeading, true}, "h2": {doctree.TagHeading, true}, "h3": {doctree.TagHeading, true},
	"h4": {doctree.TagHeading, true}, "h5": {doctree.TagHeading, true}, "h6": {doctree.TagHeading, true},

	"p": {doctree.TagProse, true}, "li": {doctree.TagProse, true}, "td": {doctree.TagProse, true},
	"th": {doctree.TagProse, true}, "blockquote": {doctree.TagProse, true}, "div": {doctree.TagProse, true},
	"section": {doctree.TagProse, true}, "article": {doctree.TagProse, true}, "main": {doctree.TagProse, true},
	"ul": {doctree.TagProse, true}, "ol": {doctree.TagProse, true}, "dl": {doctree.TagProse, true},
	"dt": {doctree.TagProse, true}, "dd": {doctree.TagProse, true}, "table": {doctree.TagProse, true},
	"tr": {doctree.TagProse, true}, "figcaption": {doctree.TagProse, true}, "caption": {doctree.TagProse, true},
	"body": {doctree.TagProse, true}, "html": {doctree.TagProse, true}, "nav": {doctree.TagProse, true},
	"header": {doctree.TagProse, true}, "footer": {doctree.TagProse, true}, "aside": {doctree.TagProse, true},

	"em": {doctree.TagEmphasis, false}, "strong": {doctree.TagEmphasis, false}, "i": {doctree.TagEmphasis, false},
	"b": {doctree.TagEmphasis, false}, "u": {doctree.TagEmphasis, false}, "mark": {doctree.TagEmphasis, false},

	"code": {doctree.TagRawOrCode, false}, "kbd": {doctree.TagRawOrCode, false}, "samp": {doctree.TagRawOrCode, false},
	"var": {doctree.TagRawOrCode, false}, "tt": {doctree.TagRawOrCode, false},
	"pre": {doctree.TagRawOrCode, true}, "script": {doctree.TagRawOrCode, true}, "style": {doctree.TagRawOrCode, true},
	"template": {doctree.TagRawOrCode, true}, "svg": {doctree.TagRawOrCode, true},

	"math": {doctree.TagMath, false},
	"head": {doctree.TagMetadata, true},
}

// Elements that never have an end tag.
var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true, "hr": true, "img": true,
	"input": true, "link": true, "meta": true, "source": true, "track": true, "wbr": true,
}

// Elements implicitly closed when a sibling of the same name opens.
var selfNesting = map[string]bool{
	"p": true, "li": true, "td": true, "th": true, "tr": true, "dt": true, "dd": true,
}

func (p *HTMLParser) Parse(src *doctree.Source) (*doctree.Tree, error) {
	tree := doctree.NewTree(src)
	stack := []*doctree.Node{tree.Root}

	closeTop := func(end int) {
		top := stack[len(stack)-1]
		top.Span.End = end
		stack = stack[:len(stack)-1]
	}

	z := html.NewTokenizer(bytes.NewReader(src.Content))
	offset := 0
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if errors.Is(z.Err(), io.EOF) {
				break
			}
			return nil, newSyntaxError(src, offset, z.Err().Error())
		}
		start := offset
		offset += len(z.Raw())
		span := doctree.Span{Start: start, End: offset}
		parent := stack[len(stack)-1]

		switch tt {
		case html.TextToken:
			appendText(parent, src.Content, span)

		case html.CommentToken:
			parent.Append(&doctree.Node{Tag: doctree.TagComment, Kind: "comment", Span: span})

		case html.DoctypeToken:
			parent.Append(&doctree.Node{Tag: doctree.TagMetadata, Kind: "doctype", Span: span, Block: true})

		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := string(name)
			switch {
			case tag == "br":
				parent.Append(&doctree.Node{Tag: doctree.TagProse, Kind: "break", Span: span, Break: true})
				continue
			case tag == "img":
				parent.Append(&doctree.Node{Tag: doctree.TagReference, Kind: "image", Span: span})
				continue
			case voidElements[tag] || tt == html.SelfClosingTagToken:
				continue
			}
			if selfNesting[tag] && parent.Kind == tag && len(stack) > 1 {
				closeTop(start)
				parent = stack[len(stack)-1]
			}
			rule, ok := elementRules[tag]
			if !ok {
				rule = elementRule{tag: doctree.TagProse}
			}
			n := parent.Append(&doctree.Node{
				Tag:   rule.tag,
				Kind:  tag,
				Span:  doctree.Span{Start: start, End: offset},
				Block: rule.block,
			})
			stack = append(stack, n)

		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			for i := len(stack) - 1; i > 0; i-- {
				if stack[i].Kind != tag {
					continue
				}
				for len(stack) > i+1 {
					closeTop(start)
				}
				closeTop(offset)
				break
			}
		}
	}
	for len(stack) > 1 {
		closeTop(len(src.Content))
	}
	return tree, nil
}

// appendText adds the text token at span as literal runs, which map byte
// for byte, and one leaf per character reference carrying its decoded text.
func appendText(parent *doctree.Node, content []byte, span doctree.Span) {
	lit := span.Start
	for i := span.Start; i < span.End; {
		if content[i] != '&' {
			i++
			continue
		}
		end := entityEnd(content, i, span.End)
		decoded := html.UnescapeString(string(content[i:end]))
		if end == i+1 || decoded == string(content[i:end]) {
			i++
			continue
		}
		if lit < i {
			parent.Append(&doctree.Node{Tag: doctree.TagProse, Kind: "text", Span: doctree.Span{Start: lit, End: i}})
		}
		parent.Append(&doctree.Node{
			Tag:  doctree.TagProse,
			Kind: "entity",
			Span: doctree.Span{Start: i, End: end},
			Text: strings.ReplaceAll(decoded, "\u00a0", " "),
		})
		i, lit = end, end
	}
	if lit < span.End {
		parent.Append(&doctree.Node{Tag: doctree.TagProse, Kind: "text", Span: doctree.Span{Start: lit, End: span.End}})
	}
}

// entityEnd returns the end of the character reference candidate starting
// at the '&' at i: a name or number, plus the terminating ';' if present.
func entityEnd(content []byte, i, limit int) int {
	j := i + 1
	if j < limit && content[j] == '#' {
		j++
		if j < limit && (content[j] == 'x' || content[j] == 'X') {
			j++
		}
	}
	for j < limit && isEntityByte(content[j]) {
		j++
	}
	if j < limit && content[j] == ';' {
		j++
	}
	return j
}

func isEntityByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}
