package parser

import (
	"bytes"
	"fmt"

	"github.com/dgallion1/prosecheck/internal/doctree"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownParser handles Markdown files using goldmark.
type MarkdownParser struct {
	md goldmark.Markdown
}

func NewMarkdownParser() *MarkdownParser {
	return &MarkdownParser{
		md: goldmark.New(goldmark.WithExtensions(&proseExtension{})),
	}
}

func (p *MarkdownParser) Parse(src *doctree.Source) (*doctree.Tree, error) {
	tree := doctree.NewTree(src)

	// Front matter is parsed separately and blanked out so goldmark sees
	// empty lines at unchanged offsets.
	content := src.Content
	block, _, ok, err := frontMatter(src)
	if err != nil {
		return nil, err
	}
	if ok {
		tree.Root.Append(&doctree.Node{
			Tag:   doctree.TagMetadata,
			Kind:  "front_matter",
			Span:  block,
			Block: true,
		})
		content = blankRange(content, block)
	}

	doc := p.md.Parser().Parse(text.NewReader(content))
	b := &mdBuilder{src: content}
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		b.block(n, tree.Root)
	}
	return tree, nil
}

// mdBuilder converts a goldmark AST into doctree nodes.
type mdBuilder struct {
	src    []byte
	cursor int // end of the last inline placed, for nodes without segments
}

func (b *mdBuilder) block(n ast.Node, parent *doctree.Node) {
	switch node := n.(type) {
	case *ast.Heading:
		span := linesSpan(node.Lines())
		if !span.Empty() {
			span.Start = lineStart(b.src, span.Start)
		}
		h := parent.Append(&doctree.Node{
			Tag:   doctree.TagHeading,
			Kind:  fmt.Sprintf("h%d", node.Level),
			Span:  span,
			Block: true,
		})
		b.cursor = span.Start
		b.inlines(node, h)

	case *ast.Paragraph, *ast.TextBlock:
		span := linesSpan(n.Lines())
		p := parent.Append(&doctree.Node{
			Tag:   doctree.TagProse,
			Kind:  "paragraph",
			Span:  span,
			Block: true,
		})
		b.cursor = span.Start
		b.inlines(n, p)

	case *ast.FencedCodeBlock:
		span := linesSpan(node.Lines())
		if node.Info != nil {
			span = coverSpan(span, segSpan(node.Info.Segment))
		}
		span = b.fenceSpan(span, node.Info != nil)
		b.codeBlock(parent, span, node.Lines())

	case *ast.CodeBlock:
		b.codeBlock(parent, linesSpan(node.Lines()), node.Lines())

	case *ast.HTMLBlock:
		span := linesSpan(node.Lines())
		if node.HasClosure() {
			span = coverSpan(span, segSpan(node.ClosureLine))
		}
		tag := doctree.TagRawOrCode
		kind := "html_block"
		if bytes.HasPrefix(bytes.TrimLeft(b.src[span.Start:span.End], " \t"), []byte("<!--")) {
			tag = doctree.TagComment
			kind = "comment"
		}
		parent.Append(&doctree.Node{Tag: tag, Kind: kind, Span: span, Block: true})

	case *ast.ThematicBreak:
		// Nothing to check.

	default:
		c := parent.Append(&doctree.Node{
			Tag:   doctree.TagProse,
			Kind:  blockKind(n),
			Block: true,
		})
		for ch := n.FirstChild(); ch != nil; ch = ch.NextSibling() {
			b.block(ch, c)
		}
		c.Span = coverChildren(c)
	}
}

func (b *mdBuilder) codeBlock(parent *doctree.Node, span doctree.Span, lines *text.Segments) {
	code := parent.Append(&doctree.Node{
		Tag:   doctree.TagRawOrCode,
		Kind:  "code_block",
		Span:  span,
		Block: true,
	})
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		if seg.Len() > 0 {
			code.Append(&doctree.Node{Tag: doctree.TagProse, Kind: "text", Span: segSpan(seg)})
		}
	}
}

// fenceSpan widens the content span of a fenced block to its fence lines.
func (b *mdBuilder) fenceSpan(span doctree.Span, hasInfo bool) doctree.Span {
	if span.Empty() {
		return span
	}
	start := lineStart(b.src, span.Start)
	if !hasInfo && start > 0 {
		start = lineStart(b.src, start-1)
	}
	span.Start = start

	end := span.End
	if end > 0 && b.src[end-1] != '\n' {
		if i := bytes.IndexByte(b.src[end:], '\n'); i >= 0 {
			end += i + 1
		} else {
			end = len(b.src)
		}
	}
	next := end
	if i := bytes.IndexByte(b.src[end:], '\n'); i >= 0 {
		next = end + i + 1
	} else {
		next = len(b.src)
	}
	closing := bytes.TrimSpace(b.src[end:next])
	if bytes.HasPrefix(closing, []byte("```")) || bytes.HasPrefix(closing, []byte("~~~")) {
		end = next
	}
	span.End = end
	return span
}

func (b *mdBuilder) inlines(n ast.Node, parent *doctree.Node) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch node := c.(type) {
		case *ast.Text:
			seg := node.Segment
			if seg.Len() > 0 {
				parent.Append(&doctree.Node{Tag: doctree.TagProse, Kind: "text", Span: segSpan(seg)})
			}
			b.cursor = seg.Stop
			if node.SoftLineBreak() || node.HardLineBreak() {
				if br := breakSpan(b.src, seg.Stop); !br.Empty() {
					parent.Append(&doctree.Node{Tag: doctree.TagProse, Kind: "break", Span: br, Break: true})
					b.cursor = br.End
				}
			}

		case *ast.CodeSpan:
			code := parent.Append(&doctree.Node{Tag: doctree.TagRawOrCode, Kind: "code_span"})
			b.inlines(node, code)
			code.Span = widen(b.src, coverChildren(code), '`', -1)
			b.cursor = max(b.cursor, code.Span.End)

		case *ast.Emphasis:
			kind := "emphasis"
			if node.Level >= 2 {
				kind = "strong"
			}
			em := parent.Append(&doctree.Node{Tag: doctree.TagEmphasis, Kind: kind})
			b.inlines(node, em)
			span := coverChildren(em)
			if !span.Empty() && span.Start > 0 {
				if delim := b.src[span.Start-1]; delim == '*' || delim == '_' {
					span = widen(b.src, span, delim, node.Level)
				}
			}
			em.Span = span
			b.cursor = max(b.cursor, span.End)

		case *ast.Link:
			link := parent.Append(&doctree.Node{Tag: doctree.TagProse, Kind: "link"})
			b.inlines(node, link)
			link.Span = coverChildren(link)

		case *ast.Image:
			img := &doctree.Node{Tag: doctree.TagReference, Kind: "image"}
			b.inlines(node, img)
			span := coverChildren(img)
			if span.Start >= 2 && string(b.src[span.Start-2:span.Start]) == "![" {
				span.Start -= 2
			}
			img.Span = span
			img.Children = nil
			parent.Append(img)

		case *ast.AutoLink:
			label := node.Label(b.src)
			if i := bytes.Index(b.src[b.cursor:], label); i > 0 && b.src[b.cursor+i-1] == '<' {
				start := b.cursor + i - 1
				span := doctree.Span{Start: start, End: start + len(label) + 2}
				parent.Append(&doctree.Node{Tag: doctree.TagReference, Kind: "autolink", Span: span})
				b.cursor = span.End
			}

		case *ast.RawHTML:
			span := doctree.Span{}
			for i := 0; i < node.Segments.Len(); i++ {
				span = coverSpan(span, segSpan(node.Segments.At(i)))
			}
			tag := doctree.TagRawOrCode
			kind := "html"
			if bytes.HasPrefix(b.src[span.Start:span.End], []byte("<!--")) {
				tag = doctree.TagComment
				kind = "comment"
			}
			parent.Append(&doctree.Node{Tag: tag, Kind: kind, Span: span})
			b.cursor = max(b.cursor, span.End)

		case *Math:
			parent.Append(&doctree.Node{Tag: doctree.TagMath, Kind: "math", Span: segSpan(node.Segment)})
			b.cursor = node.Segment.Stop

		case *Citation:
			parent.Append(&doctree.Node{Tag: doctree.TagReference, Kind: "citation", Span: segSpan(node.Segment)})
			b.cursor = node.Segment.Stop

		default:
			b.inlines(c, parent)
		}
	}
}

func blockKind(n ast.Node) string {
	switch n.(type) {
	case *ast.List:
		return "list"
	case *ast.ListItem:
		return "list_item"
	case *ast.Blockquote:
		return "blockquote"
	default:
		return n.Kind().String()
	}
}

func segSpan(seg text.Segment) doctree.Span {
	return doctree.Span{Start: seg.Start, End: seg.Stop}
}

func linesSpan(lines *text.Segments) doctree.Span {
	if lines == nil || lines.Len() == 0 {
		return doctree.Span{}
	}
	return doctree.Span{Start: lines.At(0).Start, End: lines.At(lines.Len() - 1).Stop}
}

// coverSpan is Span.Cover that treats an empty span as absent.
func coverSpan(a, b doctree.Span) doctree.Span {
	if a.Empty() {
		return b
	}
	if b.Empty() {
		return a
	}
	return a.Cover(b)
}

func coverChildren(n *doctree.Node) doctree.Span {
	var span doctree.Span
	for _, c := range n.Children {
		span = coverSpan(span, c.Span)
	}
	return span
}

// widen extends span over up to limit copies of delim on each side
// (limit < 0 means unbounded).
func widen(src []byte, span doctree.Span, delim byte, limit int) doctree.Span {
	if span.Empty() {
		return span
	}
	for i := 0; (limit < 0 || i < limit) && span.Start > 0 && src[span.Start-1] == delim; i++ {
		span.Start--
	}
	for i := 0; (limit < 0 || i < limit) && span.End < len(src) && src[span.End] == delim; i++ {
		span.End++
	}
	return span
}

// breakSpan returns the bytes of the line break following offset: trailing
// blanks, a hard-break backslash and the newline itself.
func breakSpan(src []byte, offset int) doctree.Span {
	i := offset
	for i < len(src) && (src[i] == ' ' || src[i] == '\t' || src[i] == '\\' || src[i] == '\r') {
		i++
	}
	if i < len(src) && src[i] == '\n' {
		return doctree.Span{Start: offset, End: i + 1}
	}
	return doctree.Span{}
}

func lineStart(src []byte, offset int) int {
	if offset > len(src) {
		offset = len(src)
	}
	return bytes.LastIndexByte(src[:offset], '\n') + 1
}
