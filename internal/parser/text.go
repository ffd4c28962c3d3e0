package parser

import (
	"bytes"

	"github.com/dgallion1/prosecheck/internal/doctree"
)

// TextParser handles plain text files: blank lines separate paragraphs.
type TextParser struct{}

func (p *TextParser) Parse(src *doctree.Source) (*doctree.Tree, error) {
	tree := doctree.NewTree(src)
	content := src.Content

	var para *doctree.Node
	pos := 0
	for pos < len(content) {
		end := bytes.IndexByte(content[pos:], '\n')
		lineEnd, next := len(content), len(content)
		if end >= 0 {
			lineEnd = pos + end
			next = lineEnd + 1
		}
		textEnd := lineEnd
		if textEnd > pos && content[textEnd-1] == '\r' {
			textEnd--
		}

		if len(bytes.TrimSpace(content[pos:textEnd])) == 0 {
			para = nil
			pos = next
			continue
		}
		if para == nil {
			para = tree.Root.Append(&doctree.Node{
				Tag:   doctree.TagProse,
				Kind:  "paragraph",
				Span:  doctree.Span{Start: pos},
				Block: true,
			})
		} else {
			// The previous line's terminator joins the two lines.
			last := para.Children[len(para.Children)-1]
			para.Append(&doctree.Node{
				Tag:   doctree.TagProse,
				Kind:  "break",
				Span:  doctree.Span{Start: last.Span.End, End: pos},
				Break: true,
			})
		}
		para.Append(&doctree.Node{
			Tag:  doctree.TagProse,
			Kind: "text",
			Span: doctree.Span{Start: pos, End: textEnd},
		})
		para.Span.End = textEnd
		pos = next
	}
	return tree, nil
}
