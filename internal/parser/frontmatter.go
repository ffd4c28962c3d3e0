package parser

import (
	"bytes"
	"regexp"
	"strconv"

	"github.com/dgallion1/prosecheck/internal/doctree"
	"gopkg.in/yaml.v3"
)

var yamlLineRe = regexp.MustCompile(`line (\d+)`)

// frontMatter locates a leading YAML block delimited by "---" lines and
// validates it. It returns the span of the whole block (delimiters included)
// and the span of the YAML body, or ok=false when there is none.
func frontMatter(src *doctree.Source) (block, body doctree.Span, ok bool, err error) {
	content := src.Content
	open := openingFence(content)
	if open == 0 {
		return block, body, false, nil
	}

	pos := open
	for pos < len(content) {
		end := bytes.IndexByte(content[pos:], '\n')
		lineEnd := len(content)
		next := len(content)
		if end >= 0 {
			lineEnd = pos + end
			next = lineEnd + 1
		}
		line := bytes.TrimRight(content[pos:lineEnd], " \t\r")
		if string(line) == "---" || string(line) == "..." {
			block = doctree.Span{Start: 0, End: next}
			body = doctree.Span{Start: open, End: pos}
			if err := validateYAML(src, body); err != nil {
				return block, body, true, err
			}
			return block, body, true, nil
		}
		pos = next
	}
	return block, body, false, newSyntaxError(src, 0, "unterminated front matter")
}

func openingFence(content []byte) int {
	for _, fence := range []string{"---\n", "---\r\n"} {
		if bytes.HasPrefix(content, []byte(fence)) {
			return len(fence)
		}
	}
	return 0
}

func validateYAML(src *doctree.Source, body doctree.Span) error {
	var meta map[string]any
	err := yaml.Unmarshal(src.Content[body.Start:body.End], &meta)
	if err == nil {
		return nil
	}
	offset := body.Start
	if m := yamlLineRe.FindStringSubmatch(err.Error()); len(m) == 2 {
		if n, convErr := strconv.Atoi(m[1]); convErr == nil && n > 0 {
			line := src.LineOf(body.Start) + n - 1
			offset = src.OffsetAt(line, 0)
		}
	}
	return newSyntaxError(src, offset, "front matter: "+err.Error())
}

// blankRange returns a copy of content with every byte in span, except line
// breaks, replaced by a space. Offsets are preserved.
func blankRange(content []byte, span doctree.Span) []byte {
	out := make([]byte, len(content))
	copy(out, content)
	for i := span.Start; i < span.End && i < len(out); i++ {
		if out[i] != '\n' && out[i] != '\r' {
			out[i] = ' '
		}
	}
	return out
}
