package parser

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/prosecheck/internal/doctree"
)

// Parser converts source text into a document tree with byte-accurate spans.
type Parser interface {
	Parse(src *doctree.Source) (*doctree.Tree, error)
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".html":     true,
	".htm":      true,
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return NewMarkdownParser(), nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// Parse selects a parser by filename and parses content.
func Parse(filename string, content []byte) (*doctree.Tree, error) {
	p, err := ForFile(filename)
	if err != nil {
		return nil, err
	}
	src := doctree.NewSource(filename, content)
	if err := checkUTF8(src); err != nil {
		return nil, err
	}
	return p.Parse(src)
}

func checkUTF8(src *doctree.Source) error {
	if utf8.Valid(src.Content) {
		return nil
	}
	for i := 0; i < len(src.Content); {
		r, size := utf8.DecodeRune(src.Content[i:])
		if r == utf8.RuneError && size == 1 {
			return newSyntaxError(src, i, "invalid UTF-8 encoding")
		}
		i += size
	}
	return nil
}
