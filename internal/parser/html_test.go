package parser

import (
	"testing"

	"github.com/dgallion1/prosecheck/internal/doctree"
)

func TestHTMLParser_Structure(t *testing.T) {
	input := "<p>Hello <em>world</em>.</p>"
	tree := mustParse(t, "page.html", input)

	ps := nodesOfKind(tree, "p")
	if len(ps) != 1 {
		t.Fatalf("expected 1 paragraph, got %d", len(ps))
	}
	if !ps[0].Block || ps[0].Tag != doctree.TagProse {
		t.Errorf("unexpected paragraph %+v", ps[0])
	}
	if ps[0].Span != (doctree.Span{Start: 0, End: len(input)}) {
		t.Errorf("paragraph span %v", ps[0].Span)
	}

	em := nodesOfKind(tree, "em")
	if len(em) != 1 || em[0].Tag != doctree.TagEmphasis || em[0].Block {
		t.Fatalf("unexpected emphasis %+v", em)
	}

	texts := nodesOfKind(tree, "text")
	var got []string
	for _, n := range texts {
		got = append(got, tree.Text(n))
	}
	want := []string{"Hello ", "world", "."}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("text %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestHTMLParser_Entities(t *testing.T) {
	input := "<p>Fish &amp; chips&nbsp;today</p>"
	tree := mustParse(t, "page.html", input)

	ps := nodesOfKind(tree, "p")
	if len(ps) != 1 {
		t.Fatalf("expected 1 paragraph, got %d", len(ps))
	}
	tests := []struct {
		kind string
		raw  string
		text string
	}{
		{"text", "Fish ", "Fish "},
		{"entity", "&amp;", "&"},
		{"text", " chips", " chips"},
		{"entity", "&nbsp;", " "},
		{"text", "today", "today"},
	}
	kids := ps[0].Children
	if len(kids) != len(tests) {
		t.Fatalf("expected %d leaves, got %d", len(tests), len(kids))
	}
	for i, tt := range tests {
		n := kids[i]
		if n.Kind != tt.kind {
			t.Errorf("leaf %d: expected kind %s, got %s", i, tt.kind, n.Kind)
		}
		if got := tree.Source.Text(n.Span); got != tt.raw {
			t.Errorf("leaf %d: span covers %q, want %q", i, got, tt.raw)
		}
		if got := tree.Text(n); got != tt.text {
			t.Errorf("leaf %d: text %q, want %q", i, got, tt.text)
		}
	}
}

func TestHTMLParser_AmpersandWithoutEntity(t *testing.T) {
	tree := mustParse(t, "page.html", "<p>R&D and & more</p>")
	if n := len(nodesOfKind(tree, "entity")); n != 0 {
		t.Errorf("expected no entity leaves, got %d", n)
	}
	texts := nodesOfKind(tree, "text")
	if len(texts) != 1 || tree.Text(texts[0]) != "R&D and & more" {
		t.Errorf("expected one literal run, got %+v", texts)
	}
}

func TestHTMLParser_NonProseElements(t *testing.T) {
	input := "<!DOCTYPE html><head><title>T</title></head><script>var a;</script><!-- hi --><p>a<br>b <img src=x.png> <code>x</code></p>"
	tree := mustParse(t, "page.html", input)

	tests := []struct {
		kind string
		tag  doctree.Tag
	}{
		{"doctype", doctree.TagMetadata},
		{"head", doctree.TagMetadata},
		{"script", doctree.TagRawOrCode},
		{"comment", doctree.TagComment},
		{"image", doctree.TagReference},
		{"code", doctree.TagRawOrCode},
	}
	for _, tt := range tests {
		nodes := nodesOfKind(tree, tt.kind)
		if len(nodes) != 1 {
			t.Errorf("%s: expected 1 node, got %d", tt.kind, len(nodes))
			continue
		}
		if nodes[0].Tag != tt.tag {
			t.Errorf("%s: expected tag %s, got %s", tt.kind, tt.tag, nodes[0].Tag)
		}
	}

	br := nodesOfKind(tree, "break")
	if len(br) != 1 || !br[0].Break {
		t.Errorf("expected one break node, got %+v", br)
	}
}

func TestHTMLParser_ImplicitClose(t *testing.T) {
	tree := mustParse(t, "page.html", "<p>One<p>Two")
	ps := nodesOfKind(tree, "p")
	if len(ps) != 2 {
		t.Fatalf("expected 2 paragraphs, got %d", len(ps))
	}
	if len(tree.Root.Children) != 2 {
		t.Errorf("paragraphs should be siblings, root has %d children", len(tree.Root.Children))
	}
	if ps[0].Span.End != ps[1].Span.Start {
		t.Errorf("first paragraph should end where the second opens: %v %v", ps[0].Span, ps[1].Span)
	}
	if ps[1].Span.End != len("<p>One<p>Two") {
		t.Errorf("unclosed paragraph should run to the end, got %v", ps[1].Span)
	}
}

func TestHTMLParser_Headings(t *testing.T) {
	tree := mustParse(t, "page.html", "<h2>Overview</h2><p>Body.</p>")
	hs := nodesOfKind(tree, "h2")
	if len(hs) != 1 || hs[0].Tag != doctree.TagHeading || !hs[0].Block {
		t.Fatalf("unexpected heading %+v", hs)
	}
}
