package parser

import (
	"bytes"
	"strings"

	"github.com/dgallion1/docreader/internal/doctree"
	"github.com/dgallion1/docreader/internal/textenc"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownParser handles Markdown files using goldmark. Level 1 and 2
// headings open chapters; everything else is body text, still subject to
// the chapter line pattern.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(raw *doctree.RawDocument) (*doctree.Document, error) {
	src := []byte(textenc.Decode(raw.Data))

	md := goldmark.New()
	root := md.Parser().Parse(text.NewReader(src))

	doc := &doctree.Document{Title: titleFromPath(raw.Path)}
	titled := false

	var walk func(n ast.Node)
	walk = func(n ast.Node) {
		switch node := n.(type) {
		case *ast.Heading:
			t := collapseSpace(inlineText(node, src))
			if t == "" {
				return
			}
			if node.Level <= 2 {
				if node.Level == 1 && !titled {
					doc.Title = t
					titled = true
				}
				doc.Blocks = append(doc.Blocks, doctree.Heading(t))
				return
			}
			doc.Blocks = append(doc.Blocks, textBlocks(t)...)
		case *ast.Paragraph, *ast.TextBlock:
			doc.Blocks = append(doc.Blocks, textBlocks(inlineText(node, src))...)
		case *ast.FencedCodeBlock, *ast.CodeBlock, *ast.HTMLBlock:
			doc.Blocks = append(doc.Blocks, textBlocks(strings.TrimRight(rawLines(node, src), "\n"))...)
		case *ast.ThematicBreak:
		default:
			for c := n.FirstChild(); c != nil; c = c.NextSibling() {
				walk(c)
			}
		}
	}
	walk(root)

	return doc, nil
}

// inlineText concatenates the inline text under a block node. Soft and hard
// breaks become newlines so the physical line structure survives.
func inlineText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	var collect func(ast.Node)
	collect = func(n ast.Node) {
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			switch t := c.(type) {
			case *ast.Text:
				buf.Write(t.Segment.Value(src))
				if t.HardLineBreak() || t.SoftLineBreak() {
					buf.WriteByte('\n')
				}
			case *ast.String:
				buf.Write(t.Value)
			case *ast.AutoLink:
				buf.Write(t.Label(src))
			default:
				collect(c)
			}
		}
	}
	collect(n)
	return strings.TrimSpace(buf.String())
}

// rawLines returns the literal source lines of a code or HTML block.
func rawLines(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(src))
	}
	return buf.String()
}
