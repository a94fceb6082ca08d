package parser

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/dgallion1/docreader/internal/doctree"
	"github.com/fumiama/go-docx"
)

// DOCXParser handles .docx files. Paragraphs styled Heading 1 or Heading 2
// open chapters, as do paragraphs matching the chapter line pattern.
type DOCXParser struct{}

func (p *DOCXParser) Parse(raw *doctree.RawDocument) (*doctree.Document, error) {
	d, err := docx.Parse(bytes.NewReader(raw.Data), int64(len(raw.Data)))
	if err != nil {
		return nil, fmt.Errorf("%w: parse docx: %w", ErrCorruptDocument, err)
	}

	doc := &doctree.Document{Title: titleFromPath(raw.Path)}
	for _, item := range d.Document.Body.Items {
		para, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		text := docxParagraphText(para)
		if text == "" {
			continue
		}
		if level := docxHeadingLevel(para); level == 1 || level == 2 {
			doc.Blocks = append(doc.Blocks, doctree.Heading(collapseSpace(text)))
			continue
		}
		doc.Blocks = append(doc.Blocks, textBlocks(text)...)
	}

	return doc, nil
}

func docxHeadingLevel(para *docx.Paragraph) int {
	if para.Properties == nil || para.Properties.Style == nil {
		return 0
	}
	style := strings.ToLower(strings.ReplaceAll(para.Properties.Style.Val, " ", ""))
	if !strings.HasPrefix(style, "heading") {
		return 0
	}
	switch strings.TrimPrefix(style, "heading") {
	case "1":
		return 1
	case "2":
		return 2
	case "3":
		return 3
	case "4":
		return 4
	case "5":
		return 5
	case "6":
		return 6
	}
	return 0
}

func docxParagraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				buf.WriteString(t.Text)
			}
		}
	}
	return strings.TrimSpace(buf.String())
}
