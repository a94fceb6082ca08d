package parser

import (
	"github.com/dgallion1/docreader/internal/doctree"
	"github.com/dgallion1/docreader/internal/textenc"
)

// TextParser handles plain text files. Every physical line becomes one block.
type TextParser struct{}

func (p *TextParser) Parse(raw *doctree.RawDocument) (*doctree.Document, error) {
	text := textenc.Decode(raw.Data)
	return &doctree.Document{
		Title:  titleFromPath(raw.Path),
		Blocks: textBlocks(text),
	}, nil
}
