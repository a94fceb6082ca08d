package parser

import (
	"regexp"
	"strings"

	"github.com/dgallion1/docreader/internal/doctree"
)

// chapterPattern matches a whole physical line that opens a chapter: 第, a
// numeral in Arabic digits or Chinese numerals, 章, then any trailing text.
var chapterPattern = regexp.MustCompile(`^第[零一二三四五六七八九十百千万0-9]+章.*$`)

// IsChapterHeading reports whether line is a chapter heading.
func IsChapterHeading(line string) bool {
	return chapterPattern.MatchString(line)
}

// splitLines splits on physical newlines, dropping one trailing \r per line.
func splitLines(text string) []string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// textBlocks labels each physical line of text as a heading or body block.
func textBlocks(text string) []doctree.Block {
	if text == "" {
		return nil
	}
	lines := splitLines(text)
	blocks := make([]doctree.Block, 0, len(lines))
	for _, line := range lines {
		if IsChapterHeading(line) {
			blocks = append(blocks, doctree.Heading(line))
		} else {
			blocks = append(blocks, doctree.Body(line))
		}
	}
	return blocks
}
