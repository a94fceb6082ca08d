// Package chunker reflows labeled blocks into fixed-width display lines and
// builds the chapter index that points into them.
package chunker

import (
	"github.com/dgallion1/docreader/internal/doctree"
)

// DefaultLineSize is the number of code points per display line.
const DefaultLineSize = 50

// Config controls pagination.
type Config struct {
	LineSize int // Maximum code points per body line.
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{LineSize: DefaultLineSize}
}

// Pages is the output of one pagination pass. Lines and Chapters are always
// produced together and replaced together.
type Pages struct {
	Lines    []doctree.Line
	Chapters doctree.ChapterIndex
	LineSize int
}

// Paginate emits one marker line per heading and splits each body block into
// runs of at most cfg.LineSize code points. Chapter entries record the index
// of their marker line, so start lines are strictly increasing.
func Paginate(blocks []doctree.Block, cfg Config) Pages {
	if cfg.LineSize <= 0 {
		cfg.LineSize = DefaultLineSize
	}

	p := Pages{LineSize: cfg.LineSize}
	for _, b := range blocks {
		switch b.Kind {
		case doctree.BlockHeading:
			p.Chapters = append(p.Chapters, doctree.Chapter{
				Index:     len(p.Chapters),
				Title:     b.Text,
				StartLine: len(p.Lines),
			})
			p.Lines = append(p.Lines, doctree.Line{Text: b.Text, ChapterMarker: true})
		default:
			for _, part := range SplitRunes(b.Text, cfg.LineSize) {
				p.Lines = append(p.Lines, doctree.Line{Text: part})
			}
		}
	}
	return p
}

// Remap translates a position from an old pagination into a new one of the
// same blocks: the reader lands on the new start of the chapter it was in.
// Positions outside every chapter map to 0.
func Remap(old, next doctree.ChapterIndex, position int) int {
	i, ok := old.Containing(position)
	if !ok || i >= len(next) {
		return 0
	}
	return next[i].StartLine
}
