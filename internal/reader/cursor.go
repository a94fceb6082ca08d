package reader

import (
	"fmt"

	"github.com/dgallion1/docreader/internal/chunker"
	"github.com/dgallion1/docreader/internal/doctree"
)

// Cursor is a reading position over one paginated document. It is not safe
// for concurrent use; Engine serializes access.
type Cursor struct {
	blocks   []doctree.Block
	pages    chunker.Pages
	position int
}

// NewCursor paginates blocks and places the cursor at position, clamped
// into range.
func NewCursor(blocks []doctree.Block, lineSize, position int) (*Cursor, error) {
	if lineSize <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLineSize, lineSize)
	}
	return newCursor(blocks, chunker.Paginate(blocks, chunker.Config{LineSize: lineSize}), position)
}

// newCursor builds a cursor over blocks already paginated into pages.
func newCursor(blocks []doctree.Block, pages chunker.Pages, position int) (*Cursor, error) {
	if len(pages.Lines) == 0 {
		return nil, ErrEmptyDocument
	}
	c := &Cursor{blocks: blocks, pages: pages}
	c.position = c.clamp(position)
	return c, nil
}

func (c *Cursor) clamp(n int) int {
	if n < 0 {
		return 0
	}
	if last := len(c.pages.Lines) - 1; n > last {
		return last
	}
	return n
}

func (c *Cursor) Position() int   { return c.position }
func (c *Cursor) TotalLines() int { return len(c.pages.Lines) }
func (c *Cursor) LineSize() int   { return c.pages.LineSize }

// Line returns the display line at the cursor.
func (c *Cursor) Line() (doctree.Line, bool) {
	if c.position < 0 || c.position >= len(c.pages.Lines) {
		return doctree.Line{}, false
	}
	return c.pages.Lines[c.position], true
}

// SetPosition moves to line n.
func (c *Cursor) SetPosition(n int) error {
	if n < 0 || n >= len(c.pages.Lines) {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrOutOfBounds, n, len(c.pages.Lines))
	}
	c.position = n
	return nil
}

// NextLine advances one line. It fails on the last line.
func (c *Cursor) NextLine() error {
	if c.position+1 >= len(c.pages.Lines) {
		return fmt.Errorf("%w: already at last line", ErrOutOfBounds)
	}
	c.position++
	return nil
}

// PrevLine goes back one line. It fails on the first line.
func (c *Cursor) PrevLine() error {
	if c.position <= 0 {
		return fmt.Errorf("%w: already at first line", ErrOutOfBounds)
	}
	c.position--
	return nil
}

// CurrentChapter returns the chapter containing the cursor. Lines before
// the first heading belong to no chapter.
func (c *Cursor) CurrentChapter() (doctree.Chapter, bool) {
	i, ok := c.pages.Chapters.Containing(c.position)
	if !ok {
		return doctree.Chapter{}, false
	}
	return c.pages.Chapters[i], true
}

// NextChapter jumps to the start of the chapter after the current one, or
// to the first chapter when the cursor precedes every heading.
func (c *Cursor) NextChapter() error {
	next, ok := c.pages.Chapters.Next(c.position)
	if !ok {
		return fmt.Errorf("%w: no chapter after line %d", ErrNoAdjacentChapter, c.position)
	}
	c.position = next.StartLine
	return nil
}

// PrevChapter jumps to the start of the chapter before the current one.
func (c *Cursor) PrevChapter() error {
	i, ok := c.pages.Chapters.Containing(c.position)
	if !ok || i == 0 {
		return fmt.Errorf("%w: no chapter before line %d", ErrNoAdjacentChapter, c.position)
	}
	c.position = c.pages.Chapters[i-1].StartLine
	return nil
}

// Progress is position / total lines as a percentage.
func (c *Cursor) Progress() float64 {
	return float64(c.position) / float64(len(c.pages.Lines)) * 100
}

// Chapters returns a copy of the chapter index.
func (c *Cursor) Chapters() doctree.ChapterIndex {
	return c.pages.Chapters.Clone()
}

// Repaginate rebuilds lines and chapters at a new line size. The cursor
// moves to the new start of the chapter it was in, or to 0 if it was in
// none. Nothing changes if lineSize is invalid.
func (c *Cursor) Repaginate(lineSize int) error {
	if lineSize <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidLineSize, lineSize)
	}
	if lineSize == c.pages.LineSize {
		return nil
	}
	pages := chunker.Paginate(c.blocks, chunker.Config{LineSize: lineSize})
	position := chunker.Remap(c.pages.Chapters, pages.Chapters, c.position)

	c.pages = pages
	c.position = c.clamp(position)
	return nil
}
