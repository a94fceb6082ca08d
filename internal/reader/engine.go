package reader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/dgallion1/docreader/internal/chunker"
	"github.com/dgallion1/docreader/internal/doctree"
	"github.com/dgallion1/docreader/internal/events"
	"github.com/dgallion1/docreader/internal/parser"
	"github.com/dgallion1/docreader/internal/pipeline"
	"github.com/dgallion1/docreader/internal/textenc"
)

// Options configures an Engine. Store, Writer and Broker are optional.
type Options struct {
	LineSize              int
	MinEncodingConfidence float64
	MaxDocumentBytes      int64
	Parser                parser.Options

	Store  pipeline.PositionStore
	Writer *pipeline.Writer
	Broker *events.Broker
	Log    *slog.Logger
}

// Snapshot is a consistent copy of the reader state.
type Snapshot struct {
	DocID          string            `json:"doc_id"`
	Title          string            `json:"title"`
	Path           string            `json:"path"`
	Format         doctree.Format    `json:"format"`
	Position       int               `json:"position"`
	Progress       float64           `json:"progress"`
	TotalLines     int               `json:"total_lines"`
	LineSize       int               `json:"line_size"`
	Line           string            `json:"line"`
	CurrentChapter *doctree.Chapter  `json:"current_chapter"`
	Chapters       []doctree.Chapter `json:"chapters"`
}

type docMeta struct {
	id     string
	title  string
	path   string
	format doctree.Format
}

// Engine holds at most one open document behind a single lock. Loading
// happens outside the lock; only the final swap is serialized with
// navigation. A panic inside the lock poisons the engine for good.
type Engine struct {
	opts Options
	log  *slog.Logger

	mu       sync.Mutex
	cur      *Cursor
	meta     docMeta
	lineSize int
	poisoned bool
}

func NewEngine(opts Options) *Engine {
	if opts.LineSize <= 0 {
		opts.LineSize = chunker.DefaultLineSize
	}
	if opts.MinEncodingConfidence <= 0 {
		opts.MinEncodingConfidence = textenc.DefaultMinConfidence
	}
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	return &Engine{opts: opts, log: log, lineSize: opts.LineSize}
}

// locked runs fn while holding the engine lock.
func (e *Engine) locked(fn func() error) (err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.poisoned {
		return ErrLockFailure
	}
	defer func() {
		if r := recover(); r != nil {
			e.poisoned = true
			e.log.Error("panic while holding reader lock, engine poisoned", "panic", r)
			err = fmt.Errorf("%w: %v", ErrLockFailure, r)
		}
	}()
	return fn()
}

// mutate applies fn to the open cursor and queues the new position. The
// change event goes out after the lock is released.
func (e *Engine) mutate(fn func(c *Cursor) error) error {
	err := e.locked(func() error {
		if e.cur == nil {
			return ErrNoActiveDocument
		}
		if err := fn(e.cur); err != nil {
			return err
		}
		e.persistLocked()
		return nil
	})
	if err != nil {
		return err
	}
	e.notify()
	return nil
}

// view runs a read-only fn against the open cursor.
func (e *Engine) view(fn func(c *Cursor)) error {
	return e.locked(func() error {
		if e.cur == nil {
			return ErrNoActiveDocument
		}
		fn(e.cur)
		return nil
	})
}

func (e *Engine) notify() {
	if e.opts.Broker != nil {
		e.opts.Broker.Publish(events.KindReaderChange)
	}
}

// persistLocked queues the current position. Submit never blocks, and
// queueing under the lock keeps submissions in navigation order.
func (e *Engine) persistLocked() {
	if e.opts.Writer != nil {
		e.opts.Writer.Submit(e.recordLocked())
	}
}

func (e *Engine) recordLocked() pipeline.Record {
	return pipeline.Record{
		DocID:     e.meta.id,
		Path:      e.meta.path,
		Title:     e.meta.title,
		Position:  e.cur.Position(),
		Progress:  e.cur.Progress(),
		LineSize:  e.cur.LineSize(),
		UpdatedAt: time.Now().UTC(),
	}
}

func (e *Engine) snapshotLocked() Snapshot {
	c := e.cur
	s := Snapshot{
		DocID:      e.meta.id,
		Title:      e.meta.title,
		Path:       e.meta.path,
		Format:     e.meta.format,
		Position:   c.Position(),
		Progress:   c.Progress(),
		TotalLines: c.TotalLines(),
		LineSize:   c.LineSize(),
		Chapters:   c.Chapters(),
	}
	if s.Chapters == nil {
		s.Chapters = []doctree.Chapter{}
	}
	if l, ok := c.Line(); ok {
		s.Line = l.Text
	}
	if ch, ok := c.CurrentChapter(); ok {
		s.CurrentChapter = &ch
	}
	return s
}

// Open loads the document at path and makes it the active one. On any
// failure the previously open document stays active.
func (e *Engine) Open(ctx context.Context, path string) (Snapshot, error) {
	format, err := parser.FormatFor(path)
	if err != nil {
		return Snapshot{}, err
	}
	data, err := e.readFile(path)
	if err != nil {
		return Snapshot{}, err
	}

	docID := pipeline.DocID(data)
	log := e.log.With("doc_id", docID, "path", path)
	stored, known := e.loadRecord(ctx, docID, log)

	// Documents the store already knows were accepted once; never reject
	// them again.
	if !known && format.IsText() {
		if _, err := textenc.Validate(data, e.opts.MinEncodingConfidence); err != nil {
			return Snapshot{}, err
		}
	}

	raw := &doctree.RawDocument{Path: path, Format: format, Data: data}
	doc, err := parser.Load(raw, e.opts.Parser)
	if err != nil {
		if errors.Is(err, parser.ErrCorruptDocument) {
			return Snapshot{}, fmt.Errorf("%w: %w", ErrIO, err)
		}
		return Snapshot{}, err
	}

	lineSize := e.LineSize()
	pages := chunker.Paginate(doc.Blocks, chunker.Config{LineSize: lineSize})
	position := 0
	if known {
		position = stored.Position
		if stored.LineSize > 0 && stored.LineSize != lineSize {
			old := chunker.Paginate(doc.Blocks, chunker.Config{LineSize: stored.LineSize})
			position = chunker.Remap(old.Chapters, pages.Chapters, position)
		}
	}
	cur, err := newCursor(doc.Blocks, pages, position)
	if err != nil {
		return Snapshot{}, err
	}
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}

	var snap Snapshot
	err = e.locked(func() error {
		// The line size may have changed while loading.
		if err := cur.Repaginate(e.lineSize); err != nil {
			return err
		}
		e.cur = cur
		e.meta = docMeta{id: docID, title: doc.Title, path: path, format: format}
		snap = e.snapshotLocked()
		e.persistLocked()
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}

	log.Info("document opened", "format", format, "lines", snap.TotalLines,
		"chapters", len(snap.Chapters), "position", snap.Position, "restored", known)
	e.notify()
	return snap, nil
}

func (e *Engine) readFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrIO, path)
	}
	if limit := e.opts.MaxDocumentBytes; limit > 0 && info.Size() > limit {
		return nil, fmt.Errorf("%w: %s is %d bytes, limit %d", ErrIO, path, info.Size(), limit)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}
	return data, nil
}

// loadRecord asks the store for a saved position. Store failures are
// treated as "unknown document".
func (e *Engine) loadRecord(ctx context.Context, docID string, log *slog.Logger) (pipeline.Record, bool) {
	if e.opts.Store == nil {
		return pipeline.Record{}, false
	}
	rec, ok, err := e.opts.Store.LoadPosition(ctx, docID)
	if err != nil {
		log.Warn("load saved position failed", "error", err)
		return pipeline.Record{}, false
	}
	return rec, ok
}

// Close drops the active document. Closing with nothing open is a no-op.
func (e *Engine) Close() error {
	var closed bool
	err := e.locked(func() error {
		closed = e.cur != nil
		e.cur = nil
		e.meta = docMeta{}
		return nil
	})
	if err != nil {
		return err
	}
	if closed {
		e.notify()
	}
	return nil
}

// Line returns the text of the current display line.
func (e *Engine) Line() (string, error) {
	var text string
	err := e.view(func(c *Cursor) {
		if l, ok := c.Line(); ok {
			text = l.Text
		}
	})
	return text, err
}

func (e *Engine) SetPosition(n int) error {
	return e.mutate(func(c *Cursor) error { return c.SetPosition(n) })
}

func (e *Engine) NextLine() error {
	return e.mutate((*Cursor).NextLine)
}

func (e *Engine) PrevLine() error {
	return e.mutate((*Cursor).PrevLine)
}

func (e *Engine) NextChapter() error {
	return e.mutate((*Cursor).NextChapter)
}

func (e *Engine) PrevChapter() error {
	return e.mutate((*Cursor).PrevChapter)
}

// Progress returns the read percentage of the active document.
func (e *Engine) Progress() (float64, error) {
	var p float64
	err := e.view(func(c *Cursor) { p = c.Progress() })
	return p, err
}

// Snapshot returns a copy of the full reader state.
func (e *Engine) Snapshot() (Snapshot, error) {
	var s Snapshot
	err := e.locked(func() error {
		if e.cur == nil {
			return ErrNoActiveDocument
		}
		s = e.snapshotLocked()
		return nil
	})
	return s, err
}

// Repaginate changes the line size. With no document open it only takes
// effect on the next Open.
func (e *Engine) Repaginate(lineSize int) error {
	if lineSize <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidLineSize, lineSize)
	}
	var (
		docID    string
		position int
		changed  bool
	)
	err := e.locked(func() error {
		if lineSize == e.lineSize {
			return nil
		}
		e.lineSize = lineSize
		if e.cur == nil {
			return nil
		}
		if err := e.cur.Repaginate(lineSize); err != nil {
			return err
		}
		e.persistLocked()
		docID, position = e.meta.id, e.cur.Position()
		changed = true
		return nil
	})
	if err != nil {
		return err
	}
	if changed {
		e.log.Info("repaginated", "doc_id", docID, "line_size", lineSize, "position", position)
		e.notify()
	}
	return nil
}

// LineSize returns the line size used for pagination.
func (e *Engine) LineSize() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lineSize
}
