package reader

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgallion1/docreader/internal/events"
	"github.com/dgallion1/docreader/internal/parser"
	"github.com/dgallion1/docreader/internal/pipeline"
	"github.com/dgallion1/docreader/internal/textenc"
)

const scenarioText = "第一章 开始\n内容太长超过设定的块大小\n第二章 发展\n短\n第三章 结局\n完"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

type harness struct {
	engine *Engine
	store  *pipeline.MemoryStore
	writer *pipeline.Writer
	broker *events.Broker
}

func newHarness(t *testing.T, lineSize int) *harness {
	t.Helper()
	h := &harness{
		store:  pipeline.NewMemoryStore(),
		broker: events.NewBroker(),
	}
	h.writer = pipeline.NewWriter(h.store, 2, time.Second, testLogger())
	h.writer.Start(context.Background())
	t.Cleanup(h.writer.Stop)

	h.engine = NewEngine(Options{
		LineSize: lineSize,
		Store:    h.store,
		Writer:   h.writer,
		Broker:   h.broker,
		Log:      testLogger(),
	})
	return h
}

// waitForPosition polls the store until docID is saved at want.
func (h *harness) waitForPosition(t *testing.T, docID string, want int) pipeline.Record {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		rec, ok, _ := h.store.LoadPosition(context.Background(), docID)
		if ok && rec.Position == want {
			return rec
		}
		if time.Now().After(deadline) {
			t.Fatalf("position %d for %s never reached the store, last %+v (ok=%v)", want, docID, rec, ok)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestEngine_NoActiveDocument(t *testing.T) {
	h := newHarness(t, 5)
	e := h.engine

	if _, err := e.Line(); !errors.Is(err, ErrNoActiveDocument) {
		t.Errorf("Line: expected ErrNoActiveDocument, got %v", err)
	}
	if err := e.NextLine(); !errors.Is(err, ErrNoActiveDocument) {
		t.Errorf("NextLine: expected ErrNoActiveDocument, got %v", err)
	}
	if _, err := e.Progress(); !errors.Is(err, ErrNoActiveDocument) {
		t.Errorf("Progress: expected ErrNoActiveDocument, got %v", err)
	}
	if _, err := e.Snapshot(); !errors.Is(err, ErrNoActiveDocument) {
		t.Errorf("Snapshot: expected ErrNoActiveDocument, got %v", err)
	}
	if err := e.Close(); err != nil {
		t.Errorf("Close with nothing open should succeed, got %v", err)
	}
}

func TestEngine_OpenAndNavigate(t *testing.T) {
	h := newHarness(t, 5)
	ch, unsub := h.broker.Subscribe()
	defer unsub()

	path := writeFile(t, "novel.txt", []byte(scenarioText))
	snap, err := h.engine.Open(context.Background(), path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if snap.TotalLines != 8 || len(snap.Chapters) != 3 || snap.Position != 0 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if snap.Title != "novel" || snap.LineSize != 5 || snap.Line != "第一章 开始" {
		t.Errorf("unexpected snapshot metadata %+v", snap)
	}
	if snap.DocID != pipeline.DocID([]byte(scenarioText)) {
		t.Errorf("unexpected doc id %q", snap.DocID)
	}
	if snap.CurrentChapter == nil || snap.CurrentChapter.Index != 0 {
		t.Errorf("expected current chapter 0, got %+v", snap.CurrentChapter)
	}

	_ = h.engine.NextLine()
	_ = h.engine.NextLine()
	if err := h.engine.NextChapter(); err != nil {
		t.Fatalf("next chapter: %v", err)
	}
	line, _ := h.engine.Line()
	if line != "第二章 发展" {
		t.Errorf("expected chapter two marker, got %q", line)
	}
	p, _ := h.engine.Progress()
	if p != 50 {
		t.Errorf("expected progress 50, got %f", p)
	}

	// open + 3 navigations
	if n := len(ch); n != 4 {
		t.Errorf("expected 4 change events, got %d", n)
	}

	rec := h.waitForPosition(t, snap.DocID, 4)
	if rec.LineSize != 5 || rec.Progress != 50 {
		t.Errorf("unexpected persisted record %+v", rec)
	}
}

func TestEngine_FailedNavigationPublishesNothing(t *testing.T) {
	h := newHarness(t, 5)
	path := writeFile(t, "novel.txt", []byte(scenarioText))
	if _, err := h.engine.Open(context.Background(), path); err != nil {
		t.Fatalf("open: %v", err)
	}
	ch, unsub := h.broker.Subscribe()
	defer unsub()

	if err := h.engine.PrevLine(); !errors.Is(err, ErrOutOfBounds) {
		t.Fatalf("expected ErrOutOfBounds, got %v", err)
	}
	if err := h.engine.PrevChapter(); !errors.Is(err, ErrNoAdjacentChapter) {
		t.Fatalf("expected ErrNoAdjacentChapter, got %v", err)
	}
	if len(ch) != 0 {
		t.Errorf("expected no events for failed navigation, got %d", len(ch))
	}
}

func TestEngine_RestoresPosition(t *testing.T) {
	h := newHarness(t, 5)
	path := writeFile(t, "novel.txt", []byte(scenarioText))
	first, err := h.engine.Open(context.Background(), path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_ = h.engine.SetPosition(6)
	h.waitForPosition(t, first.DocID, 6)
	_ = h.engine.Close()

	snap, err := h.engine.Open(context.Background(), path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if snap.Position != 6 {
		t.Errorf("expected restored position 6, got %d", snap.Position)
	}
}

func TestEngine_RestoreRemapsAcrossLineSizes(t *testing.T) {
	h := newHarness(t, 5)
	path := writeFile(t, "novel.txt", []byte(scenarioText))
	snap, _ := h.engine.Open(context.Background(), path)
	h.waitForPosition(t, snap.DocID, 0)

	// Saved at line size 5, inside chapter two.
	_ = h.store.SavePosition(context.Background(), pipeline.Record{DocID: snap.DocID, Position: 5, LineSize: 5})
	_ = h.engine.Close()
	if err := h.engine.Repaginate(1); err != nil {
		t.Fatalf("repaginate: %v", err)
	}

	snap, err := h.engine.Open(context.Background(), path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if snap.Position != 13 || snap.CurrentChapter == nil || snap.CurrentChapter.Index != 1 {
		t.Errorf("expected chapter two start 13, got position %d chapter %+v", snap.Position, snap.CurrentChapter)
	}
}

func TestEngine_OpenFailuresKeepPreviousDocument(t *testing.T) {
	h := newHarness(t, 5)
	good := writeFile(t, "novel.txt", []byte(scenarioText))
	if _, err := h.engine.Open(context.Background(), good); err != nil {
		t.Fatalf("open: %v", err)
	}
	_ = h.engine.SetPosition(3)

	dir := t.TempDir()
	binary := []byte{0x89, 'P', 'N', 'G', 0x00, 0x00, 0xff, 0xd8, 0x00, 0x01}
	cases := []struct {
		name string
		path string
		want error
	}{
		{"missing", filepath.Join(dir, "missing.txt"), ErrIO},
		{"unsupported", writeFile(t, "book.mobi", []byte("x")), parser.ErrUnsupportedFormat},
		{"binary", writeFile(t, "image.txt", binary), textenc.ErrUnsupportedEncoding},
		{"empty", writeFile(t, "empty.txt", nil), ErrEmptyDocument},
		{"corrupt", writeFile(t, "broken.epub", []byte("not a zip")), ErrIO},
		{"directory", func() string { p := filepath.Join(dir, "d.txt"); _ = os.Mkdir(p, 0o755); return p }(), ErrIO},
	}
	for _, tc := range cases {
		if _, err := h.engine.Open(context.Background(), tc.path); !errors.Is(err, tc.want) {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
		snap, err := h.engine.Snapshot()
		if err != nil || snap.Path != good || snap.Position != 3 {
			t.Errorf("%s: previous document disturbed: %+v err=%v", tc.name, snap, err)
		}
	}

	if _, err := h.engine.Open(context.Background(), filepath.Join(dir, "missing.txt")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected the not-exist cause to be preserved, got %v", err)
	}
}

func TestEngine_MaxDocumentBytes(t *testing.T) {
	e := NewEngine(Options{LineSize: 5, MaxDocumentBytes: 10, Log: testLogger()})
	path := writeFile(t, "big.txt", []byte(scenarioText))
	if _, err := e.Open(context.Background(), path); !errors.Is(err, ErrIO) {
		t.Fatalf("expected ErrIO for oversized file, got %v", err)
	}
}

func TestEngine_KnownDocumentSkipsValidation(t *testing.T) {
	h := newHarness(t, 5)
	// Valid prefix plus garbage; rejected at a strict threshold.
	data := append([]byte("第一章 开始\n"), 0xff, 0xfe, 0xfd, 0x80, 0x81, 0x82)
	path := writeFile(t, "odd.txt", data)
	h.engine.opts.MinEncodingConfidence = 0.999

	if _, err := h.engine.Open(context.Background(), path); !errors.Is(err, textenc.ErrUnsupportedEncoding) {
		t.Fatalf("expected first ingestion to be rejected, got %v", err)
	}

	_ = h.store.SavePosition(context.Background(), pipeline.Record{DocID: pipeline.DocID(data)})
	if _, err := h.engine.Open(context.Background(), path); err != nil {
		t.Fatalf("expected known document to load lossily, got %v", err)
	}
}

func TestEngine_Repaginate(t *testing.T) {
	h := newHarness(t, 5)
	path := writeFile(t, "novel.txt", []byte(scenarioText))
	_, _ = h.engine.Open(context.Background(), path)
	_ = h.engine.SetPosition(5)

	ch, unsub := h.broker.Subscribe()
	defer unsub()

	if err := h.engine.Repaginate(5); err != nil {
		t.Fatalf("same size: %v", err)
	}
	if len(ch) != 0 {
		t.Errorf("same line size should be a silent no-op")
	}
	if err := h.engine.Repaginate(-1); !errors.Is(err, ErrInvalidLineSize) {
		t.Errorf("expected ErrInvalidLineSize, got %v", err)
	}

	if err := h.engine.Repaginate(1); err != nil {
		t.Fatalf("repaginate: %v", err)
	}
	snap, _ := h.engine.Snapshot()
	if snap.LineSize != 1 || snap.Position != 13 || snap.TotalLines != 17 {
		t.Errorf("unexpected snapshot after repaginate %+v", snap)
	}
	if h.engine.LineSize() != 1 {
		t.Errorf("expected engine line size 1, got %d", h.engine.LineSize())
	}
	if len(ch) != 1 {
		t.Errorf("expected one change event, got %d", len(ch))
	}
}

func TestEngine_CloseNotifies(t *testing.T) {
	h := newHarness(t, 5)
	path := writeFile(t, "novel.txt", []byte(scenarioText))
	_, _ = h.engine.Open(context.Background(), path)

	ch, unsub := h.broker.Subscribe()
	defer unsub()
	if err := h.engine.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if len(ch) != 1 {
		t.Errorf("expected a change event on close, got %d", len(ch))
	}
	if _, err := h.engine.Line(); !errors.Is(err, ErrNoActiveDocument) {
		t.Errorf("expected ErrNoActiveDocument after close, got %v", err)
	}
}

func TestEngine_PoisonedAfterPanic(t *testing.T) {
	h := newHarness(t, 5)
	path := writeFile(t, "novel.txt", []byte(scenarioText))
	_, _ = h.engine.Open(context.Background(), path)

	err := h.engine.locked(func() error { panic("corrupted state") })
	if !errors.Is(err, ErrLockFailure) {
		t.Fatalf("expected ErrLockFailure from the panicking call, got %v", err)
	}

	checks := map[string]error{
		"next_line":  h.engine.NextLine(),
		"close":      h.engine.Close(),
		"repaginate": h.engine.Repaginate(9),
	}
	if _, err := h.engine.Line(); !errors.Is(err, ErrLockFailure) {
		t.Errorf("line: expected ErrLockFailure, got %v", err)
	}
	if _, err := h.engine.Open(context.Background(), path); !errors.Is(err, ErrLockFailure) {
		t.Errorf("open: expected ErrLockFailure, got %v", err)
	}
	for name, err := range checks {
		if !errors.Is(err, ErrLockFailure) {
			t.Errorf("%s: expected ErrLockFailure, got %v", name, err)
		}
	}
}

func TestEngine_ConcurrentNavigationIsLinearized(t *testing.T) {
	h := newHarness(t, 1)
	// One long body: 1 marker + 2000 single-rune lines.
	text := "第一章 长\n" + strings.Repeat("字", 2000)
	path := writeFile(t, "long.txt", []byte(text))
	if _, err := h.engine.Open(context.Background(), path); err != nil {
		t.Fatalf("open: %v", err)
	}

	const workers, steps = 8, 100
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range steps {
				if err := h.engine.NextLine(); err != nil {
					t.Errorf("next line: %v", err)
					return
				}
				_, _ = h.engine.Snapshot()
			}
		}()
	}
	wg.Wait()

	snap, _ := h.engine.Snapshot()
	if snap.Position != workers*steps {
		t.Fatalf("expected position %d after concurrent NextLine, got %d", workers*steps, snap.Position)
	}

	h.waitForPosition(t, snap.DocID, workers*steps)
}

func TestEngine_RepaginateIsAtomicUnderNavigation(t *testing.T) {
	h := newHarness(t, 5)
	path := writeFile(t, "novel.txt", []byte(scenarioText))
	if _, err := h.engine.Open(context.Background(), path); err != nil {
		t.Fatalf("open: %v", err)
	}

	// Chapter starts for each line size of the scenario document.
	starts := map[int][]int{
		5: {0, 4, 6},
		1: {0, 13, 15},
	}
	totals := map[int]int{5: 8, 1: 17}

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(stop)
		sizes := []int{1, 5}
		for i := range 200 {
			if err := h.engine.Repaginate(sizes[i%2]); err != nil {
				t.Errorf("repaginate: %v", err)
				return
			}
		}
	}()

	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				if err := h.engine.NextLine(); err != nil && !errors.Is(err, ErrOutOfBounds) {
					t.Errorf("next line: %v", err)
					return
				}
				if err := h.engine.PrevChapter(); err != nil && !errors.Is(err, ErrNoAdjacentChapter) {
					t.Errorf("prev chapter: %v", err)
					return
				}
			}
		}()
	}

	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap, err := h.engine.Snapshot()
				if err != nil {
					t.Errorf("snapshot: %v", err)
					return
				}
				checkSnapshot(t, snap, starts, totals)
			}
		}()
	}
	wg.Wait()

	snap, _ := h.engine.Snapshot()
	checkSnapshot(t, snap, starts, totals)
}

func checkSnapshot(t *testing.T, snap Snapshot, starts map[int][]int, totals map[int]int) {
	t.Helper()
	if snap.Position < 0 || snap.Position >= snap.TotalLines {
		t.Errorf("position %d outside [0, %d)", snap.Position, snap.TotalLines)
	}
	if want, ok := totals[snap.LineSize]; !ok || snap.TotalLines != want {
		t.Errorf("line size %d with %d lines, want %d", snap.LineSize, snap.TotalLines, want)
	}
	want := starts[snap.LineSize]
	if len(snap.Chapters) != len(want) {
		t.Errorf("line size %d: expected %d chapters, got %+v", snap.LineSize, len(want), snap.Chapters)
		return
	}
	for i, ch := range snap.Chapters {
		if ch.StartLine >= snap.TotalLines || ch.StartLine != want[i] {
			t.Errorf("line size %d: chapter %d starts at %d, want %d", snap.LineSize, i, ch.StartLine, want[i])
		}
	}
	if snap.CurrentChapter != nil && snap.CurrentChapter.StartLine > snap.Position {
		t.Errorf("current chapter starts at %d after position %d", snap.CurrentChapter.StartLine, snap.Position)
	}
}
