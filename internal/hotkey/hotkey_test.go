package hotkey

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dgallion1/docreader/internal/events"
)

type fakeNav struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeNav) record(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	return f.err
}

func (f *fakeNav) NextLine() error    { return f.record("next_line") }
func (f *fakeNav) PrevLine() error    { return f.record("prev_line") }
func (f *fakeNav) NextChapter() error { return f.record("next_chapter") }
func (f *fakeNav) PrevChapter() error { return f.record("prev_chapter") }

func (f *fakeNav) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func newTestDispatcher(t *testing.T, nav Navigator, broker *events.Broker) *Dispatcher {
	t.Helper()
	d, err := NewDispatcher(nav, DefaultBindings("linux"), broker, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	return d
}

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"Control+ArrowRight":    "control+arrowright",
		"ctrl + arrowright":     "control+arrowright",
		"Alt+Control+ArrowDown": "control+alt+arrowdown",
		"Shift+Cmd+Alt+Ctrl+Up": "control+alt+shift+super+arrowup",
		"Control+Backslash":     "control+backslash",
		"Control+\\":            "control+backslash",
		"Control+Control+Enter": "control+enter",
		"Control++":             "control+plus",
		"F5":                    "f5",
	}
	for in, want := range cases {
		got, err := Normalize(in)
		if err != nil {
			t.Errorf("Normalize(%q): unexpected error %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}

	for _, bad := range []string{"", "Control+", "Control+Alt", "Control+A+B"} {
		if _, err := Normalize(bad); !errors.Is(err, ErrInvalidAccelerator) {
			t.Errorf("Normalize(%q): expected ErrInvalidAccelerator, got %v", bad, err)
		}
	}
}

func TestDefaultBindings_Darwin(t *testing.T) {
	b := DefaultBindings("darwin")
	if b[ActionNextLine] != "Control+Alt+ArrowRight" {
		t.Errorf("unexpected darwin binding %q", b[ActionNextLine])
	}
	if len(b) != len(Actions) {
		t.Errorf("expected every action bound, got %d", len(b))
	}
}

func TestDispatcher_IgnoresNavigationOutsideReadingMode(t *testing.T) {
	nav := &fakeNav{}
	d := newTestDispatcher(t, nav, nil)

	action, err := d.Press("control+arrowright")
	if err != nil {
		t.Fatalf("press: %v", err)
	}
	if action != ActionNextLine {
		t.Errorf("expected next_line, got %q", action)
	}
	d.Wait()
	if calls := nav.Calls(); len(calls) != 0 {
		t.Errorf("expected no navigation outside reading mode, got %v", calls)
	}
}

func TestDispatcher_ToggleThenNavigate(t *testing.T) {
	nav := &fakeNav{}
	broker := events.NewBroker()
	ch, unsub := broker.Subscribe()
	defer unsub()
	d := newTestDispatcher(t, nav, broker)

	if _, err := d.Press("Control+Backslash"); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	d.Wait()
	if !d.ReadingMode() {
		t.Fatal("expected reading mode on after toggle")
	}
	select {
	case ev := <-ch:
		if ev.Kind != events.KindReadingModeChange {
			t.Errorf("unexpected event kind %q", ev.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("expected reading-mode-change event")
	}

	for _, accel := range []string{"Control+ArrowRight", "Control+ArrowLeft", "Control+ArrowDown", "Control+ArrowUp"} {
		if _, err := d.Press(accel); err != nil {
			t.Fatalf("press %s: %v", accel, err)
		}
		d.Wait()
	}
	want := []string{"next_line", "prev_line", "next_chapter", "prev_chapter"}
	got := nav.Calls()
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("call %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestDispatcher_ActionErrorsAreSwallowed(t *testing.T) {
	nav := &fakeNav{err: errors.New("boom")}
	d := newTestDispatcher(t, nav, nil)
	d.SetReadingMode(true)
	if _, err := d.Press("Control+ArrowRight"); err != nil {
		t.Fatalf("press should not surface action errors: %v", err)
	}
	d.Wait()
}

func TestDispatcher_UnknownAccelerator(t *testing.T) {
	d := newTestDispatcher(t, &fakeNav{}, nil)
	if _, err := d.Press("Shift+F12"); !errors.Is(err, ErrUnknownAccelerator) {
		t.Fatalf("expected ErrUnknownAccelerator, got %v", err)
	}
}

func TestDispatcher_Rebind(t *testing.T) {
	nav := &fakeNav{}
	d := newTestDispatcher(t, nav, nil)
	d.SetReadingMode(true)

	if err := d.Rebind(ActionNextLine, "Alt+J"); err != nil {
		t.Fatalf("rebind: %v", err)
	}
	if _, err := d.Press("Control+ArrowRight"); !errors.Is(err, ErrUnknownAccelerator) {
		t.Errorf("expected old accelerator to be released, got %v", err)
	}
	if _, err := d.Press("alt+j"); err != nil {
		t.Fatalf("press new binding: %v", err)
	}
	d.Wait()
	if calls := nav.Calls(); len(calls) != 1 || calls[0] != "next_line" {
		t.Errorf("expected next_line via new binding, got %v", calls)
	}

	if err := d.Rebind(ActionPrevLine, "ALT+j"); !errors.Is(err, ErrDuplicateBinding) {
		t.Errorf("expected ErrDuplicateBinding, got %v", err)
	}
	if err := d.Rebind(ActionNextLine, "Alt+J"); err != nil {
		t.Errorf("rebinding to the same accelerator should succeed: %v", err)
	}
	if err := d.Rebind("boss_key", "Control+Enter"); !errors.Is(err, ErrUnknownAction) {
		t.Errorf("expected ErrUnknownAction, got %v", err)
	}

	for _, b := range d.Bindings() {
		if b.Action == ActionNextLine && b.Accelerator != "Alt+J" {
			t.Errorf("expected binding listed as Alt+J, got %q", b.Accelerator)
		}
	}
}

func TestNewDispatcher_RejectsDuplicates(t *testing.T) {
	bindings := map[Action]string{
		ActionNextLine: "Control+K",
		ActionPrevLine: "ctrl+k",
	}
	if _, err := NewDispatcher(&fakeNav{}, bindings, nil, slog.New(slog.NewTextHandler(io.Discard, nil))); !errors.Is(err, ErrDuplicateBinding) {
		t.Fatalf("expected ErrDuplicateBinding, got %v", err)
	}
}

func TestDispatcher_SetReadingModePublishesOnChange(t *testing.T) {
	broker := events.NewBroker()
	ch, unsub := broker.Subscribe()
	defer unsub()
	d := newTestDispatcher(t, &fakeNav{}, broker)

	d.SetReadingMode(false)
	d.SetReadingMode(true)
	d.SetReadingMode(true)
	if n := len(ch); n != 1 {
		t.Errorf("expected exactly one event, got %d", n)
	}
}
