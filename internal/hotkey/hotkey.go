// Package hotkey maps keyboard accelerators to reader actions and runs them
// asynchronously, the way global shortcuts fire outside any request.
package hotkey

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/dgallion1/docreader/internal/events"
)

var (
	ErrInvalidAccelerator = errors.New("hotkey: invalid accelerator")
	ErrUnknownAccelerator = errors.New("hotkey: accelerator not bound")
	ErrUnknownAction      = errors.New("hotkey: unknown action")
	ErrDuplicateBinding   = errors.New("hotkey: accelerator already bound")
)

// Action is something a hotkey can do.
type Action string

const (
	ActionNextLine          Action = "next_line"
	ActionPrevLine          Action = "prev_line"
	ActionNextChapter       Action = "next_chapter"
	ActionPrevChapter       Action = "prev_chapter"
	ActionToggleReadingMode Action = "toggle_reading_mode"
)

// Actions lists every bindable action.
var Actions = []Action{
	ActionNextLine,
	ActionPrevLine,
	ActionNextChapter,
	ActionPrevChapter,
	ActionToggleReadingMode,
}

func (a Action) valid() bool {
	for _, x := range Actions {
		if a == x {
			return true
		}
	}
	return false
}

// DefaultBindings returns the stock accelerators for an OS. macOS adds Alt
// so the bindings do not collide with system shortcuts.
func DefaultBindings(goos string) map[Action]string {
	prefix := "Control+"
	if goos == "darwin" {
		prefix = "Control+Alt+"
	}
	return map[Action]string{
		ActionNextLine:          prefix + "ArrowRight",
		ActionPrevLine:          prefix + "ArrowLeft",
		ActionNextChapter:       prefix + "ArrowDown",
		ActionPrevChapter:       prefix + "ArrowUp",
		ActionToggleReadingMode: prefix + "Backslash",
	}
}

// Navigator is the reader surface hotkeys drive.
type Navigator interface {
	NextLine() error
	PrevLine() error
	NextChapter() error
	PrevChapter() error
}

// Binding is one action and its accelerator as configured.
type Binding struct {
	Action      Action `json:"action"`
	Accelerator string `json:"accelerator"`
}

// Dispatcher resolves accelerators and runs their actions on their own
// goroutines. Navigation only happens while reading mode is on.
type Dispatcher struct {
	nav    Navigator
	broker *events.Broker
	log    *slog.Logger

	mu       sync.RWMutex
	byAccel  map[string]Action
	byAction map[Action]string
	reading  bool

	wg sync.WaitGroup
}

// NewDispatcher validates bindings and builds a dispatcher with reading mode off.
func NewDispatcher(nav Navigator, bindings map[Action]string, broker *events.Broker, log *slog.Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		nav:      nav,
		broker:   broker,
		log:      log,
		byAccel:  make(map[string]Action),
		byAction: make(map[Action]string),
	}
	for action, accel := range bindings {
		if err := d.bindLocked(action, accel); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Press resolves accel and starts its action in the background.
func (d *Dispatcher) Press(accel string) (Action, error) {
	norm, err := Normalize(accel)
	if err != nil {
		return "", err
	}
	d.mu.RLock()
	action, ok := d.byAccel[norm]
	d.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownAccelerator, accel)
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.run(action)
	}()
	return action, nil
}

// Wait blocks until every started action has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) run(action Action) {
	log := d.log.With("action", string(action))
	if action == ActionToggleReadingMode {
		on := d.ToggleReadingMode()
		log.Info("reading mode toggled", "reading_mode", on)
		return
	}
	if !d.ReadingMode() {
		log.Debug("hotkey ignored outside reading mode")
		return
	}

	var err error
	switch action {
	case ActionNextLine:
		err = d.nav.NextLine()
	case ActionPrevLine:
		err = d.nav.PrevLine()
	case ActionNextChapter:
		err = d.nav.NextChapter()
	case ActionPrevChapter:
		err = d.nav.PrevChapter()
	}
	if err != nil {
		log.Warn("hotkey action failed", "error", err)
	}
}

// Rebind moves action to a new accelerator.
func (d *Dispatcher) Rebind(action Action, accel string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.bindLocked(action, accel)
}

func (d *Dispatcher) bindLocked(action Action, accel string) error {
	if !action.valid() {
		return fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	norm, err := Normalize(accel)
	if err != nil {
		return err
	}
	if owner, ok := d.byAccel[norm]; ok && owner != action {
		return fmt.Errorf("%w: %q is used by %s", ErrDuplicateBinding, accel, owner)
	}
	if old, ok := d.byAction[action]; ok {
		oldNorm, _ := Normalize(old)
		delete(d.byAccel, oldNorm)
	}
	d.byAccel[norm] = action
	d.byAction[action] = accel
	return nil
}

// Bindings returns the current bindings sorted by action.
func (d *Dispatcher) Bindings() []Binding {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Binding, 0, len(d.byAction))
	for a, accel := range d.byAction {
		out = append(out, Binding{Action: a, Accelerator: accel})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Action < out[j].Action })
	return out
}

// ReadingMode reports whether navigation hotkeys are live.
func (d *Dispatcher) ReadingMode() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.reading
}

// SetReadingMode turns navigation hotkeys on or off and notifies on change.
func (d *Dispatcher) SetReadingMode(on bool) {
	d.mu.Lock()
	changed := d.reading != on
	d.reading = on
	d.mu.Unlock()
	if changed && d.broker != nil {
		d.broker.Publish(events.KindReadingModeChange)
	}
}

// ToggleReadingMode flips reading mode and returns the new state.
func (d *Dispatcher) ToggleReadingMode() bool {
	d.mu.Lock()
	d.reading = !d.reading
	on := d.reading
	d.mu.Unlock()
	if d.broker != nil {
		d.broker.Publish(events.KindReadingModeChange)
	}
	return on
}
