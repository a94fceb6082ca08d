// Package events fans out "state changed" notifications to subscribers.
package events

import (
	"sync"
	"time"
)

// Kind names what changed. Consumers re-fetch state; events carry no payload.
type Kind string

const (
	KindReaderChange      Kind = "reader-change"
	KindReadingModeChange Kind = "reading-mode-change"
)

// Event is one notification.
type Event struct {
	ID   string    `json:"id"`
	Kind Kind      `json:"kind"`
	At   time.Time `json:"at"`
}

// subscriberBuffer is how many events a slow subscriber may lag before
// further events are dropped for it.
const subscriberBuffer = 16

// Broker delivers published events to every current subscriber without
// ever blocking the publisher.
type Broker struct {
	mu     sync.Mutex
	subs   map[chan Event]struct{}
	closed bool
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[chan Event]struct{})}
}

// Subscribe registers a subscriber. The returned func unsubscribes and
// closes the channel; it is safe to call more than once.
func (b *Broker) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[ch]; ok {
				delete(b.subs, ch)
				close(ch)
			}
		})
	}
}

// Publish sends an event of kind to all subscribers and returns it.
func (b *Broker) Publish(kind Kind) Event {
	now := time.Now()
	ev := Event{ID: NewID(now), Kind: kind, At: now}

	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	return ev
}

// Subscribers returns the number of live subscriptions.
func (b *Broker) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close ends every subscription. Later publishes are no-ops.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for ch := range b.subs {
		delete(b.subs, ch)
		close(ch)
	}
}
