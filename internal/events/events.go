// package events fans out database change notifications to live subscribers
package events

import (
	"context"
	"sync"
	"time"
)

// Action is the kind of row change.
type Action string

const (
	ActionInsert Action = "insert"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Change describes one row change. UserID scopes per-user changes such as
// favorites and progress; it is empty for changes everyone should see.
type Change struct {
	Table  string    `json:"table"`
	Action Action    `json:"action"`
	ID     string    `json:"id"`
	UserID string    `json:"userId,omitempty"`
	At     time.Time `json:"at"`
}

// VisibleTo reports whether the change concerns the user (or everyone).
func (c Change) VisibleTo(userID string) bool {
	return c.UserID == "" || c.UserID == userID
}

// Publisher is implemented by anything that accepts changes.
type Publisher interface {
	Publish(Change)
}

// Broker is an in-process change feed.
type Broker struct {
	mu     sync.Mutex
	subs   map[chan Change]struct{}
	closed bool
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[chan Change]struct{})}
}

// Publish delivers c to every subscriber without blocking; subscribers whose
// buffer is full miss the change.
func (b *Broker) Publish(c Change) {
	if c.At.IsZero() {
		c.At = time.Now().UTC()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for ch := range b.subs {
		select {
		case ch <- c:
		default:
		}
	}
}

// Subscribe returns a channel of changes that is closed when ctx is done or
// the broker is closed.
func (b *Broker) Subscribe(ctx context.Context, buffer int) <-chan Change {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Change, buffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch
	}
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.unsubscribe(ch)
	}()

	return ch
}

func (b *Broker) unsubscribe(ch chan Change) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
}

// Subscribers returns the number of live subscriptions.
func (b *Broker) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close ends every subscription. Later subscriptions are closed immediately.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for ch := range b.subs {
		delete(b.subs, ch)
		close(ch)
	}
}

// Discard is a [Publisher] that drops every change.
type Discard struct{}

func (Discard) Publish(Change) {}
