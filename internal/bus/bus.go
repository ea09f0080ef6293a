// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package bus is the in-process publish/subscribe channel for
// lifecycle events. Delivery is fan-out, at-most-once per subscriber:
// there is no replay, and a subscriber that falls behind loses events
// rather than blocking producers. Events from a single producer reach
// each subscriber in publish order.
package bus

import (
	"sync"

	"github.com/pdiddy/papertrail/pkg/types"
)

// subscriberBuffer is the per-subscriber channel depth. A subscriber
// that lags by more than this many events starts dropping.
const subscriberBuffer = 64

// Bus broadcasts events to any number of subscribers.
type Bus struct {
	mu     sync.Mutex
	subs   map[int]chan types.Event
	nextID int
	closed bool
}

// New returns an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[int]chan types.Event)}
}

// Publish delivers the event to every current subscriber. It never
// blocks: a full subscriber channel drops the event for that
// subscriber only.
func (b *Bus) Publish(e types.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribe registers a new subscriber and returns its event channel
// plus a cancel function. Cancel is idempotent and closes the channel.
func (b *Bus) Subscribe() (<-chan types.Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan types.Event, subscriberBuffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(ch)
			}
		})
	}
	return ch, cancel
}

// Close shuts the bus down and closes all subscriber channels.
// Publish after Close is a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
