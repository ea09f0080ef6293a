// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package bus

import (
	"testing"
	"time"

	"github.com/pdiddy/papertrail/pkg/types"
)

func collect(ch <-chan types.Event, n int, t *testing.T) []types.Event {
	t.Helper()
	var events []types.Event
	timeout := time.After(2 * time.Second)
	for len(events) < n {
		select {
		case e, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, e)
		case <-timeout:
			t.Fatalf("timed out after %d of %d events", len(events), n)
		}
	}
	return events
}

func TestPublishReachesAllSubscribers(t *testing.T) {
	b := New()
	defer b.Close()

	ch1, cancel1 := b.Subscribe()
	defer cancel1()
	ch2, cancel2 := b.Subscribe()
	defer cancel2()

	b.Publish(types.NewEvent(types.EventIngested, map[string]any{"paper_id": "2301.07041"}))

	for i, ch := range []<-chan types.Event{ch1, ch2} {
		events := collect(ch, 1, t)
		if events[0].Type != types.EventIngested {
			t.Errorf("subscriber %d: type = %q, want %q", i, events[0].Type, types.EventIngested)
		}
		if events[0].Payload["paper_id"] != "2301.07041" {
			t.Errorf("subscriber %d: payload = %v", i, events[0].Payload)
		}
	}
}

func TestPublishOrderPreserved(t *testing.T) {
	b := New()
	defer b.Close()

	ch, cancel := b.Subscribe()
	defer cancel()

	for i := 0; i < 5; i++ {
		b.Publish(types.NewEvent(types.EventTaskTick, map[string]any{"n": i}))
	}

	events := collect(ch, 5, t)
	for i, e := range events {
		if e.Payload["n"] != i {
			t.Errorf("event %d: n = %v, want %d", i, e.Payload["n"], i)
		}
	}
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	b := New()
	defer b.Close()

	ch, cancel := b.Subscribe()
	defer cancel()

	// Publish past the buffer without draining; Publish must return.
	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer+10; i++ {
			b.Publish(types.NewEvent(types.EventTaskTick, nil))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}

	if got := len(ch); got != subscriberBuffer {
		t.Errorf("buffered events = %d, want %d", got, subscriberBuffer)
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	b := New()
	defer b.Close()

	ch, cancel := b.Subscribe()
	cancel()
	cancel() // idempotent

	if _, ok := <-ch; ok {
		t.Error("channel should be closed after cancel")
	}

	// Publishing after cancel must not panic.
	b.Publish(types.NewEvent(types.EventIngested, nil))
}

func TestCloseShutsDownSubscribers(t *testing.T) {
	b := New()
	ch, cancel := b.Subscribe()
	defer cancel()

	b.Close()
	if _, ok := <-ch; ok {
		t.Error("channel should be closed after bus Close")
	}

	b.Publish(types.NewEvent(types.EventIngested, nil))

	ch2, cancel2 := b.Subscribe()
	defer cancel2()
	if _, ok := <-ch2; ok {
		t.Error("subscribe after Close should return a closed channel")
	}
}

func TestNewEventFillsIDAndTime(t *testing.T) {
	e := types.NewEvent(types.EventBackfilled, map[string]any{"paper_id": "2301.07041"})
	if e.ID == "" {
		t.Error("event ID should be generated")
	}
	if e.Time.IsZero() {
		t.Error("event time should be set")
	}
	if e.Type != types.EventBackfilled {
		t.Errorf("type = %q, want %q", e.Type, types.EventBackfilled)
	}
}
