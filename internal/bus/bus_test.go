package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("session.", 10)
	defer unsub()

	b.Publish(Event{Kind: KindStatusChanged, Timestamp: time.Now(), Payload: "test"})

	select {
	case evt := <-ch:
		if evt.Kind != KindStatusChanged {
			t.Errorf("got kind %q, want %s", evt.Kind, KindStatusChanged)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestNamespaceFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("socket.", 10)
	defer unsub()

	b.Publish(Event{Kind: KindStatusChanged})
	b.Publish(Event{Kind: KindSocketConnected})

	select {
	case evt := <-ch:
		if evt.Kind != KindSocketConnected {
			t.Errorf("got kind %q, want %s", evt.Kind, KindSocketConnected)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	// Ensure session event was not delivered.
	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEmptyNamespaceReceivesEverything(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("", 10)
	defer unsub()

	b.Publish(Event{Kind: KindSocketMessage})
	b.Publish(Event{Kind: KindNotifySendFailed, Payload: Notice{Peer: "p", Text: "x"}})

	for _, want := range []string{KindSocketMessage, KindNotifySendFailed} {
		select {
		case evt := <-ch:
			if evt.Kind != want {
				t.Errorf("got kind %q, want %q", evt.Kind, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for %s", want)
		}
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("session.", 10)
	unsub()

	unsub()

	b.Publish(Event{Kind: KindStatusChanged})

	if evt, ok := <-ch; ok {
		t.Errorf("received event after unsubscribe: %v", evt)
	}
	if n := b.Subscribers(); n != 0 {
		t.Errorf("Subscribers() = %d, want 0", n)
	}
}

func TestPublishStampsTimestamp(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("", 1)
	defer unsub()

	b.Publish(Event{Kind: KindSocketConnected})
	if evt := <-ch; evt.Timestamp.IsZero() {
		t.Error("Timestamp not stamped")
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("notify.", 1)
	defer unsub()

	b.Publish(Event{Kind: KindNotifySendFailed})
	// Dropped: buffer is full.
	b.Publish(Event{Kind: KindNotifyHistoryFailed})

	evt := <-ch
	if evt.Kind != KindNotifySendFailed {
		t.Errorf("got %q, want %s", evt.Kind, KindNotifySendFailed)
	}
}
