package stream

import (
	"testing"
	"time"
)

func TestBrokerFanOut(t *testing.T) {
	b := NewBroker()

	id1, ch1 := b.Subscribe()
	_, ch2 := b.Subscribe()
	if b.ClientCount() != 2 {
		t.Fatalf("expected 2 subscribers, got %d", b.ClientCount())
	}

	evt := Event{Target: "capture_page", Code: "ABC123"}
	b.Publish(evt)

	for _, ch := range []<-chan Event{ch1, ch2} {
		select {
		case got := <-ch:
			if got.Code != "ABC123" {
				t.Fatalf("unexpected event: %+v", got)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber did not receive event")
		}
	}

	b.Unsubscribe(id1)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 subscriber after unsubscribe, got %d", b.ClientCount())
	}
	if _, open := <-ch1; open {
		t.Fatalf("expected unsubscribed channel to be closed")
	}
}

func TestBrokerDropsForSlowConsumers(t *testing.T) {
	b := NewBroker()
	_, ch := b.Subscribe()

	// Overfill the buffer; Publish must never block.
	done := make(chan struct{})
	go func() {
		for i := range subscriberBufSize * 2 {
			b.Publish(Event{Code: string(rune('a' + i%26))})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Publish blocked on a slow consumer")
	}
	if len(ch) != subscriberBufSize {
		t.Fatalf("expected a full buffer of %d, got %d", subscriberBufSize, len(ch))
	}
}
