package livefeed

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestHubFanOut(t *testing.T) {
	h := NewHub(4, zerolog.Nop())

	a := h.Subscribe("m1")
	b := h.Subscribe("m1")
	other := h.Subscribe("m2")
	defer a.Close()
	defer b.Close()
	defer other.Close()

	h.Publish(Event{Kind: EventParticipantJoined, MeetingID: "m1", UserID: "u1"})

	for _, sub := range []*Subscription{a, b} {
		select {
		case evt := <-sub.C:
			if evt.Kind != EventParticipantJoined || evt.UserID != "u1" {
				t.Fatalf("unexpected event: %+v", evt)
			}
		default:
			t.Fatal("subscriber did not receive event")
		}
	}
	select {
	case evt := <-other.C:
		t.Fatalf("m2 subscriber received m1 event: %+v", evt)
	default:
	}
}

func TestHubPublishNeverBlocks(t *testing.T) {
	h := NewHub(2, zerolog.Nop())
	sub := h.Subscribe("m1")
	defer sub.Close()

	// Overfill the buffer; extra events must be dropped, not block.
	for i := 0; i < 10; i++ {
		h.Publish(Event{Kind: EventSegmentAppended, MeetingID: "m1"})
	}
	got := 0
	for {
		select {
		case <-sub.C:
			got++
			continue
		default:
		}
		break
	}
	if got != 2 {
		t.Fatalf("expected 2 buffered events, got %d", got)
	}
}

func TestHubUnsubscribe(t *testing.T) {
	h := NewHub(4, zerolog.Nop())
	sub := h.Subscribe("m1")
	if n := h.SubscriberCount("m1"); n != 1 {
		t.Fatalf("expected 1 subscriber, got %d", n)
	}
	sub.Close()
	if n := h.SubscriberCount("m1"); n != 0 {
		t.Fatalf("expected 0 subscribers after close, got %d", n)
	}
	// Closing twice must not panic.
	sub.Close()

	h.Publish(Event{Kind: EventSegmentAppended, MeetingID: "m1"})
	if _, ok := <-sub.C; ok {
		t.Fatal("closed subscription received event")
	}
}
