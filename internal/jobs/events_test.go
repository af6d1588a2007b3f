package jobs

import "testing"

// TestEventBusSince verifies incremental event reads by sequence.
func TestEventBusSince(t *testing.T) {
	bus := NewEventBus(3)
	bus.Publish(Event{Type: EventTypeStatus, Message: "1"})
	bus.Publish(Event{Type: EventTypeProgress, Progress: 0.5})
	bus.Publish(Event{Type: EventTypeStatus, Message: "3"})

	events := bus.Since(1)
	if len(events) != 2 {
		t.Fatalf("len = %d, want 2", len(events))
	}
	if events[0].Seq != 2 || events[1].Seq != 3 {
		t.Fatalf("unexpected seqs: %+v", events)
	}
	if bus.LastSeq() != 3 {
		t.Fatalf("last seq = %d, want 3", bus.LastSeq())
	}
}

// TestEventBusCapsHistory verifies buffer limit trimming behavior.
func TestEventBusCapsHistory(t *testing.T) {
	bus := NewEventBus(2)
	bus.Publish(Event{Message: "1"})
	bus.Publish(Event{Message: "2"})
	bus.Publish(Event{Message: "3"})

	events := bus.Since(0)
	if len(events) != 2 {
		t.Fatalf("len = %d, want 2", len(events))
	}
	if events[0].Message != "2" || events[1].Message != "3" {
		t.Fatalf("unexpected events: %+v", events)
	}
}

// TestEventBusStampsEvents verifies timestamps are filled in.
func TestEventBusStampsEvents(t *testing.T) {
	bus := NewEventBus(0)
	event := bus.Publish(Event{Type: EventTypeLog})
	if event.Timestamp.IsZero() {
		t.Fatal("expected timestamp")
	}
	if event.Seq != 1 {
		t.Fatalf("seq = %d, want 1", event.Seq)
	}
}
