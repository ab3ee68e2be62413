package sconced

import "testing"

func TestMailboxDropsNewestWhenFull(t *testing.T) {
	const capacity = 8

	sender, receiver := NewMailbox[int](capacity)

	for i := 0; i < capacity; i++ {
		if !sender.TrySend(i) {
			t.Fatalf("TrySend(%d) rejected below capacity", i)
		}
	}
	if sender.TrySend(capacity) {
		t.Fatal("TrySend accepted a command beyond capacity")
	}

	// Draining returns exactly the accepted commands in FIFO order.
	for i := 0; i < capacity; i++ {
		select {
		case got := <-receiver.C():
			if got != i {
				t.Fatalf("drained %d, want %d", got, i)
			}
		default:
			t.Fatalf("queue empty after %d commands, want %d", i, capacity)
		}
	}
	select {
	case got := <-receiver.C():
		t.Fatalf("unexpected extra command %d", got)
	default:
	}
}

func TestMailboxRecoversAfterDrain(t *testing.T) {
	sender, receiver := NewMailbox[int](1)

	sender.TrySend(1)
	if sender.TrySend(2) {
		t.Fatal("TrySend accepted while full")
	}
	<-receiver.C()

	if !sender.TrySend(3) {
		t.Fatal("TrySend rejected after drain")
	}
	if got := <-receiver.C(); got != 3 {
		t.Fatalf("received %d, want 3", got)
	}
}
