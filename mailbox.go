package sconced

// DefaultMailboxCap is the command queue depth used by both engines.
const DefaultMailboxCap = 64

// NewMailbox creates a bounded command queue and returns its two
// halves. The Sender may be shared by any number of producers; the
// Receiver belongs to exactly one consumer task. The queue lives for
// the lifetime of the process and is never torn down.
func NewMailbox[T any](capacity int) (*Sender[T], *Receiver[T]) {
	ch := make(chan T, capacity)
	return &Sender[T]{ch: ch}, &Receiver[T]{ch: ch}
}

// Sender is the producer half of a mailbox. Sends are drop-on-full:
// control commands are either idempotent or superseded by later ones,
// so under sustained overload the newest command is discarded rather
// than ever blocking a producer.
type Sender[T any] struct {
	ch chan<- T
}

// TrySend enqueues v without blocking. It reports whether the command
// was accepted; false means the queue was full and v was dropped.
func (s *Sender[T]) TrySend(v T) bool {
	select {
	case s.ch <- v:
		return true
	default:
		return false
	}
}

// Receiver is the consumer half of a mailbox.
type Receiver[T any] struct {
	ch <-chan T
}

// C exposes the receive channel so the consumer can select it against
// its other wake-up sources. Commands arrive in FIFO order.
func (r *Receiver[T]) C() <-chan T { return r.ch }
