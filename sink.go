package sconced

import (
	"context"
	"time"
)

// StripSink transmits a finished strip frame. The buffer holds one
// encoded SK6812 word per LED and is owned by the renderer: the sink
// must not retain it past the call. Transmit may block for the duration
// of the physical transfer, but must finish well inside one tick
// period.
type StripSink interface {
	Transmit(ctx context.Context, frame []uint32) error
}

// GridSink transmits a finished grid frame: the raw APA102 byte stream
// including its start and end frames. The same ownership rules as
// StripSink apply.
type GridSink interface {
	Transmit(ctx context.Context, frame []byte) error
}

// TickPeriod is the renderer cadence shared by both devices: 20 ms,
// 50 Hz.
const TickPeriod = 20 * time.Millisecond

// nextDeadline returns the earliest instant at or after now that is a
// whole multiple of period. Aligning deadlines to the absolute clock
// keeps the tick phase-locked regardless of when the previous iteration
// finished.
func nextDeadline(now time.Time, period time.Duration) time.Time {
	next := now.Truncate(period)
	if next.Before(now) {
		next = next.Add(period)
	}
	return next
}

// periodIndex counts whole periods elapsed since the Unix epoch. It is
// the frame counter that drives the effect and keyframe animations.
func periodIndex(now time.Time, period time.Duration) uint64 {
	return uint64(now.UnixNano()) / uint64(period.Nanoseconds())
}
