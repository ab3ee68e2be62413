package sconced

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"dev.acmcsuf.com/sconced/keyframe"
	"dev.acmcsuf.com/sconced/xcolor"
)

// The button grid is a 4x4 matrix of backlit pads.
const (
	NumPadColumns = 4
	NumPadRows    = 4
	NumPads       = NumPadColumns * NumPadRows
)

// gridFrameBytes covers one 4-byte LED frame per pad plus the 4-byte
// start and end frames of the APA102 stream.
const gridFrameBytes = NumPads*4 + 8

const (
	padBrightnessScale = 1
	padBrightnessMax   = xcolor.MaxAPA102Brightness
	padBrightnessMin   = 1

	// padFrameMultiplier maps elapsed tick periods to keyframe table
	// frames, so a table spanning 500 frames plays over one second.
	padFrameMultiplier = 10
)

// DefaultSleepTimeout is how long the grid stays lit without any
// button activity before it starts fading out.
const DefaultSleepTimeout = 30 * time.Second

// GridCommand is a mutation request for the grid renderer.
type GridCommand interface {
	isGridCommand()
}

// SetCheckedMask overwrites the checked bitmask. It is used for
// authoritative state pushed from upstream (e.g. the active effect
// reported by Home Assistant) and does not reset the idle timer.
type SetCheckedMask struct {
	Mask uint16
}

// OrCheckedMask merges bits into the checked bitmask. Button presses
// use it so concurrent presses don't clobber each other; it also resets
// the idle timer.
type OrCheckedMask struct {
	Mask uint16
}

func (SetCheckedMask) isGridCommand() {}
func (OrCheckedMask) isGridCommand()  {}

// GridEngineOpts are options for a GridEngine.
type GridEngineOpts struct {
	// Bindings assigns each pad its animation palette and latch
	// behavior. At most NumPads entries.
	Bindings []PadBinding
	// Sink receives the finished APA102 frame once per tick.
	Sink GridSink
	// Logger is the logger to use for the engine.
	Logger *slog.Logger
	// Period is the tick period. Zero means TickPeriod.
	Period time.Duration
	// SleepTimeout is the idle window before the grid fades out.
	// Zero means DefaultSleepTimeout.
	SleepTimeout time.Duration
}

// GridEngine owns the grid's output buffer and per-pad render state:
// a cyclic keyframe cursor and a decaying brightness envelope per pad,
// the checked/latch bitmasks, and the idle/sleep state machine.
type GridEngine struct {
	opts GridEngineOpts
	recv *Receiver[GridCommand]

	cursors  [NumPads]keyframe.Cursor
	envelope [NumPads]uint32
	frame    [gridFrameBytes]byte

	checkedMask uint16
	latchMask   uint16

	lastPeriod   uint64
	sleepAt      time.Time
	sleepPending bool
	sleeping     bool
}

// NewGridEngine creates a grid engine consuming commands from recv.
func NewGridEngine(recv *Receiver[GridCommand], opts GridEngineOpts) (*GridEngine, error) {
	if len(opts.Bindings) > NumPads {
		return nil, fmt.Errorf("%d pad bindings for %d pads", len(opts.Bindings), NumPads)
	}
	if opts.Period == 0 {
		opts.Period = TickPeriod
	}
	if opts.SleepTimeout == 0 {
		opts.SleepTimeout = DefaultSleepTimeout
	}

	e := &GridEngine{
		opts: opts,
		recv: recv,
	}
	for i, binding := range opts.Bindings {
		e.cursors[i].SetTable(binding.Keyframes)
		if binding.Command.Latch() {
			e.latchMask |= 1 << i
		}
	}
	for i := range e.envelope {
		e.envelope[i] = padBrightnessMax * padBrightnessScale
	}
	return e, nil
}

func (e *GridEngine) apply(cmd GridCommand) {
	switch cmd := cmd.(type) {
	case SetCheckedMask:
		e.checkedMask = cmd.Mask
	case OrCheckedMask:
		e.checkedMask |= cmd.Mask
		e.touchSleepTimer()
	}
}

// touchSleepTimer pushes the idle deadline out and forces the engine
// back to the active state.
func (e *GridEngine) touchSleepTimer() {
	e.sleepAt = time.Now().Add(e.opts.SleepTimeout)
	e.sleepPending = false
	e.sleeping = false
}

// tick renders one frame for the given period index and reports whether
// any pad is still lit. Checked pads jump to full brightness; the rest
// decay by one step per elapsed period down to the floor. The floor is
// zero while a sleep is pending so the whole grid can fade fully out.
func (e *GridEngine) tick(period uint64) (lit bool) {
	delta := uint32(0)
	if e.lastPeriod != 0 {
		delta = uint32(period - e.lastPeriod)
	}
	e.lastPeriod = period

	floor := uint32(padBrightnessMin)
	if e.sleepPending {
		floor = 0
	}

	var allBrightnessBits uint32
	for i := 0; i < NumPads; i++ {
		checked := e.checkedMask&(1<<i) != 0
		if checked && !e.sleepPending {
			e.envelope[i] = padBrightnessMax * padBrightnessScale
		} else {
			env := e.envelope[i]
			if env < delta {
				env = 0
			} else {
				env -= delta
			}
			e.envelope[i] = max(env, floor*padBrightnessScale)
		}
		allBrightnessBits |= e.envelope[i]

		color := e.cursors[i].At(period * padFrameMultiplier)
		color.PutAPA102(e.frame[i*4+4:], uint8(e.envelope[i]/padBrightnessScale))
	}

	// Non-latching bits auto-clear after exactly one frame.
	e.checkedMask &= e.latchMask

	return allBrightnessBits != 0
}

// Run drives the engine until ctx is canceled. While active it waits on
// the earliest of the next aligned tick deadline, the idle deadline and
// an inbound command. Once asleep it stops ticking entirely and blocks
// solely on the mailbox, so an idle grid transmits nothing.
func (e *GridEngine) Run(ctx context.Context) error {
	e.touchSleepTimer()

	for {
		if e.sleeping {
			select {
			case <-ctx.Done():
				return nil
			case cmd := <-e.recv.C():
				e.apply(cmd)
			}
			continue
		}

		tick := time.NewTimer(time.Until(nextDeadline(time.Now(), e.opts.Period)))

		// Once a sleep is pending the idle deadline has served its
		// purpose; a nil channel keeps that select arm disabled.
		var sleepC <-chan time.Time
		var sleep *time.Timer
		if !e.sleepPending {
			sleep = time.NewTimer(time.Until(e.sleepAt))
			sleepC = sleep.C
		}
		stopSleep := func() {
			if sleep != nil {
				sleep.Stop()
			}
		}

		select {
		case <-ctx.Done():
			tick.Stop()
			stopSleep()
			return nil

		case <-tick.C:
			stopSleep()
			lit := e.tick(periodIndex(time.Now(), e.opts.Period))
			if err := e.opts.Sink.Transmit(ctx, e.frame[:]); err != nil {
				return fmt.Errorf("failed to transmit grid frame: %w", err)
			}
			if !lit && e.sleepPending {
				e.opts.Logger.Debug("grid fully faded, sleeping")
				e.sleeping = true
			}

		case <-sleepC:
			tick.Stop()
			e.opts.Logger.Debug(
				"grid idle, fading out",
				"timeout", e.opts.SleepTimeout)
			e.sleepPending = true

		case cmd := <-e.recv.C():
			tick.Stop()
			stopSleep()
			e.apply(cmd)
		}
	}
}
