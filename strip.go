package sconced

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"dev.acmcsuf.com/sconced/xcolor"
)

// NumStripLEDs is the length of the linear strip.
const NumStripLEDs = 10

// Effect selects the strip's per-tick fill algorithm.
type Effect uint8

const (
	// EffectStatic fills every LED with the primary color.
	EffectStatic Effect = iota
	// EffectRainbow cycles a hue wheel across the strip.
	EffectRainbow

	numEffects
)

// EffectFromByte converts a wire byte to an Effect. It reports false
// for unknown values.
func EffectFromByte(b byte) (Effect, bool) {
	if Effect(b) >= numEffects {
		return 0, false
	}
	return Effect(b), true
}

func (e Effect) String() string {
	switch e {
	case EffectStatic:
		return "static"
	case EffectRainbow:
		return "rainbow"
	default:
		return fmt.Sprintf("effect(%d)", uint8(e))
	}
}

// StripCommand is a mutation request for the strip renderer. Commands
// are copy-small values; none of them carry heap data.
type StripCommand interface {
	isStripCommand()
}

// SetColorList overwrites every LED's buffered value. The write is
// transient: the next tick recomputes the buffer from the active
// effect.
type SetColorList struct {
	Colors [NumStripLEDs]xcolor.Color
}

// ShiftColor ring-shifts the buffer by one slot: the new color enters
// slot 0 and the last slot's prior value is discarded.
type ShiftColor struct {
	Color xcolor.Color
}

// SetPrimaryColor changes the color rendered by EffectStatic.
type SetPrimaryColor struct {
	Color xcolor.Color
}

// SetEffect selects the fill algorithm.
type SetEffect struct {
	Effect Effect
}

// SetEffectSpeed changes the rainbow cycle speed.
type SetEffectSpeed struct {
	Speed uint16
}

// SetBrightness changes the global strip brightness.
type SetBrightness struct {
	Level uint8
}

func (SetColorList) isStripCommand()    {}
func (ShiftColor) isStripCommand()      {}
func (SetPrimaryColor) isStripCommand() {}
func (SetEffect) isStripCommand()       {}
func (SetEffectSpeed) isStripCommand()  {}
func (SetBrightness) isStripCommand()   {}

// StripEngineOpts are options for a StripEngine.
type StripEngineOpts struct {
	// Sink receives the finished frame once per tick.
	Sink StripSink
	// Logger is the logger to use for the engine.
	Logger *slog.Logger
	// Period is the tick period. Zero means TickPeriod.
	Period time.Duration
}

// StripEngine owns the strip's output buffer and renders it once per
// tick, applying commands drained from its mailbox between ticks. It is
// the only goroutine that ever touches the buffer.
type StripEngine struct {
	opts StripEngineOpts
	recv *Receiver[StripCommand]

	buffer       [NumStripLEDs]uint32
	primaryColor xcolor.Color
	effect       Effect
	effectSpeed  uint16
	brightness   uint8
}

// NewStripEngine creates a strip engine consuming commands from recv.
func NewStripEngine(recv *Receiver[StripCommand], opts StripEngineOpts) *StripEngine {
	if opts.Period == 0 {
		opts.Period = TickPeriod
	}
	return &StripEngine{
		opts:         opts,
		recv:         recv,
		primaryColor: xcolor.Black,
		effect:       EffectStatic,
		effectSpeed:  32768,
		brightness:   255,
	}
}

func (e *StripEngine) apply(cmd StripCommand) {
	switch cmd := cmd.(type) {
	case SetColorList:
		for i, color := range cmd.Colors {
			e.buffer[i] = color.SK6812()
		}
	case ShiftColor:
		for i := NumStripLEDs - 1; i > 0; i-- {
			e.buffer[i] = e.buffer[i-1]
		}
		e.buffer[0] = cmd.Color.SK6812()
	case SetPrimaryColor:
		e.primaryColor = cmd.Color
	case SetEffect:
		e.opts.Logger.Debug(
			"switching strip effect",
			"effect", cmd.Effect)
		e.effect = cmd.Effect
	case SetEffectSpeed:
		e.effectSpeed = cmd.Speed
	case SetBrightness:
		e.brightness = cmd.Level
	}
}

// render recomputes the buffer for the given period index.
func (e *StripEngine) render(period uint64) {
	switch e.effect {
	case EffectStatic:
		word := e.primaryColor.WithBrightness(e.brightness).SK6812()
		for i := range e.buffer {
			e.buffer[i] = word
		}
	case EffectRainbow:
		base := uint32(period * uint64(e.effectSpeed) / 64 % 65535)
		const hueStep = 65535 / NumStripLEDs
		for i := range e.buffer {
			hue := uint16((base + hueStep*uint32(i)) % 65535)
			e.buffer[i] = xcolor.FromHSV(hue, 255, e.brightness).SK6812()
		}
	}
}

// Run drives the engine until ctx is canceled. Each loop iteration
// waits for whichever comes first: the next aligned tick deadline,
// which renders and transmits one frame, or one inbound command, which
// is applied and picked up by the next natural deadline. A transmit
// failure is reported to the caller and stops the engine.
func (e *StripEngine) Run(ctx context.Context) error {
	for {
		timer := time.NewTimer(time.Until(nextDeadline(time.Now(), e.opts.Period)))

		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case <-timer.C:
			e.render(periodIndex(time.Now(), e.opts.Period))
			if err := e.opts.Sink.Transmit(ctx, e.buffer[:]); err != nil {
				return fmt.Errorf("failed to transmit strip frame: %w", err)
			}

		case cmd := <-e.recv.C():
			timer.Stop()
			e.apply(cmd)
		}
	}
}
