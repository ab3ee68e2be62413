package sconced

import (
	"context"
	"testing"
	"time"

	"dev.acmcsuf.com/sconced/xcolor"
	"github.com/neilotoole/slogt"
)

func newTestStripEngine(t *testing.T) (*StripEngine, *Sender[StripCommand]) {
	t.Helper()
	sender, receiver := NewMailbox[StripCommand](DefaultMailboxCap)
	engine := NewStripEngine(receiver, StripEngineOpts{
		Sink:   stripSinkFunc(func(context.Context, []uint32) error { return nil }),
		Logger: slogt.New(t),
	})
	return engine, sender
}

type stripSinkFunc func(ctx context.Context, frame []uint32) error

func (f stripSinkFunc) Transmit(ctx context.Context, frame []uint32) error {
	return f(ctx, frame)
}

func TestStripEngineStaticFill(t *testing.T) {
	engine, _ := newTestStripEngine(t)

	red := xcolor.RGBW(255, 0, 0, 0)
	engine.apply(SetPrimaryColor{Color: red})
	engine.apply(SetEffect{Effect: EffectStatic})
	engine.render(1234)

	want := red.WithBrightness(255).SK6812()
	for i, word := range engine.buffer {
		if word != want {
			t.Errorf("buffer[%d] = %#x, want %#x", i, word, want)
		}
	}
}

func TestStripEngineBrightnessScalesStatic(t *testing.T) {
	engine, _ := newTestStripEngine(t)

	engine.apply(SetPrimaryColor{Color: xcolor.RGBW(200, 100, 50, 25)})
	engine.apply(SetBrightness{Level: 127})
	engine.render(0)

	want := xcolor.RGBW(200, 100, 50, 25).WithBrightness(127).SK6812()
	if engine.buffer[0] != want {
		t.Errorf("buffer[0] = %#x, want %#x", engine.buffer[0], want)
	}
}

func TestStripEngineRainbowFill(t *testing.T) {
	engine, _ := newTestStripEngine(t)

	engine.apply(SetEffect{Effect: EffectRainbow})
	engine.apply(SetEffectSpeed{Speed: 64})
	engine.apply(SetBrightness{Level: 255})

	const period = 1000
	engine.render(period)

	base := uint32(period * 64 / 64 % 65535)
	for i, word := range engine.buffer {
		hue := uint16((base + 65535/NumStripLEDs*uint32(i)) % 65535)
		want := xcolor.FromHSV(hue, 255, 255).SK6812()
		if word != want {
			t.Errorf("buffer[%d] = %#x, want %#x", i, word, want)
		}
	}

	// Each LED gets a distinct hue offset.
	if engine.buffer[0] == engine.buffer[NumStripLEDs/2] {
		t.Error("rainbow fill produced identical colors half a strip apart")
	}
}

func TestStripEngineShiftColor(t *testing.T) {
	engine, _ := newTestStripEngine(t)

	var list SetColorList
	for i := range list.Colors {
		list.Colors[i] = xcolor.RGB(uint8(i), 0, 0)
	}
	engine.apply(list)

	shifted := xcolor.RGB(99, 0, 0)
	engine.apply(ShiftColor{Color: shifted})

	if engine.buffer[0] != shifted.SK6812() {
		t.Errorf("buffer[0] = %#x, want shifted color", engine.buffer[0])
	}
	for i := 1; i < NumStripLEDs; i++ {
		want := xcolor.RGB(uint8(i-1), 0, 0).SK6812()
		if engine.buffer[i] != want {
			t.Errorf("buffer[%d] = %#x, want %#x", i, engine.buffer[i], want)
		}
	}
}

func TestStripEngineBufferWritesAreTransient(t *testing.T) {
	engine, _ := newTestStripEngine(t)

	engine.apply(SetPrimaryColor{Color: xcolor.RGB(0, 255, 0)})
	engine.apply(ShiftColor{Color: xcolor.RGB(255, 0, 0)})
	engine.render(0)

	// The next tick recomputes the whole buffer from the active effect;
	// direct buffer writes do not survive it.
	want := xcolor.RGB(0, 255, 0).SK6812()
	if engine.buffer[0] != want {
		t.Errorf("buffer[0] = %#x, want effect fill %#x", engine.buffer[0], want)
	}
}

func TestStripEngineRunRendersAndAppliesCommands(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	frames := make(chan []uint32, 16)
	sink := stripSinkFunc(func(_ context.Context, frame []uint32) error {
		snapshot := make([]uint32, len(frame))
		copy(snapshot, frame)
		select {
		case frames <- snapshot:
		default:
		}
		return nil
	})

	sender, receiver := NewMailbox[StripCommand](DefaultMailboxCap)
	engine := NewStripEngine(receiver, StripEngineOpts{
		Sink:   sink,
		Logger: slogt.New(t),
		Period: 5 * time.Millisecond,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- engine.Run(ctx)
	}()

	red := xcolor.RGBW(255, 0, 0, 0)
	if !sender.TrySend(SetPrimaryColor{Color: red}) {
		t.Fatal("TrySend rejected")
	}

	want := red.SK6812()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case frame := <-frames:
			if frame[0] == want {
				cancel()
				if err := <-errCh; err != nil {
					t.Error("engine error:", err)
				}
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for red frame")
		}
	}
}
