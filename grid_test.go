package sconced

import (
	"context"
	"testing"
	"time"

	"github.com/neilotoole/slogt"
)

type gridSinkFunc func(ctx context.Context, frame []byte) error

func (f gridSinkFunc) Transmit(ctx context.Context, frame []byte) error {
	return f(ctx, frame)
}

func newTestGridEngine(t *testing.T, opts GridEngineOpts) (*GridEngine, *Sender[GridCommand]) {
	t.Helper()

	if opts.Bindings == nil {
		opts.Bindings = DefaultPadBindings
	}
	if opts.Sink == nil {
		opts.Sink = gridSinkFunc(func(context.Context, []byte) error { return nil })
	}
	if opts.Logger == nil {
		opts.Logger = slogt.New(t)
	}

	sender, receiver := NewMailbox[GridCommand](DefaultMailboxCap)
	engine, err := NewGridEngine(receiver, opts)
	if err != nil {
		t.Fatal("failed to create grid engine:", err)
	}
	return engine, sender
}

func TestNewGridEngineRejectsTooManyBindings(t *testing.T) {
	_, receiver := NewMailbox[GridCommand](1)
	_, err := NewGridEngine(receiver, GridEngineOpts{
		Bindings: make([]PadBinding, NumPads+1),
		Logger:   slogt.New(t),
	})
	if err == nil {
		t.Error("NewGridEngine accepted too many bindings")
	}
}

func TestGridEngineLatchMask(t *testing.T) {
	engine, _ := newTestGridEngine(t, GridEngineOpts{})

	// Every default pad latches except the media play/pause pad.
	want := uint16(0x7FFF)
	if engine.latchMask != want {
		t.Errorf("latchMask = %#x, want %#x", engine.latchMask, want)
	}
}

func TestGridEngineCheckedPadJumpsToMax(t *testing.T) {
	engine, _ := newTestGridEngine(t, GridEngineOpts{})

	// Settle: the first tick never decays (warm-up), later ticks do.
	engine.tick(100)
	engine.tick(110)

	engine.apply(OrCheckedMask{Mask: 1 << 2})
	before := engine.envelope
	engine.tick(111)

	if engine.envelope[2] != padBrightnessMax*padBrightnessScale {
		t.Errorf("envelope[2] = %d, want max", engine.envelope[2])
	}
	for i := 0; i < NumPads; i++ {
		if i == 2 {
			continue
		}
		if want := before[i] - 1; engine.envelope[i] != want {
			t.Errorf("envelope[%d] = %d, want %d", i, engine.envelope[i], want)
		}
	}
}

func TestGridEngineFirstTickNeverDecays(t *testing.T) {
	engine, _ := newTestGridEngine(t, GridEngineOpts{})

	engine.tick(1 << 20)
	for i, env := range engine.envelope {
		if env != padBrightnessMax*padBrightnessScale {
			t.Errorf("envelope[%d] = %d after warm-up tick, want max", i, env)
		}
	}
}

func TestGridEngineDecayReachesFloor(t *testing.T) {
	engine, _ := newTestGridEngine(t, GridEngineOpts{})

	engine.tick(100)
	for p := uint64(101); p <= 100+padBrightnessMax; p++ {
		engine.tick(p)
	}
	for i, env := range engine.envelope {
		if env != padBrightnessMin*padBrightnessScale {
			t.Errorf("envelope[%d] = %d, want floor %d", i, env, padBrightnessMin)
		}
	}
}

func TestGridEngineNonLatchingBitClearsAfterOneFrame(t *testing.T) {
	engine, _ := newTestGridEngine(t, GridEngineOpts{})

	// Pad 15 is the non-latching play/pause pad.
	engine.apply(OrCheckedMask{Mask: 1 << 15})
	engine.tick(100)

	if engine.checkedMask&(1<<15) != 0 {
		t.Error("non-latching bit survived a tick")
	}

	// A latching pad keeps its bit across ticks.
	engine.apply(OrCheckedMask{Mask: 1 << 0})
	engine.tick(101)
	engine.tick(102)
	if engine.checkedMask&1 == 0 {
		t.Error("latching bit cleared by ticks")
	}
	if engine.envelope[0] != padBrightnessMax*padBrightnessScale {
		t.Error("latched pad not held at max brightness")
	}
}

func TestGridEngineSetCheckedMaskOverwrites(t *testing.T) {
	engine, _ := newTestGridEngine(t, GridEngineOpts{})

	engine.apply(OrCheckedMask{Mask: 0x00F0})
	engine.apply(SetCheckedMask{Mask: 0x0001})
	if engine.checkedMask != 0x0001 {
		t.Errorf("checkedMask = %#x, want %#x", engine.checkedMask, 0x0001)
	}
}

func TestGridEngineFrameEncoding(t *testing.T) {
	engine, _ := newTestGridEngine(t, GridEngineOpts{})

	const period = 7
	engine.apply(OrCheckedMask{Mask: 1 << 0})
	engine.tick(period)

	// Start frame stays zero.
	for i := 0; i < 4; i++ {
		if engine.frame[i] != 0 {
			t.Fatalf("start frame byte %d = %#x, want 0", i, engine.frame[i])
		}
	}

	want := engine.cursors[0].At(period * padFrameMultiplier)
	led := engine.frame[4:8]
	if led[0] != 0b11100000|padBrightnessMax {
		t.Errorf("header byte = %#x, want full brightness", led[0])
	}
	if led[1] != want.B || led[2] != want.G || led[3] != want.R {
		t.Errorf("led frame = %v, want B/G/R of %v", led, want)
	}
}

func TestGridEngineSleepPendingFadesToZero(t *testing.T) {
	engine, _ := newTestGridEngine(t, GridEngineOpts{})

	engine.tick(100)
	engine.sleepPending = true

	period := uint64(101)
	for ; period < 100+2*padBrightnessMax; period++ {
		if !engine.tick(period) {
			break
		}
	}
	if lit := engine.tick(period + 1); lit {
		t.Error("grid still lit after fading out with sleep pending")
	}
	for i, env := range engine.envelope {
		if env != 0 {
			t.Errorf("envelope[%d] = %d, want 0", i, env)
		}
	}
}

func TestGridEngineRunSleepsAndWakes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	frames := make(chan struct{}, 256)
	sink := gridSinkFunc(func(context.Context, []byte) error {
		select {
		case frames <- struct{}{}:
		default:
		}
		return nil
	})

	sender, receiver := NewMailbox[GridCommand](DefaultMailboxCap)
	engine, err := NewGridEngine(receiver, GridEngineOpts{
		Bindings:     DefaultPadBindings,
		Sink:         sink,
		Logger:       slogt.New(t),
		Period:       2 * time.Millisecond,
		SleepTimeout: 20 * time.Millisecond,
	})
	if err != nil {
		t.Fatal("failed to create grid engine:", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- engine.Run(ctx)
	}()

	// The engine must eventually stop transmitting: idle timeout fires,
	// every envelope decays to zero, and the task blocks on the
	// mailbox.
	waitForSilence := func() {
		deadline := time.After(10 * time.Second)
		for {
			select {
			case <-frames:
			case <-time.After(500 * time.Millisecond):
				return
			case <-deadline:
				t.Fatal("grid never went to sleep")
			}
		}
	}
	waitForSilence()

	// A button press wakes it back up.
	if !sender.TrySend(OrCheckedMask{Mask: 1}) {
		t.Fatal("TrySend rejected")
	}
	select {
	case <-frames:
	case <-time.After(5 * time.Second):
		t.Fatal("grid did not wake after a button press")
	}

	cancel()
	if err := <-errCh; err != nil {
		t.Error("engine error:", err)
	}
}
