package sconced

import (
	"dev.acmcsuf.com/sconced/keyframe"
	"dev.acmcsuf.com/sconced/xcolor"
)

// Entities targeted by the default pad bindings.
const (
	DefaultStripEntity = "light.wiz_rgbww_tunable_726ed4"
	DefaultMediaEntity = "media_player.android_tv_10_0_0_43"
)

// HaCommand is an upstream Home Assistant service call triggered by a
// button press.
type HaCommand interface {
	isHaCommand()
	// Latch reports whether the pad's checked bit persists after the
	// command. Stateful commands (the active effect, off) latch;
	// momentary ones (play/pause) light up for a single frame.
	Latch() bool
}

// HaSetEffect turns a light entity on with a named effect.
type HaSetEffect struct {
	Entity string
	Effect string
}

// HaTurnOff turns a light entity off.
type HaTurnOff struct {
	Entity string
}

// HaPlayPause toggles playback on a media player entity.
type HaPlayPause struct {
	Entity string
}

func (HaSetEffect) isHaCommand() {}
func (HaTurnOff) isHaCommand()   {}
func (HaPlayPause) isHaCommand() {}

func (HaSetEffect) Latch() bool { return true }
func (HaTurnOff) Latch() bool   { return true }
func (HaPlayPause) Latch() bool { return false }

// PadBinding assigns one grid pad its backlight animation and the
// command it fires when pressed.
type PadBinding struct {
	Keyframes keyframe.Table
	Command   HaCommand
}

// PadForEffect returns the index of the pad bound to the named effect
// on the named entity, or false if no pad matches.
func PadForEffect(bindings []PadBinding, entity, effect string) (int, bool) {
	for i, binding := range bindings {
		if cmd, ok := binding.Command.(HaSetEffect); ok &&
			cmd.Entity == entity && cmd.Effect == effect {
			return i, true
		}
	}
	return 0, false
}

func kf(frame uint32, r, g, b uint8) keyframe.Keyframe {
	return keyframe.Keyframe{Frame: frame, Color: xcolor.RGB(r, g, b)}
}

// DefaultPadBindings is the compiled-in 4x4 layout: one pad per light
// effect, an off pad, and a media play/pause pad. Tables are validated
// at init; a malformed palette fails startup.
var DefaultPadBindings = []PadBinding{
	{
		Keyframes: keyframe.MustTable([]keyframe.Keyframe{
			kf(0, 255, 141, 56),
			kf(500, 226, 206, 81),
			kf(1000, 131, 230, 96),
			kf(1500, 50, 227, 52),
			kf(2000, 50, 239, 163),
			kf(2500, 59, 132, 230),
			kf(3000, 98, 107, 225),
			kf(3500, 255, 141, 56),
		}),
		Command: HaSetEffect{Entity: DefaultStripEntity, Effect: "Pastel Colors"},
	},
	{
		Keyframes: keyframe.MustTable([]keyframe.Keyframe{
			kf(0, 255, 255, 255),
		}),
		Command: HaSetEffect{Entity: DefaultStripEntity, Effect: "Daylight"},
	},
	{
		Keyframes: keyframe.MustTable([]keyframe.Keyframe{
			kf(0, 255, 0, 0),
			kf(500, 0, 255, 0),
			kf(1000, 0, 0, 255),
			kf(1500, 255, 255, 0),
			kf(2000, 0, 255, 255),
			kf(2500, 255, 0, 255),
			kf(3000, 255, 0, 0),
		}),
		Command: HaSetEffect{Entity: DefaultStripEntity, Effect: "Party"},
	},
	{
		Keyframes: keyframe.MustTable([]keyframe.Keyframe{
			kf(0, 227, 20, 166),
			kf(500, 231, 58, 140),
			kf(1000, 168, 65, 232),
			kf(1500, 231, 12, 213),
			kf(2000, 227, 20, 166),
		}),
		Command: HaSetEffect{Entity: DefaultStripEntity, Effect: "Romance"},
	},
	{
		Keyframes: keyframe.MustTable([]keyframe.Keyframe{
			kf(0, 240, 143, 44),
		}),
		Command: HaSetEffect{Entity: DefaultStripEntity, Effect: "Cozy"},
	},
	{
		Keyframes: keyframe.MustTable([]keyframe.Keyframe{
			kf(0, 227, 57, 12),
			kf(500, 227, 119, 19),
			kf(1000, 226, 19, 12),
			kf(1500, 227, 57, 12),
		}),
		Command: HaSetEffect{Entity: DefaultStripEntity, Effect: "Fireplace"},
	},
	{
		Keyframes: keyframe.MustTable([]keyframe.Keyframe{
			kf(0, 166, 231, 66),
			kf(500, 34, 233, 67),
			kf(1000, 201, 236, 32),
			kf(1500, 166, 231, 66),
		}),
		Command: HaSetEffect{Entity: DefaultStripEntity, Effect: "Forest"},
	},
	{
		Keyframes: keyframe.MustTable([]keyframe.Keyframe{
			kf(0, 232, 95, 38),
		}),
		Command: HaSetEffect{Entity: DefaultStripEntity, Effect: "Club"},
	},
	{
		Keyframes: keyframe.MustTable([]keyframe.Keyframe{
			kf(0, 209, 153, 226),
			kf(500, 154, 136, 225),
			kf(1000, 209, 153, 226),
		}),
		Command: HaSetEffect{Entity: DefaultStripEntity, Effect: "Spring"},
	},
	{
		Keyframes: keyframe.MustTable([]keyframe.Keyframe{
			kf(0, 225, 30, 97),
			kf(500, 228, 46, 153),
			kf(1000, 255, 130, 103),
			kf(1500, 255, 51, 76),
			kf(2000, 225, 30, 97),
		}),
		Command: HaSetEffect{Entity: DefaultStripEntity, Effect: "Sunset"},
	},
	{
		Keyframes: keyframe.MustTable([]keyframe.Keyframe{
			kf(0, 53, 201, 255),
			kf(500, 17, 108, 224),
			kf(1000, 8, 22, 224),
			kf(1500, 0, 145, 224),
			kf(2000, 53, 201, 255),
		}),
		Command: HaSetEffect{Entity: DefaultStripEntity, Effect: "Ocean"},
	},
	{
		Keyframes: keyframe.MustTable([]keyframe.Keyframe{
			kf(0, 255, 243, 188),
		}),
		Command: HaSetEffect{Entity: DefaultStripEntity, Effect: "Warm White"},
	},
	{
		Keyframes: keyframe.MustTable([]keyframe.Keyframe{
			kf(0, 114, 108, 92),
		}),
		Command: HaSetEffect{Entity: DefaultStripEntity, Effect: "Night light"},
	},
	{
		Keyframes: keyframe.MustTable([]keyframe.Keyframe{
			kf(0, 255, 218, 228),
			kf(500, 255, 210, 241),
			kf(1000, 255, 218, 228),
		}),
		Command: HaSetEffect{Entity: DefaultStripEntity, Effect: "Relax"},
	},
	{
		Keyframes: keyframe.MustTable([]keyframe.Keyframe{
			kf(0, 30, 30, 133),
		}),
		Command: HaTurnOff{Entity: DefaultStripEntity},
	},
	{
		Keyframes: keyframe.MustTable([]keyframe.Keyframe{
			kf(0, 3, 2, 133),
			kf(500, 0, 69, 133),
			kf(1000, 41, 0, 133),
			kf(1500, 3, 2, 133),
		}),
		Command: HaPlayPause{Entity: DefaultMediaEntity},
	},
}
