// Package keyframe evaluates cyclic color animations described by
// fixed tables of (frame, color) anchor points. Tables are validated at
// construction so that renderers never observe a malformed one.
package keyframe

import (
	"fmt"

	"dev.acmcsuf.com/sconced/xcolor"
)

// Keyframe anchors a color at a frame index. The gaps between
// consecutive keyframes are filled by linear interpolation.
type Keyframe struct {
	Frame uint32
	Color xcolor.Color
}

// Table is an ordered, frame-ascending sequence of keyframes. The last
// entry's frame defines the cyclic period of the animation.
type Table struct {
	frames []Keyframe
	period uint32
}

// NewTable validates keyframes and wraps them into a Table. Frames must
// be strictly increasing: a zero-length segment is a data-definition
// error in the authored palette, not a runtime condition.
func NewTable(keyframes []Keyframe) (Table, error) {
	for i := 1; i < len(keyframes); i++ {
		if keyframes[i].Frame <= keyframes[i-1].Frame {
			return Table{}, fmt.Errorf(
				"keyframe %d: frame %d not after frame %d",
				i, keyframes[i].Frame, keyframes[i-1].Frame)
		}
	}

	t := Table{frames: keyframes}
	if len(keyframes) > 0 {
		t.period = keyframes[len(keyframes)-1].Frame
	}
	return t, nil
}

// MustTable is NewTable for compiled-in palettes. It panics on invalid
// data so that authoring mistakes surface at startup.
func MustTable(keyframes []Keyframe) Table {
	t, err := NewTable(keyframes)
	if err != nil {
		panic("keyframe: invalid table: " + err.Error())
	}
	return t
}

// Period returns the cyclic period in frames, or 0 for tables with
// fewer than two entries.
func (t Table) Period() uint32 {
	if len(t.frames) < 2 {
		return 0
	}
	return t.period
}

// Len returns the number of keyframes.
func (t Table) Len() int { return len(t.frames) }

// Cursor evaluates a Table at arbitrary frame indices. It keeps the
// bounds of the segment it last evaluated, so advancing the driving
// frame tick-over-tick costs amortized O(1). A Cursor is owned by
// exactly one renderer slot and must not be shared.
type Cursor struct {
	table          Table
	frameA, frameB uint32
	ib             int
}

// SetTable installs a table and rewinds the cursor to segment 0.
func (c *Cursor) SetTable(t Table) {
	c.table = t
	c.rewind()
}

func (c *Cursor) rewind() {
	kf := c.table.frames
	c.ib = 1
	c.frameA = 0
	c.frameB = 0
	if len(kf) > 0 {
		c.frameA = kf[0].Frame
		c.frameB = kf[0].Frame
	}
	if len(kf) > 1 {
		c.frameB = kf[1].Frame
	}
}

// At returns the table's color at the given frame. The frame counter is
// external and ever-increasing; At folds it into the cyclic period and
// interpolates within the containing segment. An empty table is black
// and a single-entry table is constant.
func (c *Cursor) At(frame uint64) xcolor.Color {
	kf := c.table.frames
	switch len(kf) {
	case 0:
		return xcolor.Black
	case 1:
		return kf[0].Color
	}

	modFrame := uint32(frame % uint64(c.table.period))
	if modFrame < c.frameA {
		// The driving frame wrapped into a new animation loop.
		c.rewind()
		if modFrame < c.frameA {
			// Before the first anchor of a table that does not
			// start at frame 0; hold the first color.
			return kf[0].Color
		}
	}
	for modFrame >= c.frameB {
		c.ib++
		c.frameA = kf[c.ib-1].Frame
		c.frameB = kf[c.ib].Frame
	}

	a, b := kf[c.ib-1], kf[c.ib]
	segDuration := b.Frame - a.Frame
	segInstant := modFrame - c.frameA

	lerp := func(ca, cb uint8) uint8 {
		return uint8((uint32(cb)*segInstant + uint32(ca)*(segDuration-segInstant)) / segDuration)
	}
	return xcolor.Color{
		R: lerp(a.Color.R, b.Color.R),
		G: lerp(a.Color.G, b.Color.G),
		B: lerp(a.Color.B, b.Color.B),
		W: lerp(a.Color.W, b.Color.W),
	}
}
