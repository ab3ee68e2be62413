package keyframe

import (
	"testing"

	"dev.acmcsuf.com/sconced/xcolor"
	"github.com/google/go-cmp/cmp"
)

func TestNewTableRejectsUnsortedFrames(t *testing.T) {
	tests := []struct {
		name      string
		keyframes []Keyframe
	}{
		{"duplicate frame", []Keyframe{{Frame: 0}, {Frame: 0}}},
		{"descending frame", []Keyframe{{Frame: 10}, {Frame: 5}}},
		{"zero-length tail segment", []Keyframe{{Frame: 0}, {Frame: 5}, {Frame: 5}}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if _, err := NewTable(test.keyframes); err == nil {
				t.Error("NewTable accepted invalid keyframes")
			}
		})
	}
}

func TestCursorEmptyTableIsBlack(t *testing.T) {
	var c Cursor
	c.SetTable(MustTable(nil))

	for _, frame := range []uint64{0, 1, 1 << 40} {
		if got := c.At(frame); got != xcolor.Black {
			t.Errorf("At(%d) = %v, want black", frame, got)
		}
	}
}

func TestCursorSingleEntryIsConstant(t *testing.T) {
	want := xcolor.RGB(255, 141, 56)

	var c Cursor
	c.SetTable(MustTable([]Keyframe{{Frame: 0, Color: want}}))

	for _, frame := range []uint64{0, 1, 499, 12345678} {
		if got := c.At(frame); got != want {
			t.Errorf("At(%d) = %v, want %v", frame, got, want)
		}
	}
}

func TestCursorInterpolates(t *testing.T) {
	var c Cursor
	c.SetTable(MustTable([]Keyframe{
		{Frame: 0, Color: xcolor.RGB(0, 200, 255)},
		{Frame: 100, Color: xcolor.RGB(100, 100, 255)},
		{Frame: 200, Color: xcolor.RGB(200, 0, 0)},
	}))

	tests := []struct {
		frame uint64
		want  xcolor.Color
	}{
		{0, xcolor.RGB(0, 200, 255)},
		{50, xcolor.RGB(50, 150, 255)},
		{100, xcolor.RGB(100, 100, 255)},
		{150, xcolor.RGB(150, 50, 127)},
		{199, xcolor.RGB(199, 1, 2)},
	}

	for _, test := range tests {
		if got := c.At(test.frame); got != test.want {
			t.Errorf("At(%d) = %v, want %v", test.frame, got, test.want)
		}
	}
}

func TestCursorPeriodicity(t *testing.T) {
	table := MustTable([]Keyframe{
		{Frame: 0, Color: xcolor.RGB(255, 0, 0)},
		{Frame: 500, Color: xcolor.RGB(0, 255, 0)},
		{Frame: 1000, Color: xcolor.RGB(0, 0, 255)},
	})

	var c Cursor
	c.SetTable(table)
	var reference [1000]xcolor.Color
	for frame := range reference {
		reference[frame] = c.At(uint64(frame))
	}

	// The same cursor driven through later loops must retrace the first
	// loop exactly, including when the modulo wraps it backward.
	for _, base := range []uint64{1000, 7000, 592000} {
		for frame := uint64(0); frame < 1000; frame += 13 {
			want := reference[frame]
			if got := c.At(base + frame); got != want {
				t.Fatalf("At(%d) = %v, want %v", base+frame, got, want)
			}
		}
	}
}

func TestCursorHandlesFrameJumps(t *testing.T) {
	var c Cursor
	c.SetTable(MustTable([]Keyframe{
		{Frame: 0, Color: xcolor.RGB(0, 0, 0)},
		{Frame: 10, Color: xcolor.RGB(10, 0, 0)},
		{Frame: 20, Color: xcolor.RGB(20, 0, 0)},
		{Frame: 30, Color: xcolor.RGB(30, 0, 0)},
		{Frame: 40, Color: xcolor.RGB(40, 0, 0)},
	}))

	// Jump several segments forward in one evaluation, then wrap
	// backward into a new loop, then jump forward again.
	jumps := []struct {
		frame uint64
		wantR uint8
	}{
		{0, 0},
		{35, 35},
		{45, 5}, // 45 % 40 regresses below the cursor's segment
		{78, 38},
	}
	for _, jump := range jumps {
		if got := c.At(jump.frame); got.R != jump.wantR {
			t.Errorf("At(%d).R = %d, want %d", jump.frame, got.R, jump.wantR)
		}
	}
}

func TestTablePeriod(t *testing.T) {
	tests := []struct {
		name      string
		keyframes []Keyframe
		want      uint32
	}{
		{"empty", nil, 0},
		{"single", []Keyframe{{Frame: 7}}, 0},
		{"pair", []Keyframe{{Frame: 0}, {Frame: 1500}}, 1500},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			table := MustTable(test.keyframes)
			if diff := cmp.Diff(test.want, table.Period()); diff != "" {
				t.Errorf("unexpected period (-want +got):\n%s", diff)
			}
		})
	}
}
