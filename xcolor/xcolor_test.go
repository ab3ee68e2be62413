package xcolor

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFromHSV(t *testing.T) {
	tests := []struct {
		name string
		hue  uint16
		sat  uint8
		val  uint8
		want Color
	}{
		{"full red", 0, 255, 255, Color{R: 255}},
		{"green third", 65536 / 3, 255, 255, Color{G: 255}},
		{"blue third", 65536 * 2 / 3, 255, 254, Color{B: 254}},
		{"zero value", 0, 255, 0, Color{}},
		{"zero saturation is gray", 12345, 0, 255, Color{R: 255, G: 255, B: 255}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := FromHSV(test.hue, test.sat, test.val)
			if diff := cmp.Diff(test.want, got); diff != "" {
				t.Errorf("unexpected color (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFromHSVWhiteAlwaysZero(t *testing.T) {
	for hue := 0; hue < 65536; hue += 257 {
		if c := FromHSV(uint16(hue), 200, 200); c.W != 0 {
			t.Fatalf("FromHSV(%d, 200, 200).W = %d, want 0", hue, c.W)
		}
	}
}

func TestFromHSVWheelEnds(t *testing.T) {
	// Both ends of the hue range are red: the wheel is continuous
	// across the 16-bit wraparound.
	lo := FromHSV(0, 255, 255)
	hi := FromHSV(65535, 255, 255)
	if lo.R != 255 || hi.R != 255 {
		t.Fatalf("wheel ends not red: %v, %v", lo, hi)
	}
	if hi.G > 1 || hi.B != 0 {
		t.Fatalf("hue 65535 too far from red: %v", hi)
	}
}

func TestWithBrightness(t *testing.T) {
	white := Color{R: 255, G: 255, B: 255, W: 255}

	if got := white.WithBrightness(255); got != white {
		t.Errorf("WithBrightness(255) = %v, want %v", got, white)
	}
	if got := white.WithBrightness(0); got != (Color{}) {
		t.Errorf("WithBrightness(0) = %v, want black", got)
	}

	// Truncating halving: 255 * 129 >> 8 = 128.
	if got := white.WithBrightness(128); got != RGBW(128, 128, 128, 128) {
		t.Errorf("WithBrightness(128) = %v, want all-128", got)
	}
}

func TestSK6812RoundTrip(t *testing.T) {
	c := RGBW(1, 2, 3, 4)
	word := c.SK6812()

	if want := uint32(2)<<24 | uint32(1)<<16 | uint32(3)<<8 | 4; word != want {
		t.Errorf("SK6812() = %#x, want %#x", word, want)
	}
	if got := FromSK6812(word); got != c {
		t.Errorf("FromSK6812(SK6812()) = %v, want %v", got, c)
	}
}

func TestPutAPA102(t *testing.T) {
	var buf [4]byte

	RGB(10, 20, 30).PutAPA102(buf[:], 31)
	if want := [4]byte{0xFF, 30, 20, 10}; buf != want {
		t.Errorf("PutAPA102 = %v, want %v", buf, want)
	}

	RGB(10, 20, 30).PutAPA102(buf[:], 200)
	if buf[0] != 0xFF {
		t.Errorf("brightness not clamped: header = %#x", buf[0])
	}

	RGB(0, 0, 0).PutAPA102(buf[:], 0)
	if buf[0] != 0b11100000 {
		t.Errorf("zero brightness header = %#x, want %#x", buf[0], 0b11100000)
	}
}
