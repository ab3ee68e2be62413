// Package xcolor implements the fixed-point color model shared by the
// strip and grid renderers. All arithmetic is integer-only and matches
// the firmware calibration exactly, so conversions must not be replaced
// with floating-point equivalents.
package xcolor

// Color is an RGBW color. The W channel is 0 for colors derived from
// HSV or authored for 3-channel hardware.
type Color struct {
	R, G, B, W uint8
}

// Black is the all-off color.
var Black = Color{}

// RGBW constructs a Color from its four channels.
func RGBW(r, g, b, w uint8) Color {
	return Color{R: r, G: g, B: b, W: w}
}

// RGB constructs a Color with a zero white channel.
func RGB(r, g, b uint8) Color {
	return Color{R: r, G: g, B: b}
}

// FromHSV converts a 16-bit hue, 8-bit saturation and 8-bit value to an
// RGB color using the hextant wheel. The hue is remapped from the
// 0..65535 space to 0..1530 and each 255-wide hextant ramps one channel
// linearly. The white channel of the result is always 0.
//
// FromHSV is periodic in hue with period 65536.
func FromHSV(hue uint16, sat, val uint8) Color {
	h := (uint32(hue)*1530 + 32768) >> 16

	var r, g, b uint32
	switch {
	case h < 255:
		r, g, b = 255, h, 0
	case h < 510:
		r, g, b = 510-h, 255, 0
	case h < 765:
		r, g, b = 0, 255, h-510
	case h < 1020:
		r, g, b = 0, 1020-h, 255
	case h < 1275:
		r, g, b = h-1020, 0, 255
	case h < 1530:
		r, g, b = 255, 0, 1530-h
	default:
		r, g, b = 255, 0, 0
	}

	v1 := uint32(val) + 1
	s1 := uint32(sat) + 1
	s2 := 255 - uint32(sat)

	return Color{
		R: uint8(((((r * s1) >> 8) + s2) * v1) >> 8),
		G: uint8(((((g * s1) >> 8) + s2) * v1) >> 8),
		B: uint8(((((b * s1) >> 8) + s2) * v1) >> 8),
	}
}

// WithBrightness scales every channel by (b+1)/256, truncating. The +1
// keeps b=255 near-lossless while making b=0 fully dark; the exact
// truncation behavior is part of the visual calibration.
func (c Color) WithBrightness(b uint8) Color {
	m := uint16(b) + 1
	return Color{
		R: uint8(uint16(c.R) * m >> 8),
		G: uint8(uint16(c.G) * m >> 8),
		B: uint8(uint16(c.B) * m >> 8),
		W: uint8(uint16(c.W) * m >> 8),
	}
}

// SK6812 packs the color into the 32-bit word order expected by the
// SK6812 shift protocol: G in the top byte, then R, B, W.
func (c Color) SK6812() uint32 {
	return uint32(c.R)<<16 | uint32(c.G)<<24 | uint32(c.B)<<8 | uint32(c.W)
}

// FromSK6812 unpacks a word produced by SK6812. The W channel survives
// the round trip.
func FromSK6812(word uint32) Color {
	return Color{
		R: uint8(word >> 16),
		G: uint8(word >> 24),
		B: uint8(word >> 8),
		W: uint8(word),
	}
}

// MaxAPA102Brightness is the largest value that fits the 5-bit global
// brightness field of an APA102 LED frame.
const MaxAPA102Brightness = 31

// PutAPA102 writes the 4-byte APA102 LED frame for c into dst:
// a header byte with the top three bits set and the 5-bit brightness,
// then B, G, R. Brightness values above MaxAPA102Brightness are
// clamped. The white channel is not representable and is ignored.
func (c Color) PutAPA102(dst []byte, brightness uint8) {
	if brightness > MaxAPA102Brightness {
		brightness = MaxAPA102Brightness
	}
	dst[0] = 0b11100000 | brightness
	dst[1] = c.B
	dst[2] = c.G
	dst[3] = c.R
}
