package main

import (
	"context"
	"fmt"
	"image"
	"image/color"

	"dev.acmcsuf.com/sconced"
	"dev.acmcsuf.com/sconced/xcolor"
	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/nrzled"
	"periph.io/x/extra/devices/screen"
)

// drawerSink renders the strip buffer through a display.Drawer, either
// NRZ-encoded over SPI or as a console preview.
type drawerSink struct {
	drawer display.Drawer
	img    *image.NRGBA
	// foldWhite is set for 3-channel targets; 4-channel targets carry
	// the white channel in alpha.
	foldWhite bool
}

var _ sconced.StripSink = (*drawerSink)(nil)

func newNRZSink(cfg StripConfig) (*drawerSink, error) {
	port, err := spireg.Open(cfg.SPIPort)
	if err != nil {
		return nil, fmt.Errorf("failed to open SPI port: %w", err)
	}

	dev, err := nrzled.NewSPI(port, &nrzled.Opts{
		NumPixels: sconced.NumStripLEDs,
		Channels:  4,
		Freq:      800 * physic.KiloHertz,
	})
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to create NRZ device: %w", err)
	}

	return &drawerSink{
		drawer: dev,
		img:    image.NewNRGBA(image.Rect(0, 0, sconced.NumStripLEDs, 1)),
	}, nil
}

func newScreenSink() *drawerSink {
	return &drawerSink{
		drawer:    screen.New(sconced.NumStripLEDs),
		img:       image.NewNRGBA(image.Rect(0, 0, sconced.NumStripLEDs, 1)),
		foldWhite: true,
	}
}

func (s *drawerSink) Transmit(ctx context.Context, words []uint32) error {
	for i, word := range words {
		c := xcolor.FromSK6812(word)
		if s.foldWhite {
			rgb := foldWhite(c)
			s.img.SetNRGBA(i, 0, color.NRGBA{R: rgb.R, G: rgb.G, B: rgb.B, A: 0xFF})
		} else {
			s.img.SetNRGBA(i, 0, color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.W})
		}
	}
	if err := s.drawer.Draw(s.drawer.Bounds(), s.img, image.Point{}); err != nil {
		return fmt.Errorf("failed to draw strip frame: %w", err)
	}
	return nil
}
