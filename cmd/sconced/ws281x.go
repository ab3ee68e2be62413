package main

import (
	"context"
	"fmt"

	"dev.acmcsuf.com/sconced"
	"dev.acmcsuf.com/sconced/xcolor"
	"libdb.so/ledctl"
)

// RGBController is a controller for RGB LEDs.
type RGBController interface {
	SetRGBAt(i int, color ledctl.RGB)
	Flush() error
}

type ws281xSink struct {
	ctrl RGBController
}

var _ sconced.StripSink = (*ws281xSink)(nil)

func newWS281xSink(cfg StripConfig) (*ws281xSink, error) {
	ctrl, err := ledctl.NewWS281x(ledctl.WS281xConfig{
		NumPixels:    sconced.NumStripLEDs,
		ColorOrder:   ledctl.BGROrder,
		ColorModel:   ledctl.RGBModel,
		PWMFrequency: 800000,
		DMAChannel:   cfg.DMAChannel,
		GPIOPins:     []int{cfg.GPIO},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create a WS281x controller: %w", err)
	}
	return &ws281xSink{ctrl: ctrl}, nil
}

func (s *ws281xSink) Transmit(ctx context.Context, words []uint32) error {
	for i, word := range words {
		s.ctrl.SetRGBAt(i, foldWhite(xcolor.FromSK6812(word)))
	}
	return s.ctrl.Flush()
}

// foldWhite mixes the white channel into the color channels for
// 3-channel hardware.
func foldWhite(c xcolor.Color) ledctl.RGB {
	return ledctl.RGB{
		R: satAdd(c.R, c.W),
		G: satAdd(c.G, c.W),
		B: satAdd(c.B, c.W),
	}
}

func satAdd(a, b uint8) uint8 {
	sum := uint16(a) + uint16(b)
	if sum > 0xFF {
		return 0xFF
	}
	return uint8(sum)
}
