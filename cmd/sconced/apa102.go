package main

import (
	"context"
	"fmt"
	"io"

	"dev.acmcsuf.com/sconced"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
)

// apa102Sink shifts pre-framed APA102 data out over SPI. The grid
// engine already produces complete frames (start frame, per-LED frames,
// end frame), so no device-level package sits in between.
type apa102Sink struct {
	conn spi.Conn
}

var _ sconced.GridSink = (*apa102Sink)(nil)

func newAPA102Sink(cfg GridConfig) (*apa102Sink, io.Closer, error) {
	port, err := spireg.Open(cfg.SPIPort)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open SPI port: %w", err)
	}

	conn, err := port.Connect(4*physic.MegaHertz, spi.Mode0, 8)
	if err != nil {
		port.Close()
		return nil, nil, fmt.Errorf("failed to connect to SPI port: %w", err)
	}

	return &apa102Sink{conn: conn}, port, nil
}

func (s *apa102Sink) Transmit(ctx context.Context, frame []byte) error {
	if err := s.conn.Tx(frame, nil); err != nil {
		return fmt.Errorf("failed to shift out grid frame: %w", err)
	}
	return nil
}
