package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"time"

	"dev.acmcsuf.com/sconced"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
)

// TCA9555 16-bit I/O expander.
const (
	tca9555Addr     = 0x20
	tca9555InPort0  = 0x00
	tca9555InPort1  = 0x01
	tca9555OutPort0 = 0x02
	tca9555Conf0    = 0x06
)

// buttonPoller watches the expander's interrupt line and reads both
// input ports on every edge. Button inputs are active low: a bit going
// to zero is a press.
type buttonPoller struct {
	dev      i2c.Dev
	intPin   gpio.PinIO
	bindings []sconced.PadBinding
	ha       *sconced.Sender[sconced.HaCommand]
	grid     *sconced.Sender[sconced.GridCommand]
	logger   *slog.Logger
}

func newButtonPoller(
	cfg GridConfig,
	bindings []sconced.PadBinding,
	ha *sconced.Sender[sconced.HaCommand],
	grid *sconced.Sender[sconced.GridCommand],
	logger *slog.Logger,
) (*buttonPoller, io.Closer, error) {

	bus, err := i2creg.Open(cfg.I2CBus)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open I2C bus: %w", err)
	}

	intPin := gpioreg.ByName(cfg.InterruptPin)
	if intPin == nil {
		bus.Close()
		return nil, nil, fmt.Errorf("unknown interrupt pin %q", cfg.InterruptPin)
	}
	if err := intPin.In(gpio.PullNoChange, gpio.FallingEdge); err != nil {
		bus.Close()
		return nil, nil, fmt.Errorf("failed to configure interrupt pin: %w", err)
	}

	return &buttonPoller{
		dev:      i2c.Dev{Bus: bus, Addr: tca9555Addr},
		intPin:   intPin,
		bindings: bindings,
		ha:       ha,
		grid:     grid,
		logger:   logger,
	}, bus, nil
}

func (p *buttonPoller) readButtons() (uint16, error) {
	var ports [2]byte
	if err := p.dev.Tx([]byte{tca9555InPort0}, ports[:]); err != nil {
		return 0, fmt.Errorf("failed to read input ports: %w", err)
	}
	return binary.LittleEndian.Uint16(ports[:]), nil
}

// Run blocks until ctx is canceled. The interrupt wait uses a short
// timeout so cancellation is noticed without an edge.
func (p *buttonPoller) Run(ctx context.Context) error {
	states, err := p.readButtons()
	if err != nil {
		return err
	}

	for {
		if ctx.Err() != nil {
			return nil
		}
		if !p.intPin.WaitForEdge(time.Second) {
			continue
		}

		newStates, err := p.readButtons()
		if err != nil {
			return err
		}

		flips := states ^ newStates
		for i := 0; i < sconced.NumPads; i++ {
			if flips>>i&1 == 0 {
				continue
			}
			if newStates>>i&1 == 0 {
				p.onButtonPressed(i)
			} else {
				p.logger.Debug("button released", "button", i)
			}
		}

		states = newStates
	}
}

func (p *buttonPoller) onButtonPressed(i int) {
	p.logger.Debug("button pressed", "button", i)

	if i >= len(p.bindings) {
		return
	}

	if !p.ha.TrySend(p.bindings[i].Command) {
		p.logger.Warn(
			"dropped button command, queue full",
			"button", i)
	}
	p.grid.TrySend(sconced.OrCheckedMask{Mask: 1 << i})
}
