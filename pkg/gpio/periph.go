package gpio

import (
	"fmt"
	"sync"
	"time"

	pgpio "periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

var (
	hostOnce sync.Once
	hostErr  error
)

func initHost() error {
	hostOnce.Do(func() {
		if _, err := host.Init(); err != nil {
			hostErr = fmt.Errorf("failed to initialize periph host: %w", err)
		}
	})
	return hostErr
}

func lookupPin(name string) (pgpio.PinIO, error) {
	if err := initHost(); err != nil {
		return nil, err
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("gpio: pin %q not found", name)
	}
	return p, nil
}

// PeriphBus is a Bus on pins resolved by name through periph.io, such as
// "GPIO17" or a header position like "P1_11".
type PeriphBus struct {
	pins []pgpio.PinIO
}

// NewPeriphBus resolves names and drives them low.
func NewPeriphBus(names []string) (*PeriphBus, error) {
	if err := checkWidth(len(names)); err != nil {
		return nil, err
	}
	b := &PeriphBus{}
	for _, name := range names {
		p, err := lookupPin(name)
		if err != nil {
			return nil, err
		}
		if err := p.Out(pgpio.Low); err != nil {
			return nil, fmt.Errorf("failed to set %s as output: %w", name, err)
		}
		b.pins = append(b.pins, p)
	}
	return b, nil
}

// WriteByte sets every pin from the matching bit of v
func (b *PeriphBus) WriteByte(v byte) error {
	for i, p := range b.pins {
		if err := p.Out(pgpio.Level(v>>i&1 != 0)); err != nil {
			return fmt.Errorf("failed to drive %s: %w", p, err)
		}
	}
	return nil
}

// Close drives the pins low and halts them
func (b *PeriphBus) Close() error {
	var first error
	for _, p := range b.pins {
		_ = p.Out(pgpio.Low)
		if err := p.Halt(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// PeriphEnable is an output-enable line resolved through periph.io.
type PeriphEnable struct {
	pin     pgpio.PinIO
	on, off pgpio.Level
}

// NewPeriphEnable resolves name as the output-enable line.
func NewPeriphEnable(name string, activeLow bool) (*PeriphEnable, error) {
	p, err := lookupPin(name)
	if err != nil {
		return nil, err
	}
	e := &PeriphEnable{pin: p, on: pgpio.High, off: pgpio.Low}
	if activeLow {
		e.on, e.off = pgpio.Low, pgpio.High
	}
	if err := p.Out(e.off); err != nil {
		return nil, fmt.Errorf("failed to set %s as output: %w", name, err)
	}
	return e, nil
}

// Pulse lights the panel for on within period
func (e *PeriphEnable) Pulse(on, period time.Duration) error {
	return pulse(func(lit bool) error {
		if lit {
			return e.pin.Out(e.on)
		}
		return e.pin.Out(e.off)
	}, on, period)
}

// Close blanks the panel
func (e *PeriphEnable) Close() error {
	_ = e.pin.Out(e.off)
	return e.pin.Halt()
}
