package gpio

import (
	"fmt"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// CdevBus is a Bus on GPIO character device lines, set together with one
// ioctl per byte.
type CdevBus struct {
	lines  *gpiocdev.Lines
	values []int
}

// NewCdevBus requests offsets on chip as outputs, initially low.
func NewCdevBus(chip string, offsets []int) (*CdevBus, error) {
	if err := checkWidth(len(offsets)); err != nil {
		return nil, err
	}
	lines, err := gpiocdev.RequestLines(chip, offsets,
		gpiocdev.AsOutput(make([]int, len(offsets))...),
		gpiocdev.WithConsumer(Consumer))
	if err != nil {
		return nil, fmt.Errorf("failed to request lines %v on %s: %w", offsets, chip, err)
	}
	return &CdevBus{
		lines:  lines,
		values: make([]int, len(offsets)),
	}, nil
}

// WriteByte sets every line from the matching bit of v
func (b *CdevBus) WriteByte(v byte) error {
	for i := range b.values {
		b.values[i] = int(v>>i) & 1
	}
	return b.lines.SetValues(b.values)
}

// Close drives the lines low and releases them
func (b *CdevBus) Close() error {
	for i := range b.values {
		b.values[i] = 0
	}
	_ = b.lines.SetValues(b.values)
	return b.lines.Close()
}

// CdevEnable is an output-enable line on the GPIO character device.
type CdevEnable struct {
	line    *gpiocdev.Line
	on, off int
}

// NewCdevEnable requests offset on chip as the output-enable line. Panels
// with an active-low OE input light while the line is low.
func NewCdevEnable(chip string, offset int, activeLow bool) (*CdevEnable, error) {
	on, off := 1, 0
	if activeLow {
		on, off = 0, 1
	}
	line, err := gpiocdev.RequestLine(chip, offset,
		gpiocdev.AsOutput(off),
		gpiocdev.WithConsumer(Consumer))
	if err != nil {
		return nil, fmt.Errorf("failed to request enable line %d on %s: %w", offset, chip, err)
	}
	return &CdevEnable{line: line, on: on, off: off}, nil
}

// Pulse lights the panel for on within period
func (e *CdevEnable) Pulse(on, period time.Duration) error {
	return pulse(func(lit bool) error {
		if lit {
			return e.line.SetValue(e.on)
		}
		return e.line.SetValue(e.off)
	}, on, period)
}

// Close blanks the panel and releases the line
func (e *CdevEnable) Close() error {
	_ = e.line.SetValue(e.off)
	return e.line.Close()
}
