// Package gpio drives the matrix ports: byte-wide parallel buses for row
// address and column data, and the output-enable line.
//
// Output-enable pulses are timed in software. The low bit planes last a
// microsecond or two, well below what the scheduler can sleep, so the last
// SpinBelow of every wait busy-waits. A hardware backend therefore keeps
// one CPU busy while it refreshes.
package gpio

import (
	"errors"
	"fmt"
	"io"
	"time"
)

// Consumer is the label the kernel shows for lines held by this package.
const Consumer = "dma-matrix"

// MaxWidth is the widest bus a single byte can drive.
const MaxWidth = 8

// SpinBelow is the remainder of a wait that is spun rather than slept.
// Linux sleeps overshoot by tens of microseconds.
const SpinBelow = 100 * time.Microsecond

var ErrWidth = errors.New("gpio: bus width must be 1..8 lines")

// Bus drives a group of output lines as one parallel port. Bit i of each
// byte written goes to the i-th line.
type Bus interface {
	io.ByteWriter
	io.Closer
}

// Enable is the panel output-enable line.
type Enable interface {
	// Pulse lights the panel for on, then blanks it for the rest of period.
	Pulse(on, period time.Duration) error
	io.Closer
}

func checkWidth(n int) error {
	if n < 1 || n > MaxWidth {
		return fmt.Errorf("%w: got %d", ErrWidth, n)
	}
	return nil
}

// pulse drives set high for on and low for the remainder of period.
func pulse(set func(lit bool) error, on, period time.Duration) error {
	if on > 0 {
		if err := set(true); err != nil {
			return err
		}
		wait(on)
	}
	if err := set(false); err != nil {
		return err
	}
	if rest := period - on; rest > 0 {
		wait(rest)
	}
	return nil
}

// wait sleeps for all but the last SpinBelow of d and spins through the rest.
func wait(d time.Duration) {
	deadline := time.Now().Add(d)
	if d > SpinBelow {
		time.Sleep(d - SpinBelow)
	}
	for time.Now().Before(deadline) {
	}
}
