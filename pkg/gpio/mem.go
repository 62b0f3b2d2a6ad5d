package gpio

import (
	"fmt"
	"time"
)

// BCM283x GPIO register window.
const (
	BCM2835Base = 0x20200000
	BCM2711Base = 0xfe200000
	RegsSize    = 0xb4

	gpfsel0 = 0x00
	gpset0  = 0x1c
	gpclr0  = 0x28

	fselOutput = 0b001
	bankPins   = 32
)

// Registers is a 32-bit register window, such as an mmap.MemoryMap.
type Registers interface {
	Read32(offset uintptr) uint32
	Write32(offset uintptr, value uint32)
}

func setOutput(regs Registers, pin int) {
	reg := uintptr(gpfsel0 + pin/10*4)
	shift := uint(pin%10) * 3
	v := regs.Read32(reg)
	v &^= 0b111 << shift
	v |= fselOutput << shift
	regs.Write32(reg, v)
}

func checkPins(pins []int) error {
	for _, p := range pins {
		if p < 0 || p >= bankPins {
			return fmt.Errorf("gpio: pin %d outside bank 0", p)
		}
	}
	return nil
}

// MemBus is a Bus on BCM283x GPIO registers. A byte costs at most two
// register writes, one to set and one to clear.
type MemBus struct {
	regs Registers
	pins []int
	mask uint32
}

// NewMemBus switches pins to outputs and returns a bus over them.
func NewMemBus(regs Registers, pins []int) (*MemBus, error) {
	if err := checkWidth(len(pins)); err != nil {
		return nil, err
	}
	if err := checkPins(pins); err != nil {
		return nil, err
	}
	b := &MemBus{regs: regs, pins: append([]int(nil), pins...)}
	for _, p := range pins {
		setOutput(regs, p)
		b.mask |= 1 << p
	}
	regs.Write32(gpclr0, b.mask)
	return b, nil
}

// WriteByte sets every pin from the matching bit of v
func (b *MemBus) WriteByte(v byte) error {
	var set uint32
	for i, p := range b.pins {
		if v>>i&1 != 0 {
			set |= 1 << p
		}
	}
	if set != 0 {
		b.regs.Write32(gpset0, set)
	}
	if clr := b.mask &^ set; clr != 0 {
		b.regs.Write32(gpclr0, clr)
	}
	return nil
}

// Close drives the pins low
func (b *MemBus) Close() error {
	b.regs.Write32(gpclr0, b.mask)
	return nil
}

// MemEnable is an output-enable line on BCM283x GPIO registers.
type MemEnable struct {
	regs    Registers
	bit     uint32
	on, off uintptr
}

// NewMemEnable switches pin to an output and returns it as the enable line.
func NewMemEnable(regs Registers, pin int, activeLow bool) (*MemEnable, error) {
	if err := checkPins([]int{pin}); err != nil {
		return nil, err
	}
	e := &MemEnable{regs: regs, bit: 1 << pin, on: gpset0, off: gpclr0}
	if activeLow {
		e.on, e.off = gpclr0, gpset0
	}
	setOutput(regs, pin)
	regs.Write32(e.off, e.bit)
	return e, nil
}

// Pulse lights the panel for on within period
func (e *MemEnable) Pulse(on, period time.Duration) error {
	return pulse(func(lit bool) error {
		if lit {
			e.regs.Write32(e.on, e.bit)
		} else {
			e.regs.Write32(e.off, e.bit)
		}
		return nil
	}, on, period)
}

// Close blanks the panel
func (e *MemEnable) Close() error {
	e.regs.Write32(e.off, e.bit)
	return nil
}
