package ledmatrix

import (
	"fmt"
	"math/bits"
)

// Panel defaults, matching an 8x8 panel on a 48 MHz timer.
const (
	DefaultRows          = 8
	DefaultColumns       = 8
	DefaultBitDepth      = 8
	DefaultPages         = 1
	DefaultAddressRepeat = 10
	DefaultTimerHz       = 48000000
	DefaultRefreshHz     = 400
	DefaultTimerMax      = 0xffff

	// MaxBitDepth is the channel width. Deeper scans would need color
	// expansion, which this driver does not do.
	MaxBitDepth = 8
	MaxPages    = 16
)

// ColumnOrder is the order in which columns are clocked into the shift
// register chain.
type ColumnOrder uint8

const (
	// LastColumnFirst clocks the far column first, so the first byte shifted
	// in ends up at the end of the daisy chain.
	LastColumnFirst ColumnOrder = iota
	FirstColumnFirst
)

func (o ColumnOrder) String() string {
	switch o {
	case LastColumnFirst:
		return "last-first"
	case FirstColumnFirst:
		return "first-first"
	}
	return fmt.Sprintf("ColumnOrder(%d)", uint8(o))
}

// Wiring is the bit layout of the data and address ports. It is a fixed
// property of the board: each color channel and the shift clock own one bit
// of the data port, and the row address is written to the address port
// shifted left by AddressShift.
type Wiring struct {
	Red          byte
	Green        byte
	Blue         byte
	Clock        byte
	AddressShift uint
	Order        ColumnOrder
}

// DefaultWiring puts R, G, B and the clock on data bits 0-3 and the row
// address on the low bits of the address port.
func DefaultWiring() Wiring {
	return Wiring{
		Red:   1 << 0,
		Green: 1 << 1,
		Blue:  1 << 2,
		Clock: 1 << 3,
		Order: LastColumnFirst,
	}
}

// Validate checks that every signal owns exactly one distinct data bit.
func (w Wiring) Validate() error {
	var seen byte
	for _, m := range []byte{w.Red, w.Green, w.Blue, w.Clock} {
		if bits.OnesCount8(m) != 1 {
			return fmt.Errorf("%w: mask %#02x is not a single bit", ErrWiring, m)
		}
		if seen&m != 0 {
			return fmt.Errorf("%w: bit %#02x assigned twice", ErrWiring, m)
		}
		seen |= m
	}
	if w.AddressShift > 7 {
		return fmt.Errorf("%w: address shift %d", ErrWiring, w.AddressShift)
	}
	if w.Order > FirstColumnFirst {
		return fmt.Errorf("%w: column order %v", ErrWiring, w.Order)
	}
	return nil
}

// AddressCode returns the address port value that selects row.
func (w Wiring) AddressCode(row int) byte {
	return byte(row) << w.AddressShift
}

// column returns the grid column clocked out at shift position slot.
func (w Wiring) column(slot, columns int) int {
	if w.Order == LastColumnFirst {
		return columns - 1 - slot
	}
	return slot
}

// Geometry is the static description of the panel and its scan timing.
// It is fixed for the lifetime of a Matrix.
type Geometry struct {
	Rows     int
	Columns  int
	BitDepth int
	// Pages is the number of dithered sub-frames per scan.
	Pages int
	// AddressRepeat is how many times each row address is written, which
	// holds the address lines still while output-enable settles.
	AddressRepeat int

	TimerHz   uint32
	RefreshHz uint32
	// TimerMax is the largest value the timer period register holds.
	TimerMax uint32

	Wiring Wiring
}

// DefaultGeometry returns the geometry of the reference 8x8 board.
func DefaultGeometry() Geometry {
	return Geometry{
		Rows:          DefaultRows,
		Columns:       DefaultColumns,
		BitDepth:      DefaultBitDepth,
		Pages:         DefaultPages,
		AddressRepeat: DefaultAddressRepeat,
		TimerHz:       DefaultTimerHz,
		RefreshHz:     DefaultRefreshHz,
		TimerMax:      DefaultTimerMax,
		Wiring:        DefaultWiring(),
	}
}

// Validate reports configuration errors: sizes the buffers cannot be built
// for and scan rates the timer cannot produce.
func (g Geometry) Validate() error {
	switch {
	case g.Rows <= 0 || g.Columns <= 0:
		return fmt.Errorf("%w: dimensions %dx%d", ErrGeometry, g.Columns, g.Rows)
	case g.BitDepth < 1 || g.BitDepth > MaxBitDepth:
		return fmt.Errorf("%w: bit depth %d not in 1..%d", ErrGeometry, g.BitDepth, MaxBitDepth)
	case g.Pages < 1 || g.Pages > MaxPages:
		return fmt.Errorf("%w: pages %d not in 1..%d", ErrGeometry, g.Pages, MaxPages)
	case g.AddressRepeat < 1:
		return fmt.Errorf("%w: address repeat %d", ErrGeometry, g.AddressRepeat)
	case g.TimerHz == 0 || g.RefreshHz == 0 || g.TimerMax == 0:
		return fmt.Errorf("%w: timer %d Hz, refresh %d Hz, max %d", ErrGeometry, g.TimerHz, g.RefreshHz, g.TimerMax)
	}
	if err := g.Wiring.Validate(); err != nil {
		return err
	}
	if int(g.Wiring.AddressCode(g.Rows-1))>>g.Wiring.AddressShift != g.Rows-1 {
		return fmt.Errorf("%w: %d rows do not fit the address port", ErrGeometry, g.Rows)
	}
	unit := g.planeUnit()
	if unit == 0 {
		return fmt.Errorf("%w: %d ticks per row cannot hold %d planes", ErrRefreshTooFast, g.RowTicks(), g.BitDepth)
	}
	if p := uint64(unit) << (g.BitDepth - 1); p > uint64(g.TimerMax) {
		return fmt.Errorf("%w: plane period %d exceeds timer max %d", ErrRefreshTooSlow, p, g.TimerMax)
	}
	return nil
}

// Subframes is the number of (row, plane) slots in one page.
func (g Geometry) Subframes() int {
	return g.Rows * g.BitDepth
}

// RowBytes is the size of one row's data for one plane: a data byte and a
// clock byte per column.
func (g Geometry) RowBytes() int {
	return g.Columns * 2
}

// BitstreamSize is the size of one complete output buffer.
func (g Geometry) BitstreamSize() int {
	return g.Pages * g.Subframes() * g.RowBytes()
}

// AddressTableSize is the number of entries in the address table.
func (g Geometry) AddressTableSize() int {
	return g.Subframes() * g.AddressRepeat
}

// RowTicks is the number of timer ticks allotted to one row per page.
func (g Geometry) RowTicks() uint32 {
	div := uint64(g.RefreshHz) * uint64(g.Rows) * uint64(g.Pages)
	if div == 0 {
		return 0
	}
	return uint32(uint64(g.TimerHz) / div)
}

// BrightnessStep is the smallest brightness change that alters the output.
// Brightness below one step lights nothing.
func (g Geometry) BrightnessStep() float32 {
	unit := g.planeUnit()
	if unit == 0 {
		return 1
	}
	return 1 / float32(unit)
}

// planeUnit is the period of plane 0. Plane k lasts planeUnit << k.
func (g Geometry) planeUnit() uint32 {
	return g.RowTicks() / (1<<g.BitDepth - 1)
}
