// Package ledmatrix drives a multiplexed RGB LED matrix from a chain of DMA
// channels paced by a PWM timer. The application draws into a pixel grid and
// calls Show; the grid is encoded into bit planes in a back buffer which the
// refresh interrupt swaps in at the next scan boundary.
package ledmatrix

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"sync"
	"sync/atomic"
)

var (
	ErrGeometry       = errors.New("ledmatrix: invalid geometry")
	ErrWiring         = errors.New("ledmatrix: invalid wiring")
	ErrRefreshTooFast = errors.New("ledmatrix: refresh rate too fast for timer")
	ErrRefreshTooSlow = errors.New("ledmatrix: refresh rate too slow for timer")
	ErrOutOfRange     = errors.New("ledmatrix: coordinates out of range")
	ErrNotBegun       = errors.New("ledmatrix: refresh not started")
)

// DefaultBrightness is the brightness a new Matrix starts at.
const DefaultBrightness = 0.5

// Stats counts frames through the double buffer.
type Stats struct {
	// Shown is the number of Show calls.
	Shown uint64
	// Swapped is the number of frames the refresh interrupt swapped in.
	Swapped uint64
	// Replaced is the number of pending frames a newer Show overwrote
	// before they reached the panel.
	Replaced uint64
}

// Matrix is an RGB LED matrix refreshed by a Peripheral.
//
// The pixel methods, Show and Begin belong to one application goroutine.
// SetBrightness and Brightness may be called from any goroutine. Refresh is
// the interrupt handler and is installed by Begin.
type Matrix struct {
	geom   Geometry
	periph Peripheral

	pixels    []Pixel
	buffers   [2]*Bitstream
	addresses *AddressTable
	timing    *TimingTable

	brightMu   sync.Mutex
	brightness atomic.Uint32

	swap   handoff
	begun  bool
	stats  [3]atomic.Uint64
	canvas *Canvas
}

const (
	statShown = iota
	statSwapped
	statReplaced
)

// New creates a Matrix for geom driven by p. Nothing is armed until Begin.
func New(geom Geometry, p Peripheral) (*Matrix, error) {
	if p == nil {
		return nil, errors.New("ledmatrix: nil peripheral")
	}
	if err := geom.Validate(); err != nil {
		return nil, err
	}

	m := &Matrix{
		geom:      geom,
		periph:    p,
		pixels:    make([]Pixel, geom.Rows*geom.Columns),
		addresses: newAddressTable(geom),
		timing:    newTimingTable(geom),
	}
	m.buffers[0] = newBitstream(geom)
	m.buffers[1] = newBitstream(geom)
	m.brightness.Store(math.Float32bits(DefaultBrightness))
	m.addresses.build(geom)
	m.timing.build(geom, DefaultBrightness)
	m.canvas = &Canvas{m: m}
	return m, nil
}

// Begin builds the tables, encodes the current grid into buffer 0, programs
// the timer and the transfer chain and starts refresh. Calling it again
// stops the peripheral and rearms it from scratch.
func (m *Matrix) Begin() error {
	if m.begun {
		if err := m.periph.Stop(); err != nil {
			return fmt.Errorf("ledmatrix: stop peripheral: %w", err)
		}
		m.begun = false
	}

	g := m.geom
	m.addresses.build(g)
	m.brightMu.Lock()
	m.timing.build(g, m.Brightness())
	m.brightMu.Unlock()

	encode(g, m.pixels, m.buffers[0])
	m.swap.reset(0)

	period, _ := m.timing.Period(0, 0)
	compare, _ := m.timing.Compare(0, 0)
	err := m.periph.ConfigureTimer(TimerConfig{
		Hz:      g.TimerHz,
		Max:     g.TimerMax,
		Period:  period,
		Compare: compare,
	})
	if err != nil {
		return fmt.Errorf("ledmatrix: configure timer: %w", err)
	}

	for _, d := range chain(g, m.timing, m.addresses, m.buffers[0].buf) {
		if err := d.Validate(); err != nil {
			return err
		}
		if err := m.periph.ConfigureDescriptor(d); err != nil {
			return fmt.Errorf("ledmatrix: configure %v channel: %w", d.Channel, err)
		}
	}
	m.periph.SetInterruptHandler(ChannelData, m.Refresh)

	if err := m.periph.Start(); err != nil {
		return fmt.Errorf("ledmatrix: start peripheral: %w", err)
	}
	m.begun = true
	return nil
}

// Stop halts refresh. The panel goes dark with whatever the timer last
// latched.
func (m *Matrix) Stop() error {
	if !m.begun {
		return ErrNotBegun
	}
	m.begun = false
	if err := m.periph.Stop(); err != nil {
		return fmt.Errorf("ledmatrix: stop peripheral: %w", err)
	}
	return nil
}

// Geometry returns the panel geometry
func (m *Matrix) Geometry() Geometry {
	return m.geom
}

// Dimensions returns the grid size
func (m *Matrix) Dimensions() (width, height int) {
	return m.geom.Columns, m.geom.Rows
}

// Pixels returns the grid, row-major. Writes take effect at the next Show.
func (m *Matrix) Pixels() []Pixel {
	return m.pixels
}

// SetPixelColor sets the pixel at (column, row)
func (m *Matrix) SetPixelColor(column, row int, r, g, b uint8) error {
	return m.SetPixel(column, row, Pixel{R: r, G: g, B: b})
}

// SetPixel sets the pixel at (column, row)
func (m *Matrix) SetPixel(column, row int, p Pixel) error {
	if column < 0 || column >= m.geom.Columns || row < 0 || row >= m.geom.Rows {
		return fmt.Errorf("%w: (%d, %d)", ErrOutOfRange, column, row)
	}
	m.pixels[row*m.geom.Columns+column] = p
	return nil
}

// PixelAt returns the pixel at (column, row)
func (m *Matrix) PixelAt(column, row int) (Pixel, error) {
	if column < 0 || column >= m.geom.Columns || row < 0 || row >= m.geom.Rows {
		return Pixel{}, fmt.Errorf("%w: (%d, %d)", ErrOutOfRange, column, row)
	}
	return m.pixels[row*m.geom.Columns+column], nil
}

// Clear sets every pixel to black
func (m *Matrix) Clear() {
	m.Fill(Pixel{})
}

// Fill sets every pixel to c
func (m *Matrix) Fill(c color.Color) {
	p := PixelFromColor(c)
	for i := range m.pixels {
		m.pixels[i] = p
	}
}

// Show encodes the grid into the inactive buffer and asks the refresh
// interrupt to swap it in at the end of the current scan. If an earlier
// frame is still waiting it is replaced; the newest frame always wins.
//
// The request is withdrawn while the replacement encodes, and a scan that
// ends in that window keeps the old frame. A producer calling Show back to
// back can therefore starve the panel of new frames. Pace Show with
// BufferWaiting, or at a rate below the scan rate, to see every frame.
func (m *Matrix) Show() {
	if m.swap.withdraw() {
		m.stats[statReplaced].Add(1)
	}
	_, active := m.swap.load()
	encode(m.geom, m.pixels, m.buffers[1-active])
	m.swap.request(active)
	m.stats[statShown].Add(1)
}

// BufferWaiting reports whether a shown frame has not reached the panel yet.
func (m *Matrix) BufferWaiting() bool {
	s, _ := m.swap.load()
	return s == stateSwapRequested
}

// Refresh is the data channel's major-loop interrupt handler. If a frame is
// waiting it points the data channel at it. It takes no locks and never
// allocates.
func (m *Matrix) Refresh() {
	next, ok := m.swap.consume()
	if !ok {
		return
	}
	m.periph.Repoint(ChannelData, m.buffers[next].buf)
	m.stats[statSwapped].Add(1)
}

// SetBrightness scales the lit part of every timer period. b is clamped to
// [0, 1] and NaN means off. The timing table is rewritten in place, so the
// change shows on the next scan without a Show.
//
// The on-time of plane 0 is a whole number of timer ticks, so brightness
// moves in steps of Geometry.BrightnessStep and anything below one step
// blanks the panel. The default geometry has 58 steps.
func (m *Matrix) SetBrightness(b float32) {
	b = clampBrightness(b)
	m.brightMu.Lock()
	defer m.brightMu.Unlock()
	m.brightness.Store(math.Float32bits(b))
	m.timing.build(m.geom, b)
}

// Brightness returns the current brightness
func (m *Matrix) Brightness() float32 {
	return math.Float32frombits(m.brightness.Load())
}

// Stats returns the frame counters
func (m *Matrix) Stats() Stats {
	return Stats{
		Shown:    m.stats[statShown].Load(),
		Swapped:  m.stats[statSwapped].Load(),
		Replaced: m.stats[statReplaced].Load(),
	}
}

// Timing returns the live timing table
func (m *Matrix) Timing() *TimingTable {
	return m.timing
}

// Addresses returns the address table
func (m *Matrix) Addresses() *AddressTable {
	return m.addresses
}

// Buffer returns output buffer i, 0 or 1.
func (m *Matrix) Buffer(i int) *Bitstream {
	return m.buffers[i&1]
}

// Active returns the index of the buffer the data channel is reading.
func (m *Matrix) Active() int {
	_, active := m.swap.load()
	return active
}
