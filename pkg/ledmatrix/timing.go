package ledmatrix

import (
	"math"
	"sync/atomic"
)

// TimingTable holds the timer period and compare value for every
// (row, plane) sub-frame, in scan order. Periods double with each plane;
// compares scale the lit part of each period by the brightness.
//
// Entries are read by the DMA engine while the table is live, so every
// store goes through sync/atomic.
type TimingTable struct {
	bitDepth int
	period   []uint32
	compare  []uint32
}

func newTimingTable(g Geometry) *TimingTable {
	n := g.Subframes()
	return &TimingTable{
		bitDepth: g.BitDepth,
		period:   make([]uint32, n),
		compare:  make([]uint32, n),
	}
}

// build fills the table for geometry g at brightness b, which must already
// be clamped to [0, 1].
func (t *TimingTable) build(g Geometry, b float32) {
	unit := g.planeUnit()
	on := uint32(float64(unit) * float64(b))
	if on > unit {
		on = unit
	}
	for row := 0; row < g.Rows; row++ {
		for plane := 0; plane < g.BitDepth; plane++ {
			i := row*g.BitDepth + plane
			atomic.StoreUint32(&t.period[i], unit<<plane)
			atomic.StoreUint32(&t.compare[i], on<<plane)
		}
	}
}

// Len is the number of sub-frames in the table.
func (t *TimingTable) Len() int {
	return len(t.period)
}

func (t *TimingTable) index(row, plane int) (int, error) {
	if row < 0 || plane < 0 || plane >= t.bitDepth || row*t.bitDepth+plane >= len(t.period) {
		return 0, ErrOutOfRange
	}
	return row*t.bitDepth + plane, nil
}

// Period returns the timer period for plane of row.
func (t *TimingTable) Period(row, plane int) (uint32, error) {
	i, err := t.index(row, plane)
	if err != nil {
		return 0, err
	}
	return atomic.LoadUint32(&t.period[i]), nil
}

// Compare returns the output-enable on-time for plane of row.
func (t *TimingTable) Compare(row, plane int) (uint32, error) {
	i, err := t.index(row, plane)
	if err != nil {
		return 0, err
	}
	return atomic.LoadUint32(&t.compare[i]), nil
}

// clampBrightness maps b into [0, 1]. NaN is treated as off.
func clampBrightness(b float32) float32 {
	switch {
	case math.IsNaN(float64(b)) || b < 0:
		return 0
	case b > 1:
		return 1
	}
	return b
}
