package ledmatrix

// AddressTable holds the row select codes, AddressRepeat copies per
// (row, plane) sub-frame. It depends only on the geometry and is built once.
type AddressTable struct {
	bitDepth int
	repeat   int
	codes    []byte
}

func newAddressTable(g Geometry) *AddressTable {
	return &AddressTable{
		bitDepth: g.BitDepth,
		repeat:   g.AddressRepeat,
		codes:    make([]byte, g.AddressTableSize()),
	}
}

func (a *AddressTable) build(g Geometry) {
	i := 0
	for row := 0; row < g.Rows; row++ {
		code := g.Wiring.AddressCode(row)
		for plane := 0; plane < g.BitDepth; plane++ {
			for rep := 0; rep < g.AddressRepeat; rep++ {
				a.codes[i] = code
				i++
			}
		}
	}
}

// Len is the number of entries in the table.
func (a *AddressTable) Len() int {
	return len(a.codes)
}

// At returns copy rep of the address code emitted before plane of row.
func (a *AddressTable) At(row, plane, rep int) (byte, error) {
	if row < 0 || plane < 0 || rep < 0 || plane >= a.bitDepth || rep >= a.repeat {
		return 0, ErrOutOfRange
	}
	i := (row*a.bitDepth+plane)*a.repeat + rep
	if i >= len(a.codes) {
		return 0, ErrOutOfRange
	}
	return a.codes[i], nil
}
