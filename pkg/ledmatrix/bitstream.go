package ledmatrix

// Bitstream is one output buffer: the bytes written to the data port over a
// full scan. It is laid out page, row, plane, column, and each column is a
// (data, clock) pair with identical color bits, the clock bit set only in
// the second byte so the shift registers latch on its rising edge.
type Bitstream struct {
	rows     int
	bitDepth int
	columns  int
	pages    int
	order    ColumnOrder
	buf      []byte
}

func newBitstream(g Geometry) *Bitstream {
	return &Bitstream{
		rows:     g.Rows,
		bitDepth: g.BitDepth,
		columns:  g.Columns,
		pages:    g.Pages,
		order:    g.Wiring.Order,
		buf:      make([]byte, g.BitstreamSize()),
	}
}

// Len is the buffer size in bytes.
func (s *Bitstream) Len() int {
	return len(s.buf)
}

func (s *Bitstream) span(page, row, plane int) (int, error) {
	if page < 0 || page >= s.pages || row < 0 || row >= s.rows || plane < 0 || plane >= s.bitDepth {
		return 0, ErrOutOfRange
	}
	return ((page*s.rows+row)*s.bitDepth + plane) * s.columns * 2, nil
}

// Span returns a copy of the bytes shifted out for plane of row in page.
func (s *Bitstream) Span(page, row, plane int) ([]byte, error) {
	off, err := s.span(page, row, plane)
	if err != nil {
		return nil, err
	}
	out := make([]byte, s.columns*2)
	copy(out, s.buf[off:])
	return out, nil
}

// Pair returns the (data, clock) bytes for grid column col of plane of row
// in page, taking the shift order into account.
func (s *Bitstream) Pair(page, row, plane, col int) (data, clock byte, err error) {
	off, err := s.span(page, row, plane)
	if err != nil {
		return 0, 0, err
	}
	if col < 0 || col >= s.columns {
		return 0, 0, ErrOutOfRange
	}
	slot := col
	if s.order == LastColumnFirst {
		slot = s.columns - 1 - col
	}
	i := off + slot*2
	return s.buf[i], s.buf[i+1], nil
}

// encode writes the bit planes of pixels into s. The output depends only on
// pixels and g. With more than one page, each page adds its own ordered
// dither offset before the low bits are dropped, so the average over all
// pages approaches the full 8-bit value.
func encode(g Geometry, pixels []Pixel, s *Bitstream) {
	w := g.Wiring
	drop := MaxBitDepth - g.BitDepth
	i := 0
	for page := 0; page < g.Pages; page++ {
		dither := uint16((page << drop) / g.Pages)
		for row := 0; row < g.Rows; row++ {
			line := pixels[row*g.Columns : (row+1)*g.Columns]
			for plane := 0; plane < g.BitDepth; plane++ {
				shift := uint(plane + drop)
				for slot := 0; slot < g.Columns; slot++ {
					p := line[w.column(slot, g.Columns)]
					var data byte
					if dithered(p.R, dither)>>shift&1 != 0 {
						data |= w.Red
					}
					if dithered(p.G, dither)>>shift&1 != 0 {
						data |= w.Green
					}
					if dithered(p.B, dither)>>shift&1 != 0 {
						data |= w.Blue
					}
					s.buf[i] = data
					s.buf[i+1] = data | w.Clock
					i += 2
				}
			}
		}
	}
}

// dithered adds offset to v, saturating at full scale.
func dithered(v uint8, offset uint16) uint16 {
	x := uint16(v) + offset
	if x > 0xff {
		return 0xff
	}
	return x
}
