package ledmatrix

import (
	"image/color"

	"tinygo.org/x/drivers"
)

// Canvas exposes a Matrix as a drivers.Displayer, so graphics code written
// against that interface can draw on the panel. Out-of-range SetPixel calls
// are ignored, since such code clips against Size.
type Canvas struct {
	m        *Matrix
	rotation drivers.Rotation
}

var _ drivers.Displayer = (*Canvas)(nil)

// Canvas returns the Displayer view of m.
func (m *Matrix) Canvas() *Canvas {
	return m.canvas
}

// Size returns the canvas size in pixels after rotation
func (c *Canvas) Size() (x, y int16) {
	w, h := int16(c.m.geom.Columns), int16(c.m.geom.Rows)
	if c.rotation == drivers.Rotation90 || c.rotation == drivers.Rotation270 {
		return h, w
	}
	return w, h
}

// SetPixel sets one pixel
func (c *Canvas) SetPixel(x, y int16, col color.RGBA) {
	column, row := c.toGrid(int(x), int(y))
	_ = c.m.SetPixel(column, row, Pixel{R: col.R, G: col.G, B: col.B})
}

func (c *Canvas) toGrid(x, y int) (column, row int) {
	w, h := c.m.geom.Columns, c.m.geom.Rows
	switch c.rotation {
	case drivers.Rotation90:
		return w - 1 - y, x
	case drivers.Rotation180:
		return w - 1 - x, h - 1 - y
	case drivers.Rotation270:
		return y, h - 1 - x
	}
	return x, y
}

// Display shows the frame
func (c *Canvas) Display() error {
	c.m.Show()
	return nil
}

// SetRotation sets the clockwise rotation applied to canvas coordinates
func (c *Canvas) SetRotation(r drivers.Rotation) error {
	if r > drivers.Rotation270 {
		return ErrOutOfRange
	}
	c.rotation = r
	return nil
}

// Rotation returns the current rotation
func (c *Canvas) Rotation() drivers.Rotation {
	return c.rotation
}

// SetBrightness sets the panel brightness
func (c *Canvas) SetBrightness(b float32) {
	c.m.SetBrightness(b)
}

// Brightness returns the panel brightness
func (c *Canvas) Brightness() float32 {
	return c.m.Brightness()
}
