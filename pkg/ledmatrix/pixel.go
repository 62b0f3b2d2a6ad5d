package ledmatrix

import "image/color"

// Pixel is one RGB LED. Channels are linear 8-bit intensities.
type Pixel struct {
	R uint8
	G uint8
	B uint8
}

// NewPixel returns a Pixel with the given channel values.
func NewPixel(r, g, b uint8) Pixel {
	return Pixel{R: r, G: g, B: b}
}

// RGBA implements color.Color. A Pixel is always opaque.
func (p Pixel) RGBA() (r, g, b, a uint32) {
	r = uint32(p.R)
	r |= r << 8
	g = uint32(p.G)
	g |= g << 8
	b = uint32(p.B)
	b |= b << 8
	return r, g, b, 0xffff
}

// PixelFromColor converts c to a Pixel. Translucent colors are composited
// over black, which is what an unlit LED looks like.
func PixelFromColor(c color.Color) Pixel {
	if p, ok := c.(Pixel); ok {
		return p
	}
	r, g, b, _ := c.RGBA()
	return Pixel{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8)}
}

// PixelModel converts colors to Pixel.
var PixelModel = color.ModelFunc(func(c color.Color) color.Color {
	return PixelFromColor(c)
})
