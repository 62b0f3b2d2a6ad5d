package render

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"tinygo.org/x/drivers"
)

// Blitter copies images onto a Displayer, scaling them to fit.
type Blitter struct {
	Scaler draw.Scaler
	canvas *image.RGBA
}

// NewBlitter returns a Blitter using bilinear scaling.
func NewBlitter() *Blitter {
	return &Blitter{Scaler: draw.ApproxBiLinear}
}

// Blit draws img on d, scaled to its size, and calls Display.
func (b *Blitter) Blit(d drivers.Displayer, img image.Image) error {
	w, h := d.Size()
	size := image.Pt(int(w), int(h))
	if b.canvas == nil || b.canvas.Rect.Size() != size {
		b.canvas = image.NewRGBA(image.Rectangle{Max: size})
	}

	src := img.Bounds()
	if src.Size() == size {
		draw.Draw(b.canvas, b.canvas.Rect, img, src.Min, draw.Src)
	} else {
		b.Scaler.Scale(b.canvas, b.canvas.Rect, img, src, draw.Src, nil)
	}

	for y := 0; y < size.Y; y++ {
		for x := 0; x < size.X; x++ {
			d.SetPixel(int16(x), int16(y), b.canvas.RGBAAt(x, y))
		}
	}
	return d.Display()
}

// Fill sets every pixel of d to c and calls Display.
func Fill(d drivers.Displayer, c color.RGBA) error {
	w, h := d.Size()
	for y := int16(0); y < h; y++ {
		for x := int16(0); x < w; x++ {
			d.SetPixel(x, y, c)
		}
	}
	return d.Display()
}
