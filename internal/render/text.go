package render

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"time"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// TextSource draws a line of text, vertically centred. When the text is
// wider than the panel and Speed is positive it scrolls right to left and
// wraps.
type TextSource struct {
	Text  string
	Face  font.Face
	Color color.RGBA
	// Speed is the scroll rate in pixels per second.
	Speed float64

	img *image.RGBA
}

// LoadFace loads a TrueType font at size points.
func LoadFace(path string, size float64) (font.Face, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read font: %w", err)
	}
	f, err := truetype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font %s: %w", path, err)
	}
	if size <= 0 {
		size = 8
	}
	return truetype.NewFace(f, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	}), nil
}

func (s *TextSource) face() font.Face {
	if s.Face == nil {
		return basicfont.Face7x13
	}
	return s.Face
}

func (s *TextSource) Frame(t time.Duration, size image.Point) (image.Image, error) {
	if s.img == nil || s.img.Rect.Size() != size {
		s.img = image.NewRGBA(image.Rectangle{Max: size})
	}
	clear(s.img.Pix)

	face := s.face()
	d := &font.Drawer{
		Dst:  s.img,
		Src:  image.NewUniform(s.Color),
		Face: face,
	}
	width := d.MeasureString(s.Text).Ceil()
	m := face.Metrics()
	baseline := (size.Y + m.Ascent.Ceil() - m.Descent.Ceil()) / 2

	x := 0
	if width > size.X && s.Speed > 0 {
		// One lap covers the text plus a panel-width gap.
		lap := width + size.X
		x = size.X - int(s.Speed*t.Seconds())%lap
	}
	d.Dot = fixed.P(x, baseline)
	d.DrawString(s.Text)
	return s.img, nil
}
