package render

import (
	"fmt"
	"image"
	"io"
	"os"
	"time"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// SVGSource rasterizes an SVG icon at the panel size. The raster is cached
// until the size changes.
type SVGSource struct {
	icon *oksvg.SvgIcon
	img  *image.RGBA
}

// LoadSVG reads the SVG file at path.
func LoadSVG(path string) (*SVGSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open svg: %w", err)
	}
	defer f.Close()
	return ReadSVG(f)
}

// ReadSVG parses an SVG document. Unsupported elements are skipped.
func ReadSVG(r io.Reader) (*SVGSource, error) {
	icon, err := oksvg.ReadIconStream(r, oksvg.IgnoreErrorMode)
	if err != nil {
		return nil, fmt.Errorf("failed to parse svg: %w", err)
	}
	return &SVGSource{icon: icon}, nil
}

func (s *SVGSource) Frame(_ time.Duration, size image.Point) (image.Image, error) {
	if s.img != nil && s.img.Rect.Size() == size {
		return s.img, nil
	}
	w, h := size.X, size.Y
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	s.icon.SetTarget(0, 0, float64(w), float64(h))
	scanner := rasterx.NewScannerGV(w, h, img, img.Bounds())
	s.icon.Draw(rasterx.NewDasher(w, h, scanner), 1)
	s.img = img
	return img, nil
}
