// Package render produces frames for the panel and pushes them through a
// drivers.Displayer.
package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"strconv"
	"strings"
	"time"

	"github.com/fkcurrie/dma-matrix/internal/config"
)

// Source produces the frame to show at time t since the renderer started.
// size is the panel size; a source may return a different size and leave
// scaling to Blit.
type Source interface {
	Frame(t time.Duration, size image.Point) (image.Image, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(t time.Duration, size image.Point) (image.Image, error)

func (f SourceFunc) Frame(t time.Duration, size image.Point) (image.Image, error) {
	return f(t, size)
}

var ErrUnknownSource = errors.New("render: unknown source")

// FromConfig builds the source selected in cfg.
func FromConfig(cfg config.RenderConfig) (Source, error) {
	switch cfg.Source {
	case "pattern":
		return NewPattern(cfg.Pattern)
	case "svg":
		return LoadSVG(cfg.Path)
	case "image":
		return LoadImage(cfg.Path)
	case "text":
		c := color.RGBA{R: 255, G: 255, B: 255, A: 255}
		if cfg.Color != "" {
			var err error
			if c, err = ParseColor(cfg.Color); err != nil {
				return nil, err
			}
		}
		t := &TextSource{Text: cfg.Text, Color: c, Speed: cfg.Speed}
		if cfg.Font != "" {
			face, err := LoadFace(cfg.Font, cfg.FontSize)
			if err != nil {
				return nil, err
			}
			t.Face = face
		}
		return t, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownSource, cfg.Source)
}

// ParseColor parses "#rrggbb" or "#rgb".
func ParseColor(s string) (color.RGBA, error) {
	hex := strings.TrimPrefix(s, "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return color.RGBA{}, fmt.Errorf("render: invalid color %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("render: invalid color %q: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}
