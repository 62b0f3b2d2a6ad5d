package render

import (
	"fmt"
	"image"
	"image/color"
	"time"
)

// Pattern names accepted by NewPattern.
const (
	PatternRed      = "red"
	PatternGreen    = "green"
	PatternBlue     = "blue"
	PatternChecker  = "checker"
	PatternGradient = "gradient"
	PatternCycle    = "cycle"
)

// CycleStep is how long each pattern shows in the cycle pattern.
const CycleStep = 2 * time.Second

var cycle = []string{PatternRed, PatternGreen, PatternBlue, PatternChecker}

// PatternSource draws built-in test patterns.
type PatternSource struct {
	name string
	img  *image.RGBA
}

// NewPattern returns the named pattern.
func NewPattern(name string) (*PatternSource, error) {
	switch name {
	case PatternRed, PatternGreen, PatternBlue, PatternChecker, PatternGradient, PatternCycle:
	case "":
		name = PatternCycle
	default:
		return nil, fmt.Errorf("%w: pattern %q", ErrUnknownSource, name)
	}
	return &PatternSource{name: name}, nil
}

func (p *PatternSource) Frame(t time.Duration, size image.Point) (image.Image, error) {
	if p.img == nil || p.img.Rect.Size() != size {
		p.img = image.NewRGBA(image.Rectangle{Max: size})
	}
	name := p.name
	if name == PatternCycle {
		name = cycle[int(t/CycleStep)%len(cycle)]
	}

	for y := 0; y < size.Y; y++ {
		for x := 0; x < size.X; x++ {
			p.img.SetRGBA(x, y, patternAt(name, x, y, size, t))
		}
	}
	return p.img, nil
}

func patternAt(name string, x, y int, size image.Point, t time.Duration) color.RGBA {
	switch name {
	case PatternRed:
		return color.RGBA{R: 255, A: 255}
	case PatternGreen:
		return color.RGBA{G: 255, A: 255}
	case PatternBlue:
		return color.RGBA{B: 255, A: 255}
	case PatternChecker:
		if (x+y)%2 == 0 {
			return color.RGBA{R: 255, G: 255, B: 255, A: 255}
		}
		return color.RGBA{A: 255}
	case PatternGradient:
		shift := int(t / (50 * time.Millisecond))
		return color.RGBA{
			R: uint8((x*255/max(size.X-1, 1) + shift) % 256),
			G: uint8(y * 255 / max(size.Y-1, 1)),
			B: uint8(255 - x*255/max(size.X-1, 1)),
			A: 255,
		}
	}
	return color.RGBA{A: 255}
}
