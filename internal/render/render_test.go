package render

import (
	"context"
	"errors"
	"image"
	"image/color"
	"strings"
	"testing"
	"time"

	"github.com/fkcurrie/dma-matrix/internal/config"
)

// testDisplay is an in-memory types.Display.
type testDisplay struct {
	w, h     int16
	pix      []color.RGBA
	shown    int
	bright   float32
	failShow error
}

func newTestDisplay(w, h int16) *testDisplay {
	return &testDisplay{w: w, h: h, pix: make([]color.RGBA, int(w)*int(h))}
}

func (d *testDisplay) Size() (int16, int16) { return d.w, d.h }

func (d *testDisplay) SetPixel(x, y int16, c color.RGBA) {
	if x < 0 || y < 0 || x >= d.w || y >= d.h {
		return
	}
	d.pix[int(y)*int(d.w)+int(x)] = c
}

func (d *testDisplay) Display() error {
	d.shown++
	return d.failShow
}

func (d *testDisplay) SetBrightness(b float32) { d.bright = b }
func (d *testDisplay) Brightness() float32     { return d.bright }

func (d *testDisplay) at(x, y int) color.RGBA {
	return d.pix[y*int(d.w)+x]
}

func TestPatterns(t *testing.T) {
	size := image.Pt(4, 2)
	tests := []struct {
		name string
		at   time.Duration
		want func(x, y int) color.RGBA
	}{
		{PatternRed, 0, func(int, int) color.RGBA { return color.RGBA{R: 255, A: 255} }},
		{PatternChecker, 0, func(x, y int) color.RGBA {
			if (x+y)%2 == 0 {
				return color.RGBA{R: 255, G: 255, B: 255, A: 255}
			}
			return color.RGBA{A: 255}
		}},
		{PatternCycle, CycleStep + time.Millisecond, func(int, int) color.RGBA { return color.RGBA{G: 255, A: 255} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewPattern(tt.name)
			if err != nil {
				t.Fatal(err)
			}
			img, err := p.Frame(tt.at, size)
			if err != nil {
				t.Fatal(err)
			}
			rgba := img.(*image.RGBA)
			for y := 0; y < size.Y; y++ {
				for x := 0; x < size.X; x++ {
					if got := rgba.RGBAAt(x, y); got != tt.want(x, y) {
						t.Fatalf("(%d, %d) = %v, want %v", x, y, got, tt.want(x, y))
					}
				}
			}
		})
	}

	if _, err := NewPattern("plaid"); !errors.Is(err, ErrUnknownSource) {
		t.Errorf("NewPattern(plaid) error = %v, want %v", err, ErrUnknownSource)
	}
}

func TestBlitScales(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for i := 0; i < len(src.Pix); i += 4 {
		src.Pix[i], src.Pix[i+3] = 200, 255
	}

	d := newTestDisplay(8, 4)
	if err := NewBlitter().Blit(d, src); err != nil {
		t.Fatal(err)
	}
	if d.shown != 1 {
		t.Errorf("Display called %d times, want 1", d.shown)
	}
	for y := 0; y < 4; y++ {
		for x := 0; x < 8; x++ {
			if got := d.at(x, y); got.R != 200 || got.G != 0 {
				t.Fatalf("(%d, %d) = %v after scaling a flat image", x, y, got)
			}
		}
	}
}

func TestSVGSource(t *testing.T) {
	const doc = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 10 10">
<rect x="0" y="0" width="10" height="10" fill="#0000ff"/>
</svg>`
	s, err := ReadSVG(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("ReadSVG() error = %v", err)
	}
	img, err := s.Frame(0, image.Pt(8, 8))
	if err != nil {
		t.Fatal(err)
	}
	r, g, b, _ := img.At(4, 4).RGBA()
	if r != 0 || g != 0 || b < 0xf000 {
		t.Errorf("centre pixel = %d,%d,%d, want blue", r>>8, g>>8, b>>8)
	}
	again, _ := s.Frame(time.Second, image.Pt(8, 8))
	if again != img {
		t.Error("same size did not reuse the raster")
	}
}

func TestTextSource(t *testing.T) {
	s := &TextSource{Text: "Hi", Color: color.RGBA{R: 255, A: 255}}
	img, err := s.Frame(0, image.Pt(16, 13))
	if err != nil {
		t.Fatal(err)
	}
	lit := 0
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if r, _, _, _ := img.At(x, y).RGBA(); r > 0 {
				lit++
			}
		}
	}
	if lit == 0 {
		t.Error("text frame is blank")
	}
}

func TestTextSourceScrolls(t *testing.T) {
	s := &TextSource{Text: "a long line of text", Color: color.RGBA{G: 255, A: 255}, Speed: 10}
	first, _ := s.Frame(0, image.Pt(8, 13))
	snapshot := append([]uint8(nil), first.(*image.RGBA).Pix...)
	second, _ := s.Frame(2*time.Second, image.Pt(8, 13))
	if string(snapshot) == string(second.(*image.RGBA).Pix) {
		t.Error("text did not move after two seconds")
	}
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in      string
		want    color.RGBA
		wantErr bool
	}{
		{"#ff8000", color.RGBA{R: 255, G: 128, A: 255}, false},
		{"0f0", color.RGBA{G: 255, A: 255}, false},
		{"#12345", color.RGBA{}, true},
		{"#gggggg", color.RGBA{}, true},
	}

	for _, tt := range tests {
		got, err := ParseColor(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseColor(%q) = %v, %v, want %v, wantErr %v", tt.in, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestFromConfig(t *testing.T) {
	if _, err := FromConfig(config.RenderConfig{Source: "pattern", Pattern: "gradient"}); err != nil {
		t.Errorf("pattern source error = %v", err)
	}
	src, err := FromConfig(config.RenderConfig{Source: "text", Text: "ok", Color: "#00ff00"})
	if err != nil {
		t.Fatalf("text source error = %v", err)
	}
	if ts := src.(*TextSource); ts.Color != (color.RGBA{G: 255, A: 255}) {
		t.Errorf("text color = %v", ts.Color)
	}
	if _, err := FromConfig(config.RenderConfig{Source: "video"}); !errors.Is(err, ErrUnknownSource) {
		t.Errorf("unknown source error = %v, want %v", err, ErrUnknownSource)
	}
	if _, err := FromConfig(config.RenderConfig{Source: "image", Path: "/nonexistent.png"}); err == nil {
		t.Error("missing image error = nil")
	}
}

func TestRenderer(t *testing.T) {
	d := newTestDisplay(4, 4)
	r := NewRenderer(d, SourceFunc(func(_ time.Duration, size image.Point) (image.Image, error) {
		img := image.NewRGBA(image.Rectangle{Max: size})
		for i := 2; i < len(img.Pix); i += 4 {
			img.Pix[i], img.Pix[i+1] = 9, 255
		}
		return img, nil
	}), 200)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := r.Start(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Start() error = %v, want %v", err, context.DeadlineExceeded)
	}
	if r.Frames() == 0 || d.shown == 0 {
		t.Fatalf("no frames rendered")
	}
	if d.at(3, 3).B != 9 {
		t.Errorf("pixel = %v, want blue 9", d.at(3, 3))
	}

	d.failShow = errors.New("panel gone")
	if err := r.RenderOnce(); err == nil {
		t.Error("RenderOnce() error = nil with a failing display")
	}
}

func TestRendererSetSource(t *testing.T) {
	d := newTestDisplay(2, 2)
	solid := func(c color.RGBA) Source {
		return SourceFunc(func(_ time.Duration, size image.Point) (image.Image, error) {
			img := image.NewRGBA(image.Rectangle{Max: size})
			for y := 0; y < size.Y; y++ {
				for x := 0; x < size.X; x++ {
					img.SetRGBA(x, y, c)
				}
			}
			return img, nil
		})
	}
	r := NewRenderer(d, solid(color.RGBA{R: 200, A: 255}), 30)
	if err := r.RenderOnce(); err != nil {
		t.Fatal(err)
	}
	if got := d.at(1, 1); got.R != 200 || got.G != 0 {
		t.Fatalf("pixel = %v, want red", got)
	}

	r.SetSource(solid(color.RGBA{G: 100, A: 255}))
	if err := r.RenderOnce(); err != nil {
		t.Fatal(err)
	}
	if got := d.at(1, 1); got.R != 0 || got.G != 100 {
		t.Errorf("pixel after SetSource = %v, want green", got)
	}

	r.SetSource(nil)
	if err := r.RenderOnce(); err == nil {
		t.Error("RenderOnce() error = nil without a source")
	}
}
