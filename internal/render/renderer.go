package render

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fkcurrie/dma-matrix/internal/log"
	"github.com/fkcurrie/dma-matrix/internal/types"
)

// Renderer pulls frames from a Source at a fixed rate and shows them.
type Renderer struct {
	display types.Display
	fps     int
	blit    *Blitter

	mu     sync.Mutex
	source Source
	start  time.Time
	frames atomic.Uint64
}

// NewRenderer creates a renderer drawing source on display fps times a
// second.
func NewRenderer(display types.Display, source Source, fps int) *Renderer {
	if fps <= 0 {
		fps = 30
	}
	return &Renderer{
		display: display,
		source:  source,
		fps:     fps,
		blit:    NewBlitter(),
		start:   time.Now(),
	}
}

// SetSource switches the source and restarts its clock
func (r *Renderer) SetSource(s Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.source = s
	r.start = time.Now()
}

// Start renders until ctx is done
func (r *Renderer) Start(ctx context.Context) error {
	ticker := time.NewTicker(time.Second / time.Duration(r.fps))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.RenderOnce(); err != nil {
				log.Error("render failed", err)
			}
		}
	}
}

// RenderOnce draws and shows the current frame
func (r *Renderer) RenderOnce() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.render(time.Since(r.start))
}

func (r *Renderer) render(t time.Duration) error {
	if r.source == nil {
		return errors.New("render: no source")
	}
	w, h := r.display.Size()
	img, err := r.source.Frame(t, image.Pt(int(w), int(h)))
	if err != nil {
		return err
	}
	if err := r.blit.Blit(r.display, img); err != nil {
		return err
	}
	r.frames.Add(1)
	return nil
}

// Locked runs fn while no frame is being drawn.
func (r *Renderer) Locked(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn()
}

// Frames returns the number of frames shown
func (r *Renderer) Frames() uint64 {
	return r.frames.Load()
}
