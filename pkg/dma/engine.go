// Package dma runs ledmatrix transfer chains in software. An Engine plays
// the part of the timer and the four DMA channels: on every timer overflow
// it services the timer-triggered channel, follows the links, and writes
// each minor loop to byte-wide output ports. The output-enable line is then
// pulsed for the compare time within the period.
package dma

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fkcurrie/dma-matrix/pkg/ledmatrix"
)

var (
	ErrRunning       = errors.New("dma: engine running")
	ErrNotStarted    = errors.New("dma: engine not started")
	ErrNotConfigured = errors.New("dma: channel not configured")
	ErrNoTrigger     = errors.New("dma: no timer-triggered channel")
	ErrLinkLoop      = errors.New("dma: channel link loop")
	ErrTimer         = errors.New("dma: invalid timer configuration")
)

// EnableLine is the panel's output-enable signal.
type EnableLine interface {
	// Pulse lights the row for on, then blanks it for the rest of period.
	Pulse(on, period time.Duration) error
}

// Config wires an Engine to its outputs. A nil port discards its bytes and
// a nil Enable line runs the timer as fast as it can step.
type Config struct {
	Address io.ByteWriter
	Data    io.ByteWriter
	Enable  EnableLine

	// Manual disables the engine goroutine. The caller drives the timer
	// with Step instead.
	Manual bool
}

type channel struct {
	desc       ledmatrix.Descriptor
	configured bool
	offset     int
	iter       int
	handler    func()
}

// Engine is a software ledmatrix.Peripheral.
type Engine struct {
	cfg Config

	mu      sync.Mutex
	armed   bool
	timer   ledmatrix.TimerConfig
	cancel  context.CancelFunc
	done    chan struct{}
	lastErr error

	// Owned by the stepping goroutine while armed.
	chans [ledmatrix.NumChannels]channel

	period    atomic.Uint32
	compare   atomic.Uint32
	overflows atomic.Uint64
}

var _ ledmatrix.Peripheral = (*Engine)(nil)

// New creates an Engine writing to the outputs in cfg.
func New(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// ConfigureTimer sets the tick rate and the initial register values.
func (e *Engine) ConfigureTimer(t ledmatrix.TimerConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.armed {
		return ErrRunning
	}
	if t.Hz == 0 || t.Max == 0 || t.Period > t.Max || t.Compare > t.Period {
		return fmt.Errorf("%w: %+v", ErrTimer, t)
	}
	e.timer = t
	e.period.Store(t.Period)
	e.compare.Store(t.Compare)
	return nil
}

// ConfigureDescriptor programs one channel.
func (e *Engine) ConfigureDescriptor(d ledmatrix.Descriptor) error {
	if err := d.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.armed {
		return ErrRunning
	}
	ch := &e.chans[d.Channel]
	ch.desc = d
	ch.configured = true
	ch.offset, ch.iter = 0, 0
	return nil
}

// SetInterruptHandler installs fn as c's major-loop interrupt handler. Call
// it while the engine is stopped.
func (e *Engine) SetInterruptHandler(c ledmatrix.Channel, fn func()) {
	if int(c) >= ledmatrix.NumChannels {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.chans[c].handler = fn
}

// Repoint replaces c's byte source. It must be called from an interrupt
// handler or while the engine is stopped, and src must be as long as the
// source it replaces. Mismatched sources are ignored.
func (e *Engine) Repoint(c ledmatrix.Channel, src []byte) {
	if int(c) >= ledmatrix.NumChannels {
		return
	}
	ch := &e.chans[c]
	if len(src) != len(ch.desc.Bytes) {
		return
	}
	ch.desc.Bytes = src
}

// Start arms the chain from the beginning of every source. Unless the
// engine is manual it starts stepping in its own goroutine.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.armed {
		return ErrRunning
	}
	if e.timer.Hz == 0 {
		return fmt.Errorf("%w: timer not configured", ErrTimer)
	}
	if err := e.validateChain(); err != nil {
		return err
	}
	for i := range e.chans {
		e.chans[i].offset, e.chans[i].iter = 0, 0
	}
	e.lastErr = nil
	e.armed = true

	if e.cfg.Manual {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.done = make(chan struct{})
	go e.run(ctx, e.done)
	return nil
}

// Stop disarms the engine and waits for the stepping goroutine to exit.
func (e *Engine) Stop() error {
	e.mu.Lock()
	cancel, done := e.cancel, e.done
	e.cancel, e.done = nil, nil
	e.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.armed = false
	return nil
}

// Err returns the error that halted the engine goroutine, if any.
func (e *Engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// Overflows is the number of timer periods run since New.
func (e *Engine) Overflows() uint64 {
	return e.overflows.Load()
}

// Registers returns the timer period and compare registers.
func (e *Engine) Registers() (period, compare uint32) {
	return e.period.Load(), e.compare.Load()
}

// Step runs one timer period on a manual engine.
func (e *Engine) Step() error {
	e.mu.Lock()
	armed, manual := e.armed, e.cfg.Manual
	e.mu.Unlock()
	if !armed {
		return ErrNotStarted
	}
	if !manual {
		return ErrRunning
	}
	return e.step()
}

func (e *Engine) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if err := e.step(); err != nil {
			e.mu.Lock()
			e.lastErr = err
			e.mu.Unlock()
			return
		}
	}
}

func (e *Engine) validateChain() error {
	triggered := false
	for i := range e.chans {
		ch := &e.chans[i]
		if !ch.configured {
			continue
		}
		if ch.desc.Trigger == ledmatrix.TriggerTimer {
			triggered = true
		}
		seen := 0
		for next := ch.desc.Link; next != ledmatrix.NoLink; next = e.chans[next].desc.Link {
			if !e.chans[next].configured {
				return fmt.Errorf("%w: %v links to %v", ErrNotConfigured, ch.desc.Channel, next)
			}
			if seen++; seen > ledmatrix.NumChannels {
				return fmt.Errorf("%w: from %v", ErrLinkLoop, ch.desc.Channel)
			}
		}
	}
	if !triggered {
		return ErrNoTrigger
	}
	return nil
}

func (e *Engine) step() error {
	e.overflows.Add(1)
	for i := range e.chans {
		ch := &e.chans[i]
		if ch.configured && ch.desc.Trigger == ledmatrix.TriggerTimer {
			if err := e.service(ch); err != nil {
				return err
			}
		}
	}
	return e.pulse()
}

// service runs ch's minor loop and then those of the channels it links to.
func (e *Engine) service(ch *channel) error {
	for hops := 0; ; hops++ {
		if hops >= ledmatrix.NumChannels {
			return ErrLinkLoop
		}
		if err := e.minor(ch); err != nil {
			return err
		}
		if ch.desc.Link == ledmatrix.NoLink {
			return nil
		}
		ch = &e.chans[ch.desc.Link]
	}
}

func (e *Engine) minor(ch *channel) error {
	d := &ch.desc
	for n := 0; n < d.MinorLoop; n++ {
		i := ch.offset + n
		if d.Words != nil {
			e.writeRegister(d.Target, atomic.LoadUint32(&d.Words[i]))
			continue
		}
		if err := e.writePort(d.Target, d.Bytes[i]); err != nil {
			return fmt.Errorf("dma: %v channel: %w", d.Channel, err)
		}
	}
	ch.offset += d.MinorLoop
	ch.iter++
	if ch.iter == d.MajorLoops {
		ch.offset, ch.iter = 0, 0
		if d.InterruptOnMajor && ch.handler != nil {
			ch.handler()
		}
	}
	return nil
}

func (e *Engine) writeRegister(t ledmatrix.Target, v uint32) {
	switch t {
	case ledmatrix.TargetTimerPeriod:
		e.period.Store(v)
	case ledmatrix.TargetTimerCompare:
		e.compare.Store(v)
	}
}

func (e *Engine) writePort(t ledmatrix.Target, b byte) error {
	var w io.ByteWriter
	switch t {
	case ledmatrix.TargetAddressPort:
		w = e.cfg.Address
	case ledmatrix.TargetDataPort:
		w = e.cfg.Data
	}
	if w == nil {
		return nil
	}
	return w.WriteByte(b)
}

func (e *Engine) pulse() error {
	if e.cfg.Enable == nil {
		return nil
	}
	period, compare := e.Registers()
	per, on := e.ticks(period), e.ticks(compare)
	if err := e.cfg.Enable.Pulse(on, per); err != nil {
		return fmt.Errorf("dma: output enable: %w", err)
	}
	return nil
}

func (e *Engine) ticks(n uint32) time.Duration {
	return time.Duration(uint64(n) * uint64(time.Second) / uint64(e.timer.Hz))
}
