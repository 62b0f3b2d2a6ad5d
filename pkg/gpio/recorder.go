package gpio

import (
	"sync"
	"time"
)

// Recorder is a Bus that keeps the last bytes written to it. It stands in
// for a panel when there is no hardware.
type Recorder struct {
	mu    sync.Mutex
	ring  []byte
	next  int
	total uint64
}

// NewRecorder returns a Recorder keeping the last size bytes.
func NewRecorder(size int) *Recorder {
	if size < 1 {
		size = 1
	}
	return &Recorder{ring: make([]byte, 0, size)}
}

// WriteByte records v
func (r *Recorder) WriteByte(v byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.ring) < cap(r.ring) {
		r.ring = append(r.ring, v)
	} else {
		r.ring[r.next] = v
		r.next = (r.next + 1) % len(r.ring)
	}
	r.total++
	return nil
}

// Bytes returns the recorded bytes, oldest first.
func (r *Recorder) Bytes() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]byte, 0, len(r.ring))
	out = append(out, r.ring[r.next:]...)
	return append(out, r.ring[:r.next]...)
}

// Total returns the number of bytes written since creation.
func (r *Recorder) Total() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total
}

// Close implements Bus
func (r *Recorder) Close() error {
	return nil
}

// NopEnable is an Enable line that only keeps time, so a simulated panel
// scans at its configured rate without spinning.
type NopEnable struct{}

// Pulse sleeps for period
func (NopEnable) Pulse(on, period time.Duration) error {
	if period > 0 {
		time.Sleep(period)
	}
	return nil
}

// Close implements Enable
func (NopEnable) Close() error {
	return nil
}
