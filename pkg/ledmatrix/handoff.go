package ledmatrix

import "sync/atomic"

type swapState uint32

const (
	stateIdle swapState = iota
	stateSwapRequested
	stateSwapped
)

func (s swapState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateSwapRequested:
		return "swap-requested"
	case stateSwapped:
		return "swapped"
	}
	return "invalid"
}

const activeBit = 1 << 8

// handoff is the buffer exchange between Show and the refresh interrupt.
// The swap state and the active buffer index share one word so the
// interrupt can move both in a single compare-and-swap.
//
// The active index only changes in consume, and only while a swap is
// requested. Show withdraws any pending request before reading it, so the
// index it sees stays put until it requests again.
type handoff struct {
	word atomic.Uint32
}

func pack(s swapState, active int) uint32 {
	w := uint32(s)
	if active != 0 {
		w |= activeBit
	}
	return w
}

func unpack(w uint32) (swapState, int) {
	active := 0
	if w&activeBit != 0 {
		active = 1
	}
	return swapState(w &^ activeBit), active
}

func (h *handoff) load() (swapState, int) {
	return unpack(h.word.Load())
}

func (h *handoff) reset(active int) {
	h.word.Store(pack(stateIdle, active))
}

// withdraw cancels a pending request. It reports whether there was one.
func (h *handoff) withdraw() bool {
	for {
		old := h.word.Load()
		s, active := unpack(old)
		if s != stateSwapRequested {
			return false
		}
		if h.word.CompareAndSwap(old, pack(stateIdle, active)) {
			return true
		}
	}
}

// request publishes the inactive buffer. Called only by Show after
// withdraw, when active cannot change underneath it.
func (h *handoff) request(active int) {
	h.word.Store(pack(stateSwapRequested, active))
}

// consume takes a pending request and flips the active index. It returns
// the new active index.
func (h *handoff) consume() (int, bool) {
	old := h.word.Load()
	s, active := unpack(old)
	if s != stateSwapRequested {
		return active, false
	}
	next := 1 - active
	if !h.word.CompareAndSwap(old, pack(stateSwapped, next)) {
		return active, false
	}
	return next, true
}
