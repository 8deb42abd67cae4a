// Package window provides fixed-capacity history storage and the rolling
// aggregates built on it.
//
// Every aggregate exposes the same pair of entry points: Preview computes
// the aggregate as if a value were appended and leaves state untouched,
// Add commits the value. Instances are single-writer.
package window

// History is a fixed-capacity circular store of committed scalars.
// Uses a preallocated buffer; once full each commit evicts the oldest entry.
type History struct {
	buf   []float64
	idx   int // next write position
	count int
}

// NewHistory creates a history buffer. capacity is clamped to a minimum of 1.
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{buf: make([]float64, capacity)}
}

// TryAppend commits v. When the buffer is full the oldest entry is evicted
// and returned with ok=true.
func (h *History) TryAppend(v float64) (evicted float64, ok bool) {
	if h.count == len(h.buf) {
		evicted, ok = h.buf[h.idx], true
	} else {
		h.count++
	}
	h.buf[h.idx] = v
	h.idx++
	if h.idx == len(h.buf) {
		h.idx = 0
	}
	return evicted, ok
}

// OffsetValue returns the value k samples before "now", where now is the
// not-yet-committed candidate: k=0 yields candidate, k=1 the most recent
// commit, and so on. During warm-up the oldest available entry is
// substituted; an empty history yields candidate.
func (h *History) OffsetValue(candidate float64, k int) float64 {
	if k <= 0 || h.count == 0 {
		return candidate
	}
	i := k - 1
	if i >= h.count {
		i = h.count - 1
	}
	return h.Get(i)
}

// Get returns the committed value i positions before the most recent one
// (0 = most recent). Out-of-range indexes return 0.
func (h *History) Get(i int) float64 {
	if i < 0 || i >= h.count {
		return 0
	}
	pos := h.idx - 1 - i
	if pos < 0 {
		pos += len(h.buf)
	}
	return h.buf[pos]
}

// Oldest returns the entry that the next commit would evict, if the buffer
// is full.
func (h *History) Oldest() (float64, bool) {
	if h.count < len(h.buf) {
		return 0, false
	}
	return h.buf[h.idx], true
}

// Last returns the most recent committed value.
func (h *History) Last() (float64, bool) {
	if h.count == 0 {
		return 0, false
	}
	return h.Get(0), true
}

// Clear resets the length to zero without reallocating storage.
func (h *History) Clear() {
	h.idx = 0
	h.count = 0
	for i := range h.buf {
		h.buf[i] = 0
	}
}

func (h *History) Count() int    { return h.count }
func (h *History) Capacity() int { return len(h.buf) }
func (h *History) Full() bool    { return h.count == len(h.buf) }

// Values copies the committed contents, oldest first, into dst and returns it.
func (h *History) Values(dst []float64) []float64 {
	dst = dst[:0]
	for i := h.count - 1; i >= 0; i-- {
		dst = append(dst, h.Get(i))
	}
	return dst
}
