package window

// Max tracks the rolling maximum of the last n committed values.
type Max struct{ extremum }

// Min tracks the rolling minimum of the last n committed values.
type Min struct{ extremum }

// NewMax creates a rolling maximum. window is clamped to a minimum of 1.
func NewMax(window int) *Max {
	return &Max{newExtremum(window, func(a, b float64) bool { return a >= b })}
}

// NewMin creates a rolling minimum. window is clamped to a minimum of 1.
func NewMin(window int) *Min {
	return &Min{newExtremum(window, func(a, b float64) bool { return a <= b })}
}

type dequeEntry struct {
	seq int
	v   float64
}

// extremum is a monotonic deque over commit sequence numbers. Entries are
// ordered so the front always holds the extreme of the live window; an
// incoming value pops every entry it dominates from the back.
type extremum struct {
	window    int
	ring      []dequeEntry
	head      int
	size      int
	seq       int // number of commits since construction or Reset
	dominates func(a, b float64) bool
}

func newExtremum(window int, dominates func(a, b float64) bool) extremum {
	if window < 1 {
		window = 1
	}
	return extremum{
		window:    window,
		ring:      make([]dequeEntry, window),
		dominates: dominates,
	}
}

func (e *extremum) at(i int) *dequeEntry {
	return &e.ring[(e.head+i)%len(e.ring)]
}

// expired reports whether an entry falls out of the window once the value
// with sequence next is committed.
func (e *extremum) expired(en dequeEntry, next int) bool {
	return en.seq <= next-e.window
}

func (e *extremum) count(commits int) int {
	if commits > e.window {
		return e.window
	}
	return commits
}

// Preview returns the extreme and sample count as if v were committed.
func (e *extremum) Preview(v float64) (float64, int) {
	next := e.seq
	for i := 0; i < e.size; i++ {
		en := *e.at(i)
		if e.expired(en, next) {
			continue
		}
		if e.dominates(v, en.v) {
			return v, e.count(next + 1)
		}
		return en.v, e.count(next + 1)
	}
	return v, e.count(next + 1)
}

// Add commits v and returns the new extreme and sample count.
func (e *extremum) Add(v float64) (float64, int) {
	next := e.seq
	for e.size > 0 && e.expired(*e.at(0), next) {
		e.head = (e.head + 1) % len(e.ring)
		e.size--
	}
	for e.size > 0 && e.dominates(v, e.at(e.size-1).v) {
		e.size--
	}
	*e.at(e.size) = dequeEntry{seq: next, v: v}
	e.size++
	e.seq++
	return e.at(0).v, e.count(e.seq)
}

// Value returns the committed extreme (0 for an empty window).
func (e *extremum) Value() float64 {
	if e.size == 0 {
		return 0
	}
	return e.at(0).v
}

func (e *extremum) Count() int  { return e.count(e.seq) }
func (e *extremum) Window() int { return e.window }

// Reset clears the window.
func (e *extremum) Reset() {
	e.head = 0
	e.size = 0
	e.seq = 0
}
