package window

// Sum maintains a rolling total over the last n committed values.
// O(1) per call: the evicted value is subtracted from the running total.
type Sum struct {
	hist *History
	sum  float64
}

// NewSum creates a rolling sum. window is clamped to a minimum of 1.
func NewSum(window int) *Sum {
	return &Sum{hist: NewHistory(window)}
}

// Preview returns the sum and sample count as if v were committed.
func (s *Sum) Preview(v float64) (float64, int) {
	if old, full := s.hist.Oldest(); full {
		return s.sum - old + v, s.hist.Count()
	}
	return s.sum + v, s.hist.Count() + 1
}

// Add commits v and returns the new sum and sample count.
func (s *Sum) Add(v float64) (float64, int) {
	if old, evicted := s.hist.TryAppend(v); evicted {
		s.sum -= old
	}
	s.sum += v
	return s.sum, s.hist.Count()
}

// Value returns the committed sum (0 for an empty window).
func (s *Sum) Value() float64 { return s.sum }
func (s *Sum) Count() int     { return s.hist.Count() }
func (s *Sum) Window() int    { return s.hist.Capacity() }

// Full reports whether the window holds its full complement of samples.
func (s *Sum) Full() bool { return s.hist.Full() }

// History exposes the committed samples for read-only offset lookups.
func (s *Sum) History() *History { return s.hist }

// Reset clears the window.
func (s *Sum) Reset() {
	s.hist.Clear()
	s.sum = 0
}
