package indicator

import (
	"time"

	"indcore/internal/model"
)

// SeriesKey identifies one named series of a multi-series indicator.
type SeriesKey string

const (
	Primary   SeriesKey = "primary"
	Benchmark SeriesKey = "benchmark"
)

// Coordinator remembers the latest bar per series so a multi-series
// indicator can compute when the dependent series has not updated in the
// current cycle. Committed and tentative bars are kept apart: commits only
// ever see committed bars, which keeps previews out of committed results.
//
// A preview does write: Observe with isFinal=false replaces the series'
// tentative bar. That cache is the only state a preview touches, and the
// next commit of the series clears it.
//
// A Coordinator belongs to exactly one indicator and is written only by
// that indicator's UpdateSeries calls.
type Coordinator struct {
	committed map[SeriesKey]model.Bar
	tentative map[SeriesKey]model.Bar
}

// NewCoordinator creates an empty coordinator.
func NewCoordinator() *Coordinator {
	return &Coordinator{
		committed: make(map[SeriesKey]model.Bar, 2),
		tentative: make(map[SeriesKey]model.Bar, 2),
	}
}

// Observe records bar for key. A final bar replaces the committed entry and
// clears any tentative one; a forming bar only replaces the tentative entry.
func (c *Coordinator) Observe(key SeriesKey, bar model.Bar, isFinal bool) {
	if isFinal {
		c.committed[key] = bar
		delete(c.tentative, key)
		return
	}
	c.tentative[key] = bar
}

// TryGetLatest returns the most recently committed bar for key.
func (c *Coordinator) TryGetLatest(key SeriesKey) (model.Bar, bool) {
	b, ok := c.committed[key]
	return b, ok
}

// Resolve picks the bar of series key to pair with a primary bar starting
// at `at`. Commits use the committed bar; previews prefer a tentative bar.
// sameCycle reports whether the chosen bar belongs to the same interval
// (fast path) rather than an earlier one (fallback). ok is false when the
// series has never produced a usable bar.
func (c *Coordinator) Resolve(key SeriesKey, at time.Time, isFinal bool) (bar model.Bar, sameCycle, ok bool) {
	if !isFinal {
		if b, found := c.tentative[key]; found {
			return b, b.Start.Equal(at), true
		}
	}
	b, found := c.committed[key]
	if !found {
		return model.Bar{}, false, false
	}
	return b, b.Start.Equal(at), true
}

// Reset forgets every series.
func (c *Coordinator) Reset() {
	for k := range c.committed {
		delete(c.committed, k)
	}
	for k := range c.tentative {
		delete(c.tentative, k)
	}
}
