package window

import "math"

// Percentile maintains the window contents in an order-statistic treap so
// that insertion, eviction and rank queries are O(log n).
// Results use the nearest-rank definition (no interpolation).
type Percentile struct {
	pct  float64
	hist *History // arrival order, for eviction
	tree treap
}

// NewPercentile creates a rolling percentile for p in [0, 100].
// window is clamped to a minimum of 1 and p to [0, 100].
func NewPercentile(window int, p float64) *Percentile {
	h := NewHistory(window)
	return &Percentile{
		pct:  clampPct(p),
		hist: h,
		tree: newTreap(h.Capacity()),
	}
}

// NewMedian is NewPercentile(window, 50).
func NewMedian(window int) *Percentile {
	return NewPercentile(window, 50)
}

// Preview returns the configured percentile and sample count as if v were committed.
func (p *Percentile) Preview(v float64) (float64, int) {
	v = sanitize(v)
	n := p.hist.Count()
	if !p.hist.Full() {
		n++
	}
	return p.PreviewPercentile(v, p.pct), n
}

// Add commits v and returns the configured percentile and sample count.
func (p *Percentile) Add(v float64) (float64, int) {
	v = sanitize(v)
	if old, evicted := p.hist.TryAppend(v); evicted {
		p.tree.remove(old)
	}
	p.tree.insert(v)
	return p.PercentileNearestRank(p.pct), p.hist.Count()
}

// PercentileNearestRank returns the nearest-rank percentile q of the
// committed window, or 0 when the window is empty.
func (p *Percentile) PercentileNearestRank(q float64) float64 {
	n := p.tree.len()
	if n == 0 {
		return 0
	}
	return p.tree.kth(nearestRank(q, n))
}

// PreviewPercentile returns the nearest-rank percentile q of the window that
// would result from committing v. The tree is not modified: the rank is
// resolved against the committed tree with the evicted and candidate
// values accounted for arithmetically.
func (p *Percentile) PreviewPercentile(v, q float64) float64 {
	v = sanitize(v)
	evict, hasEvict := p.hist.Oldest()
	n := p.tree.len() + 1
	if hasEvict {
		n--
	}
	r := nearestRank(q, n)

	// Sorted position of v among the survivors.
	below := p.tree.countLess(v)
	if hasEvict && evict < v {
		below--
	}
	switch {
	case r <= below:
		return p.kthWithout(r, evict, hasEvict)
	case r == below+1:
		return v
	default:
		return p.kthWithout(r-1, evict, hasEvict)
	}
}

// kthWithout selects the r-th smallest committed value with one copy of e removed.
func (p *Percentile) kthWithout(r int, e float64, removed bool) float64 {
	if removed && r > p.tree.countLess(e) {
		r++
	}
	return p.tree.kth(r)
}

// Value returns the configured percentile of the committed window.
func (p *Percentile) Value() float64 { return p.PercentileNearestRank(p.pct) }
func (p *Percentile) Count() int     { return p.hist.Count() }
func (p *Percentile) Window() int    { return p.hist.Capacity() }

// Reset clears the window and returns every node to the pool.
func (p *Percentile) Reset() {
	p.hist.Clear()
	p.tree.reset()
}

// Release drops the node pool. The instance stays usable and reallocates
// lazily.
func (p *Percentile) Release() {
	p.hist.Clear()
	p.tree.release()
}

func nearestRank(q float64, n int) int {
	q = clampPct(q)
	// The epsilon keeps exact products such as 30*10/100 from rounding up.
	r := int(math.Ceil(q*float64(n)/100 - 1e-9))
	if r < 1 {
		r = 1
	}
	if r > n {
		r = n
	}
	return r
}

func clampPct(p float64) float64 {
	switch {
	case math.IsNaN(p), p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}

// NaN breaks the ordering the tree relies on; it is stored as 0.
func sanitize(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}
