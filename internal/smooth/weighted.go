package smooth

import (
	"math"

	"indcore/internal/window"
)

// weighted is the linearly weighted moving average: the newest sample has
// weight n, the oldest weight 1. Both the plain and weighted sums are kept
// incrementally.
type weighted struct {
	hist *window.History
	sum  float64 // plain sum of the window
	wsum float64 // weighted sum of the window
}

func newWeighted(length int) *weighted {
	return &weighted{hist: window.NewHistory(length)}
}

func (w *weighted) step(v float64) (sum, wsum float64, n int) {
	if old, full := w.hist.Oldest(); full {
		n = w.hist.Count()
		// Every existing weight drops by one; the oldest falls to zero.
		return w.sum - old + v, w.wsum - w.sum + float64(n)*v, n
	}
	n = w.hist.Count() + 1
	return w.sum + v, w.wsum + float64(n)*v, n
}

func (w *weighted) Next(v float64, isFinal bool) float64 {
	sum, wsum, n := w.step(v)
	if isFinal {
		w.hist.TryAppend(v)
		w.sum, w.wsum = sum, wsum
	}
	return wsum / (float64(n) * float64(n+1) / 2)
}

func (w *weighted) Reset() {
	w.hist.Clear()
	w.sum = 0
	w.wsum = 0
}

func (w *weighted) Length() int { return w.hist.Capacity() }

// hull is HMA: WMA(2*WMA(n/2) - WMA(n), sqrt(n)).
type hull struct {
	length          int
	half, full, out *weighted
}

func newHull(length int) *hull {
	half := length / 2
	if half < 1 {
		half = 1
	}
	sq := int(math.Round(math.Sqrt(float64(length))))
	if sq < 1 {
		sq = 1
	}
	return &hull{
		length: length,
		half:   newWeighted(half),
		full:   newWeighted(length),
		out:    newWeighted(sq),
	}
}

func (h *hull) Next(v float64, isFinal bool) float64 {
	raw := 2*h.half.Next(v, isFinal) - h.full.Next(v, isFinal)
	return h.out.Next(raw, isFinal)
}

func (h *hull) Reset() {
	h.half.Reset()
	h.full.Reset()
	h.out.Reset()
}

func (h *hull) Length() int { return h.length }
