package smooth

import "indcore/internal/window"

// recursive is the shared state of EMA-style filters:
// out = price*alpha + prev*(1-alpha), seeded with the running mean of the
// first length samples.
type recursive struct {
	length  int
	alpha   float64
	count   int
	sum     float64
	current float64
}

func newRecursive(length int, alpha float64) *recursive {
	return &recursive{length: length, alpha: alpha}
}

func newExponential(length int) *recursive {
	return newRecursive(length, 2.0/float64(length+1))
}

// newWilder uses alpha = 1/length, the smoothing of RSI and ATR.
func newWilder(length int) *recursive {
	return newRecursive(length, 1.0/float64(length))
}

func (r *recursive) Next(v float64, isFinal bool) float64 {
	count, sum := r.count+1, r.sum
	var out float64
	if count <= r.length {
		sum += v
		out = sum / float64(count)
	} else {
		out = v*r.alpha + r.current*(1-r.alpha)
	}
	if isFinal {
		r.count, r.sum, r.current = count, sum, out
	}
	return out
}

func (r *recursive) Reset() {
	r.count = 0
	r.sum = 0
	r.current = 0
}

func (r *recursive) Length() int { return r.length }

// double is DEMA: 2*EMA - EMA(EMA).
type double struct {
	e1, e2 *recursive
}

func newDouble(length int) *double {
	return &double{e1: newExponential(length), e2: newExponential(length)}
}

func (d *double) Next(v float64, isFinal bool) float64 {
	a := d.e1.Next(v, isFinal)
	b := d.e2.Next(a, isFinal)
	return 2*a - b
}

func (d *double) Reset() {
	d.e1.Reset()
	d.e2.Reset()
}

func (d *double) Length() int { return d.e1.length }

// triple is TEMA: 3*EMA - 3*EMA(EMA) + EMA(EMA(EMA)).
type triple struct {
	e1, e2, e3 *recursive
}

func newTriple(length int) *triple {
	return &triple{e1: newExponential(length), e2: newExponential(length), e3: newExponential(length)}
}

func (t *triple) Next(v float64, isFinal bool) float64 {
	a := t.e1.Next(v, isFinal)
	b := t.e2.Next(a, isFinal)
	c := t.e3.Next(b, isFinal)
	return 3*a - 3*b + c
}

func (t *triple) Reset() {
	t.e1.Reset()
	t.e2.Reset()
	t.e3.Reset()
}

func (t *triple) Length() int { return t.e1.length }

// zeroLag is ZLEMA: an EMA of v + (v - v[lag]) with lag = (length-1)/2.
type zeroLag struct {
	lag  int
	hist *window.History
	ema  *recursive
}

func newZeroLag(length int) *zeroLag {
	lag := (length - 1) / 2
	return &zeroLag{
		lag:  lag,
		hist: window.NewHistory(lag),
		ema:  newExponential(length),
	}
}

func (z *zeroLag) Next(v float64, isFinal bool) float64 {
	x := v + (v - z.hist.OffsetValue(v, z.lag))
	out := z.ema.Next(x, isFinal)
	if isFinal {
		z.hist.TryAppend(v)
	}
	return out
}

func (z *zeroLag) Reset() {
	z.hist.Clear()
	z.ema.Reset()
}

func (z *zeroLag) Length() int { return z.ema.length }
