package smooth

import "indcore/internal/window"

// simple is the arithmetic mean over a rolling window.
// During warm-up it averages the samples available so far.
type simple struct {
	sum *window.Sum
}

func newSimple(length int) *simple {
	return &simple{sum: window.NewSum(length)}
}

func (s *simple) Next(v float64, isFinal bool) float64 {
	var total float64
	var n int
	if isFinal {
		total, n = s.sum.Add(v)
	} else {
		total, n = s.sum.Preview(v)
	}
	return total / float64(n)
}

func (s *simple) Reset()      { s.sum.Reset() }
func (s *simple) Length() int { return s.sum.Window() }

// triangular is an SMA of an SMA; the two lengths add up to length+1.
type triangular struct {
	length        int
	first, second *simple
}

func newTriangular(length int) *triangular {
	first := (length + 1) / 2
	return &triangular{
		length: length,
		first:  newSimple(first),
		second: newSimple(length - first + 1),
	}
}

func (t *triangular) Next(v float64, isFinal bool) float64 {
	return t.second.Next(t.first.Next(v, isFinal), isFinal)
}

func (t *triangular) Reset() {
	t.first.Reset()
	t.second.Reset()
}

func (t *triangular) Length() int { return t.length }
