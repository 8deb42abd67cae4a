package smooth

import (
	"math"

	"indcore/internal/window"
)

const (
	kamaFast = 2.0 / (2 + 1)
	kamaSlow = 2.0 / (30 + 1)
)

// adaptive is Kaufman's adaptive moving average. The efficiency ratio is
// |v - v[length]| over the sum of the last length absolute changes; the
// smoothing constant moves between the 2- and 30-period EMA constants.
type adaptive struct {
	prices  *window.History
	noise   *window.Sum
	current float64
}

func newAdaptive(length int) *adaptive {
	return &adaptive{
		prices: window.NewHistory(length),
		noise:  window.NewSum(length),
	}
}

func (a *adaptive) Next(v float64, isFinal bool) float64 {
	last, ok := a.prices.Last()
	if !ok {
		if isFinal {
			a.prices.TryAppend(v)
			a.current = v
		}
		return v
	}

	change := math.Abs(v - last)
	var noise float64
	if isFinal {
		noise, _ = a.noise.Add(change)
	} else {
		noise, _ = a.noise.Preview(change)
	}
	direction := math.Abs(v - a.prices.OffsetValue(v, a.prices.Capacity()))

	er := 0.0
	if noise > 0 {
		er = direction / noise
	}
	sc := er*(kamaFast-kamaSlow) + kamaSlow
	out := a.current + sc*sc*(v-a.current)

	if isFinal {
		a.prices.TryAppend(v)
		a.current = out
	}
	return out
}

func (a *adaptive) Reset() {
	a.prices.Clear()
	a.noise.Reset()
	a.current = 0
}

func (a *adaptive) Length() int { return a.prices.Capacity() }
