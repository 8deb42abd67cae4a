package indicator

import (
	"math"

	"indcore/internal/input"
	"indcore/internal/model"
	"indcore/internal/smooth"
	"indcore/internal/window"
)

// Bollinger plots bands mult standard deviations around a moving average.
// The deviation is the population deviation over the same window, kept in
// O(1) from rolling sums of x and x^2.
// Outputs: "UpperBand", "LowerBand", "Middle", "Width".
// Width is (upper-lower)/middle and 0 when the middle is 0.
type Bollinger struct {
	period int
	mult   float64
	src    input.Resolver
	basis  smooth.Smoother
	sum    *window.Sum
	sumSq  *window.Sum
}

// NewBollinger creates Bollinger bands (typically 20 periods, mult 2, SMA).
func NewBollinger(period int, mult float64, kind smooth.Kind, src input.Resolver) (*Bollinger, error) {
	basis, err := smooth.New(kind, period)
	if err != nil {
		return nil, err
	}
	return &Bollinger{
		period: period,
		mult:   mult,
		src:    src,
		basis:  basis,
		sum:    window.NewSum(period),
		sumSq:  window.NewSum(period),
	}, nil
}

func (b *Bollinger) Name() string { return "BB_" + model.Itoa(b.period) }

func (b *Bollinger) Update(bar model.Bar, isFinal, includeOutputs bool) (float64, Outputs) {
	v := b.src.Value(bar)
	middle := b.basis.Next(v, isFinal)

	var sx, sxx float64
	var n int
	if isFinal {
		sx, n = b.sum.Add(v)
		sxx, _ = b.sumSq.Add(v * v)
	} else {
		sx, n = b.sum.Preview(v)
		sxx, _ = b.sumSq.Preview(v * v)
	}
	if !includeOutputs {
		return middle, nil
	}

	dev := b.mult * stdDev(sx, sxx, n)
	upper, lower := middle+dev, middle-dev
	width := 0.0
	if middle != 0 {
		width = (upper - lower) / middle
	}
	return middle, Outputs{
		"UpperBand": upper,
		"LowerBand": lower,
		"Middle":    middle,
		"Width":     width,
	}
}

func (b *Bollinger) Ready() bool { return b.sum.Full() }

func (b *Bollinger) Reset() {
	b.basis.Reset()
	b.sum.Reset()
	b.sumSq.Reset()
}

// stdDev is the population standard deviation from running sums.
// Rounding can push the variance slightly negative; that reads as 0.
func stdDev(sx, sxx float64, n int) float64 {
	if n == 0 {
		return 0
	}
	fn := float64(n)
	mean := sx / fn
	variance := sxx/fn - mean*mean
	if variance <= 0 {
		return 0
	}
	return math.Sqrt(variance)
}
