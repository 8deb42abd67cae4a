package indicator

import (
	"indcore/internal/input"
	"indcore/internal/model"
	"indcore/internal/window"
)

// Correlation is the rolling Pearson correlation between a symbol and a
// benchmark series.
// Outputs: "BenchmarkAge", seconds the paired benchmark bar trails the
// primary bar (0 when both belong to the same interval).
type Correlation struct {
	pairing
	period int
	src    input.Resolver
	corr   *window.Correlation
}

func NewCorrelation(period int, src input.Resolver) *Correlation {
	return &Correlation{
		pairing: newPairing(),
		period:  period,
		src:     src,
		corr:    window.NewCorrelation(period),
	}
}

func (c *Correlation) Name() string { return "CORR_" + model.Itoa(c.period) }

func (c *Correlation) UpdateSeries(key SeriesKey, bar model.Bar, isFinal, includeOutputs bool) Result {
	bench, ok := c.pair(key, bar, isFinal)
	if !ok {
		return Result{}
	}
	x, y := c.src.Value(bar), c.src.Value(bench)
	var v float64
	if isFinal {
		v, _ = c.corr.Add(x, y)
	} else {
		v, _ = c.corr.Preview(x, y)
	}
	res := Result{Value: v, Valid: true}
	if includeOutputs {
		res.Outputs = Outputs{"BenchmarkAge": benchmarkAge(bar, bench)}
	}
	return res
}

func (c *Correlation) Ready() bool { return c.corr.Count() >= c.period }

func (c *Correlation) Reset() {
	c.coord.Reset()
	c.corr.Reset()
}
