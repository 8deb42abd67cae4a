package indicator

import (
	"math"

	"indcore/internal/model"
	"indcore/internal/smooth"
	"indcore/internal/window"
)

// ATR is the smoothed true range. The first bar has no previous close, so
// its true range is high-low.
// Outputs: "TrueRange".
type ATR struct {
	period    int
	prevClose *window.History
	sm        smooth.Smoother
	count     int
}

// NewATR creates an ATR (typically 14 periods, Wilder).
func NewATR(period int, kind smooth.Kind) (*ATR, error) {
	sm, err := smooth.New(kind, period)
	if err != nil {
		return nil, err
	}
	return &ATR{
		period:    period,
		prevClose: window.NewHistory(1),
		sm:        sm,
	}, nil
}

func (a *ATR) Name() string { return "ATR_" + model.Itoa(a.period) }

func (a *ATR) Update(bar model.Bar, isFinal, includeOutputs bool) (float64, Outputs) {
	tr := bar.High - bar.Low
	if pc, ok := a.prevClose.Last(); ok {
		tr = math.Max(tr, math.Max(math.Abs(bar.High-pc), math.Abs(bar.Low-pc)))
	}
	v := a.sm.Next(tr, isFinal)
	if isFinal {
		a.prevClose.TryAppend(bar.Close)
		a.count++
	}
	if !includeOutputs {
		return v, nil
	}
	return v, Outputs{"TrueRange": tr}
}

func (a *ATR) Ready() bool { return a.count >= a.period }

func (a *ATR) Reset() {
	a.prevClose.Clear()
	a.sm.Reset()
	a.count = 0
}
