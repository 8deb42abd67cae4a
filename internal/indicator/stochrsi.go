package indicator

import (
	"indcore/internal/model"
	"indcore/internal/smooth"
	"indcore/internal/window"
)

// StochRSI applies the stochastic oscillator to an embedded RSI.
// %K is the smoothed position of RSI within its rolling range and %D is
// the smoothed %K. A flat RSI range reads as 0.
// Outputs: "K", "D".
type StochRSI struct {
	period int
	rsi    *RSI
	hi     *window.Max
	lo     *window.Min
	k, d   smooth.Smoother
}

// NewStochRSI creates a StochRSI whose RSI and stochastic lookbacks are both
// period, with %K and %D smoothed by SMAs of kLen and dLen (typically 3, 3).
func NewStochRSI(period, kLen, dLen int, rsi *RSI) (*StochRSI, error) {
	k, err := smooth.New(smooth.SMA, kLen)
	if err != nil {
		return nil, err
	}
	d, err := smooth.New(smooth.SMA, dLen)
	if err != nil {
		return nil, err
	}
	return &StochRSI{
		period: period,
		rsi:    rsi,
		hi:     window.NewMax(period),
		lo:     window.NewMin(period),
		k:      k,
		d:      d,
	}, nil
}

func (s *StochRSI) Name() string { return "STOCHRSI_" + model.Itoa(s.period) }

func (s *StochRSI) Update(bar model.Bar, isFinal, includeOutputs bool) (float64, Outputs) {
	// Only the RSI line is needed from the sub-engine.
	r, _ := s.rsi.Update(bar, isFinal, false)

	var hi, lo float64
	if isFinal {
		hi, _ = s.hi.Add(r)
		lo, _ = s.lo.Add(r)
	} else {
		hi, _ = s.hi.Preview(r)
		lo, _ = s.lo.Preview(r)
	}
	raw := 0.0
	if hi > lo {
		raw = (r - lo) / (hi - lo) * 100
	}
	k := s.k.Next(raw, isFinal)
	d := s.d.Next(k, isFinal)
	if !includeOutputs {
		return k, nil
	}
	return k, Outputs{"K": k, "D": d}
}

func (s *StochRSI) Ready() bool {
	return s.rsi.Ready() && s.hi.Count() >= s.period
}

func (s *StochRSI) Reset() {
	s.rsi.Reset()
	s.hi.Reset()
	s.lo.Reset()
	s.k.Reset()
	s.d.Reset()
}
