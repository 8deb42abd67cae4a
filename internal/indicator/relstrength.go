package indicator

import (
	"indcore/internal/input"
	"indcore/internal/model"
	"indcore/internal/smooth"
)

// RelativeStrength is the smoothed ratio of a symbol to a benchmark.
// A zero benchmark value gives a ratio of 0.
// Outputs: "Ratio" (unsmoothed), "BenchmarkAge".
type RelativeStrength struct {
	pairing
	src   input.Resolver
	sm    smooth.Smoother
	count int
}

func NewRelativeStrength(period int, kind smooth.Kind, src input.Resolver) (*RelativeStrength, error) {
	sm, err := smooth.New(kind, period)
	if err != nil {
		return nil, err
	}
	return &RelativeStrength{pairing: newPairing(), src: src, sm: sm}, nil
}

func (r *RelativeStrength) Name() string { return "RS_" + model.Itoa(r.sm.Length()) }

func (r *RelativeStrength) UpdateSeries(key SeriesKey, bar model.Bar, isFinal, includeOutputs bool) Result {
	bench, ok := r.pair(key, bar, isFinal)
	if !ok {
		return Result{}
	}
	ratio := 0.0
	if b := r.src.Value(bench); b != 0 {
		ratio = r.src.Value(bar) / b
	}
	v := r.sm.Next(ratio, isFinal)
	if isFinal {
		r.count++
	}
	res := Result{Value: v, Valid: true}
	if includeOutputs {
		res.Outputs = Outputs{
			"Ratio":        ratio,
			"BenchmarkAge": benchmarkAge(bar, bench),
		}
	}
	return res
}

func (r *RelativeStrength) Ready() bool { return r.count >= r.sm.Length() }

func (r *RelativeStrength) Reset() {
	r.coord.Reset()
	r.sm.Reset()
	r.count = 0
}
