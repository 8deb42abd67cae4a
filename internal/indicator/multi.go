package indicator

import "indcore/internal/model"

// Result is the outcome of a multi-series update. Valid is false when no
// value was produced: on dependent-series updates, and on primary updates
// before the dependent series has ever produced a bar.
type Result struct {
	Value   float64
	Outputs Outputs
	Valid   bool
}

// MultiIndicator is the contract for indicators that compare a primary
// series against a dependent (benchmark) series.
type MultiIndicator interface {
	Name() string

	// UpdateSeries feeds bar as series key. Only Primary updates produce
	// a valid Result.
	UpdateSeries(key SeriesKey, bar model.Bar, isFinal, includeOutputs bool) Result

	Ready() bool
	Reset()
}

// pairing holds the state shared by the two-series indicators.
type pairing struct {
	coord *Coordinator
}

func newPairing() pairing {
	return pairing{coord: NewCoordinator()}
}

// pair records bar and, for primary updates, returns the benchmark bar to
// compute against. ok is false when nothing should be computed.
func (p *pairing) pair(key SeriesKey, bar model.Bar, isFinal bool) (bench model.Bar, ok bool) {
	p.coord.Observe(key, bar, isFinal)
	if key != Primary {
		return model.Bar{}, false
	}
	bench, _, ok = p.coord.Resolve(Benchmark, bar.Start, isFinal)
	return bench, ok
}

// benchmarkAge is how far the paired benchmark bar trails the primary bar,
// in seconds (0 on the fast path).
func benchmarkAge(primary, bench model.Bar) float64 {
	return primary.Start.Sub(bench.Start).Seconds()
}
