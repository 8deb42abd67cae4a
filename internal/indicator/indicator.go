// Package indicator defines the state machine every technical indicator
// implements and the engine that drives them per timeframe and token.
//
// An indicator is driven by a single method, Update(bar, isFinal,
// includeOutputs). With isFinal=false it previews the value the indicator
// would report if the bar closed now; nothing it owns changes. With
// isFinal=true it commits. Indicators that embed other indicators pass the
// same isFinal flag down and never decide to commit on their own.
//
// Instances are single-writer. Many instances may run on different
// goroutines since they share nothing.
package indicator

import "indcore/internal/model"

// Outputs carries an indicator's named secondary values ("Signal",
// "UpperBand", ...). Key names are part of each indicator's contract.
type Outputs map[string]float64

// Indicator is the contract for single-series indicators.
type Indicator interface {
	// Name returns a descriptive label, e.g. "EMA_20" or "MACD_12_26_9".
	Name() string

	// Update previews (isFinal=false) or commits (isFinal=true) bar and
	// returns the primary value. Named outputs are only built when
	// includeOutputs is true.
	Update(bar model.Bar, isFinal, includeOutputs bool) (float64, Outputs)

	// Ready reports whether enough bars have been committed for the value
	// to be meaningful.
	Ready() bool

	// Reset returns the instance to its just-constructed state.
	Reset()
}

// Releaser is implemented by indicators that hold pooled buffers.
type Releaser interface {
	Release()
}

// release calls Release on v if it pools buffers.
func release(v any) {
	if r, ok := v.(Releaser); ok {
		r.Release()
	}
}
