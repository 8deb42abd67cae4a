package indicator

import (
	"indcore/internal/input"
	"indcore/internal/model"
	"indcore/internal/window"
)

// Momentum is the change of the input over period bars. While fewer than
// period bars are committed the oldest available value stands in.
// Outputs: "ROC", the percentage change (0 when the base is 0).
type Momentum struct {
	period  int
	src     input.Resolver
	hist    *window.History
	commits int
}

func NewMomentum(period int, src input.Resolver) *Momentum {
	return &Momentum{
		period: period,
		src:    src,
		hist:   window.NewHistory(period),
	}
}

func (m *Momentum) Name() string { return "MOM_" + model.Itoa(m.period) }

func (m *Momentum) Update(bar model.Bar, isFinal, includeOutputs bool) (float64, Outputs) {
	v := m.src.Value(bar)
	base := m.hist.OffsetValue(v, m.period)
	if isFinal {
		m.hist.TryAppend(v)
		m.commits++
	}
	mom := v - base
	if !includeOutputs {
		return mom, nil
	}
	roc := 0.0
	if base != 0 {
		roc = 100 * mom / base
	}
	return mom, Outputs{"ROC": roc}
}

// Ready once the last commit had a real bar period bars behind it.
func (m *Momentum) Ready() bool { return m.commits > m.period }

func (m *Momentum) Reset() {
	m.hist.Clear()
	m.commits = 0
}
