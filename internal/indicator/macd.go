package indicator

import (
	"indcore/internal/input"
	"indcore/internal/model"
	"indcore/internal/smooth"
)

// MACD is the difference between a fast and a slow moving average, with a
// signal line smoothing that difference.
// Outputs: "Signal", "Histogram".
type MACD struct {
	fast, slow, signal smooth.Smoother
	src                input.Resolver
	count              int
}

// NewMACD creates a MACD (typically 12/26/9 with EMA smoothing).
func NewMACD(fast, slow, signal int, kind smooth.Kind, src input.Resolver) (*MACD, error) {
	f, err := smooth.New(kind, fast)
	if err != nil {
		return nil, err
	}
	s, err := smooth.New(kind, slow)
	if err != nil {
		return nil, err
	}
	sig, err := smooth.New(kind, signal)
	if err != nil {
		return nil, err
	}
	return &MACD{fast: f, slow: s, signal: sig, src: src}, nil
}

func (m *MACD) Name() string {
	return "MACD_" + model.Itoa(m.fast.Length()) + "_" + model.Itoa(m.slow.Length()) + "_" + model.Itoa(m.signal.Length())
}

func (m *MACD) Update(bar model.Bar, isFinal, includeOutputs bool) (float64, Outputs) {
	v := m.src.Value(bar)
	line := m.fast.Next(v, isFinal) - m.slow.Next(v, isFinal)
	sig := m.signal.Next(line, isFinal)
	if isFinal {
		m.count++
	}
	if !includeOutputs {
		return line, nil
	}
	return line, Outputs{
		"Signal":    sig,
		"Histogram": line - sig,
	}
}

func (m *MACD) Ready() bool {
	return m.count >= m.slow.Length()+m.signal.Length()-1
}

func (m *MACD) Reset() {
	m.fast.Reset()
	m.slow.Reset()
	m.signal.Reset()
	m.count = 0
}
