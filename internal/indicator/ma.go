package indicator

import (
	"indcore/internal/input"
	"indcore/internal/model"
	"indcore/internal/smooth"
)

// MA is a moving average of a bar field using any smoother kind.
// It has no named outputs.
type MA struct {
	name  string
	src   input.Resolver
	sm    smooth.Smoother
	count int
}

// NewMA creates a moving average of src using the given smoother.
func NewMA(kind smooth.Kind, period int, src input.Resolver) (*MA, error) {
	sm, err := smooth.New(kind, period)
	if err != nil {
		return nil, err
	}
	return &MA{
		name: kind.String() + "_" + model.Itoa(period),
		src:  src,
		sm:   sm,
	}, nil
}

func (m *MA) Name() string { return m.name }

func (m *MA) Update(bar model.Bar, isFinal, _ bool) (float64, Outputs) {
	v := m.sm.Next(m.src.Value(bar), isFinal)
	if isFinal {
		m.count++
	}
	return v, nil
}

func (m *MA) Ready() bool { return m.count >= m.sm.Length() }

func (m *MA) Reset() {
	m.sm.Reset()
	m.count = 0
}
