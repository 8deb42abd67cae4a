package indicator

import (
	"indcore/internal/input"
	"indcore/internal/model"
	"indcore/internal/window"
)

// RollingMedian is the nearest-rank median of the last period values.
// Outputs: "P25", "P75", taken from the same window.
type RollingMedian struct {
	period int
	src    input.Resolver
	agg    *window.Percentile
}

func NewRollingMedian(period int, src input.Resolver) *RollingMedian {
	return &RollingMedian{
		period: period,
		src:    src,
		agg:    window.NewMedian(period),
	}
}

func (m *RollingMedian) Name() string { return "MEDIAN_" + model.Itoa(m.period) }

func (m *RollingMedian) Update(bar model.Bar, isFinal, includeOutputs bool) (float64, Outputs) {
	v := m.src.Value(bar)
	if isFinal {
		med, _ := m.agg.Add(v)
		if !includeOutputs {
			return med, nil
		}
		return med, Outputs{
			"P25": m.agg.PercentileNearestRank(25),
			"P75": m.agg.PercentileNearestRank(75),
		}
	}

	med, _ := m.agg.Preview(v)
	if !includeOutputs {
		return med, nil
	}
	return med, Outputs{
		"P25": m.agg.PreviewPercentile(v, 25),
		"P75": m.agg.PreviewPercentile(v, 75),
	}
}

func (m *RollingMedian) Ready() bool { return m.agg.Count() >= m.period }

func (m *RollingMedian) Reset() { m.agg.Reset() }

// Release returns the order-statistic node pool.
func (m *RollingMedian) Release() { m.agg.Release() }
