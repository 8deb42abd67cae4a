package indicator

import (
	"indcore/internal/model"
	"indcore/internal/window"
)

// Donchian tracks the highest high and lowest low of the last period bars.
// The primary value is the channel midpoint.
// Outputs: "Upper", "Lower", "Middle".
type Donchian struct {
	period int
	hi     *window.Max
	lo     *window.Min
}

func NewDonchian(period int) *Donchian {
	return &Donchian{
		period: period,
		hi:     window.NewMax(period),
		lo:     window.NewMin(period),
	}
}

func (d *Donchian) Name() string { return "DC_" + model.Itoa(d.period) }

func (d *Donchian) Update(bar model.Bar, isFinal, includeOutputs bool) (float64, Outputs) {
	var upper, lower float64
	if isFinal {
		upper, _ = d.hi.Add(bar.High)
		lower, _ = d.lo.Add(bar.Low)
	} else {
		upper, _ = d.hi.Preview(bar.High)
		lower, _ = d.lo.Preview(bar.Low)
	}
	middle := (upper + lower) / 2
	if !includeOutputs {
		return middle, nil
	}
	return middle, Outputs{
		"Upper":  upper,
		"Lower":  lower,
		"Middle": middle,
	}
}

func (d *Donchian) Ready() bool { return d.hi.Count() >= d.period }

func (d *Donchian) Reset() {
	d.hi.Reset()
	d.lo.Reset()
}
