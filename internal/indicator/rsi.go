package indicator

import (
	"indcore/internal/input"
	"indcore/internal/model"
	"indcore/internal/smooth"
	"indcore/internal/window"
)

// RSI calculates the Relative Strength Index. Average gain and loss use
// Wilder's smoothing unless another smoother kind is configured.
//
// Before the first price change RSI reports 50. With no losses it reports
// 100, and with neither gains nor losses 50.
type RSI struct {
	period int
	src    input.Resolver
	prev   *window.History // previous committed price
	gains  smooth.Smoother
	losses smooth.Smoother
	deltas int
	last   float64
}

// NewRSI creates an RSI over src (typically period 14, Wilder, close).
func NewRSI(period int, kind smooth.Kind, src input.Resolver) (*RSI, error) {
	gains, err := smooth.New(kind, period)
	if err != nil {
		return nil, err
	}
	losses, err := smooth.New(kind, period)
	if err != nil {
		return nil, err
	}
	return &RSI{
		period: period,
		src:    src,
		prev:   window.NewHistory(1),
		gains:  gains,
		losses: losses,
		last:   50,
	}, nil
}

func (r *RSI) Name() string { return "RSI_" + model.Itoa(r.period) }

func (r *RSI) Update(bar model.Bar, isFinal, _ bool) (float64, Outputs) {
	price := r.src.Value(bar)
	prevPrice, ok := r.prev.Last()
	if !ok {
		// First bar: no delta yet.
		if isFinal {
			r.prev.TryAppend(price)
		}
		return r.last, nil
	}

	delta := price - prevPrice
	gain, loss := 0.0, 0.0
	if delta > 0 {
		gain = delta
	} else {
		loss = -delta
	}

	avgGain := r.gains.Next(gain, isFinal)
	avgLoss := r.losses.Next(loss, isFinal)
	v := rsiFromAverages(avgGain, avgLoss)

	if isFinal {
		r.prev.TryAppend(price)
		r.deltas++
		r.last = v
	}
	return v, nil
}

func (r *RSI) Ready() bool { return r.deltas >= r.period }

func (r *RSI) Reset() {
	r.prev.Clear()
	r.gains.Reset()
	r.losses.Reset()
	r.deltas = 0
	r.last = 50
}

func rsiFromAverages(avgGain, avgLoss float64) float64 {
	switch {
	case avgLoss == 0 && avgGain == 0:
		return 50
	case avgLoss == 0:
		return 100
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}
