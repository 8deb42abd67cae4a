package redis

import (
	"time"

	"indcore/internal/model"
)

// formingAggregator folds 1s candles into forming TF candles, one per
// enabled TF and token. It only tracks the open bucket: the completed
// candle arrives on the TF stream.
type formingAggregator struct {
	tfs   []int
	off   map[int]bool
	state map[string]*model.TFCandle // "tf:exchange:token"
}

func newFormingAggregator(tfs []int) *formingAggregator {
	return &formingAggregator{
		tfs:   tfs,
		off:   make(map[int]bool),
		state: make(map[string]*model.TFCandle),
	}
}

// Disable stops aggregating tf, once upstream publishes its own forming
// candles for it.
func (a *formingAggregator) Disable(tf int) {
	if a.off[tf] {
		return
	}
	a.off[tf] = true
	for _, fc := range a.state {
		if fc.TF == tf {
			delete(a.state, model.Itoa(tf)+":"+fc.Key())
		}
	}
}

// Add merges a 1s candle and returns a copy of every forming candle it touched.
func (a *formingAggregator) Add(c model.TFCandle) []model.TFCandle {
	out := make([]model.TFCandle, 0, len(a.tfs))
	ts := c.TS.Unix()
	for _, tf := range a.tfs {
		if a.off[tf] || tf <= 1 {
			continue
		}
		tf64 := int64(tf)
		bucket := ts - ts%tf64
		key := model.Itoa(tf) + ":" + c.Key()

		fc, ok := a.state[key]
		switch {
		case ok && fc.TS.Unix() > bucket:
			continue // late 1s candle for a bucket already gone
		case !ok || fc.TS.Unix() < bucket:
			fc = &model.TFCandle{
				Token: c.Token, Exchange: c.Exchange, TF: tf,
				TS:   time.Unix(bucket, 0).UTC(),
				Open: c.Open, High: c.High, Low: c.Low, Close: c.Close,
				Volume: c.Volume, Count: 1, Forming: true,
			}
			a.state[key] = fc
		default:
			if c.High > fc.High {
				fc.High = c.High
			}
			if c.Low < fc.Low {
				fc.Low = c.Low
			}
			fc.Close = c.Close
			fc.Volume += c.Volume
			fc.Count++
		}
		out = append(out, *fc)
	}
	return out
}
