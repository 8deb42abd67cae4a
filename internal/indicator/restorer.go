package indicator

import (
	"errors"
	"fmt"
	"sort"

	"indcore/internal/model"
)

// SQLiteReader is the interface needed for backfill reads.
type SQLiteReader interface {
	ReadAllTFCandles(tf int, afterTS int64) ([]model.TFCandle, error)
}

// warmupFactor scales the longest lookback into a replay depth. Recursive
// smoothers keep a tail of influence well beyond their nominal length.
const warmupFactor = 4

// Restorer warms an engine up by replaying committed bars.
//
// Committed indicator state is a pure function of the committed bar
// sequence, so replaying the most recent bars reproduces it without
// serializing any per-indicator state.
type Restorer struct {
	configs []TFConfig
	depth   int
}

// NewRestorer creates a Restorer that replays up to depth bars per token
// and TF. depth <= 0 derives it from the configured lookbacks.
func NewRestorer(configs []TFConfig, depth int) *Restorer {
	if depth <= 0 {
		depth = MaxLookback(configs) * warmupFactor
	}
	return &Restorer{configs: configs, depth: depth}
}

// Depth returns the per-token replay depth.
func (r *Restorer) Depth() int { return r.depth }

// ReplayCandles feeds a slice of TF candles into the engine in order,
// skipping forming candles. Returns the number of candles replayed.
func (r *Restorer) ReplayCandles(engine *Engine, candles []model.TFCandle, onResults func([]model.IndicatorResult)) int {
	count := 0
	for _, tfc := range candles {
		if tfc.Forming {
			continue
		}
		results := engine.Process(tfc)
		if onResults != nil && len(results) > 0 {
			onResults(results)
		}
		count++
	}
	return count
}

// BackfillFromSQLite reads historical TF candles and replays the most recent
// depth bars per token into the engine. Call it after engine creation and
// before starting the live stream consumer.
//
// Tokens are interleaved by bucket time so multi-series indicators see
// their benchmark in the same order as live. Read failures for one TF do
// not stop the others; they are joined into the returned error.
// If onResults is non-nil, it is called with the indicator results for each candle.
func (r *Restorer) BackfillFromSQLite(engine *Engine, reader SQLiteReader, onResults func([]model.IndicatorResult)) (map[int]int, error) {
	tfs := make([]int, len(r.configs))
	for i, cfg := range r.configs {
		tfs[i] = cfg.TF
	}
	return r.readTails(reader, tfs, func(candles []model.TFCandle) int {
		return r.ReplayCandles(engine, candles, onResults)
	})
}

// BackfillFromCandles replays the most recent depth bars per token of an
// already loaded history, interleaved by bucket time. Returns the number of
// candles replayed.
func (r *Restorer) BackfillFromCandles(engine *Engine, candles []model.TFCandle, onResults func([]model.IndicatorResult)) int {
	if r.depth == 0 {
		return 0
	}
	return r.ReplayCandles(engine, tailPerToken(candles, r.depth), onResults)
}

// WarmFromSQLite replays history into the instances a reload left warming
// on the given TFs, then ends the warm-up. Returns candles replayed per TF.
func (r *Restorer) WarmFromSQLite(engine *Engine, reader SQLiteReader, tfs []int) (map[int]int, error) {
	defer engine.EndWarmup()
	return r.readTails(reader, tfs, func(candles []model.TFCandle) int {
		for _, tfc := range candles {
			engine.Warm(tfc)
		}
		return len(candles)
	})
}

func (r *Restorer) readTails(reader SQLiteReader, tfs []int, replay func([]model.TFCandle) int) (map[int]int, error) {
	fed := make(map[int]int, len(tfs))
	if reader == nil || r.depth == 0 {
		return fed, nil
	}

	var errs []error
	for _, tf := range tfs {
		candles, err := reader.ReadAllTFCandles(tf, 0)
		if err != nil {
			errs = append(errs, fmt.Errorf("read TF=%d candles: %w", tf, err))
			continue
		}
		candles = tailPerToken(candles, r.depth)
		for i := range candles {
			candles[i].Forming = false
		}
		fed[tf] = replay(candles)
	}
	return fed, errors.Join(errs...)
}

// tailPerToken returns the last n candles of each token, ordered by bucket
// time (ties keep input order). candles itself is left untouched.
func tailPerToken(candles []model.TFCandle, n int) []model.TFCandle {
	candles = append([]model.TFCandle(nil), candles...)
	sort.SliceStable(candles, func(i, j int) bool {
		return candles[i].TS.Before(candles[j].TS)
	})

	seen := make(map[string]int)
	keep := make([]bool, len(candles))
	for i := len(candles) - 1; i >= 0; i-- {
		key := candles[i].Key()
		if seen[key] < n {
			seen[key]++
			keep[i] = true
		}
	}

	out := candles[:0]
	for i, tfc := range candles {
		if keep[i] {
			out = append(out, tfc)
		}
	}
	return out
}
