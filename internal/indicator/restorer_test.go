package indicator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"indcore/internal/model"
)

type fakeReader struct {
	candles map[int][]model.TFCandle
	fail    map[int]error
}

func (f *fakeReader) ReadAllTFCandles(tf int, _ int64) ([]model.TFCandle, error) {
	if err := f.fail[tf]; err != nil {
		return nil, err
	}
	out := make([]model.TFCandle, len(f.candles[tf]))
	copy(out, f.candles[tf])
	return out, nil
}

func TestRestorer_DepthFromLookback(t *testing.T) {
	r := NewRestorer([]TFConfig{{TF: 60, Indicators: []Config{{Type: "SMA", Period: 20}}}}, 0)
	assert.Equal(t, 80, r.Depth())
	assert.Equal(t, 7, NewRestorer(nil, 7).Depth())
}

// Replaying committed bars reproduces the state live processing built.
func TestRestorer_BackfillMatchesLive(t *testing.T) {
	configs := []TFConfig{{TF: 60, Indicators: []Config{
		{Type: "EMA", Period: 5},
		{Type: "RSI", Period: 5},
		{Type: "CORR", Period: 5, Benchmark: "NSE:NIFTY"},
	}}}

	var history []model.TFCandle
	for i := 0; i < 12; i++ {
		history = append(history,
			candleAt("NIFTY", 60, i, 2000000+int64(i*i)*100),
			candleAt("TCS", 60, i, 300000+int64(i%3)*500))
	}

	live := MustNewEngine(configs)
	for _, c := range history {
		live.Process(c)
	}

	restored := MustNewEngine(configs)
	var emitted int
	fed, err := NewRestorer(configs, 100).BackfillFromSQLite(restored,
		&fakeReader{candles: map[int][]model.TFCandle{60: history}},
		func(r []model.IndicatorResult) { emitted += len(r) })
	require.NoError(t, err)
	assert.Equal(t, 24, fed[60])
	assert.Positive(t, emitted)

	next := []model.TFCandle{candleAt("NIFTY", 60, 12, 2100000), candleAt("TCS", 60, 12, 301000)}
	for _, c := range next {
		assert.Equal(t, live.Process(c), restored.Process(c))
	}
}

func TestRestorer_KeepsTailPerToken(t *testing.T) {
	var candles []model.TFCandle
	for i := 0; i < 10; i++ {
		candles = append(candles, candleAt("A", 60, i, 100))
	}
	for i := 0; i < 3; i++ {
		candles = append(candles, candleAt("B", 60, i, 100))
	}

	tail := tailPerToken(candles, 4)
	require.Len(t, tail, 7)
	counts := map[string]int{}
	for i, c := range tail {
		counts[c.Token]++
		if i > 0 {
			assert.False(t, c.TS.Before(tail[i-1].TS), "time ordered")
		}
	}
	assert.Equal(t, map[string]int{"A": 4, "B": 3}, counts)
	for _, c := range tail {
		if c.Token == "A" {
			assert.Equal(t, candleAt("A", 60, 6, 100).TS, c.TS, "oldest kept A bar")
			break
		}
	}
}

func TestRestorer_ReadErrorsDoNotStopOtherTFs(t *testing.T) {
	configs := []TFConfig{
		{TF: 60, Indicators: []Config{{Type: "SMA", Period: 2}}},
		{TF: 300, Indicators: []Config{{Type: "SMA", Period: 2}}},
	}
	engine := MustNewEngine(configs)
	boom := errors.New("disk gone")
	reader := &fakeReader{
		candles: map[int][]model.TFCandle{300: {candleAt("A", 300, 0, 100), candleAt("A", 300, 1, 100)}},
		fail:    map[int]error{60: boom},
	}

	fed, err := NewRestorer(configs, 0).BackfillFromSQLite(engine, reader, nil)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, fed[300])
	assert.Zero(t, fed[60])
}

func TestRestorer_ReplaySkipsForming(t *testing.T) {
	engine := MustNewEngine([]TFConfig{{TF: 60, Indicators: []Config{{Type: "SMA", Period: 2}}}})
	forming := candleAt("A", 60, 1, 100)
	forming.Forming = true
	n := NewRestorer(engine.Configs(), 0).ReplayCandles(engine,
		[]model.TFCandle{candleAt("A", 60, 0, 100), forming}, nil)
	assert.Equal(t, 1, n)
}

func TestRestorer_WarmFromSQLiteAfterReload(t *testing.T) {
	var history []model.TFCandle
	for i := 0; i < 6; i++ {
		history = append(history, candleAt("A", 60, i, 10000+int64(i)*100))
	}

	engine := MustNewEngine([]TFConfig{{TF: 60, Indicators: []Config{{Type: "SMA", Period: 3}}}})
	for _, c := range history {
		engine.Process(c)
	}
	stats, err := engine.ReloadConfigs([]TFConfig{{TF: 60, Indicators: []Config{
		{Type: "SMA", Period: 3},
		{Type: "EMA", Period: 3},
	}}})
	require.NoError(t, err)

	r := NewRestorer(engine.Configs(), 0)
	fed, err := r.WarmFromSQLite(engine, &fakeReader{candles: map[int][]model.TFCandle{60: history}}, stats.NeedsFill)
	require.NoError(t, err)
	assert.Equal(t, 6, fed[60])
	assert.Zero(t, engine.EndWarmup(), "warm-up already ended")

	reference := MustNewEngine([]TFConfig{{TF: 60, Indicators: []Config{{Type: "EMA", Period: 3}}}})
	for _, c := range history {
		reference.Process(c)
	}
	next := candleAt("A", 60, 6, 10600)
	want := reference.Process(next)
	got := engine.Process(next)

	ema, ok := resultByName(got, "EMA_3")
	require.True(t, ok)
	assert.Equal(t, want[0].Value, ema.Value)
	sma, _ := resultByName(got, "SMA_3")
	assert.InDelta(t, 105.0, sma.Value, 1e-9)
}

func TestRestorer_BackfillFromCandlesKeepsTail(t *testing.T) {
	configs := []TFConfig{{TF: 60, Indicators: []Config{{Type: "SMA", Period: 2}}}}
	var history []model.TFCandle
	for i := 0; i < 10; i++ {
		history = append(history, candleAt("A", 60, i, 10000+int64(i)*100))
	}

	shuffled := append([]model.TFCandle(nil), history[5:]...)
	shuffled = append(shuffled, history[:5]...)
	given := append([]model.TFCandle(nil), shuffled...)

	engine := MustNewEngine(configs)
	n := NewRestorer(configs, 3).BackfillFromCandles(engine, shuffled, nil)
	assert.Equal(t, 3, n)
	assert.Equal(t, given, shuffled, "input slice is not reordered or truncated")

	res := engine.Process(candleAt("A", 60, 10, 11000))
	require.Len(t, res, 1)
	assert.InDelta(t, 109.5, res[0].Value, 1e-9)
}
