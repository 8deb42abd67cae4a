package indicator

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"indcore/internal/model"
)

func makeTFCandle(token string, tf int, closePaise int64) model.TFCandle {
	return model.TFCandle{
		Token:    token,
		Exchange: "NSE",
		TF:       tf,
		TS:       t0,
		Open:     closePaise,
		High:     closePaise + 100,
		Low:      closePaise - 100,
		Close:    closePaise,
		Volume:   100,
		Count:    60,
		Forming:  false,
	}
}

// candleAt is makeTFCandle for the i-th bucket of tf.
func candleAt(token string, tf, i int, closePaise int64) model.TFCandle {
	c := makeTFCandle(token, tf, closePaise)
	c.TS = t0.Add(time.Duration(i*tf) * time.Second)
	return c
}

func resultByName(results []model.IndicatorResult, name string) (model.IndicatorResult, bool) {
	for _, r := range results {
		if r.Name == name {
			return r, true
		}
	}
	return model.IndicatorResult{}, false
}

func TestEngine_SMA20(t *testing.T) {
	engine := MustNewEngine([]TFConfig{
		{TF: 60, Indicators: []Config{{Type: "SMA", Period: 20}}},
	})

	// Feed 25 candles with close = 100.00 rupees (10000 paise)
	for i := 0; i < 25; i++ {
		results := engine.Process(candleAt("SBIN", 60, i, 10000))
		require.Len(t, results, 1, "candle %d", i)
		assert.Equal(t, "SMA_20", results[0].Name)
		assert.Equal(t, i >= 19, results[0].Ready, "candle %d", i)
		assert.InDelta(t, 100.0, results[0].Value, 0.001)
		assert.False(t, results[0].Live)
	}
}

func TestEngine_MultiIndicator(t *testing.T) {
	engine := MustNewEngine([]TFConfig{
		{TF: 60, Indicators: []Config{
			{Type: "SMA", Period: 5},
			{Type: "EMA", Period: 5},
			{Type: "RSI", Period: 14},
			{Type: "MACD"},
			{Type: "BB", Period: 20},
		}},
	})

	var results []model.IndicatorResult
	for i := 0; i < 40; i++ {
		results = engine.Process(candleAt("A", 60, i, int64(10000+i*100)))
		require.Len(t, results, 5, "candle %d", i)
	}

	macd, ok := resultByName(results, "MACD_12_26_9")
	require.True(t, ok)
	assert.Contains(t, macd.Outputs, "Signal")
	assert.Contains(t, macd.Outputs, "Histogram")

	bb, ok := resultByName(results, "BB_20")
	require.True(t, ok)
	assert.Greater(t, bb.Outputs["UpperBand"], bb.Outputs["LowerBand"])
}

func TestEngine_MultiTF(t *testing.T) {
	engine := MustNewEngine([]TFConfig{
		{TF: 60, Indicators: []Config{{Type: "SMA", Period: 5}}},
		{TF: 300, Indicators: []Config{{Type: "EMA", Period: 10}}},
	})

	results60 := engine.Process(makeTFCandle("X", 60, 5000))
	require.Len(t, results60, 1)
	assert.Equal(t, 60, results60[0].TF)

	results300 := engine.Process(makeTFCandle("X", 300, 5000))
	require.Len(t, results300, 1)
	assert.Equal(t, 300, results300[0].TF)

	// Unconfigured TF
	assert.Empty(t, engine.Process(makeTFCandle("X", 900, 5000)))
	assert.Equal(t, 1, engine.Tokens(60))
	assert.Equal(t, 0, engine.Tokens(900))
}

func TestEngine_RejectsInvalidConfig(t *testing.T) {
	_, err := NewEngine([]TFConfig{{TF: 60, Indicators: []Config{{Type: "VWAP", Period: 5}}}})
	assert.ErrorIs(t, err, ErrUnknownType)

	_, err = NewEngine([]TFConfig{{TF: 60, Indicators: []Config{{Type: "SMA", Period: 0}}}})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewEngine([]TFConfig{{TF: 60}, {TF: 60}})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestEngine_RunPreviewsFormingCandles(t *testing.T) {
	engine := MustNewEngine([]TFConfig{
		{TF: 60, Indicators: []Config{{Type: "SMA", Period: 5}}},
	})

	forming := makeTFCandle("Y", 60, 5500)
	forming.Forming = true

	tfCh := make(chan model.TFCandle, 10)
	resCh := make(chan model.IndicatorResult, 10)

	// Forming before any completed candle: nothing to preview.
	tfCh <- forming
	tfCh <- makeTFCandle("Y", 60, 5000)
	tfCh <- forming
	close(tfCh)

	engine.Run(context.Background(), tfCh, resCh)
	close(resCh)

	var got []model.IndicatorResult
	for r := range resCh {
		got = append(got, r)
	}
	require.Len(t, got, 2)
	assert.False(t, got[0].Live)
	assert.InDelta(t, 50.0, got[0].Value, 1e-9)
	assert.True(t, got[1].Live)
	assert.InDelta(t, 52.5, got[1].Value, 1e-9)
}

func TestEngine_RunStopsOnCancel(t *testing.T) {
	engine := MustNewEngine([]TFConfig{{TF: 60, Indicators: []Config{{Type: "SMA", Period: 5}}}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		engine.Run(ctx, make(chan model.TFCandle), make(chan model.IndicatorResult))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestProcessPeek_NilBeforeProcess(t *testing.T) {
	engine := MustNewEngine([]TFConfig{
		{TF: 60, Indicators: []Config{{Type: "SMA", Period: 5}}},
	})

	forming := makeTFCandle("Z", 60, 5000)
	forming.Forming = true
	assert.Nil(t, engine.ProcessPeek(forming))
}

func TestProcessPeek_LiveResults(t *testing.T) {
	engine := MustNewEngine([]TFConfig{
		{TF: 60, Indicators: []Config{{Type: "SMA", Period: 5}}},
	})

	// Feed 5 completed candles at 100.00 to make SMA ready
	for i := 0; i < 5; i++ {
		engine.Process(candleAt("T1", 60, i, 10000))
	}

	forming := candleAt("T1", 60, 5, 11000)
	forming.Forming = true

	results := engine.ProcessPeek(forming)
	require.Len(t, results, 1)
	assert.True(t, results[0].Live)
	assert.True(t, results[0].Ready)
	// (100*4 + 110)/5 = 102.00
	assert.InDelta(t, 102.0, results[0].Value, 0.01)
	assert.Nil(t, results[0].Outputs)
}

func TestProcessPeek_OutputsOptIn(t *testing.T) {
	configs := []TFConfig{{TF: 60, Indicators: []Config{{Type: "DC", Period: 3}}}}
	quiet := MustNewEngine(configs)
	loud := MustNewEngine(configs, WithPreviewOutputs(true))

	for _, e := range []*Engine{quiet, loud} {
		e.Process(candleAt("D", 60, 0, 10000))
	}
	forming := candleAt("D", 60, 1, 10500)
	forming.Forming = true

	assert.Nil(t, quiet.ProcessPeek(forming)[0].Outputs)
	out := loud.ProcessPeek(forming)[0].Outputs
	assert.InDelta(t, 106.0, out["Upper"], 1e-9)
	assert.InDelta(t, 99.0, out["Lower"], 1e-9)
}

func TestProcessPeek_DoesNotMutateState(t *testing.T) {
	configs := []TFConfig{{TF: 60, Indicators: []Config{
		{Type: "SMA", Period: 5},
		{Type: "RSI", Period: 5},
		{Type: "MEDIAN", Period: 5},
		{Type: "STOCHRSI", Period: 5},
	}}}
	plain := MustNewEngine(configs)
	peeked := MustNewEngine(configs, WithPreviewOutputs(true))

	for i := 0; i < 30; i++ {
		closePaise := int64(10000 + 300*math.Sin(float64(i)))
		want := plain.Process(candleAt("M1", 60, i, closePaise))

		for _, p := range []int64{1, 50000, closePaise + 7} {
			forming := candleAt("M1", 60, i+1, p)
			forming.Forming = true
			peeked.ProcessPeek(forming)
		}
		got := peeked.Process(candleAt("M1", 60, i, closePaise))
		require.Equal(t, want, got, "candle %d", i)
	}
}

func TestEngine_BenchmarkRouting(t *testing.T) {
	engine := MustNewEngine([]TFConfig{{TF: 60, Indicators: []Config{
		{Type: "SMA", Period: 3},
		{Type: "CORR", Period: 5, Benchmark: "NSE:NIFTY"},
		{Type: "RS", Period: 3, Benchmark: "NSE:NIFTY"},
	}}})

	// Before the benchmark ever trades the multi-series results are withheld.
	results := engine.Process(candleAt("INFY", 60, 0, 150000))
	require.Len(t, results, 1)
	assert.Equal(t, "SMA_3", results[0].Name)

	for i := 1; i < 10; i++ {
		bench := int64(2000000 + i*1000)
		engine.Process(candleAt("NIFTY", 60, i, bench))
		results = engine.Process(candleAt("INFY", 60, i, 150000+int64(i)*500))
		require.Len(t, results, 3, "candle %d", i)
	}

	corr, ok := resultByName(results, "CORR_5@NSE:NIFTY")
	require.True(t, ok)
	assert.InDelta(t, 1.0, corr.Value, 1e-6)
	assert.Equal(t, 0.0, corr.Outputs["BenchmarkAge"])
	assert.True(t, corr.Ready)

	rs, ok := resultByName(results, "RS_3@NSE:NIFTY")
	require.True(t, ok)
	assert.Greater(t, rs.Outputs["Ratio"], 0.0)
}

func TestEngine_BenchmarkSeenBeforePrimary(t *testing.T) {
	engine := MustNewEngine([]TFConfig{{TF: 60, Indicators: []Config{
		{Type: "RS", Period: 3, Benchmark: "NSE:NIFTY"},
	}}})

	// NIFTY creates its own instances (pairing with itself).
	res := engine.Process(candleAt("NIFTY", 60, 0, 20000))
	require.Len(t, res, 1)
	assert.Equal(t, 1.0, res[0].Outputs["Ratio"])

	// A token first seen later is seeded with NIFTY's latest bar.
	res = engine.Process(candleAt("TCS", 60, 1, 40000))
	require.Len(t, res, 1)
	assert.Equal(t, 2.0, res[0].Outputs["Ratio"])
	assert.Equal(t, 60.0, res[0].Outputs["BenchmarkAge"])
}

func TestEngine_BenchmarkPreview(t *testing.T) {
	engine := MustNewEngine([]TFConfig{{TF: 60, Indicators: []Config{
		{Type: "RS", Period: 1, Benchmark: "NSE:NIFTY"},
	}}}, WithPreviewOutputs(true))

	engine.Process(candleAt("NIFTY", 60, 0, 10000))
	engine.Process(candleAt("TCS", 60, 0, 10000))

	benchForming := candleAt("NIFTY", 60, 1, 20000)
	benchForming.Forming = true
	engine.ProcessPeek(benchForming)

	forming := candleAt("TCS", 60, 1, 10000)
	forming.Forming = true
	res := engine.ProcessPeek(forming)
	require.Len(t, res, 1)
	assert.Equal(t, 0.5, res[0].Value, "previews pair with the forming benchmark")

	// The commit still pairs with the committed benchmark.
	committed := engine.Process(candleAt("TCS", 60, 1, 10000))
	assert.Equal(t, 1.0, committed[0].Value)
}

func TestEngine_Reset(t *testing.T) {
	configs := []TFConfig{
		{TF: 60, Indicators: []Config{{Type: "EMA", Period: 3}}},
		{TF: 300, Indicators: []Config{{Type: "SMA", Period: 2}}},
	}
	engine := MustNewEngine(configs)
	for i := 0; i < 5; i++ {
		engine.Process(candleAt("R", 60, i, 10000+int64(i)*100))
		engine.Process(candleAt("R", 300, i, 10000))
	}
	engine.Process(candleAt("OTHER", 60, 0, 10000))

	assert.Equal(t, 2, engine.Reset("NSE:R"))
	assert.Equal(t, 0, engine.Reset("NSE:MISSING"))

	res := engine.Process(candleAt("R", 60, 5, 30000))
	require.Len(t, res, 1)
	assert.Equal(t, 300.0, res[0].Value)
	assert.False(t, res[0].Ready)
}

func TestEngine_Release(t *testing.T) {
	engine := MustNewEngine([]TFConfig{{TF: 60, Indicators: []Config{{Type: "MEDIAN", Period: 3}}}})
	for i := 0; i < 5; i++ {
		engine.Process(candleAt("P", 60, i, int64(100*i)))
	}
	engine.Release()
	res := engine.Process(candleAt("P", 60, 5, 700))
	require.Len(t, res, 1)
	assert.Equal(t, 7.0, res[0].Value)
}

func TestEngine_RedeliveredBucketDropped(t *testing.T) {
	engine := MustNewEngine([]TFConfig{
		{TF: 60, Indicators: []Config{{Type: "SMA", Period: 3}}},
	})
	for i, c := range []int64{10000, 20000, 30000} {
		engine.Process(candleAt("DUP", 60, i, c))
	}

	again := candleAt("DUP", 60, 2, 30000)
	assert.True(t, engine.Committed(again))
	assert.True(t, engine.Committed(candleAt("DUP", 60, 1, 20000)))
	assert.Nil(t, engine.Process(again))
	assert.Nil(t, engine.Process(candleAt("DUP", 60, 0, 10000)), "older bucket")

	next := candleAt("DUP", 60, 3, 40000)
	assert.False(t, engine.Committed(next))
	res := engine.Process(next)
	require.Len(t, res, 1)
	assert.InDelta(t, 300.0, res[0].Value, 1e-9) // (200+300+400)/3, bucket 2 counted once

	// Reset forgets the last bucket, so a replay can start over.
	engine.Reset("NSE:DUP")
	assert.False(t, engine.Committed(again))
	assert.Len(t, engine.Process(again), 1)
}
