package indicator

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"indcore/internal/model"
)

// catalogue covers every single-series type with non-default parameters
// where that exercises a different code path.
var catalogue = []Config{
	{Type: "SMA", Period: 5},
	{Type: "EMA", Period: 7},
	{Type: "MA", Period: 6, Smoother: "hma", Input: "hlc3"},
	{Type: "MA", Period: 8, Smoother: "kama"},
	{Type: "MA", Period: 5, Smoother: "tema", Input: "ohlc4"},
	{Type: "ZLEMA", Period: 9},
	{Type: "TRIMA", Period: 6},
	{Type: "RSI", Period: 14},
	{Type: "RSI", Period: 9, Smoother: "ema"},
	{Type: "MACD", Fast: 5, Slow: 13, Signal: 4},
	{Type: "BB", Period: 10, Mult: 2.5},
	{Type: "DC", Period: 12},
	{Type: "ATR", Period: 7},
	{Type: "MEDIAN", Period: 11, Input: "typical"},
	{Type: "STOCHRSI", Period: 10},
	{Type: "MOM", Period: 4},
}

// randomBars is a seeded random walk with realistic OHLC ordering.
func randomBars(rng *rand.Rand, n int) []model.Bar {
	bars := make([]model.Bar, n)
	price := 100.0
	for i := range bars {
		price += rng.NormFloat64()
		if price < 1 {
			price = 1
		}
		b := bar(i, price)
		b.Open = price + rng.Float64() - 0.5
		b.High = math.Max(b.Open, price) + rng.Float64()
		b.Low = math.Min(b.Open, price) - rng.Float64()
		b.Volume = float64(rng.Intn(1000))
		bars[i] = b
	}
	return bars
}

func build(t *testing.T, cfg Config) Indicator {
	t.Helper()
	in, err := Build(cfg)
	require.NoError(t, err, cfg.Label())
	require.NotNil(t, in.Single(), cfg.Label())
	return in.Single()
}

// Committed results depend only on committed bars, no matter how many
// previews are interleaved.
func TestContract_PreviewTransparency(t *testing.T) {
	for _, cfg := range catalogue {
		cfg := cfg
		t.Run(cfg.Label(), func(t *testing.T) {
			rng := rand.New(rand.NewSource(42))
			bars := randomBars(rng, 200)
			noise := randomBars(rng, 200)

			plain := build(t, cfg)
			mixed := build(t, cfg)

			for i, b := range bars {
				for k := rng.Intn(4); k > 0; k-- {
					nb := noise[rng.Intn(len(noise))]
					mixed.Update(nb, false, rng.Intn(2) == 0)
				}
				wantV, wantOut := plain.Update(b, true, true)
				gotV, gotOut := mixed.Update(b, true, true)
				require.Equal(t, wantV, gotV, "bar %d", i)
				require.Equal(t, wantOut, gotOut, "bar %d", i)
				require.Equal(t, plain.Ready(), mixed.Ready(), "bar %d", i)
			}
		})
	}
}

// A preview reports what the commit of the same bar would report.
func TestContract_PreviewMatchesCommit(t *testing.T) {
	for _, cfg := range catalogue {
		cfg := cfg
		t.Run(cfg.Label(), func(t *testing.T) {
			rng := rand.New(rand.NewSource(7))
			ind := build(t, cfg)
			for i, b := range randomBars(rng, 150) {
				pv, pout := ind.Update(b, false, true)
				cv, cout := ind.Update(b, true, true)
				require.InDelta(t, cv, pv, 1e-9, "bar %d", i)
				require.Len(t, pout, len(cout))
				for k, v := range cout {
					require.InDelta(t, v, pout[k], 1e-9, "bar %d output %s", i, k)
				}
			}
		})
	}
}

func TestContract_ResetIdempotent(t *testing.T) {
	for _, cfg := range catalogue {
		cfg := cfg
		t.Run(cfg.Label(), func(t *testing.T) {
			rng := rand.New(rand.NewSource(99))
			prefix := randomBars(rng, 60)
			seq := randomBars(rng, 80)

			used := build(t, cfg)
			for _, b := range prefix {
				used.Update(b, true, true)
				used.Update(b, false, true)
			}
			used.Reset()
			used.Reset()
			require.False(t, used.Ready())

			fresh := build(t, cfg)
			for i, b := range seq {
				wantV, wantOut := fresh.Update(b, true, true)
				gotV, gotOut := used.Update(b, true, true)
				require.Equal(t, wantV, gotV, "bar %d", i)
				require.Equal(t, wantOut, gotOut, "bar %d", i)
			}
		})
	}
}

func TestContract_WarmupFinite(t *testing.T) {
	for _, cfg := range catalogue {
		cfg := cfg
		t.Run(cfg.Label(), func(t *testing.T) {
			rng := rand.New(rand.NewSource(3))
			ind := build(t, cfg)
			for i, b := range randomBars(rng, 40) {
				for _, final := range []bool{false, true} {
					v, out := ind.Update(b, final, true)
					require.False(t, math.IsNaN(v) || math.IsInf(v, 0), "bar %d value %v", i, v)
					for k, ov := range out {
						require.False(t, math.IsNaN(ov) || math.IsInf(ov, 0), "bar %d output %s=%v", i, k, ov)
					}
				}
			}
		})
	}
}

func TestContract_OutputsOnlyWhenRequested(t *testing.T) {
	for _, cfg := range catalogue {
		cfg := cfg
		t.Run(cfg.Label(), func(t *testing.T) {
			ind := build(t, cfg)
			_, out := ind.Update(bar(0, 100), false, false)
			assert.Nil(t, out)
			_, out = ind.Update(bar(0, 100), true, false)
			assert.Nil(t, out)
		})
	}
}

func TestContract_OutputKeys(t *testing.T) {
	keys := map[string][]string{
		"MACD":     {"Signal", "Histogram"},
		"BB":       {"UpperBand", "LowerBand", "Middle", "Width"},
		"DC":       {"Upper", "Lower", "Middle"},
		"ATR":      {"TrueRange"},
		"MEDIAN":   {"P25", "P75"},
		"STOCHRSI": {"K", "D"},
		"MOM":      {"ROC"},
	}
	for _, cfg := range catalogue {
		want, ok := keys[cfg.Normalize().Type]
		if !ok {
			continue
		}
		ind := build(t, cfg)
		_, out := ind.Update(bar(0, 100), true, true)
		got := make([]string, 0, len(out))
		for k := range out {
			got = append(got, k)
		}
		assert.ElementsMatch(t, want, got, cfg.Label())
	}
}

func TestContract_ReleaseKeepsInstanceUsable(t *testing.T) {
	in := MustBuild(Config{Type: "MEDIAN", Period: 5})
	for i := 0; i < 10; i++ {
		in.Update(Primary, bar(i, float64(i)), true, false)
	}
	in.Release()
	res := in.Update(Primary, bar(10, 42), true, false)
	assert.True(t, res.Valid)
	assert.Equal(t, 42.0, res.Value)
}
