package indicator

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"indcore/internal/smooth"
)

func TestCoordinator_ResolvePolicy(t *testing.T) {
	c := NewCoordinator()

	_, _, ok := c.Resolve(Benchmark, t0, true)
	assert.False(t, ok, "never-seen series must not resolve")
	_, _, ok = c.Resolve(Benchmark, t0, false)
	assert.False(t, ok)

	c.Observe(Benchmark, bar(0, 10), true)
	got, same, ok := c.Resolve(Benchmark, bar(0, 0).Start, true)
	require.True(t, ok)
	assert.True(t, same)
	assert.Equal(t, 10.0, got.Close)

	// Fallback to the last committed bar of an earlier interval.
	got, same, ok = c.Resolve(Benchmark, bar(1, 0).Start, true)
	require.True(t, ok)
	assert.False(t, same)
	assert.Equal(t, 10.0, got.Close)

	// A tentative bar is visible to previews only.
	c.Observe(Benchmark, bar(1, 11), false)
	got, same, _ = c.Resolve(Benchmark, bar(1, 0).Start, false)
	assert.True(t, same)
	assert.Equal(t, 11.0, got.Close)
	got, _, _ = c.Resolve(Benchmark, bar(1, 0).Start, true)
	assert.Equal(t, 10.0, got.Close)

	latest, ok := c.TryGetLatest(Benchmark)
	require.True(t, ok)
	assert.Equal(t, 10.0, latest.Close)

	// Committing clears the tentative entry.
	c.Observe(Benchmark, bar(1, 12), true)
	got, _, _ = c.Resolve(Benchmark, bar(1, 0).Start, false)
	assert.Equal(t, 12.0, got.Close)

	c.Reset()
	_, ok = c.TryGetLatest(Benchmark)
	assert.False(t, ok)
}

func TestCorrelation_NoBenchmarkIsInvalid(t *testing.T) {
	c := NewCorrelation(5, closeSrc)
	for i := 0; i < 3; i++ {
		res := c.UpdateSeries(Primary, bar(i, float64(i)), false, true)
		assert.False(t, res.Valid)
		res = c.UpdateSeries(Primary, bar(i, float64(i)), true, true)
		assert.False(t, res.Valid)
		assert.Zero(t, res.Value)
		assert.Nil(t, res.Outputs)
	}
	assert.Equal(t, 0, c.corr.Count(), "no samples without a benchmark")
}

func TestCorrelation_DependentUpdateIsInvalid(t *testing.T) {
	c := NewCorrelation(5, closeSrc)
	assert.False(t, c.UpdateSeries(Benchmark, bar(0, 1), true, true).Valid)
	assert.False(t, c.UpdateSeries(Benchmark, bar(1, 2), false, true).Valid)
}

func TestCorrelation_FastPathAndFallback(t *testing.T) {
	c := NewCorrelation(10, closeSrc)
	for i := 0; i < 5; i++ {
		c.UpdateSeries(Benchmark, bar(i, float64(i)), true, false)
		res := c.UpdateSeries(Primary, bar(i, 2*float64(i)+1), true, true)
		require.True(t, res.Valid)
		assert.Equal(t, 0.0, res.Outputs["BenchmarkAge"])
		if i >= 1 {
			assert.InDelta(t, 1.0, res.Value, 1e-9)
		}
	}

	// The benchmark misses bar 5: the primary pairs with bar 4's benchmark.
	res := c.UpdateSeries(Primary, bar(5, 11), true, true)
	require.True(t, res.Valid)
	assert.Equal(t, 60.0, res.Outputs["BenchmarkAge"])
	assert.Equal(t, 6, c.corr.Count())
}

func TestCorrelation_PreviewUsesTentativeBenchmark(t *testing.T) {
	c := NewCorrelation(10, closeSrc)
	c.UpdateSeries(Benchmark, bar(0, 1), true, false)
	c.UpdateSeries(Primary, bar(0, 1), true, false)

	c.UpdateSeries(Benchmark, bar(1, 5), false, false)
	res := c.UpdateSeries(Primary, bar(1, 5), false, true)
	require.True(t, res.Valid)
	assert.Equal(t, 0.0, res.Outputs["BenchmarkAge"])

	// The commit ignores the tentative benchmark bar.
	res = c.UpdateSeries(Primary, bar(1, 5), true, true)
	require.True(t, res.Valid)
	assert.Equal(t, 60.0, res.Outputs["BenchmarkAge"])
}

// Benchmark previews never leak into committed correlation values.
func TestCorrelation_PreviewTransparency(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	prim := randomBars(rng, 120)
	bench := randomBars(rng, 120)

	plain := NewCorrelation(20, closeSrc)
	mixed := NewCorrelation(20, closeSrc)
	for i := range prim {
		skip := rng.Intn(5) == 0 // benchmark occasionally absent
		for k := rng.Intn(3); k > 0; k-- {
			mixed.UpdateSeries(Benchmark, bench[rng.Intn(len(bench))], false, false)
			mixed.UpdateSeries(Primary, prim[rng.Intn(len(prim))], false, true)
		}
		if !skip {
			plain.UpdateSeries(Benchmark, bench[i], true, false)
			mixed.UpdateSeries(Benchmark, bench[i], true, false)
		}
		want := plain.UpdateSeries(Primary, prim[i], true, true)
		got := mixed.UpdateSeries(Primary, prim[i], true, true)
		require.Equal(t, want, got, "bar %d", i)
	}
}

func TestCorrelation_ResetForgetsBenchmark(t *testing.T) {
	c := NewCorrelation(5, closeSrc)
	c.UpdateSeries(Benchmark, bar(0, 1), true, false)
	require.True(t, c.UpdateSeries(Primary, bar(0, 1), true, false).Valid)

	c.Reset()
	assert.False(t, c.UpdateSeries(Primary, bar(1, 1), true, false).Valid)
	assert.False(t, c.Ready())
}

func TestRelativeStrength_Ratio(t *testing.T) {
	rs, err := NewRelativeStrength(3, smooth.SMA, closeSrc)
	require.NoError(t, err)

	assert.False(t, rs.UpdateSeries(Primary, bar(0, 50), true, true).Valid)

	rs.UpdateSeries(Benchmark, bar(1, 100), true, false)
	res := rs.UpdateSeries(Primary, bar(1, 50), true, true)
	require.True(t, res.Valid)
	assert.Equal(t, 0.5, res.Outputs["Ratio"])
	assert.Equal(t, 0.5, res.Value)

	rs.UpdateSeries(Benchmark, bar(2, 100), true, false)
	res = rs.UpdateSeries(Primary, bar(2, 150), true, true)
	assert.Equal(t, 1.5, res.Outputs["Ratio"])
	assert.Equal(t, 1.0, res.Value) // SMA of 0.5 and 1.5
}

func TestRelativeStrength_ZeroBenchmark(t *testing.T) {
	rs, _ := NewRelativeStrength(3, smooth.EMA, closeSrc)
	rs.UpdateSeries(Benchmark, bar(0, 0), true, false)
	res := rs.UpdateSeries(Primary, bar(0, 50), true, true)
	require.True(t, res.Valid)
	assert.Equal(t, 0.0, res.Outputs["Ratio"])
	assert.Equal(t, 0.0, res.Value)
}
