package indengine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"indcore/internal/markethours"
	"indcore/internal/metrics"
)

func at(s string) time.Time {
	t, err := time.ParseInLocation("2006-01-02 15:04", s, markethours.IST)
	if err != nil {
		panic(err)
	}
	return t
}

func TestStaleAfter(t *testing.T) {
	assert.Equal(t, 15*time.Minute, staleAfter([]int{60, 300, 120}))
}

func TestStaleWatch(t *testing.T) {
	health := metrics.NewHealthStatus()
	w := newStaleWatch(markethours.NSE(), health, 15*time.Minute)
	w.started = at("2026-01-05 08:00")

	// Before the open nothing is stale, however old the last candle.
	w.tick(at("2026-01-05 09:00"))
	assert.False(t, health.CandlesStale)

	// The age counts from the open, not the service start.
	assert.False(t, w.check(at("2026-01-05 09:25")))
	w.tick(at("2026-01-05 09:31"))
	assert.True(t, health.CandlesStale)

	health.SetLastCandleTime(at("2026-01-05 09:30"))
	w.tick(at("2026-01-05 09:35"))
	assert.False(t, health.CandlesStale)

	// Weekends are closed.
	assert.False(t, w.check(at("2026-01-10 12:00")))
}
