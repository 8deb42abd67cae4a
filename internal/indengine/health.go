package indengine

import (
	"context"
	"log/slog"
	"time"

	"indcore/internal/markethours"
	"indcore/internal/metrics"
)

// staleWatch flags the health status while the session is open and no
// committed candle arrived within maxAge.
type staleWatch struct {
	session *markethours.Session
	health  *metrics.HealthStatus
	maxAge  time.Duration
	started time.Time
	stale   bool
}

func newStaleWatch(session *markethours.Session, health *metrics.HealthStatus, maxAge time.Duration) *staleWatch {
	return &staleWatch{session: session, health: health, maxAge: maxAge, started: time.Now()}
}

// staleAfter is three bars of the largest TF.
func staleAfter(tfs []int) time.Duration {
	longest := 0
	for _, tf := range tfs {
		longest = max(longest, tf)
	}
	return 3 * time.Duration(longest) * time.Second
}

// check evaluates staleness at now. The age is measured from the latest of
// the last candle, the service start and today's open, so a quiet
// overnight does not count against the first bars of the day.
func (w *staleWatch) check(now time.Time) bool {
	if !w.session.IsOpen(now) {
		return false
	}
	ref := w.health.LastCandle()
	if w.started.After(ref) {
		ref = w.started
	}
	if open := w.session.OpenOn(now); open.After(ref) {
		ref = open
	}
	return now.Sub(ref) > w.maxAge
}

func (w *staleWatch) tick(now time.Time) {
	stale := w.check(now)
	if stale != w.stale {
		if stale {
			slog.Warn("no committed candles", slog.Duration("max_age", w.maxAge), slog.String("session", w.session.Status(now)))
		} else {
			slog.Info("candles flowing again")
		}
		w.stale = stale
	}
	w.health.SetCandlesStale(stale)
}

func (w *staleWatch) run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			w.tick(now)
		}
	}
}
