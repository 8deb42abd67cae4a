package indengine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"indcore/internal/indicator"
	"indcore/internal/logger"
	"indcore/internal/metrics"
	"indcore/internal/model"
)

// resultSink receives indicator results; *redis.ResultSink implements it.
type resultSink interface {
	Write(ctx context.Context, results []model.IndicatorResult) error
}

// errProcessorStopped is returned by do once the processing loop has exited.
var errProcessorStopped = errors.New("indicator processor stopped")

// processor owns the engine. Everything that touches it runs on the
// goroutine executing run, so the engine needs no locks.
type processor struct {
	engine  *indicator.Engine
	history indicator.SQLiteReader // nil without SQLite
	depth   int                    // replay depth; 0 derives it from the configs
	sink    resultSink

	// Optional persistence of committed bars and values.
	candleOut chan<- model.TFCandle
	valueOut  chan<- model.IndicatorResult

	prom   *metrics.Metrics
	health *metrics.HealthStatus

	control chan func()
	done    chan struct{}
}

func newProcessor(engine *indicator.Engine, sink resultSink, prom *metrics.Metrics, health *metrics.HealthStatus) *processor {
	return &processor{
		engine:  engine,
		sink:    sink,
		prom:    prom,
		health:  health,
		control: make(chan func()),
		done:    make(chan struct{}),
	}
}

func (p *processor) restorer() *indicator.Restorer {
	return indicator.NewRestorer(p.engine.Configs(), p.depth)
}

// run consumes TF candles until ctx is cancelled or in is closed.
func (p *processor) run(ctx context.Context, in <-chan model.TFCandle) {
	defer close(p.done)
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-p.control:
			fn()
		case tfc, ok := <-in:
			if !ok {
				return
			}
			p.handle(ctx, tfc)
		}
	}
}

// do runs fn on the processing goroutine and waits for it.
func (p *processor) do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	select {
	case p.control <- func() { fn(); close(finished) }:
	case <-p.done:
		return errProcessorStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-finished:
		return nil
	case <-p.done:
		return errProcessorStopped
	}
}

// handle commits or previews one candle and ships the results.
func (p *processor) handle(ctx context.Context, tfc model.TFCandle) {
	mode := metrics.Mode(tfc.Forming)
	if !tfc.Forming && p.engine.Committed(tfc) {
		p.prom.DuplicateCandles.WithLabelValues(model.Itoa(tfc.TF)).Inc()
		slog.Debug("duplicate final candle skipped",
			slog.String("key", tfc.Key()), slog.Int("tf", tfc.TF), slog.Time("ts", tfc.TS))
		return
	}

	start := time.Now()
	var results []model.IndicatorResult
	if tfc.Forming {
		results = p.engine.ProcessPeek(tfc)
	} else {
		results = p.engine.Process(tfc)
	}
	p.prom.UpdateDur.WithLabelValues(mode).Observe(time.Since(start).Seconds())

	if !tfc.Forming {
		tf := model.Itoa(tfc.TF)
		p.prom.CandlesTotal.WithLabelValues(tf).Inc()
		p.prom.TrackedTokens.WithLabelValues(tf).Set(float64(p.engine.Tokens(tfc.TF)))
		p.health.SetLastCandleTime(tfc.TS)
		p.persistCandle(ctx, tfc)
	}
	if len(results) == 0 {
		return
	}
	p.prom.ResultsTotal.WithLabelValues(mode).Add(float64(len(results)))

	writeStart := time.Now()
	if err := p.sink.Write(ctx, results); err != nil {
		p.prom.RedisWriteErrs.Inc()
		tctx := logger.WithTraceID(ctx, logger.GenerateTraceID(tfc.Key(), tfc.TS))
		slog.Warn("indicator results not written",
			append(logger.LogWithTrace(tctx), slog.Int("tf", tfc.TF), slog.Int("results", len(results)), slog.Any("error", err))...)
	} else {
		p.prom.RedisWriteDur.Observe(time.Since(writeStart).Seconds())
	}

	if !tfc.Forming {
		p.persistValues(ctx, results)
	}
}

func (p *processor) persistCandle(ctx context.Context, tfc model.TFCandle) {
	if p.candleOut == nil {
		return
	}
	select {
	case p.candleOut <- tfc:
	case <-ctx.Done():
	}
}

func (p *processor) persistValues(ctx context.Context, results []model.IndicatorResult) {
	if p.valueOut == nil {
		return
	}
	for _, r := range results {
		if !r.Ready {
			continue
		}
		select {
		case p.valueOut <- r:
		case <-ctx.Done():
			return
		}
	}
}

// warmUp replays the stored bar history into the engine before live
// consumption starts. Returns the number of bars replayed.
func (p *processor) warmUp() (int, error) {
	if p.history == nil {
		return 0, nil
	}
	fed, err := p.restorer().BackfillFromSQLite(p.engine, p.history, nil)
	return p.countBackfill(fed), err
}

func (p *processor) countBackfill(fed map[int]int) int {
	total := 0
	for tf, n := range fed {
		p.prom.BackfilledBars.WithLabelValues(model.Itoa(tf)).Add(float64(n))
		total += n
	}
	return total
}

// reloadReply is the outcome of a config reload.
type reloadReply struct {
	Stats  indicator.ReloadStats
	Warmed int
}

// reload swaps the indicator configs and warms whatever the reload left
// cold from the stored history. Must run on the processing goroutine.
func (p *processor) reload(configs []indicator.TFConfig) (reloadReply, error) {
	var reply reloadReply
	stats, err := p.engine.ReloadConfigs(configs)
	if err != nil {
		p.prom.ReloadsTotal.WithLabelValues("invalid").Inc()
		return reply, err
	}
	p.prom.ReloadsTotal.WithLabelValues("ok").Inc()
	reply.Stats = stats

	if len(stats.NeedsFill) == 0 {
		return reply, nil
	}
	if p.history == nil {
		p.engine.EndWarmup()
		return reply, nil
	}
	fed, err := p.restorer().WarmFromSQLite(p.engine, p.history, stats.NeedsFill)
	reply.Warmed = p.countBackfill(fed)
	if err != nil {
		// The new configs are live either way; a failed read only leaves
		// some instances to warm up on live bars.
		slog.Warn("reload warm-up incomplete", slog.Any("error", err))
	}
	return reply, nil
}
