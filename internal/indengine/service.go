package indengine

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"indcore/internal/indicator"
	"indcore/internal/markethours"
	"indcore/internal/metrics"
	"indcore/internal/model"
	redisstore "indcore/internal/store/redis"
	sqlitestore "indcore/internal/store/sqlite"
)

const channelSize = 5000

// Service is the top-level orchestrator for the indicator engine.
// It wires all dependencies, manages lifecycle, and coordinates goroutines.
type Service struct {
	cfg Config
	tfs []int

	redisReader *redisstore.Reader
	redisWriter *redisstore.Writer
	sqlReader   *sqlitestore.Reader // nil when SQLite is unavailable
	sqlWriter   *sqlitestore.Writer // nil when SQLite is unavailable

	registry *prometheus.Registry
	prom     *metrics.Metrics
	health   *metrics.HealthStatus
	server   *metrics.Server

	proc  *processor
	api   *apiHandler
	stale *staleWatch

	streams    []string
	tfCandleCh chan model.TFCandle
	candleCh   chan model.TFCandle
	valueCh    chan model.IndicatorResult
	wg         sync.WaitGroup
}

// New creates a new Service from the given Config.
// Redis is required; SQLite is optional and only disables persistence and
// warm-up when it cannot be opened.
func New(ctx context.Context, cfg Config) (*Service, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	svc := &Service{
		cfg:        cfg,
		tfs:        cfg.EnabledTFs,
		registry:   reg,
		prom:       metrics.NewMetrics(reg),
		health:     metrics.NewHealthStatus(),
		tfCandleCh: make(chan model.TFCandle, channelSize),
	}

	var err error
	svc.redisReader, err = redisstore.NewReader(redisstore.ReaderConfig{
		Addr:          cfg.RedisAddr,
		Password:      cfg.RedisPassword,
		DB:            cfg.RedisDB,
		ConsumerGroup: cfg.ConsumerGroup,
		ConsumerName:  cfg.ConsumerName,
		OnBadEntry: func(string, error) {
			svc.prom.BadStreamEntries.Inc()
		},
	})
	if err != nil {
		return nil, err
	}
	svc.redisWriter, err = redisstore.New(redisstore.WriterConfig{
		Addr:      cfg.RedisAddr,
		Password:  cfg.RedisPassword,
		DB:        cfg.RedisDB,
		Retention: cfg.StreamRetention,
		LatestTTL: cfg.LatestTTL,
	})
	if err != nil {
		svc.redisReader.Close()
		return nil, err
	}
	svc.health.SetRedisConnected(true)

	if cfg.UseTFRegistry {
		tfs, err := svc.redisWriter.LoadTFRegistry(ctx)
		switch {
		case err != nil:
			slog.Warn("tf registry unavailable, using ENABLED_TFS", slog.Any("error", err))
		case len(tfs) > 0:
			svc.tfs = tfs
		}
	}
	svc.health.SetEnabledTFs(svc.tfs)

	configs, err := cfg.IndicatorConfigs(svc.tfs)
	if err != nil {
		svc.closeRedis()
		return nil, err
	}
	if cfg.RestoreActiveConfig {
		if saved := svc.loadActiveConfig(ctx); saved != nil {
			configs = saved
		}
	}
	engine, err := indicator.NewEngine(configs, indicator.WithPreviewOutputs(cfg.PreviewOutputs))
	if err != nil {
		svc.closeRedis()
		return nil, err
	}

	session := markethours.NSE()
	if err := session.AddHolidays(cfg.MarketHolidays...); err != nil {
		svc.closeRedis()
		return nil, fmt.Errorf("MARKET_HOLIDAYS: %w", err)
	}
	maxAge := cfg.StaleAfter
	if maxAge <= 0 {
		maxAge = staleAfter(svc.tfs)
	}
	svc.stale = newStaleWatch(session, svc.health, maxAge)

	svc.openSQLite()

	breaker := redisstore.NewCircuitBreaker(5, 10*time.Second)
	breaker.OnStateChange = func(from, to redisstore.State) {
		svc.prom.RedisCircuit.Set(float64(to))
		slog.Warn("redis circuit breaker", slog.String("from", from.String()), slog.String("to", to.String()))
	}
	sink := redisstore.NewResultSink(svc.redisWriter, breaker, 0)

	svc.proc = newProcessor(engine, sink, svc.prom, svc.health)
	svc.proc.depth = cfg.WarmupDepth
	if svc.sqlReader != nil {
		svc.proc.history = svc.sqlReader
	}
	if svc.sqlWriter != nil {
		svc.candleCh = make(chan model.TFCandle, channelSize)
		svc.valueCh = make(chan model.IndicatorResult, channelSize)
		svc.proc.candleOut = svc.candleCh
		svc.proc.valueOut = svc.valueCh
	}
	svc.api = &apiHandler{proc: svc.proc, queueTimeout: cfg.ReloadTimeout}
	if cfg.ActiveConfigKey != "" {
		svc.api.onReload = svc.saveActiveConfig
	}
	svc.health.SetIndicatorOK(true)

	slog.Info("indicator engine configured",
		slog.Any("tfs", svc.tfs), slog.Int("tf_configs", len(configs)),
		slog.Int("max_lookback", indicator.MaxLookback(configs)))
	return svc, nil
}

// loadActiveConfig returns the configs the last reload saved, or nil when
// there are none or they no longer validate.
func (svc *Service) loadActiveConfig(ctx context.Context) []indicator.TFConfig {
	if svc.cfg.ActiveConfigKey == "" {
		return nil
	}
	payload, err := svc.redisWriter.LoadActiveConfig(ctx, svc.cfg.ActiveConfigKey)
	if err != nil || payload == nil {
		if err != nil {
			slog.Warn("active config not restored", slog.Any("error", err))
		}
		return nil
	}
	configs, err := decodeActiveConfig(payload)
	if err != nil {
		slog.Warn("saved active config ignored", slog.Any("error", err))
		return nil
	}
	slog.Info("restored active config", slog.String("key", svc.cfg.ActiveConfigKey), slog.Int("tf_configs", len(configs)))
	return configs
}

func (svc *Service) saveActiveConfig(ctx context.Context, configs []indicator.TFConfig) {
	payload, err := json.Marshal(configs)
	if err == nil {
		err = svc.redisWriter.SaveActiveConfig(ctx, svc.cfg.ActiveConfigKey, payload)
	}
	if err != nil {
		slog.Warn("active config not saved", slog.Any("error", err))
	}
}

func decodeActiveConfig(payload []byte) ([]indicator.TFConfig, error) {
	var configs []indicator.TFConfig
	if err := json.Unmarshal(payload, &configs); err != nil {
		return nil, err
	}
	if err := indicator.ValidateConfigs(configs); err != nil {
		return nil, err
	}
	if len(configs) == 0 {
		return nil, fmt.Errorf("%w: empty config set", indicator.ErrInvalidConfig)
	}
	return configs, nil
}

// openSQLite opens the writer (which creates the schema) and then the reader.
func (svc *Service) openSQLite() {
	if dir := filepath.Dir(svc.cfg.SQLitePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			slog.Warn("sqlite directory not created", slog.String("dir", dir), slog.Any("error", err))
		}
	}
	w, err := sqlitestore.New(sqlitestore.WriterConfig{
		DBPath: svc.cfg.SQLitePath,
		OnCommit: func(d time.Duration) {
			svc.prom.SQLiteCommitDur.Observe(d.Seconds())
		},
	})
	if err != nil {
		slog.Warn("sqlite writer unavailable, continuing without persistence", slog.Any("error", err))
		return
	}
	r, err := sqlitestore.NewReader(svc.cfg.SQLitePath)
	if err != nil {
		slog.Warn("sqlite reader unavailable, continuing without backfill", slog.Any("error", err))
		w.Close()
		return
	}
	svc.sqlWriter, svc.sqlReader = w, r
	svc.health.SetSQLiteOK(true)
}

// Run starts all subsystems and blocks until ctx is cancelled.
func (svc *Service) Run(ctx context.Context) error {
	slog.Info("starting indicator engine")

	if err := svc.warmUp(ctx); err != nil {
		return err
	}

	var err error
	svc.streams, err = svc.redisReader.DiscoverTFStreams(ctx, svc.tfs, svc.cfg.TokenKeys())
	if err != nil {
		slog.Warn("stream discovery incomplete", slog.Any("error", err))
	}
	slog.Info("consuming TF streams", slog.Int("count", len(svc.streams)))

	procCtx, stopProc := context.WithCancel(context.Background())
	svc.wg.Add(1)
	go func() {
		defer svc.wg.Done()
		svc.proc.run(procCtx, svc.tfCandleCh)
	}()
	svc.startPersistence(procCtx)

	if len(svc.streams) > 0 {
		if err := svc.redisReader.EnsureConsumerGroup(ctx, svc.streams); err != nil {
			slog.Warn("consumer group setup failed", slog.Any("error", err))
		}
		n, err := svc.redisReader.RecoverPending(ctx, svc.streams, svc.tfCandleCh)
		if err != nil && !errors.Is(err, context.Canceled) {
			slog.Warn("pending recovery failed", slog.Any("error", err))
		}
		if n > 0 {
			slog.Info("redelivered pending stream entries", slog.Int("count", n))
		}
	}

	svc.startPELReclaimer(ctx)
	svc.startConsumer(ctx)
	go svc.peekLoop(ctx)
	svc.startConfigSubscriber(ctx)
	svc.startHTTP(ctx)

	slog.Info("indicator engine running", slog.Any("tfs", svc.tfs), slog.String("http", svc.cfg.HTTPAddr))

	<-ctx.Done()
	svc.shutdown(stopProc)
	return nil
}

// warmUp rebuilds indicator state from stored bars. SQLite holds the
// longest history; Redis streams are the fallback.
func (svc *Service) warmUp(ctx context.Context) error {
	start := time.Now()
	if svc.sqlReader != nil {
		n, err := svc.proc.warmUp()
		if err != nil {
			slog.Warn("sqlite warm-up incomplete", slog.Any("error", err))
		}
		slog.Info("warmed up from sqlite", slog.Int("bars", n), slog.Duration("took", time.Since(start)))
		return nil
	}

	streams, err := svc.redisReader.DiscoverTFStreams(ctx, svc.tfs, svc.cfg.TokenKeys())
	if err != nil {
		slog.Warn("stream discovery for warm-up incomplete", slog.Any("error", err))
	}
	var candles []model.TFCandle
	replayCh := make(chan model.TFCandle, channelSize)
	go func() {
		defer close(replayCh)
		for _, stream := range streams {
			if _, err := svc.redisReader.ReplayFromID(ctx, stream, "0", replayCh); err != nil {
				slog.Warn("stream replay failed", slog.String("stream", stream), slog.Any("error", err))
			}
		}
	}()
	for tfc := range replayCh {
		candles = append(candles, tfc)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	n := svc.proc.restorer().BackfillFromCandles(svc.proc.engine, candles, nil)
	svc.prom.BackfilledBars.WithLabelValues("redis").Add(float64(n))
	slog.Info("warmed up from redis streams", slog.Int("bars", n), slog.Duration("took", time.Since(start)))
	return nil
}

func (svc *Service) startPersistence(ctx context.Context) {
	if svc.sqlWriter == nil {
		return
	}
	svc.wg.Add(2)
	go func() {
		defer svc.wg.Done()
		svc.sqlWriter.RunTFCandles(ctx, svc.candleCh)
	}()
	go func() {
		defer svc.wg.Done()
		svc.sqlWriter.RunIndicatorValues(ctx, svc.valueCh)
	}()
}

// startHTTP serves /metrics, /healthz and the control endpoints, and
// starts the dependency liveness probes.
func (svc *Service) startHTTP(ctx context.Context) {
	svc.server = metrics.NewServer(svc.cfg.HTTPAddr, svc.health, svc.registry)
	svc.api.routes(svc.server.Handle)
	svc.server.Start()

	var db *sql.DB
	if svc.sqlWriter != nil {
		db = svc.sqlWriter.DB()
	}
	svc.health.StartLivenessChecker(ctx, svc.redisWriter.Client(), db, svc.cfg.LivenessInterval)
	go svc.stale.run(ctx, svc.cfg.LivenessInterval)
}

// shutdown drains the processor and persistence, then closes connections.
func (svc *Service) shutdown(stopProc context.CancelFunc) {
	slog.Info("shutdown signal received")

	if svc.server != nil {
		shutCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := svc.server.Stop(shutCtx); err != nil {
			slog.Warn("http shutdown", slog.Any("error", err))
		}
		cancel()
	}

	stopProc()
	svc.wg.Wait()
	svc.proc.engine.Release()

	if svc.sqlReader != nil {
		svc.sqlReader.Close()
	}
	if svc.sqlWriter != nil {
		svc.sqlWriter.Close()
	}
	svc.closeRedis()
	slog.Info("shutdown complete")
}

func (svc *Service) closeRedis() {
	svc.redisWriter.Close()
	svc.redisReader.Close()
}
