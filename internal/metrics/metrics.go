package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the indicator engine.
type Metrics struct {
	// Indicator engine metrics
	UpdateDur            *prometheus.HistogramVec // labels: mode=commit|preview
	ResultsTotal         *prometheus.CounterVec   // labels: mode
	CandlesTotal         *prometheus.CounterVec   // labels: tf
	DroppedCandles       prometheus.Counter
	DuplicateCandles     *prometheus.CounterVec // labels: tf
	TrackedTokens        *prometheus.GaugeVec   // labels: tf
	BackfilledBars       *prometheus.CounterVec
	ReloadsTotal         *prometheus.CounterVec // labels: outcome=ok|invalid
	PELMessagesReclaimed prometheus.Counter
	BadStreamEntries     prometheus.Counter

	// Sinks
	RedisWriteDur   prometheus.Histogram
	RedisWriteErrs  prometheus.Counter
	RedisCircuit    prometheus.Gauge // 0 closed, 1 open, 2 half-open
	SQLiteCommitDur prometheus.Histogram
}

var latencyBuckets = []float64{0.000001, 0.000005, 0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005}

// NewMetrics creates all metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		UpdateDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "indengine_update_duration_seconds",
			Help:    "Engine latency per TF candle",
			Buckets: latencyBuckets,
		}, []string{"mode"}),
		ResultsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "indengine_results_total",
			Help: "Indicator values emitted",
		}, []string{"mode"}),
		CandlesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "indengine_candles_total",
			Help: "TF candles consumed (by timeframe)",
		}, []string{"tf"}),
		DroppedCandles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "indengine_dropped_candles_total",
			Help: "Forming candles dropped because the input channel was full",
		}),
		DuplicateCandles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "indengine_duplicate_candles_total",
			Help: "Final candles skipped because their bucket was already committed",
		}, []string{"tf"}),
		TrackedTokens: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "indengine_tracked_tokens",
			Help: "Token states held by the engine",
		}, []string{"tf"}),
		BackfilledBars: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "indengine_backfilled_bars_total",
			Help: "Historical bars replayed into the engine",
		}, []string{"tf"}),
		ReloadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "indengine_reloads_total",
			Help: "Indicator config reloads",
		}, []string{"outcome"}),
		PELMessagesReclaimed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "indengine_pel_messages_reclaimed_total",
			Help: "Messages reclaimed from dead consumers via XCLAIM",
		}),
		BadStreamEntries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "indengine_bad_stream_entries_total",
			Help: "Stream entries skipped because they did not decode",
		}),
		RedisWriteDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "indengine_redis_write_duration_seconds",
			Help:    "Redis pipeline latency per result batch",
			Buckets: prometheus.DefBuckets,
		}),
		RedisWriteErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "indengine_redis_write_errors_total",
			Help: "Failed Redis result batches",
		}),
		RedisCircuit: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "indengine_redis_circuit_state",
			Help: "Result sink circuit breaker state (0 closed, 1 open, 2 half-open)",
		}),
		SQLiteCommitDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "indengine_sqlite_commit_duration_seconds",
			Help:    "SQLite batch commit latency",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		m.UpdateDur,
		m.ResultsTotal,
		m.CandlesTotal,
		m.DroppedCandles,
		m.DuplicateCandles,
		m.TrackedTokens,
		m.BackfilledBars,
		m.ReloadsTotal,
		m.PELMessagesReclaimed,
		m.BadStreamEntries,
		m.RedisWriteDur,
		m.RedisWriteErrs,
		m.RedisCircuit,
		m.SQLiteCommitDur,
	)

	return m
}

// Mode returns the "mode" label value for a candle.
func Mode(forming bool) string {
	if forming {
		return "preview"
	}
	return "commit"
}

// HealthStatus represents the system health.
type HealthStatus struct {
	mu sync.RWMutex

	RedisConnected bool      `json:"redis_connected"`
	SQLiteOK       bool      `json:"sqlite_ok"`
	IndicatorOK    bool      `json:"indicator_ok"`
	EnabledTFs     []int     `json:"enabled_tfs"`
	LastCandleTime time.Time `json:"last_candle_time"`
	// CandlesStale is set while the session is open but candles stopped.
	CandlesStale bool `json:"candles_stale"`

	// Liveness probe results
	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		StartedAt: time.Now(),
	}
}

func (h *HealthStatus) SetRedisConnected(v bool) {
	h.mu.Lock()
	h.RedisConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetSQLiteOK(v bool) {
	h.mu.Lock()
	h.SQLiteOK = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetIndicatorOK(v bool) {
	h.mu.Lock()
	h.IndicatorOK = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetEnabledTFs(tfs []int) {
	h.mu.Lock()
	h.EnabledTFs = tfs
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastCandleTime(t time.Time) {
	h.mu.Lock()
	h.LastCandleTime = t
	h.mu.Unlock()
}

// SetCandlesStale records whether committed candles have stopped arriving.
func (h *HealthStatus) SetCandlesStale(v bool) {
	h.mu.Lock()
	h.CandlesStale = v
	h.mu.Unlock()
}

// LastCandle returns the bucket time of the last committed candle.
func (h *HealthStatus) LastCandle() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.LastCandleTime
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite pings the database and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks. Either client may be nil.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint. Redis is the only hard
// dependency: without SQLite the engine still runs, just without
// persistence and backfill.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK

	if !h.SQLiteOK || h.CandlesStale {
		overallStatus = "degraded"
	}
	if !h.RedisConnected || !h.IndicatorOK {
		overallStatus = "unhealthy"
		httpCode = http.StatusServiceUnavailable
	}

	candleAge := ""
	lastCandle := ""
	if !h.LastCandleTime.IsZero() {
		candleAge = time.Since(h.LastCandleTime).Round(time.Millisecond).String()
		lastCandle = h.LastCandleTime.Format(time.RFC3339)
	}

	status := struct {
		Status          string  `json:"status"`
		Uptime          string  `json:"uptime"`
		LastCandleTime  string  `json:"last_candle_time"`
		CandleAge       string  `json:"candle_age"`
		CandlesStale    bool    `json:"candles_stale"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		SQLiteOK        bool    `json:"sqlite_ok"`
		SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
		IndicatorOK     bool    `json:"indicator_ok"`
		EnabledTFs      []int   `json:"enabled_tfs"`
		LastCheckAt     string  `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		LastCandleTime:  lastCandle,
		CandleAge:       candleAge,
		CandlesStale:    h.CandlesStale,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		IndicatorOK:     h.IndicatorOK,
		EnabledTFs:      h.EnabledTFs,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz, plus any
// handlers added with Handle before Start.
type Server struct {
	health *HealthStatus
	addr   string
	mux    *http.ServeMux
	srv    *http.Server
}

// NewServer creates a metrics and health server serving gatherer.
func NewServer(addr string, health *HealthStatus, gatherer prometheus.Gatherer) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.Handle("/healthz", health)

	return &Server{
		health: health,
		addr:   addr,
		mux:    mux,
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Handle registers an extra handler on the server's mux.
func (s *Server) Handle(pattern string, h http.Handler) {
	s.mux.Handle(pattern, h)
}

// Handler returns the server's root handler.
func (s *Server) Handler() http.Handler { return s.mux }

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		slog.Info("metrics server listening", slog.String("addr", s.addr))
		if err := s.srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server error", slog.Any("error", err))
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
