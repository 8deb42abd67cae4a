package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_RegistersOnGivenRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ResultsTotal.WithLabelValues(Mode(false)).Add(3)
	m.ResultsTotal.WithLabelValues(Mode(true)).Inc()
	m.BackfilledBars.WithLabelValues("60").Add(120)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.ResultsTotal.WithLabelValues("commit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ResultsTotal.WithLabelValues("preview")))
	assert.Equal(t, 120.0, testutil.ToFloat64(m.BackfilledBars.WithLabelValues("60")))

	// A second registry accepts a second set, so tests never collide.
	assert.NotPanics(t, func() { NewMetrics(prometheus.NewRegistry()) })
	assert.Panics(t, func() { NewMetrics(reg) }, "duplicate registration")
}

func TestHealthStatus_ServeHTTP(t *testing.T) {
	h := NewHealthStatus()
	h.SetEnabledTFs([]int{60, 300})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	h.SetRedisConnected(true)
	h.SetIndicatorOK(true)
	h.SetLastCandleTime(time.Now().Add(-time.Second))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body["status"], "SQLite down is degraded, not fatal")
	assert.NotEmpty(t, body["candle_age"])

	h.SetSQLiteOK(true)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, []any{60.0, 300.0}, body["enabled_tfs"])

	h.SetCandlesStale(true)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	body = nil
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, true, body["candles_stale"])
}

func TestServer_Routes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.ReloadsTotal.WithLabelValues("ok").Inc()

	srv := NewServer(":0", NewHealthStatus(), reg)
	srv.Handle("/ping", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("pong"))
	}))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `indengine_reloads_total{outcome="ok"} 1`))

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, "pong", rec.Body.String())
}
