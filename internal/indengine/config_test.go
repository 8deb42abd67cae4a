package indengine

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"indcore/internal/indicator"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, "data/candles.db", cfg.SQLitePath)
	assert.Equal(t, []int{60, 120, 180, 300}, cfg.EnabledTFs)
	assert.Equal(t, ":9095", cfg.HTTPAddr)
	assert.Equal(t, 30*time.Second, cfg.PELInterval)
	assert.Equal(t, int64(60000), cfg.PELMinIdleMs)
	assert.Equal(t, "config:indicators", cfg.ConfigChannel)
	assert.False(t, cfg.PreviewOutputs)
	assert.Equal(t, 3*time.Hour, cfg.StreamRetention)
	assert.Equal(t, "indengine:active_config", cfg.ActiveConfigKey)
	assert.Zero(t, cfg.StaleAfter)
	assert.Empty(t, cfg.MarketHolidays)
}

func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("ENABLED_TFS", "60,900")
	t.Setenv("SUBSCRIBE_TOKENS", "1:26000, 2:35001,NSE:2885,bad")
	t.Setenv("PEL_RECLAIM_INTERVAL", "5s")
	t.Setenv("PREVIEW_OUTPUTS", "true")
	t.Setenv("INDICATOR_CONFIGS", "SMA:20,RS:10@NSE:26000")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, []int{60, 900}, cfg.EnabledTFs)
	assert.Equal(t, 5*time.Second, cfg.PELInterval)
	assert.True(t, cfg.PreviewOutputs)
	assert.Equal(t, []string{"NSE:26000", "NFO:35001", "NSE:2885"}, cfg.TokenKeys())

	configs, err := cfg.IndicatorConfigs(cfg.EnabledTFs)
	require.NoError(t, err)
	require.Len(t, configs, 2)
	assert.Equal(t, "NSE:26000", configs[1].Indicators[1].Benchmark)
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Setenv("ENABLED_TFS", "60,x")
	_, err := LoadConfig()
	assert.Error(t, err)

	t.Setenv("ENABLED_TFS", "60,-5")
	_, err = LoadConfig()
	assert.Error(t, err)
}

func TestConfig_IndicatorFileWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "indicators.yaml")
	require.NoError(t, os.WriteFile(path, []byte("indicators:\n  - {type: EMA, period: 9}\n"), 0o644))

	cfg := Config{IndicatorSpecs: "SMA:20", IndicatorFile: path}
	configs, err := cfg.IndicatorConfigs([]int{60})
	require.NoError(t, err)
	assert.Equal(t, []indicator.TFConfig{{TF: 60, Indicators: []indicator.Config{{Type: "EMA", Period: 9}}}}, configs)

	cfg.IndicatorFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = cfg.IndicatorConfigs([]int{60})
	assert.Error(t, err)
}

func TestConfig_BadSpecs(t *testing.T) {
	_, err := Config{IndicatorSpecs: "SMA:0"}.IndicatorConfigs([]int{60})
	assert.ErrorIs(t, err, indicator.ErrInvalidConfig)
}
