package indengine

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"indcore/internal/indicator"
)

// Config holds all env-parsed configuration for the indicator engine service.
type Config struct {
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	SQLitePath    string `env:"SQLITE_PATH" envDefault:"data/candles.db"`
	ConsumerGroup string `env:"CONSUMER_GROUP" envDefault:"indengine"`
	ConsumerName  string `env:"CONSUMER_NAME" envDefault:"worker-1"`
	HTTPAddr      string `env:"INDENGINE_HTTP_ADDR" envDefault:":9095"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`

	StreamRetention time.Duration `env:"STREAM_RETENTION" envDefault:"3h"`
	LatestTTL       time.Duration `env:"LATEST_TTL" envDefault:"30m"`

	EnabledTFs []int `env:"ENABLED_TFS" envSeparator:"," envDefault:"60,120,180,300"`
	// UseTFRegistry replaces EnabledTFs with the candle builder's tf:enabled
	// set when that set is non-empty.
	UseTFRegistry bool `env:"USE_TF_REGISTRY" envDefault:"false"`
	// SubscribeTokens is "exchangeType:token,..." (1=NSE, 2=NFO, 3=BSE).
	// Empty means every TF stream found in Redis.
	SubscribeTokens string `env:"SUBSCRIBE_TOKENS"`

	// IndicatorSpecs is a comma-separated spec list, see indicator.ParseSpecs.
	IndicatorSpecs string `env:"INDICATOR_CONFIGS"`
	// IndicatorFile is a YAML indicator set; it wins over IndicatorSpecs.
	IndicatorFile  string `env:"INDICATOR_FILE"`
	PreviewOutputs bool   `env:"PREVIEW_OUTPUTS" envDefault:"false"`
	WarmupDepth    int    `env:"WARMUP_DEPTH" envDefault:"0"` // 0 = derive from lookbacks
	ConfigChannel  string `env:"CONFIG_CHANNEL" envDefault:"config:indicators"`
	// ActiveConfigKey is where reloaded configs are saved; empty disables it.
	ActiveConfigKey string `env:"ACTIVE_CONFIG_KEY" envDefault:"indengine:active_config"`
	// RestoreActiveConfig starts from the saved configs instead of the env.
	RestoreActiveConfig bool `env:"RESTORE_ACTIVE_CONFIG" envDefault:"false"`

	PELInterval  time.Duration `env:"PEL_RECLAIM_INTERVAL" envDefault:"30s"`
	PELMinIdleMs int64         `env:"PEL_MIN_IDLE_MS" envDefault:"60000"`

	LivenessInterval time.Duration `env:"LIVENESS_INTERVAL" envDefault:"10s"`
	// StaleAfter flags candles as stale when none arrived for this long
	// during the session. 0 means three times the largest TF.
	StaleAfter     time.Duration `env:"CANDLE_STALE_AFTER" envDefault:"0s"`
	MarketHolidays []string      `env:"MARKET_HOLIDAYS" envSeparator:","`
	ReloadTimeout  time.Duration `env:"RELOAD_TIMEOUT" envDefault:"60s"`
}

// LoadConfig loads an optional .env file, then parses the environment.
func LoadConfig() (Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if cfg.PELInterval <= 0 {
		cfg.PELInterval = 30 * time.Second
	}
	if cfg.PELMinIdleMs <= 0 {
		cfg.PELMinIdleMs = 60000
	}
	if cfg.LivenessInterval <= 0 {
		cfg.LivenessInterval = 10 * time.Second
	}
	for _, tf := range cfg.EnabledTFs {
		if tf <= 0 {
			return cfg, fmt.Errorf("parse config: ENABLED_TFS: %d is not a positive number of seconds", tf)
		}
	}
	return cfg, nil
}

// TokenKeys returns SubscribeTokens as "exchange:token" keys.
func (c Config) TokenKeys() []string {
	return parseTokenKeys(c.SubscribeTokens)
}

// IndicatorConfigs resolves the configured indicator set against tfs.
func (c Config) IndicatorConfigs(tfs []int) ([]indicator.TFConfig, error) {
	if c.IndicatorFile != "" {
		f, err := os.Open(c.IndicatorFile)
		if err != nil {
			return nil, fmt.Errorf("open indicator file: %w", err)
		}
		defer f.Close()
		return indicator.ParseSetFile(f, tfs)
	}

	specs, err := indicator.ParseSpecs(c.IndicatorSpecs)
	if err != nil {
		return nil, fmt.Errorf("INDICATOR_CONFIGS: %w", err)
	}
	configs := indicator.ExpandTFs(specs, tfs)
	if err := indicator.ValidateConfigs(configs); err != nil {
		return nil, err
	}
	return configs, nil
}

var exchangeNames = map[string]string{"1": "NSE", "2": "NFO", "3": "BSE"}

// parseTokenKeys parses "exchangeType:token,..." into "exchange:token" keys.
// Exchange names pass through, so "NSE:26000" works as well as "1:26000".
func parseTokenKeys(s string) []string {
	if s == "" {
		return nil
	}
	var keys []string
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 || parts[1] == "" {
			continue
		}
		ex := strings.ToUpper(parts[0])
		if name, ok := exchangeNames[ex]; ok {
			ex = name
		}
		keys = append(keys, ex+":"+parts[1])
	}
	return keys
}
