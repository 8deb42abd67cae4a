package indicator

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"indcore/internal/input"
	"indcore/internal/model"
	"indcore/internal/smooth"
)

var (
	// ErrUnknownType is returned for an indicator type outside the registry.
	ErrUnknownType = errors.New("unknown indicator type")
	// ErrInvalidConfig is returned for out-of-range or missing parameters.
	ErrInvalidConfig = errors.New("invalid indicator config")
)

// Config specifies a single indicator to compute.
// Only Type and Period are required; the rest default per type.
type Config struct {
	Type      string  `json:"type" yaml:"type"` // "SMA", "EMA", "RSI", "MACD", "BB", ...
	Period    int     `json:"period" yaml:"period"`
	Smoother  string  `json:"smoother,omitempty" yaml:"smoother,omitempty"` // smooth.Kind name
	Input     string  `json:"input,omitempty" yaml:"input,omitempty"`       // input.Field name, default close
	Fast      int     `json:"fast,omitempty" yaml:"fast,omitempty"`
	Slow      int     `json:"slow,omitempty" yaml:"slow,omitempty"`
	Signal    int     `json:"signal,omitempty" yaml:"signal,omitempty"`
	Mult      float64 `json:"mult,omitempty" yaml:"mult,omitempty"`
	Benchmark string  `json:"benchmark,omitempty" yaml:"benchmark,omitempty"` // "exchange:token"
}

// TFConfig groups indicator configs for a specific timeframe.
type TFConfig struct {
	TF         int      `json:"tf" yaml:"tf"` // timeframe in seconds
	Indicators []Config `json:"indicators" yaml:"indicators"`
}

var typeAliases = map[string]string{
	"BOLLINGER":   "BB",
	"DONCHIAN":    "DC",
	"MOMENTUM":    "MOM",
	"CORRELATION": "CORR",
	"RELSTRENGTH": "RS",
	"STOCH_RSI":   "STOCHRSI",
}

// maTypes are the moving averages addressable directly by kind name.
var maTypes = map[string]bool{
	"MA": true, "SMA": true, "EMA": true, "WMA": true, "WILDER": true,
	"RMA": true, "SMMA": true, "DEMA": true, "TEMA": true, "ZLEMA": true,
	"KAMA": true, "HMA": true, "TRIMA": true,
}

// Types lists every registered indicator type.
func Types() []string {
	return []string{
		"MA", "SMA", "EMA", "WMA", "WILDER", "RMA", "SMMA", "DEMA", "TEMA",
		"ZLEMA", "KAMA", "HMA", "TRIMA",
		"RSI", "MACD", "BB", "DC", "ATR", "MEDIAN", "STOCHRSI", "MOM",
		"CORR", "RS",
	}
}

// Normalize upper-cases the type, resolves aliases and fills in per-type
// defaults. It does not validate.
func (c Config) Normalize() Config {
	c.Type = strings.ToUpper(strings.TrimSpace(c.Type))
	if alias, ok := typeAliases[c.Type]; ok {
		c.Type = alias
	}
	c.Smoother = strings.ToUpper(strings.TrimSpace(c.Smoother))
	c.Input = strings.ToLower(strings.TrimSpace(c.Input))
	c.Benchmark = strings.TrimSpace(c.Benchmark)

	switch c.Type {
	case "MACD":
		if c.Fast == 0 {
			c.Fast = 12
		}
		if c.Slow == 0 {
			c.Slow = c.Period
		}
		if c.Slow == 0 {
			c.Slow = 26
		}
		if c.Signal == 0 {
			c.Signal = 9
		}
		c.Period = c.Slow
	case "BB":
		if c.Mult == 0 {
			c.Mult = 2
		}
	case "STOCHRSI":
		if c.Fast == 0 {
			c.Fast = 3
		}
		if c.Signal == 0 {
			c.Signal = 3
		}
	}
	return c
}

// Label is the stable result name, e.g. "SMA_20", "MACD_12_26_9",
// "EMA_20_hlc3" or "CORR_20@NSE:26000". Reload matches instances by label.
func (c Config) Label() string {
	c = c.Normalize()
	var b strings.Builder
	b.WriteString(c.Type)
	if c.Type == "MACD" {
		b.WriteString("_" + model.Itoa(c.Fast) + "_" + model.Itoa(c.Slow) + "_" + model.Itoa(c.Signal))
	} else {
		b.WriteString("_" + model.Itoa(c.Period))
	}
	if c.Type == "BB" && c.Mult != 2 {
		b.WriteString("_" + strconv.FormatFloat(c.Mult, 'g', -1, 64))
	}
	if c.Smoother != "" {
		b.WriteString("_" + c.Smoother)
	}
	if c.Input != "" && c.Input != input.Close.String() {
		b.WriteString("_" + c.Input)
	}
	if c.Benchmark != "" {
		b.WriteString("@" + c.Benchmark)
	}
	return b.String()
}

// Validate reports the first problem with c, wrapping ErrUnknownType or
// ErrInvalidConfig.
func (c Config) Validate() error {
	_, err := Build(c)
	return err
}

// Instance is one configured indicator. Exactly one of Single and Multi
// is set.
type Instance struct {
	cfg    Config
	label  string
	single Indicator
	multi  MultiIndicator
}

// Config returns the normalized config the instance was built from.
func (in *Instance) Config() Config { return in.cfg }

// Label returns the result name.
func (in *Instance) Label() string { return in.label }

// Single returns the single-series indicator, or nil.
func (in *Instance) Single() Indicator { return in.single }

// Multi returns the multi-series indicator, or nil.
func (in *Instance) Multi() MultiIndicator { return in.multi }

// Benchmark returns the dependent series key ("exchange:token") of a
// multi-series instance, or "".
func (in *Instance) Benchmark() string {
	if in.multi == nil {
		return ""
	}
	return in.cfg.Benchmark
}

// Update feeds bar as series key. Single-series indicators only accept
// Primary; any other key yields an invalid Result.
func (in *Instance) Update(key SeriesKey, bar model.Bar, isFinal, includeOutputs bool) Result {
	if in.multi != nil {
		return in.multi.UpdateSeries(key, bar, isFinal, includeOutputs)
	}
	if key != Primary {
		return Result{}
	}
	v, out := in.single.Update(bar, isFinal, includeOutputs)
	return Result{Value: v, Outputs: out, Valid: true}
}

func (in *Instance) Ready() bool {
	if in.multi != nil {
		return in.multi.Ready()
	}
	return in.single.Ready()
}

func (in *Instance) Reset() {
	if in.multi != nil {
		in.multi.Reset()
		return
	}
	in.single.Reset()
}

// Release returns pooled buffers, if any.
func (in *Instance) Release() {
	if in.multi != nil {
		release(in.multi)
		return
	}
	release(in.single)
}

// Build constructs the indicator described by cfg.
func Build(cfg Config) (*Instance, error) {
	cfg = cfg.Normalize()
	if err := checkParams(cfg); err != nil {
		return nil, err
	}

	field, err := input.ParseField(cfg.Input)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", cfg.Type, ErrInvalidConfig, err)
	}
	src := input.FromField(field)

	kind := func(def smooth.Kind) (smooth.Kind, error) {
		if cfg.Smoother == "" {
			return def, nil
		}
		k, err := smooth.ParseKind(cfg.Smoother)
		if err != nil {
			return 0, fmt.Errorf("%s: %w: %w", cfg.Type, ErrInvalidConfig, err)
		}
		return k, nil
	}

	in := &Instance{cfg: cfg, label: cfg.Label()}
	switch {
	case maTypes[cfg.Type]:
		def := smooth.SMA
		if cfg.Type != "MA" {
			def, _ = smooth.ParseKind(cfg.Type)
		}
		k, err := kind(def)
		if err != nil {
			return nil, err
		}
		in.single, err = NewMA(k, cfg.Period, src)
		if err != nil {
			return nil, err
		}
		return in, nil
	}

	switch cfg.Type {
	case "RSI":
		k, err := kind(smooth.Wilder)
		if err != nil {
			return nil, err
		}
		in.single, err = NewRSI(cfg.Period, k, src)
		if err != nil {
			return nil, err
		}
	case "MACD":
		k, err := kind(smooth.EMA)
		if err != nil {
			return nil, err
		}
		in.single, err = NewMACD(cfg.Fast, cfg.Slow, cfg.Signal, k, src)
		if err != nil {
			return nil, err
		}
	case "BB":
		k, err := kind(smooth.SMA)
		if err != nil {
			return nil, err
		}
		in.single, err = NewBollinger(cfg.Period, cfg.Mult, k, src)
		if err != nil {
			return nil, err
		}
	case "DC":
		in.single = NewDonchian(cfg.Period)
	case "ATR":
		k, err := kind(smooth.Wilder)
		if err != nil {
			return nil, err
		}
		in.single, err = NewATR(cfg.Period, k)
		if err != nil {
			return nil, err
		}
	case "MEDIAN":
		in.single = NewRollingMedian(cfg.Period, src)
	case "STOCHRSI":
		k, err := kind(smooth.Wilder)
		if err != nil {
			return nil, err
		}
		rsi, err := NewRSI(cfg.Period, k, src)
		if err != nil {
			return nil, err
		}
		in.single, err = NewStochRSI(cfg.Period, cfg.Fast, cfg.Signal, rsi)
		if err != nil {
			return nil, err
		}
	case "MOM":
		in.single = NewMomentum(cfg.Period, src)
	case "CORR":
		in.multi = NewCorrelation(cfg.Period, src)
	case "RS":
		k, err := kind(smooth.EMA)
		if err != nil {
			return nil, err
		}
		in.multi, err = NewRelativeStrength(cfg.Period, k, src)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownType, cfg.Type)
	}
	return in, nil
}

// MustBuild is Build for configs fixed at compile time; it panics on error.
func MustBuild(cfg Config) *Instance {
	in, err := Build(cfg)
	if err != nil {
		panic(err)
	}
	return in
}

func checkParams(c Config) error {
	if !maTypes[c.Type] && !isRegistered(c.Type) {
		return fmt.Errorf("%w %q", ErrUnknownType, c.Type)
	}
	if c.Period <= 0 {
		return fmt.Errorf("%w: period=%d for %s must be positive", ErrInvalidConfig, c.Period, c.Type)
	}
	switch c.Type {
	case "MACD":
		if c.Fast <= 0 || c.Signal <= 0 || c.Fast >= c.Slow {
			return fmt.Errorf("%w: MACD needs 0 < fast < slow and signal > 0 (got %d/%d/%d)",
				ErrInvalidConfig, c.Fast, c.Slow, c.Signal)
		}
	case "BB":
		if c.Mult <= 0 || math.IsNaN(c.Mult) || math.IsInf(c.Mult, 0) {
			return fmt.Errorf("%w: BB mult=%v must be positive", ErrInvalidConfig, c.Mult)
		}
	case "STOCHRSI":
		if c.Fast <= 0 || c.Signal <= 0 {
			return fmt.Errorf("%w: STOCHRSI smoothing lengths must be positive", ErrInvalidConfig)
		}
	case "CORR", "RS":
		if c.Benchmark == "" {
			return fmt.Errorf("%w: %s requires a benchmark", ErrInvalidConfig, c.Type)
		}
		if c.Type == "CORR" && c.Period < 2 {
			return fmt.Errorf("%w: CORR period must be at least 2", ErrInvalidConfig)
		}
	}
	if c.Benchmark != "" && c.Type != "CORR" && c.Type != "RS" {
		return fmt.Errorf("%w: %s does not take a benchmark", ErrInvalidConfig, c.Type)
	}
	return nil
}

func isRegistered(t string) bool {
	for _, name := range Types() {
		if name == t {
			return true
		}
	}
	return false
}
