package indicator

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultSpecs is the indicator set used when none is configured.
func DefaultSpecs() []Config {
	return []Config{
		{Type: "SMA", Period: 9},
		{Type: "SMA", Period: 20},
		{Type: "SMA", Period: 50},
		{Type: "SMA", Period: 200},
		{Type: "EMA", Period: 9},
		{Type: "EMA", Period: 21},
		{Type: "RSI", Period: 14},
	}
}

// ParseSpecs parses a comma-separated list of indicator specs:
//
//	TYPE:PERIOD[:SMOOTHER[:INPUT]]
//	MACD:FAST[:SLOW[:SIGNAL]]
//	BB:PERIOD[:MULT][:SMOOTHER[:INPUT]]
//	CORR|RS:PERIOD[:SMOOTHER[:INPUT]]:EXCHANGE:TOKEN
//
// A benchmark may also be given as a suffix, "CORR:30@NSE:26000". e.g.
// "SMA:20,MA:14:hma:hlc3,MACD:12:26:9,BB:20:2,RS:14:NSE:26000". An empty
// smoother or input keeps the default. An empty string yields DefaultSpecs.
func ParseSpecs(s string) ([]Config, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultSpecs(), nil
	}

	var configs []Config
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		cfg, err := parseSpec(part)
		if err != nil {
			return nil, err
		}
		configs = append(configs, cfg)
	}
	if len(configs) == 0 {
		return nil, fmt.Errorf("%w: no indicator specs in %q", ErrInvalidConfig, s)
	}
	return configs, nil
}

func parseSpec(part string) (Config, error) {
	var cfg Config
	spec := part
	if at := strings.IndexByte(spec, '@'); at >= 0 {
		cfg.Benchmark = strings.TrimSpace(spec[at+1:])
		spec = spec[:at]
	}

	fields := strings.Split(spec, ":")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	cfg.Type = strings.ToUpper(fields[0])
	kind := Config{Type: cfg.Type}.Normalize().Type

	// Benchmarked types carry EXCHANGE:TOKEN as their last two fields.
	if (kind == "CORR" || kind == "RS") && cfg.Benchmark == "" && len(fields) >= 4 {
		n := len(fields)
		cfg.Benchmark = fields[n-2] + ":" + fields[n-1]
		fields = fields[:n-2]
	}
	if len(fields) < 2 {
		return cfg, fmt.Errorf("%w: spec %q: want TYPE:PERIOD[:SMOOTHER[:INPUT]]", ErrInvalidConfig, part)
	}

	if kind == "MACD" {
		if len(fields) > 4 {
			return cfg, fmt.Errorf("%w: spec %q: want MACD:FAST[:SLOW[:SIGNAL]]", ErrInvalidConfig, part)
		}
		dst := []*int{&cfg.Fast, &cfg.Slow, &cfg.Signal}
		for i, f := range fields[1:] {
			v, err := strconv.Atoi(f)
			if err != nil {
				return cfg, fmt.Errorf("%w: spec %q: %w", ErrInvalidConfig, part, err)
			}
			*dst[i] = v
		}
		cfg.Period = cfg.Slow
		return cfg, validateSpec(cfg, part)
	}

	period, err := strconv.Atoi(fields[1])
	if err != nil {
		return cfg, fmt.Errorf("%w: spec %q: period: %w", ErrInvalidConfig, part, err)
	}
	cfg.Period = period
	rest := fields[2:]
	if kind == "BB" && len(rest) > 0 {
		if mult, err := strconv.ParseFloat(rest[0], 64); err == nil {
			cfg.Mult = mult
			rest = rest[1:]
		}
	}
	if len(rest) > 2 {
		return cfg, fmt.Errorf("%w: spec %q: want TYPE:PERIOD[:SMOOTHER[:INPUT]]", ErrInvalidConfig, part)
	}
	if len(rest) > 0 {
		cfg.Smoother = rest[0]
	}
	if len(rest) > 1 {
		cfg.Input = rest[1]
	}
	return cfg, validateSpec(cfg, part)
}

func validateSpec(cfg Config, part string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("spec %q: %w", part, err)
	}
	return nil
}

// ExpandTFs applies the same indicator set to every TF.
func ExpandTFs(specs []Config, tfs []int) []TFConfig {
	configs := make([]TFConfig, len(tfs))
	for i, tf := range tfs {
		configs[i] = TFConfig{TF: tf, Indicators: specs}
	}
	return configs
}

// SetFile is the YAML indicator set file:
//
//	indicators:          # applied to every TF without its own entry
//	  - {type: SMA, period: 20}
//	timeframes:
//	  - tf: 300
//	    indicators:
//	      - {type: CORR, period: 30, benchmark: "NSE:26000"}
type SetFile struct {
	Indicators []Config   `yaml:"indicators,omitempty"`
	Timeframes []TFConfig `yaml:"timeframes,omitempty"`
}

// ParseSetFile decodes a YAML indicator set and resolves it against tfs.
// TFs listed under timeframes use their own indicators; every other TF in
// tfs gets the top-level list. With no tfs, only the listed timeframes are
// returned. The result is validated.
func ParseSetFile(r io.Reader, tfs []int) ([]TFConfig, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("read indicator set: %w", err)
	}

	var f SetFile
	dec := yaml.NewDecoder(&buf)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: indicator set: %w", ErrInvalidConfig, err)
	}

	own := make(map[int]bool, len(f.Timeframes))
	configs := make([]TFConfig, 0, len(f.Timeframes)+len(tfs))
	for _, tc := range f.Timeframes {
		own[tc.TF] = true
		configs = append(configs, tc)
	}
	if len(f.Indicators) > 0 {
		for _, tf := range tfs {
			if !own[tf] {
				configs = append(configs, TFConfig{TF: tf, Indicators: f.Indicators})
			}
		}
	}
	if len(configs) == 0 {
		return nil, fmt.Errorf("%w: indicator set has no indicators", ErrInvalidConfig)
	}
	if err := ValidateConfigs(configs); err != nil {
		return nil, err
	}
	return configs, nil
}

// MarshalSetFile renders configs as a YAML indicator set.
func MarshalSetFile(configs []TFConfig) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(SetFile{Timeframes: configs}); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
