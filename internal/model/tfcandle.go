package model

import (
	"encoding/json"
	"time"
)

// TFCandle represents a resampled OHLC candle for a dynamic timeframe as
// published by the upstream candle builder.
// TF is the timeframe duration in seconds (e.g., 60 = 1 minute).
// All prices are in paise (int64) to avoid floating-point drift on the wire.
type TFCandle struct {
	Token    string    `json:"token"`
	Exchange string    `json:"exchange"`
	TF       int       `json:"tf"`      // timeframe in seconds
	TS       time.Time `json:"ts"`      // bucket start time (UTC, TF-aligned)
	Open     int64     `json:"open"`    // paise
	High     int64     `json:"high"`    // paise
	Low      int64     `json:"low"`     // paise
	Close    int64     `json:"close"`   // paise
	Volume   int64     `json:"volume"`  // cumulative quantity
	Count    int       `json:"count"`   // number of 1s candles merged
	Forming  bool      `json:"forming"` // true if bucket is still open
}

// Key returns "exchange:token".
func (c *TFCandle) Key() string {
	return SymbolKey(c.Exchange, c.Token)
}

// StreamKey returns the Redis stream key: "candle:{TF}s:{exchange}:{token}".
func (c *TFCandle) StreamKey() string {
	return TFStreamKey(c.TF, c.Key())
}

// Bar converts the wire candle into the float64 bar the indicators consume.
func (c *TFCandle) Bar() Bar {
	return Bar{
		Symbol: c.Key(),
		TF:     c.TF,
		Start:  c.TS,
		End:    c.TS.Add(time.Duration(c.TF) * time.Second),
		Open:   float64(c.Open) / 100.0,
		High:   float64(c.High) / 100.0,
		Low:    float64(c.Low) / 100.0,
		Close:  float64(c.Close) / 100.0,
		Volume: float64(c.Volume),
		Final:  !c.Forming,
	}
}

// JSON returns the JSON-encoded TF candle.
func (c *TFCandle) JSON() []byte {
	b, _ := json.Marshal(c)
	return b
}

// IndicatorResult holds a computed indicator value for a specific token + TF.
type IndicatorResult struct {
	Name     string             `json:"name"` // e.g. "SMA_20", "MACD_12_26_9"
	Token    string             `json:"token"`
	Exchange string             `json:"exchange"`
	TF       int                `json:"tf"` // timeframe in seconds
	Value    float64            `json:"value"`
	Outputs  map[string]float64 `json:"outputs,omitempty"` // named secondary values ("Signal", "UpperBand", ...)
	TS       time.Time          `json:"ts"`                // candle timestamp that produced this value
	Ready    bool               `json:"ready"`             // true when a meaningful value was produced
	Live     bool               `json:"live"`              // true for preview values from forming candles
}

// StreamKey returns the Redis stream key: "ind:{name}:{TF}s:{exchange}:{token}".
func (r *IndicatorResult) StreamKey() string {
	return indicatorKey(r.Name, r.TF, r.Exchange, r.Token)
}

// LatestKey returns the Redis key holding the last committed value.
func (r *IndicatorResult) LatestKey() string {
	return indicatorKey(r.Name, r.TF, "latest", r.Exchange, r.Token)
}

// PubSubChannel returns the real-time channel: "pub:ind:{name}:{TF}s:{exchange}:{token}".
func (r *IndicatorResult) PubSubChannel() string {
	return "pub:" + r.StreamKey()
}

// JSON returns the JSON-encoded indicator result.
func (r *IndicatorResult) JSON() []byte {
	b, _ := json.Marshal(r)
	return b
}
