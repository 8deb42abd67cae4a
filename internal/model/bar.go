package model

import "time"

// Bar is an immutable OHLCV record for one symbol/timeframe interval.
// Prices are float64 rupees; the wire format (TFCandle) carries paise.
type Bar struct {
	Symbol string    `json:"symbol"` // "exchange:token"
	TF     int       `json:"tf"`     // timeframe in seconds
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
	Final  bool      `json:"final"` // false while the interval is still forming
}

// NewBar is a convenience constructor used by tests and replay tools.
func NewBar(symbol string, start time.Time, open, high, low, close, volume float64) Bar {
	return Bar{
		Symbol: symbol,
		Start:  start,
		End:    start,
		Open:   open,
		High:   high,
		Low:    low,
		Close:  close,
		Volume: volume,
		Final:  true,
	}
}
