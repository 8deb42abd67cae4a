// Package input maps a bar to the scalar series an indicator operates on.
package input

import (
	"errors"
	"fmt"
	"strings"

	"indcore/internal/model"
)

// Field names a price series derived from a bar.
type Field int

const (
	Close Field = iota
	Open
	High
	Low
	Volume
	HL2   // median price (H+L)/2
	HLC3  // typical price (H+L+C)/3
	OHLC4 // (O+H+L+C)/4
	HLCC4 // weighted close (H+L+2C)/4
)

var fieldNames = [...]string{
	Close:  "close",
	Open:   "open",
	High:   "high",
	Low:    "low",
	Volume: "volume",
	HL2:    "hl2",
	HLC3:   "hlc3",
	OHLC4:  "ohlc4",
	HLCC4:  "hlcc4",
}

var fieldAliases = map[string]Field{
	"median":   HL2,
	"typical":  HLC3,
	"weighted": HLCC4,
}

// ErrNilProjection is returned when a projection source is declared without a function.
var ErrNilProjection = errors.New("input: projection function is nil")

// ErrUnknownField is returned by ParseField for unsupported names.
var ErrUnknownField = errors.New("input: unknown field")

func (f Field) String() string {
	if f >= 0 && int(f) < len(fieldNames) {
		return fieldNames[f]
	}
	return fmt.Sprintf("Field(%d)", int(f))
}

// ParseField maps a case-insensitive name to a Field. An empty name is Close.
func ParseField(s string) (Field, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "" {
		return Close, nil
	}
	for f, n := range fieldNames {
		if n == name {
			return Field(f), nil
		}
	}
	if f, ok := fieldAliases[name]; ok {
		return f, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownField, s)
}

// Resolver extracts one scalar per bar, from either a named field or a
// caller-supplied projection. The zero value resolves Close.
type Resolver struct {
	field   Field
	project func(model.Bar) float64
}

// FromField returns a resolver for a named field.
func FromField(f Field) Resolver {
	return Resolver{field: f}
}

// FromProjection returns a resolver over an arbitrary projection.
func FromProjection(fn func(model.Bar) float64) (Resolver, error) {
	if fn == nil {
		return Resolver{}, ErrNilProjection
	}
	return Resolver{project: fn}, nil
}

// Value returns the resolved scalar for b.
func (r Resolver) Value(b model.Bar) float64 {
	if r.project != nil {
		return r.project(b)
	}
	switch r.field {
	case Open:
		return b.Open
	case High:
		return b.High
	case Low:
		return b.Low
	case Volume:
		return b.Volume
	case HL2:
		return (b.High + b.Low) / 2
	case HLC3:
		return (b.High + b.Low + b.Close) / 3
	case OHLC4:
		return (b.Open + b.High + b.Low + b.Close) / 4
	case HLCC4:
		return (b.High + b.Low + 2*b.Close) / 4
	}
	return b.Close
}

// String names the source for indicator labels ("close", "hlc3", "custom").
func (r Resolver) String() string {
	if r.project != nil {
		return "custom"
	}
	return r.field.String()
}
