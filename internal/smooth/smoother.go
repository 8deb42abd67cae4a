// Package smooth provides the moving-average family behind a single
// Smoother interface, selected at construction by a Kind tag.
//
// Every smoother honours the same contract as the rolling aggregates:
// Next(v, false) returns the value the smoother would hold after accepting
// v without changing retained state; Next(v, true) commits. Chained
// algorithms forward the caller's flag to every stage.
package smooth

import (
	"errors"
	"fmt"
	"strings"
)

// Smoother is a stateful recursive filter producing one output per input.
type Smoother interface {
	Next(v float64, isFinal bool) float64
	Reset()
	Length() int
}

// Kind selects a smoothing algorithm.
type Kind int

const (
	SMA    Kind = iota + 1 // simple
	EMA                    // exponential, seeded with the SMA of the first length samples
	WMA                    // linearly weighted
	Wilder                 // Wilder's smoothing (RMA/SMMA), alpha = 1/length
	DEMA                   // double exponential
	TEMA                   // triple exponential
	ZLEMA                  // zero-lag exponential
	KAMA                   // Kaufman adaptive
	HMA                    // Hull
	TRIMA                  // triangular (SMA of SMA)
)

// ErrUnknownKind is returned for tags outside the supported set.
var ErrUnknownKind = errors.New("unknown smoother kind")

var kindNames = map[Kind]string{
	SMA:    "SMA",
	EMA:    "EMA",
	WMA:    "WMA",
	Wilder: "WILDER",
	DEMA:   "DEMA",
	TEMA:   "TEMA",
	ZLEMA:  "ZLEMA",
	KAMA:   "KAMA",
	HMA:    "HMA",
	TRIMA:  "TRIMA",
}

var kindAliases = map[string]Kind{
	"RMA":  Wilder,
	"SMMA": Wilder,
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "Kind(" + fmt.Sprint(int(k)) + ")"
}

// Kinds lists every supported kind in declaration order.
func Kinds() []Kind {
	return []Kind{SMA, EMA, WMA, Wilder, DEMA, TEMA, ZLEMA, KAMA, HMA, TRIMA}
}

// ParseKind maps a case-insensitive name ("ema", "Wilder", "smma") to a Kind.
func ParseKind(s string) (Kind, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}
	if k, ok := kindAliases[name]; ok {
		return k, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// New builds a smoother of the given kind. length is clamped to a minimum of 1.
func New(kind Kind, length int) (Smoother, error) {
	if length < 1 {
		length = 1
	}
	switch kind {
	case SMA:
		return newSimple(length), nil
	case EMA:
		return newExponential(length), nil
	case WMA:
		return newWeighted(length), nil
	case Wilder:
		return newWilder(length), nil
	case DEMA:
		return newDouble(length), nil
	case TEMA:
		return newTriple(length), nil
	case ZLEMA:
		return newZeroLag(length), nil
	case KAMA:
		return newAdaptive(length), nil
	case HMA:
		return newHull(length), nil
	case TRIMA:
		return newTriangular(length), nil
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(kind))
}

// MustNew is New for kinds fixed at compile time; it panics on error.
func MustNew(kind Kind, length int) Smoother {
	s, err := New(kind, length)
	if err != nil {
		panic(err)
	}
	return s
}
