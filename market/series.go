package market

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

var ErrNoData = errors.New("no data for time")

// Series is one symbol's time-indexed bar history plus optional per-bar
// feature columns (indicator values, engineered signals). Times are strictly
// increasing; Candles and Features are aligned to Times row for row.
type Series struct {
	Info     SymbolInfo
	Times    []time.Time
	Candles  []Candle
	Features [][]float64
}

// Len returns the number of bars in the series.
func (s *Series) Len() int { return len(s.Times) }

// FeatureDim returns the width of the feature columns (0 when none).
func (s *Series) FeatureDim() int {
	if len(s.Features) == 0 {
		return 0
	}
	return len(s.Features[0])
}

// At returns the bar at the latest time not after t (forward-fill lookup).
func (s *Series) At(t time.Time) (Candle, error) {
	i := sort.Search(len(s.Times), func(i int) bool { return s.Times[i].After(t) })
	if i == 0 {
		return Candle{}, fmt.Errorf("%s at %s: %w", s.Info.Name, t.Format(time.RFC3339), ErrNoData)
	}
	return s.Candles[i-1], nil
}

func (s *Series) validate() error {
	if s.Info.Name == "" {
		return errors.New("series: symbol name required")
	}
	if len(s.Times) == 0 {
		return fmt.Errorf("series %s: empty", s.Info.Name)
	}
	if len(s.Candles) != len(s.Times) {
		return fmt.Errorf("series %s: %d candles for %d times", s.Info.Name, len(s.Candles), len(s.Times))
	}
	if s.Features != nil && len(s.Features) != len(s.Times) {
		return fmt.Errorf("series %s: %d feature rows for %d times", s.Info.Name, len(s.Features), len(s.Times))
	}
	for i := 1; i < len(s.Times); i++ {
		if !s.Times[i].After(s.Times[i-1]) {
			return fmt.Errorf("series %s: times not strictly increasing at index %d", s.Info.Name, i)
		}
	}
	return nil
}

// Dataset holds the series of every known symbol, keyed by name. It is
// immutable once built and safe to share across episodes.
type Dataset struct {
	series map[string]*Series
	names  []string // insertion order, kept stable for deterministic iteration
}

func NewDataset() *Dataset {
	return &Dataset{series: make(map[string]*Series)}
}

// Add registers a series. Symbols must be unique.
func (d *Dataset) Add(s *Series) error {
	if err := s.validate(); err != nil {
		return err
	}
	if _, ok := d.series[s.Info.Name]; ok {
		return fmt.Errorf("dataset: duplicate symbol %s", s.Info.Name)
	}
	d.series[s.Info.Name] = s
	d.names = append(d.names, s.Info.Name)
	return nil
}

// Symbols returns symbol names in registration order.
func (d *Dataset) Symbols() []string {
	out := make([]string, len(d.names))
	copy(out, d.names)
	return out
}

// Len returns the number of registered symbols.
func (d *Dataset) Len() int { return len(d.names) }

// Series returns the series for symbol, or nil when unknown.
func (d *Dataset) Series(symbol string) *Series {
	return d.series[symbol]
}

// Info returns symbol metadata.
func (d *Dataset) Info(symbol string) (SymbolInfo, bool) {
	s, ok := d.series[symbol]
	if !ok {
		return SymbolInfo{}, false
	}
	return s.Info, true
}

// PriceAt returns the bar for symbol at the latest time not after t.
func (d *Dataset) PriceAt(symbol string, t time.Time) (Candle, error) {
	s, ok := d.series[symbol]
	if !ok {
		return Candle{}, fmt.Errorf("dataset: unknown symbol %s", symbol)
	}
	return s.At(t)
}
