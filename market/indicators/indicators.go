// Package indicators computes streaming per-bar feature values used to
// populate a market.Series feature table.
package indicators

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rustyeddy/mtsim/market"
)

// Indicator consumes closed candles one at a time and produces a value per
// bar. Deterministic, no lookahead.
type Indicator interface {
	// Name returns a stable identifier like "EMA(20)".
	Name() string

	// Warmup returns how many updates are needed before Ready() can be true.
	Warmup() int

	// Reset clears all internal state.
	Reset()

	// Update consumes the next closed candle.
	Update(c market.Candle)

	// Ready reports whether Value() is meaningful.
	Ready() bool

	// Value returns the current value; callers should check Ready() first.
	Value() float64
}

// Apply runs every indicator over the series and fills s.Features with one
// column per indicator. Bars before warmup get the first ready value carried
// backwards so the table stays rectangular.
func Apply(s *market.Series, inds ...Indicator) {
	if len(inds) == 0 {
		return
	}
	for _, ind := range inds {
		ind.Reset()
	}
	rows := make([][]float64, s.Len())
	firstReady := make([]int, len(inds))
	for i := range firstReady {
		firstReady[i] = -1
	}
	for i, c := range s.Candles {
		row := make([]float64, len(inds))
		for j, ind := range inds {
			ind.Update(c)
			if ind.Ready() {
				if firstReady[j] == -1 {
					firstReady[j] = i
				}
				row[j] = ind.Value()
			}
		}
		rows[i] = row
	}
	for j, at := range firstReady {
		if at <= 0 {
			continue
		}
		for i := 0; i < at; i++ {
			rows[i][j] = rows[at][j]
		}
	}
	s.Features = rows
}

// Parse builds an indicator from a spec string like "ema:20", "atr:14" or
// "logret".
func Parse(spec string) (Indicator, error) {
	name, arg, _ := strings.Cut(strings.ToLower(strings.TrimSpace(spec)), ":")
	period := 0
	if arg != "" {
		p, err := strconv.Atoi(arg)
		if err != nil || p <= 0 {
			return nil, fmt.Errorf("indicator %q: bad period %q", name, arg)
		}
		period = p
	}
	switch name {
	case "ema":
		if period == 0 {
			period = 20
		}
		return NewEMA(period), nil
	case "atr":
		if period == 0 {
			period = 14
		}
		return NewATR(period), nil
	case "logret":
		return NewLogReturn(), nil
	default:
		return nil, fmt.Errorf("unknown indicator %q", name)
	}
}
