package indicators

import (
	"fmt"

	"github.com/rustyeddy/mtsim/market"
)

// EMA is a streaming Exponential Moving Average over bar closes. The first
// value is seeded with an SMA of the warmup window, then smoothed with the
// standard 2/(period+1) multiplier.
type EMA struct {
	period     int
	multiplier float64
	ema        float64
	warmupSum  float64
	count      int
}

func NewEMA(period int) *EMA {
	return &EMA{
		period:     period,
		multiplier: 2.0 / float64(period+1),
	}
}

func (e *EMA) Name() string {
	return fmt.Sprintf("EMA(%d)", e.period)
}

func (e *EMA) Warmup() int { return e.period }

func (e *EMA) Reset() {
	e.ema = 0
	e.warmupSum = 0
	e.count = 0
}

func (e *EMA) Update(c market.Candle) {
	e.count++
	if e.count < e.period {
		e.warmupSum += c.Close
		return
	}
	if e.count == e.period {
		e.warmupSum += c.Close
		e.ema = e.warmupSum / float64(e.period)
		return
	}
	e.ema = (c.Close-e.ema)*e.multiplier + e.ema
}

func (e *EMA) Ready() bool { return e.count >= e.period }

func (e *EMA) Value() float64 { return e.ema }
